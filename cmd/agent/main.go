/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command agent reports the node's public IPv6 address to the controller.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/golgoth31/gateway-autodns/internal/agent"
	"github.com/golgoth31/gateway-autodns/internal/logging"
	"github.com/golgoth31/gateway-autodns/internal/remoteclient"
	"github.com/golgoth31/gateway-autodns/internal/version"
)

func main() {
	var serverURL, apiToken, iface, logFormat string
	var interval time.Duration
	var debug bool
	flag.StringVar(&serverURL, "server-url", os.Getenv("SERVER_URL"), "Base URL of the controller web server.")
	flag.StringVar(&apiToken, "api-token", os.Getenv("API_TOKEN"), "Shared secret sent in the X-API-Token header.")
	flag.StringVar(&iface, "interface", envOr("NETWORK_INTERFACE", "eth0"), "Network interface to read addresses from.")
	flag.DurationVar(&interval, "check-interval", envDuration("CHECK_INTERVAL", 5*time.Second),
		"How often the interface is checked.")
	flag.StringVar(&logFormat, "log-format", logging.FormatJSON, "Log encoder: 'console', 'json' or 'ecs'.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging.")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	log, err := logging.NewSlog(os.Stderr, logFormat, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if serverURL == "" || apiToken == "" {
		log.Error("server url and api token are required")
		os.Exit(2)
	}
	if interval <= 0 {
		log.Error("check interval must be positive", "interval", interval)
		os.Exit(2)
	}

	log.Info("starting agent", "version", version.Version, "interface", iface,
		"server", serverURL, "interval", interval)

	reporter := agent.NewHTTPReporter(serverURL, apiToken, remoteclient.WithTimeout(10*time.Second))
	source := func() ([]netip.Addr, error) { return agent.InterfaceAddrs(iface) }

	if err := agent.New(source, reporter, interval, log).Run(ctrl.SetupSignalHandler()); err != nil {
		log.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
