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

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/golgoth31/gateway-autodns/internal/config"
	"github.com/golgoth31/gateway-autodns/internal/controller"
	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
	"github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/gateway"
	"github.com/golgoth31/gateway-autodns/internal/logging"
	"github.com/golgoth31/gateway-autodns/internal/mcp"
	"github.com/golgoth31/gateway-autodns/internal/publicip"
	"github.com/golgoth31/gateway-autodns/internal/remoteclient"
	"github.com/golgoth31/gateway-autodns/internal/retention"
	"github.com/golgoth31/gateway-autodns/internal/store"
	"github.com/golgoth31/gateway-autodns/internal/version"
	"github.com/golgoth31/gateway-autodns/internal/watch"
	"github.com/golgoth31/gateway-autodns/internal/webserver"
	// +kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

// nolint:gocyclo
func main() {
	var metricsAddr string
	var metricsCertPath, metricsCertName, metricsCertKey string
	var enableLeaderElection bool
	var probeAddr string
	var webAddr string
	var secureMetrics bool
	var enableHTTP2 bool
	var configPath string
	var logFormat string
	var enableMCP bool
	var mcpTransport string
	var mcpAddr string
	var tlsOpts []func(*tls.Config)
	flag.StringVar(&metricsAddr, "metrics-bind-address", "0", "The address the metrics endpoint binds to. "+
		"Use :8443 for HTTPS or :8080 for HTTP, or leave as 0 to disable the metrics service.")
	flag.StringVar(&webAddr, "web-bind-address", ":8090",
		"The address the HTTP API (public IP reports and read endpoints) binds to.")
	flag.StringVar(&configPath, "config", config.DefaultConfigPath,
		"Path to the controller configuration file.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":9090", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	flag.BoolVar(&secureMetrics, "metrics-secure", true,
		"If set, the metrics endpoint is served securely via HTTPS. Use --metrics-secure=false to use HTTP instead.")
	flag.StringVar(&metricsCertPath, "metrics-cert-path", "",
		"The directory that contains the metrics server certificate.")
	flag.StringVar(&metricsCertName, "metrics-cert-name", "tls.crt", "The name of the metrics server certificate file.")
	flag.StringVar(&metricsCertKey, "metrics-cert-key", "tls.key", "The name of the metrics server key file.")
	flag.BoolVar(&enableHTTP2, "enable-http2", false,
		"If set, HTTP/2 will be enabled for the metrics server")
	flag.StringVar(&logFormat, "log-format", "",
		"Log encoder: 'console', 'json' or 'ecs'. Empty keeps the zap flag defaults.")
	flag.BoolVar(&enableMCP, "enable-mcp", false,
		"If set, the MCP (Model Context Protocol) server will be enabled for AI assistant integration.")
	flag.StringVar(&mcpTransport, "mcp-transport", mcp.TransportStdio,
		"The transport to use for the MCP server: 'stdio' or 'streamable-http'.")
	flag.StringVar(&mcpAddr, "mcp-bind-address", "",
		"The address the MCP server binds to (streamable-http only). Empty mounts it on the web server at /mcp.")
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := logging.ApplyFormat(&opts, logFormat); err != nil {
		setupLog.Error(err, "invalid log format", "format", logFormat)
		os.Exit(1)
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	// Environment variables (Kubernetes Downward API)
	podName := os.Getenv("POD_NAME")
	podNamespace := os.Getenv("POD_NAMESPACE")

	setupLog.Info("gateway-autodns", "version", version.Version, "commit", version.Commit, "date", version.Date,
		"podName", podName, "podNamespace", podNamespace)

	// Load controller configuration from file and environment
	operatorConfig, err := config.LoadFromFile(configPath)
	if err != nil {
		setupLog.Error(err, "failed to load configuration", "path", configPath)
		os.Exit(1)
	}
	if err := operatorConfig.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration", "path", configPath)
		os.Exit(1)
	}
	setupLog.Info("loaded configuration", "path", configPath, "config", operatorConfig.LogSummary())

	// if the enable-http2 flag is false (the default), http/2 should be disabled
	// due to its vulnerabilities. More specifically, disabling http/2 will
	// prevent from being vulnerable to the HTTP/2 Stream Cancellation and
	// Rapid Reset CVEs. For more information see:
	// - https://github.com/advisories/GHSA-qppj-fm5r-hxr3
	// - https://github.com/advisories/GHSA-4374-p667-p6c8
	disableHTTP2 := func(c *tls.Config) {
		setupLog.Info("disabling http/2")
		c.NextProtos = []string{"http/1.1"}
	}

	if !enableHTTP2 {
		tlsOpts = append(tlsOpts, disableHTTP2)
	}

	metricsServerOptions := metricsserver.Options{
		BindAddress:   metricsAddr,
		SecureServing: secureMetrics,
		TLSOpts:       tlsOpts,
	}

	if secureMetrics {
		// FilterProvider is used to protect the metrics endpoint with authn/authz.
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	if len(metricsCertPath) > 0 {
		setupLog.Info("Initializing metrics certificate watcher using provided certificates",
			"metrics-cert-path", metricsCertPath, "metrics-cert-name", metricsCertName, "metrics-cert-key", metricsCertKey)

		metricsServerOptions.CertDir = metricsCertPath
		metricsServerOptions.CertName = metricsCertName
		metricsServerOptions.KeyName = metricsCertKey
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions,
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "gateway-autodns.kubesphere.io",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	// Derive a cancellable context from the signal handler so that fatal
	// errors in background servers (web, MCP) can trigger a clean shutdown.
	signalCtx := ctrl.SetupSignalHandler()
	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	// State store: PostgreSQL when a DSN is configured, in-memory otherwise.
	var st store.Store
	if operatorConfig.Database.DSN != "" {
		pg, err := store.OpenPostgres(ctx, operatorConfig.Database.DSN)
		if err != nil {
			setupLog.Error(err, "unable to open database")
			os.Exit(1)
		}
		defer pg.Close() //nolint:errcheck
		if err := mgr.AddReadyzCheck("database", func(_ *http.Request) error {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pg.Ping(pingCtx)
		}); err != nil {
			setupLog.Error(err, "unable to set up database ready check")
			os.Exit(1)
		}
		st = pg
	} else {
		setupLog.Info("no database configured, state is kept in memory and lost on restart")
		st = store.NewMemory()
	}

	route53, err := dnsprovider.NewRoute53(ctx, operatorConfig.DNS)
	if err != nil {
		setupLog.Error(err, "unable to create DNS provider")
		os.Exit(1)
	}
	dns := dnsprovider.NewInstrumented(route53)

	routes := gateway.NewManager(
		operatorConfig.Gateway.AdminURL,
		operatorConfig.Gateway.AdminKey,
		st,
		remoteclient.WithTimeout(operatorConfig.Gateway.Timeout.Duration()),
	)

	rules := host.Rules{
		ClassPrefix:        operatorConfig.Ingress.ClassPrefix,
		ClassSuffix:        operatorConfig.Ingress.ClassSuffix,
		HostSuffix:         operatorConfig.Ingress.HostSuffix,
		ExternalHostSuffix: operatorConfig.Ingress.ExternalHostSuffix,
		Domain:             operatorConfig.DNS.Domain,
	}
	propagator := publicip.NewPropagator(st, dns, rules, operatorConfig.Security.APIToken)

	ingressReconciler := controller.NewIngressReconciler(
		mgr.GetClient(),
		st,
		dns,
		routes,
		propagator,
		rules,
		operatorConfig.Ingress.ServiceNamespace,
	)
	if err := mgr.Add(watch.NewSource(mgr.GetCache(), ingressReconciler, operatorConfig.Events.BufferSize)); err != nil {
		setupLog.Error(err, "unable to add ingress event source")
		os.Exit(1)
	}

	if err := mgr.Add(retention.NewPruner(
		st,
		operatorConfig.Database.CleanupSchedule,
		operatorConfig.Database.RecordRetentionDays,
	)); err != nil {
		setupLog.Error(err, "unable to add audit retention runnable")
		os.Exit(1)
	}
	// +kubebuilder:scaffold:builder

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	webServer := webserver.New(webserver.Config{
		Address: webAddr,
		Rules:   rules,
		TTL:     operatorConfig.DNS.TTL,
	}, propagator, st)

	// Start MCP server if enabled
	var mcpServer *mcp.Server
	if enableMCP {
		mcpServer = mcp.New(st, rules, operatorConfig.DNS.TTL)
		switch {
		case mcpTransport == mcp.TransportStdio:
			go func() {
				setupLog.Info("starting MCP server", "transport", "stdio")
				if err := mcpServer.ServeStdio(); err != nil {
					setupLog.Error(err, "MCP server failed, initiating shutdown")
					cancel()
				}
			}()
		case mcpTransport == mcp.TransportStreamableHTTP && mcpAddr == "":
			setupLog.Info("mounting MCP server on the web server", "transport", "streamable-http", "path", "/mcp")
			webServer.MountHandler("/mcp", mcpServer.HTTPHandler())
		case mcpTransport == mcp.TransportStreamableHTTP:
			go func() {
				setupLog.Info("starting MCP server", "transport", "streamable-http", "address", mcpAddr)
				if err := mcpServer.ServeStreamableHTTP(mcpAddr); err != nil {
					setupLog.Error(err, "MCP server failed, initiating shutdown")
					cancel()
				}
			}()
		default:
			setupLog.Error(nil, "unknown MCP transport", "transport", mcpTransport)
			os.Exit(1)
		}
	}

	// Start the web server in a goroutine
	go func() {
		setupLog.Info("starting web server", "address", webAddr)
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			setupLog.Error(err, "web server failed, initiating shutdown")
			cancel()
		}
	}()

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}

	// Gracefully shutdown web server
	if err := webServer.Shutdown(context.Background()); err != nil {
		setupLog.Error(err, "error shutting down web server")
	}

	// Gracefully shutdown MCP server
	if mcpServer != nil {
		if err := mcpServer.Shutdown(context.Background()); err != nil {
			setupLog.Error(err, "error shutting down MCP server")
		}
	}
}
