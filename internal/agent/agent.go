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

package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"
)

// Reporter delivers an address to the controller.
type Reporter interface {
	Report(ctx context.Context, ip string) error
}

// AddrSource lists the candidate addresses.
type AddrSource func() ([]netip.Addr, error)

// Agent polls an address source and reports changes.
type Agent struct {
	source   AddrSource
	reporter Reporter
	interval time.Duration
	log      *slog.Logger

	last string
}

// New returns an Agent polling every interval.
func New(source AddrSource, reporter Reporter, interval time.Duration, log *slog.Logger) *Agent {
	return &Agent{source: source, reporter: reporter, interval: interval, log: log}
}

// Run checks immediately, then every interval, until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		a.Check(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check reports the current address when it differs from the last one seen.
// The last value advances even when the report fails, so a failing controller
// is not retried for the same address.
func (a *Agent) Check(ctx context.Context) {
	addrs, err := a.source()
	if err != nil {
		a.log.ErrorContext(ctx, "failed to read interface addresses", slog.Any("error", err))
		return
	}
	ip, err := SelectAddress(addrs)
	if errors.Is(err, ErrNoAddress) {
		a.log.WarnContext(ctx, "no ipv6 address detected")
		return
	}

	current := ip.String()
	if current == a.last {
		a.log.DebugContext(ctx, "ipv6 address unchanged", slog.String("ip", current))
		return
	}

	a.log.InfoContext(ctx, "ipv6 address changed", slog.String("from", a.last), slog.String("to", current))
	if err := a.reporter.Report(ctx, current); err != nil {
		a.log.ErrorContext(ctx, "failed to report ip address", slog.String("ip", current), slog.Any("error", err))
	} else {
		a.log.InfoContext(ctx, "reported ip address", slog.String("ip", current))
	}
	a.last = current
}

// Last returns the last address seen.
func (a *Agent) Last() string {
	return a.last
}
