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

// Package publicip stores the reported public address and keeps the external
// DNS record of every managed host pointed at it.
package publicip

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/netip"

	"github.com/hashicorp/go-multierror"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
	"github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/metrics"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

var (
	// ErrUnauthorized is returned when the presented token does not match.
	ErrUnauthorized = errors.New("invalid api token")

	// ErrInvalidIP is returned when the reported address is not an IP literal.
	ErrInvalidIP = errors.New("invalid ip address")
)

// Store is the state the propagator reads and writes.
type Store interface {
	ListHosts(ctx context.Context) ([]store.HostRecord, error)
	store.PublicIPStore
}

// Propagator owns the public IP and the external records derived from it.
type Propagator struct {
	store    Store
	dns      dnsprovider.Provider
	rules    host.Rules
	apiToken []byte
}

// NewPropagator returns a Propagator. An empty apiToken rejects every report.
func NewPropagator(st Store, dns dnsprovider.Provider, rules host.Rules, apiToken string) *Propagator {
	return &Propagator{
		store:    st,
		dns:      dns,
		rules:    rules,
		apiToken: []byte(apiToken),
	}
}

// Authorize checks token in constant time.
func (p *Propagator) Authorize(token string) error {
	if len(p.apiToken) == 0 || subtle.ConstantTimeCompare([]byte(token), p.apiToken) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// ReportPublicIP records ipAddress and, when it differs from the stored one,
// points the external record of every managed host at it. Per-host failures are
// logged and counted; only authorization, validation and store errors are returned.
func (p *Propagator) ReportPublicIP(ctx context.Context, token, ipAddress string) error {
	log := logf.FromContext(ctx).WithName("public-ip")

	if err := p.Authorize(token); err != nil {
		return err
	}
	addr, err := netip.ParseAddr(ipAddress)
	if err != nil || addr.Zone() != "" {
		return fmt.Errorf("%w: %q", ErrInvalidIP, ipAddress)
	}
	ipAddress = addr.String()

	current, err := p.store.GetPublicIP(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read public ip: %w", err)
	case current.IPAddress == ipAddress:
		log.V(1).Info("public ip unchanged", "ip", ipAddress)
		return nil
	}

	if err := p.store.SavePublicIP(ctx, ipAddress); err != nil {
		return fmt.Errorf("save public ip: %w", err)
	}
	metrics.RecordPublicIPChange()
	log.Info("public ip changed", "ip", ipAddress)

	hosts, err := p.store.ListHosts(ctx)
	if err != nil {
		return fmt.Errorf("list managed hosts: %w", err)
	}

	var result *multierror.Error
	for _, h := range hosts {
		if err := p.reconcile(ctx, h.Host, ipAddress); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", h.Host, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		metrics.RecordPublicRecordFailures(len(result.Errors))
		log.Error(err, "some public records were not updated",
			"failed", len(result.Errors), "total", len(hosts))
	}
	return nil
}

// ReconcileHost points the external record of host at the stored public IP.
// It does nothing until a public IP has been reported.
func (p *Propagator) ReconcileHost(ctx context.Context, internalHost string) error {
	current, err := p.store.GetPublicIP(ctx)
	if errors.Is(err, store.ErrNotFound) {
		logf.FromContext(ctx).WithName("public-ip").Info("no public ip reported yet, skipping public record",
			"host", internalHost)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read public ip: %w", err)
	}
	return p.reconcile(ctx, internalHost, current.IPAddress)
}

// RemoveHost deletes the external record of host when it exists.
func (p *Propagator) RemoveHost(ctx context.Context, internalHost string) error {
	rr := p.rules.ResourceRecord(p.rules.ExternalHost(internalHost))
	existing, err := p.dns.Query(ctx, rr)
	if err != nil {
		return fmt.Errorf("query %s: %w", rr, err)
	}
	if existing == nil {
		return nil
	}
	if err := p.dns.Delete(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete %s: %w", existing.ID, err)
	}
	return nil
}

func (p *Propagator) reconcile(ctx context.Context, internalHost, ipAddress string) error {
	log := logf.FromContext(ctx).WithName("public-ip")
	externalHost := p.rules.ExternalHost(internalHost)
	rr := p.rules.ResourceRecord(externalHost)
	recordType := dnsprovider.RecordTypeFor(ipAddress)

	existing, err := p.dns.Query(ctx, rr)
	if err != nil {
		return fmt.Errorf("query %s: %w", rr, err)
	}

	if existing == nil {
		if _, err := p.dns.Add(ctx, rr, recordType, ipAddress); err != nil {
			return fmt.Errorf("add %s: %w", rr, err)
		}
		log.Info("public record added", "externalHost", externalHost, "type", recordType, "ip", ipAddress)
		return nil
	}

	if existing.Value == ipAddress && existing.Type == recordType {
		log.V(1).Info("public record already current", "externalHost", externalHost)
		return nil
	}
	if _, err := p.dns.Update(ctx, existing.ID, rr, recordType, ipAddress); err != nil {
		return fmt.Errorf("update %s: %w", rr, err)
	}
	log.Info("public record updated", "externalHost", externalHost, "type", recordType,
		"from", existing.Value, "to", ipAddress)
	return nil
}
