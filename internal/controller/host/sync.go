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

package host

import (
	"context"
	"errors"
	"fmt"
	"slices"

	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
	"github.com/golgoth31/gateway-autodns/internal/gateway"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// ConvergenceGateHandler loads the stored record and stops the chain when it
// already matches the computed node addresses and port.
type ConvergenceGateHandler struct {
	store store.HostStore
}

// NewConvergenceGateHandler creates a ConvergenceGateHandler.
func NewConvergenceGateHandler(st store.HostStore) *ConvergenceGateHandler {
	return &ConvergenceGateHandler{store: st}
}

// Handle implements reconciler.Handler.
func (h *ConvergenceGateHandler) Handle(ctx context.Context, rc *Context) error {
	st := rc.Resource

	existing, err := h.store.GetHost(ctx, st.Host)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("read stored record for %s: %w", st.Host, err)
	}

	st.Existing = existing
	if existing.Converged(st.NodeIPs, st.NodePort) {
		logf.FromContext(ctx).WithName("convergence-gate").V(1).Info("host already converged",
			"host", st.Host, "ips", st.NodeIPs, "nodePort", st.NodePort)
		rc.Stop(StopConverged)
	}
	return nil
}

// UpsertDNSHandler makes the internal record set hold exactly the node
// addresses. A stored value that is no longer a node address is swapped for the
// first address, the other addresses are added, and leftover values from the
// previous pass are deleted by their derived ids. Calls run one after another;
// a failed call is logged and the next one is still tried. The provider id kept
// is the one returned by the last successful add or update.
type UpsertDNSHandler struct {
	dns dnsprovider.Provider
}

// NewUpsertDNSHandler creates an UpsertDNSHandler.
func NewUpsertDNSHandler(dns dnsprovider.Provider) *UpsertDNSHandler {
	return &UpsertDNSHandler{dns: dns}
}

// Handle implements reconciler.Handler.
func (h *UpsertDNSHandler) Handle(ctx context.Context, rc *Context) error {
	log := logf.FromContext(ctx).WithName("upsert-dns")
	st := rc.Resource

	var storedID, storedType string
	var previous []string
	if st.Existing != nil {
		storedID = st.Existing.ProviderRecordID
		storedType = st.Existing.RecordType
		previous = st.Existing.NodeIPs
	}

	// Only a stale stored value is swapped; live addresses stay in the set.
	replaceStored := storedID != ""
	_, _, storedValue, parseErr := dnsprovider.ParseRecordID(storedID)
	if parseErr == nil && slices.Contains(st.NodeIPs, storedValue) {
		replaceStored = false
	}

	var keptID, keptType string
	swapped := false
	for i, ip := range st.NodeIPs {
		recordType := dnsprovider.RecordTypeFor(ip)

		var id string
		var err error
		if replaceStored && i == 0 {
			id, err = h.dns.Update(ctx, storedID, st.RR, recordType, ip)
			swapped = err == nil
		} else {
			id, err = h.dns.Add(ctx, st.RR, recordType, ip)
		}
		if err != nil {
			st.DNSFailures++
			log.Error(err, "dns record call failed", "host", st.Host, "rr", st.RR,
				"type", recordType, "ip", ip, "recordId", storedID)
			continue
		}
		keptID, keptType = id, recordType
	}

	if parseErr == nil && !swapped {
		previous = append(slices.Clone(previous), storedValue)
	} else if swapped {
		previous = slices.DeleteFunc(slices.Clone(previous), func(v string) bool { return v == storedValue })
	}
	for _, ip := range staleValues(previous, st.NodeIPs) {
		id := dnsprovider.RecordID(st.RR, dnsprovider.RecordTypeFor(ip), ip)
		if err := h.dns.Delete(ctx, id); err != nil {
			st.DNSFailures++
			log.Error(err, "stale dns value not deleted", "host", st.Host, "recordId", id)
		}
	}

	// With no success the previous provider record, if any, is still the one in place.
	if keptID == "" {
		keptID, keptType = storedID, storedType
	}
	if keptType == "" && len(st.NodeIPs) > 0 {
		keptType = dnsprovider.RecordTypeFor(st.NodeIPs[0])
	}
	st.ProviderRecordID = keptID
	st.RecordType = keptType

	if st.DNSFailures > 0 {
		log.Error(nil, "internal dns is stale for host, store and gateway are updated regardless",
			"host", st.Host, "failed", st.DNSFailures, "total", len(st.NodeIPs))
	}
	return nil
}

// staleValues returns the values of previous that are not in current, once each.
func staleValues(previous, current []string) []string {
	var out []string
	for _, v := range previous {
		if !slices.Contains(current, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// PersistHandler writes the desired state for the host whatever the DNS outcome.
// A store failure ends the pass for this host.
type PersistHandler struct {
	store store.HostStore
}

// NewPersistHandler creates a PersistHandler.
func NewPersistHandler(st store.HostStore) *PersistHandler {
	return &PersistHandler{store: st}
}

// Handle implements reconciler.Handler.
func (h *PersistHandler) Handle(ctx context.Context, rc *Context) error {
	st := rc.Resource
	rec := &store.HostRecord{
		Host:             st.Host,
		RR:               st.RR,
		NodeIPs:          st.NodeIPs,
		NodePort:         st.NodePort,
		ProviderRecordID: st.ProviderRecordID,
		RecordType:       st.RecordType,
	}
	if err := h.store.SaveHost(ctx, rec); err != nil {
		return fmt.Errorf("persist record for %s: %w", st.Host, err)
	}
	return nil
}

// UpsertRouteHandler creates or replaces the gateway route for the external host.
type UpsertRouteHandler struct {
	routes gateway.Routes
}

// NewUpsertRouteHandler creates an UpsertRouteHandler.
func NewUpsertRouteHandler(routes gateway.Routes) *UpsertRouteHandler {
	return &UpsertRouteHandler{routes: routes}
}

// Handle implements reconciler.Handler.
func (h *UpsertRouteHandler) Handle(ctx context.Context, rc *Context) error {
	st := rc.Resource

	var err error
	if st.Existing == nil {
		err = h.routes.AddRoute(ctx, st.Host, st.ExternalHost, st.NodePort)
	} else {
		err = h.routes.UpdateRoute(ctx, st.Host, st.ExternalHost, st.NodePort)
	}
	if err != nil {
		logf.FromContext(ctx).WithName("upsert-route").Error(err, "gateway route call failed",
			"host", st.Host, "externalHost", st.ExternalHost, "nodePort", st.NodePort)
	}
	return nil
}

// PublicRecordHandler points the external record of the host at the public IP.
type PublicRecordHandler struct {
	public PublicRecords
}

// NewPublicRecordHandler creates a PublicRecordHandler.
func NewPublicRecordHandler(public PublicRecords) *PublicRecordHandler {
	return &PublicRecordHandler{public: public}
}

// Handle implements reconciler.Handler.
func (h *PublicRecordHandler) Handle(ctx context.Context, rc *Context) error {
	if err := h.public.ReconcileHost(ctx, rc.Resource.Host); err != nil {
		logf.FromContext(ctx).WithName("public-record").Error(err, "public record not reconciled",
			"host", rc.Resource.Host, "externalHost", rc.Resource.ExternalHost)
	}
	return nil
}
