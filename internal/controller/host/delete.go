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
	domainhost "github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/gateway"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// Remover tears down everything created for a host. Each step runs even when
// the previous one failed, and the stored record is always removed.
type Remover struct {
	store  store.HostStore
	dns    dnsprovider.Provider
	routes gateway.Routes
	public PublicRecords
	rules  domainhost.Rules
}

// NewRemover creates a Remover.
func NewRemover(st store.HostStore, dns dnsprovider.Provider, routes gateway.Routes,
	public PublicRecords, rules domainhost.Rules) *Remover {
	return &Remover{store: st, dns: dns, routes: routes, public: public, rules: rules}
}

// Remove deletes the gateway route, every internal record value, the stored
// record and the public record of host. It reports whether a stored record existed; the
// error is only set when the stored record could not be read or deleted.
func (r *Remover) Remove(ctx context.Context, host string) (bool, error) {
	log := logf.FromContext(ctx).WithName("remove-host")

	rec, err := r.store.GetHost(ctx, host)
	if errors.Is(err, store.ErrNotFound) {
		log.V(1).Info("host not managed, nothing to remove", "host", host)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read stored record for %s: %w", host, err)
	}

	externalHost := r.rules.ExternalHost(host)
	var leaked []string

	if err := r.routes.DeleteRoute(ctx, host, externalHost); err != nil {
		log.Error(err, "gateway route delete failed", "host", host, "externalHost", externalHost)
		leaked = append(leaked, "gateway route "+gateway.RouteID(externalHost))
	}

	for _, id := range recordIDs(rec) {
		if err := r.dns.Delete(ctx, id); err != nil {
			log.Error(err, "dns record delete failed", "host", host, "recordId", id)
			leaked = append(leaked, "dns record "+id)
		}
	}

	if err := r.store.DeleteHost(ctx, host); err != nil {
		return true, fmt.Errorf("delete stored record for %s: %w", host, err)
	}
	if len(leaked) > 0 {
		log.Info("WARNING: host removed from store but backend resources may remain, clean them up manually",
			"host", host, "leaked", leaked)
	}

	if err := r.public.RemoveHost(ctx, host); err != nil {
		log.Error(err, "public record delete failed", "host", host, "externalHost", externalHost)
	}

	log.Info("host removed", "host", host)
	return true, nil
}

// recordIDs names every value published for rec: one per node address, plus
// the stored provider id when it points elsewhere.
func recordIDs(rec *store.HostRecord) []string {
	ids := make([]string, 0, len(rec.NodeIPs)+1)
	for _, ip := range rec.NodeIPs {
		id := dnsprovider.RecordID(rec.RR, dnsprovider.RecordTypeFor(ip), ip)
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if rec.ProviderRecordID != "" && !slices.Contains(ids, rec.ProviderRecordID) {
		ids = append(ids, rec.ProviderRecordID)
	}
	return ids
}
