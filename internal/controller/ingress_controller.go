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

package controller

import (
	"context"

	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	hostsync "github.com/golgoth31/gateway-autodns/internal/controller/host"
	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
	domainhost "github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/gateway"
	"github.com/golgoth31/gateway-autodns/internal/metrics"
	"github.com/golgoth31/gateway-autodns/internal/reconciler"
	"github.com/golgoth31/gateway-autodns/internal/store"
	"github.com/golgoth31/gateway-autodns/internal/watch"
)

// IngressReconciler keeps DNS records, gateway routes and stored state in line
// with the hosts declared by managed ingresses.
type IngressReconciler struct {
	rules   domainhost.Rules
	chain   *reconciler.Chain[*hostsync.State]
	remover *hostsync.Remover
}

var _ watch.Handler = (*IngressReconciler)(nil)

// NewIngressReconciler creates an IngressReconciler with the per-host handler chain.
func NewIngressReconciler(
	reader client.Reader,
	st store.HostStore,
	dns dnsprovider.Provider,
	routes gateway.Routes,
	public hostsync.PublicRecords,
	rules domainhost.Rules,
	serviceNamespace string,
) *IngressReconciler {
	return &IngressReconciler{
		rules: rules,
		chain: reconciler.NewChain[*hostsync.State](
			hostsync.NewResolveNamesHandler(rules),
			hostsync.NewLookupServiceHandler(reader, serviceNamespace),
			hostsync.NewCollectNodeIPsHandler(reader),
			hostsync.NewConvergenceGateHandler(st),
			hostsync.NewUpsertDNSHandler(dns),
			hostsync.NewPersistHandler(st),
			hostsync.NewUpsertRouteHandler(routes),
			hostsync.NewPublicRecordHandler(public),
		),
		remover: hostsync.NewRemover(st, dns, routes, public, rules),
	}
}

// +kubebuilder:rbac:groups=networking.k8s.io,resources=ingresses,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=services,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=nodes,verbs=get;list;watch

// Handle implements watch.Handler. Hosts are processed one after another and a
// failure on one host never stops the others.
func (r *IngressReconciler) Handle(ctx context.Context, ev watch.Event) {
	log := logf.FromContext(ctx)

	current := r.managedHosts(ev.Object)

	switch ev.Kind {
	case watch.KindDelete:
		for _, h := range current {
			r.remove(ctx, h)
		}
		return

	case watch.KindUpdate:
		for _, h := range domainhost.Diff(r.managedHosts(ev.Old), current) {
			log.Info("host no longer declared, removing", "host", h)
			r.remove(ctx, h)
		}
	}

	if len(current) == 0 {
		return
	}
	className := ingressClassName(ev.Object)
	for _, h := range current {
		r.upsert(ctx, h, className)
	}
}

func (r *IngressReconciler) upsert(ctx context.Context, h, className string) {
	log := logf.FromContext(ctx)

	rc := hostsync.NewContext(h, className)
	if err := r.chain.Execute(ctx, rc); err != nil {
		metrics.RecordHostReconcile(metrics.ActionUpsert, metrics.OutcomeFailed)
		log.Error(err, "host reconciliation failed, waiting for the next event", "host", h)
		return
	}

	stopped, reason := rc.Stopped()
	switch {
	case stopped && reason == hostsync.StopConverged:
		metrics.RecordHostReconcile(metrics.ActionUpsert, metrics.OutcomeConverged)
	case stopped:
		metrics.RecordHostReconcile(metrics.ActionUpsert, metrics.OutcomeSkipped)
		log.V(1).Info("host skipped", "host", h, "reason", reason)
	default:
		metrics.RecordHostReconcile(metrics.ActionUpsert, metrics.OutcomeApplied)
		log.Info("host reconciled", "host", h, "ips", rc.Resource.NodeIPs,
			"nodePort", rc.Resource.NodePort, "recordId", rc.Resource.ProviderRecordID)
	}
}

func (r *IngressReconciler) remove(ctx context.Context, h string) {
	removed, err := r.remover.Remove(ctx, h)
	switch {
	case err != nil:
		metrics.RecordHostReconcile(metrics.ActionDelete, metrics.OutcomeFailed)
		logf.FromContext(ctx).Error(err, "host removal failed", "host", h)
	case removed:
		metrics.RecordHostReconcile(metrics.ActionDelete, metrics.OutcomeApplied)
	default:
		metrics.RecordHostReconcile(metrics.ActionDelete, metrics.OutcomeSkipped)
	}
}

func (r *IngressReconciler) managedHosts(ing *networkingv1.Ingress) []string {
	if ing == nil {
		return nil
	}
	hosts := make([]string, 0, len(ing.Spec.Rules))
	for _, rule := range ing.Spec.Rules {
		hosts = append(hosts, rule.Host)
	}
	return r.rules.ManagedHosts(ingressClassName(ing), hosts)
}

func ingressClassName(ing *networkingv1.Ingress) string {
	if ing == nil || ing.Spec.IngressClassName == nil {
		return ""
	}
	return *ing.Spec.IngressClassName
}
