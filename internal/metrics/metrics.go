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

// Package metrics exposes Prometheus collectors on the controller-runtime registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Label values.
const (
	BackendDNS     = "dns"
	BackendGateway = "gateway"
	BackendStore   = "store"

	ResultSuccess = "success"
	ResultFailure = "failure"

	ActionUpsert = "upsert"
	ActionDelete = "delete"

	OutcomeApplied   = "applied"
	OutcomeConverged = "converged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

var (
	ingressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodns_ingress_events_total",
			Help: "Ingress events consumed, by kind",
		},
		[]string{"kind"},
	)

	hostReconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodns_host_reconciliations_total",
			Help: "Per-host reconciliations, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	backendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodns_backend_calls_total",
			Help: "Calls to external backends, by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	publicIPChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autodns_public_ip_changes_total",
			Help: "Accepted public IP reports that changed the stored address",
		},
	)

	publicRecordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autodns_public_record_failures_total",
			Help: "Hosts whose public record could not be reconciled during a fan-out",
		},
	)

	auditRowsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autodns_audit_rows_pruned_total",
			Help: "Gateway audit rows removed by the retention sweep",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		ingressEvents,
		hostReconciliations,
		backendCalls,
		publicIPChanges,
		publicRecordFailures,
		auditRowsPruned,
	)
}

// RecordIngressEvent counts one consumed ingress event.
func RecordIngressEvent(kind string) {
	ingressEvents.WithLabelValues(kind).Inc()
}

// RecordHostReconcile counts one per-host pass.
func RecordHostReconcile(action, outcome string) {
	hostReconciliations.WithLabelValues(action, outcome).Inc()
}

// RecordBackendCall counts one backend call, classifying err as the result.
func RecordBackendCall(backend, operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	backendCalls.WithLabelValues(backend, operation, result).Inc()
}

// RecordPublicIPChange counts one stored public IP change.
func RecordPublicIPChange() {
	publicIPChanges.Inc()
}

// RecordPublicRecordFailures adds n failed hosts from a fan-out.
func RecordPublicRecordFailures(n int) {
	publicRecordFailures.Add(float64(n))
}

// RecordAuditRowsPruned adds n pruned audit rows.
func RecordAuditRowsPruned(n int64) {
	auditRowsPruned.Add(float64(n))
}
