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

// Package host contains the handlers that bring one managed host in line with
// its ingress: router service lookup, node addresses, internal DNS records, the
// stored record, the gateway route and the public record.
package host

import (
	"context"

	"github.com/golgoth31/gateway-autodns/internal/reconciler"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// Stop reasons set on the reconcile context.
const (
	StopServiceMissing  = "router service not found"
	StopNodePortMissing = "no http node port"
	StopNodesUnlisted   = "nodes could not be listed"
	StopConverged       = "already converged"
)

// State is the per-host data threaded through the upsert chain.
type State struct {
	Host      string
	ClassName string

	RR           string
	ServiceName  string
	ExternalHost string

	NodePort int32
	NodeIPs  []string

	// Existing is the stored record before this pass, nil for a new host.
	Existing *store.HostRecord

	ProviderRecordID string
	RecordType       string
	DNSFailures      int
}

// Context is the reconcile context the upsert handlers share.
type Context = reconciler.ReconcileContext[*State]

// NewContext starts a pass for host declared under className.
func NewContext(host, className string) *Context {
	return reconciler.NewReconcileContext(&State{Host: host, ClassName: className})
}

// PublicRecords manages the external record of a host.
type PublicRecords interface {
	ReconcileHost(ctx context.Context, host string) error
	RemoveHost(ctx context.Context, host string) error
}
