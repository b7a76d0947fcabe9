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

// Package gateway manages routes on the APISIX admin API and audits every call.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/golgoth31/gateway-autodns/internal/metrics"
	"github.com/golgoth31/gateway-autodns/internal/remoteclient"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// AdminKeyHeader carries the APISIX admin key.
const AdminKeyHeader = "X-API-KEY"

const routesPath = "/apisix/admin/routes/"

// Routes is what the reconciler needs from the gateway.
type Routes interface {
	AddRoute(ctx context.Context, upstreamHost, externalHost string, nodePort int32) error
	UpdateRoute(ctx context.Context, upstreamHost, externalHost string, nodePort int32) error
	DeleteRoute(ctx context.Context, upstreamHost, externalHost string) error
}

// Recorder appends audit rows.
type Recorder interface {
	RecordOperation(ctx context.Context, op *store.GatewayOperation) error
}

// Manager implements Routes against the APISIX admin API.
type Manager struct {
	client   *remoteclient.Client
	adminURL string
	audit    Recorder
}

var _ Routes = (*Manager)(nil)

// NewManager returns a Manager. adminKey is sent on every call when set.
func NewManager(adminURL, adminKey string, audit Recorder, opts ...remoteclient.Option) *Manager {
	opts = append(opts, remoteclient.WithHeader(AdminKeyHeader, adminKey))
	return &Manager{
		client:   remoteclient.NewClient(opts...),
		adminURL: strings.TrimSuffix(adminURL, "/"),
		audit:    audit,
	}
}

// AddRoute creates the route for externalHost.
func (m *Manager) AddRoute(ctx context.Context, upstreamHost, externalHost string, nodePort int32) error {
	return m.put(ctx, store.OperationAdd, upstreamHost, externalHost, nodePort)
}

// UpdateRoute replaces the route for externalHost.
func (m *Manager) UpdateRoute(ctx context.Context, upstreamHost, externalHost string, nodePort int32) error {
	return m.put(ctx, store.OperationUpdate, upstreamHost, externalHost, nodePort)
}

// DeleteRoute removes the route for externalHost.
func (m *Manager) DeleteRoute(ctx context.Context, upstreamHost, externalHost string) error {
	op := &store.GatewayOperation{
		Operation:    store.OperationDelete,
		UpstreamHost: upstreamHost,
		ExternalHost: externalHost,
	}
	resp, err := m.client.Do(ctx, http.MethodDelete, m.routeURL(externalHost), nil)
	return m.finish(ctx, op, resp, err)
}

func (m *Manager) put(ctx context.Context, kind store.Operation, upstreamHost, externalHost string, nodePort int32) error {
	op := &store.GatewayOperation{
		Operation:    kind,
		UpstreamHost: upstreamHost,
		ExternalHost: externalHost,
		NodePort:     nodePort,
	}

	payload, err := json.Marshal(NewRoute(externalHost, upstreamHost, nodePort))
	if err != nil {
		return m.finish(ctx, op, nil, fmt.Errorf("failed to encode route: %w", err))
	}
	op.RequestBody = string(payload)

	resp, err := m.client.Do(ctx, http.MethodPut, m.routeURL(externalHost), payload)
	return m.finish(ctx, op, resp, err)
}

// finish audits the attempt and returns the call error. Audit failures are only logged.
func (m *Manager) finish(ctx context.Context, op *store.GatewayOperation, resp *remoteclient.Response, callErr error) error {
	log := logf.FromContext(ctx).WithName("gateway")

	if resp != nil {
		op.ResponseBody = string(resp.Body)
	}
	op.Status = store.StatusSuccess
	if callErr != nil {
		op.Status = store.StatusFailed
		op.ErrorMessage = callErr.Error()
	}
	metrics.RecordBackendCall(metrics.BackendGateway, strings.ToLower(string(op.Operation)), callErr)

	if m.audit != nil {
		if err := m.audit.RecordOperation(ctx, op); err != nil {
			log.Error(err, "failed to record gateway operation",
				"operation", op.Operation, "externalHost", op.ExternalHost)
		}
	}

	if callErr != nil {
		return fmt.Errorf("%s route %s: %w", strings.ToLower(string(op.Operation)), RouteID(op.ExternalHost), callErr)
	}
	log.V(1).Info("gateway route applied", "operation", op.Operation,
		"routeId", RouteID(op.ExternalHost), "upstreamHost", op.UpstreamHost, "nodePort", op.NodePort)
	return nil
}

func (m *Manager) routeURL(externalHost string) string {
	return m.adminURL + routesPath + url.PathEscape(RouteID(externalHost))
}
