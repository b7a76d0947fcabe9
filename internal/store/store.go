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

// Package store persists the controller's view of what it has written to the
// DNS provider and the gateway, the reported public IP, and the gateway audit log.
package store

import (
	"context"
	"errors"
	"slices"
	"time"
)

// DefaultPublicIPIdentifier is the key of the singleton public IP row.
const DefaultPublicIPIdentifier = "default"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// HostRecord is what the controller last wrote for one managed host.
type HostRecord struct {
	Host     string
	RR       string
	NodeIPs  []string
	NodePort int32
	// ProviderRecordID is empty when no DNS call succeeded.
	ProviderRecordID string
	RecordType       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Converged reports whether the record already reflects nodeIPs and nodePort.
// Order matters: nodes are listed in a stable order.
func (r *HostRecord) Converged(nodeIPs []string, nodePort int32) bool {
	return r.NodePort == nodePort && slices.Equal(r.NodeIPs, nodeIPs)
}

// PublicIP is the last public address reported by the agent.
type PublicIP struct {
	Identifier string
	IPAddress  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Operation is the gateway call kind.
type Operation string

const (
	OperationAdd    Operation = "ADD"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// OperationStatus is the outcome of a gateway call.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailed  OperationStatus = "FAILED"
)

// GatewayOperation is one audit row for a gateway admin call.
type GatewayOperation struct {
	ID           int64
	Operation    Operation
	UpstreamHost string
	ExternalHost string
	NodePort     int32
	RequestBody  string
	ResponseBody string
	Status       OperationStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// HostStore persists managed host records. Host is unique.
type HostStore interface {
	// GetHost returns ErrNotFound when no record exists.
	GetHost(ctx context.Context, host string) (*HostRecord, error)
	// SaveHost creates or replaces the record for rec.Host.
	SaveHost(ctx context.Context, rec *HostRecord) error
	// DeleteHost removes the record; deleting a missing host is not an error.
	DeleteHost(ctx context.Context, host string) error
	ListHosts(ctx context.Context) ([]HostRecord, error)
}

// PublicIPStore persists the singleton public IP.
type PublicIPStore interface {
	// GetPublicIP returns ErrNotFound until the first report.
	GetPublicIP(ctx context.Context) (*PublicIP, error)
	SavePublicIP(ctx context.Context, ipAddress string) error
}

// AuditStore persists gateway operation audit rows.
type AuditStore interface {
	RecordOperation(ctx context.Context, op *GatewayOperation) error
	// ListOperations returns at most limit rows, newest first.
	ListOperations(ctx context.Context, limit int) ([]GatewayOperation, error)
	// PruneOperations deletes rows created before cutoff and returns how many were removed.
	PruneOperations(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full state store.
type Store interface {
	HostStore
	PublicIPStore
	AuditStore
}
