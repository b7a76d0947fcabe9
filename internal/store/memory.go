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

package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used when no database is configured and in tests.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	hosts    map[string]HostRecord
	publicIP *PublicIP
	ops      []GatewayOperation
	nextID   int64
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:   time.Now,
		hosts: make(map[string]HostRecord),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

// GetHost returns the record for host, or ErrNotFound.
func (m *Memory) GetHost(_ context.Context, host string) (*HostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.hosts[host]
	if !ok {
		return nil, ErrNotFound
	}
	rec.NodeIPs = slices.Clone(rec.NodeIPs)
	return &rec, nil
}

// SaveHost inserts or replaces the record keyed by rec.Host.
func (m *Memory) SaveHost(_ context.Context, rec *HostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stored := *rec
	stored.NodeIPs = slices.Clone(rec.NodeIPs)
	if existing, ok := m.hosts[rec.Host]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.hosts[rec.Host] = stored

	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteHost removes the record for host.
func (m *Memory) DeleteHost(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hosts, host)
	return nil
}

// ListHosts returns every host record.
func (m *Memory) ListHosts(_ context.Context) ([]HostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HostRecord, 0, len(m.hosts))
	for _, rec := range m.hosts {
		rec.NodeIPs = slices.Clone(rec.NodeIPs)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Host < out[j].Host
	})
	return out, nil
}

// GetPublicIP returns the last reported public address, or ErrNotFound.
func (m *Memory) GetPublicIP(_ context.Context) (*PublicIP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.publicIP == nil {
		return nil, ErrNotFound
	}
	ip := *m.publicIP
	return &ip, nil
}

// SavePublicIP stores ipAddress as the current public address.
func (m *Memory) SavePublicIP(_ context.Context, ipAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.publicIP == nil {
		m.publicIP = &PublicIP{Identifier: DefaultPublicIPIdentifier, CreatedAt: now}
	}
	m.publicIP.IPAddress = ipAddress
	m.publicIP.UpdatedAt = now
	return nil
}

// RecordOperation appends op to the gateway audit log.
func (m *Memory) RecordOperation(_ context.Context, op *GatewayOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	op.ID = m.nextID
	op.CreatedAt = m.now()
	m.ops = append(m.ops, *op)
	return nil
}

// ListOperations returns up to limit audit entries, newest first.
func (m *Memory) ListOperations(_ context.Context, limit int) ([]GatewayOperation, error) {
	if limit <= 0 {
		return []GatewayOperation{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]GatewayOperation, 0, min(limit, len(m.ops)))
	for i := len(m.ops) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.ops[i])
	}
	return out, nil
}

// PruneOperations deletes audit entries older than cutoff and returns the count.
func (m *Memory) PruneOperations(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.ops[:0]
	var removed int64
	for _, op := range m.ops {
		if op.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	m.ops = kept
	return removed, nil
}
