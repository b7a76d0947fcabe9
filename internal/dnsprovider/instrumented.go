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

package dnsprovider

import (
	"context"

	"github.com/golgoth31/gateway-autodns/internal/metrics"
)

// Instrumented counts every call of the wrapped provider.
type Instrumented struct {
	next Provider
}

// NewInstrumented wraps next with backend call metrics.
func NewInstrumented(next Provider) *Instrumented {
	return &Instrumented{next: next}
}

// Add delegates to the wrapped provider and records the call.
func (i *Instrumented) Add(ctx context.Context, rr, recordType, value string) (string, error) {
	id, err := i.next.Add(ctx, rr, recordType, value)
	metrics.RecordBackendCall(metrics.BackendDNS, "add", err)
	return id, err
}

// Update delegates to the wrapped provider and records the call.
func (i *Instrumented) Update(ctx context.Context, id, rr, recordType, value string) (string, error) {
	newID, err := i.next.Update(ctx, id, rr, recordType, value)
	metrics.RecordBackendCall(metrics.BackendDNS, "update", err)
	return newID, err
}

// Delete delegates to the wrapped provider and records the call.
func (i *Instrumented) Delete(ctx context.Context, id string) error {
	err := i.next.Delete(ctx, id)
	metrics.RecordBackendCall(metrics.BackendDNS, "delete", err)
	return err
}

// Query delegates to the wrapped provider and records the call.
func (i *Instrumented) Query(ctx context.Context, rr string) (*Record, error) {
	rec, err := i.next.Query(ctx, rr)
	metrics.RecordBackendCall(metrics.BackendDNS, "query", err)
	return rec, err
}
