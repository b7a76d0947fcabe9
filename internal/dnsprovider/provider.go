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

// Package dnsprovider talks to the hosted DNS zone.
package dnsprovider

import (
	"context"
	"errors"
	"strings"
)

// Record types written by the controller.
const (
	RecordTypeA    = "A"
	RecordTypeAAAA = "AAAA"
)

// ErrInvalidRecordID is returned when a provider record id cannot be parsed.
var ErrInvalidRecordID = errors.New("invalid provider record id")

// Record is a single value published under a relative record name.
type Record struct {
	ID    string
	RR    string
	Type  string
	Value string
	TTL   int64
}

// Provider is the narrow DNS API the reconciler and propagator depend on.
// Every call is a remote call; failures are returned, never retried.
type Provider interface {
	// Add publishes value under rr and returns the provider record id.
	Add(ctx context.Context, rr, recordType, value string) (string, error)
	// Update replaces the record identified by id and returns the id it is known by afterwards.
	Update(ctx context.Context, id, rr, recordType, value string) (string, error)
	// Delete removes the record identified by id.
	Delete(ctx context.Context, id string) error
	// Query returns the first A or AAAA record whose name is exactly rr, or nil.
	Query(ctx context.Context, rr string) (*Record, error)
}

// RecordTypeFor returns AAAA for IPv6 literals and A otherwise.
func RecordTypeFor(value string) string {
	if strings.Contains(value, ":") {
		return RecordTypeAAAA
	}
	return RecordTypeA
}
