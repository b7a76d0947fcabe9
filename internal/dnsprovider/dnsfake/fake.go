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

// Package dnsfake provides an in-memory dnsprovider.Provider for tests.
package dnsfake

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
)

// Call is one recorded provider call.
type Call struct {
	Op    string
	ID    string
	RR    string
	Type  string
	Value string
}

// Provider records calls and keeps record sets in memory. Like Route53, every
// value of an (rr, type) pair lives in one set and an id names one value in it.
// FailOn, when set, decides whether a call fails before it takes effect.
type Provider struct {
	mu     sync.Mutex
	sets   map[setKey][]string
	calls  []Call
	FailOn func(c Call) error
}

type setKey struct {
	rr         string
	recordType string
}

var _ dnsprovider.Provider = (*Provider)(nil)

// New returns an empty fake provider.
func New() *Provider {
	return &Provider{sets: make(map[setKey][]string)}
}

// Seed stores a value without recording a call and returns its id.
func (p *Provider) Seed(rr, recordType, value string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addValue(rr, recordType, value)
	return dnsprovider.RecordID(rr, recordType, value)
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsFor returns the recorded calls with the given op.
func (p *Provider) CallsFor(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Values returns the values published under (rr, recordType) in set order.
func (p *Provider) Values(rr, recordType string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sets[setKey{rr, recordType}])
}

// Records returns one record per stored value, sorted by id.
func (p *Provider) Records() []dnsprovider.Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []dnsprovider.Record
	for k, values := range p.sets {
		for _, v := range values {
			out = append(out, dnsprovider.Record{
				ID: dnsprovider.RecordID(k.rr, k.recordType, v), RR: k.rr, Type: k.recordType, Value: v,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reset forgets the recorded calls but keeps the records.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Add puts value in the set of (rr, recordType); an existing value is left alone.
func (p *Provider) Add(_ context.Context, rr, recordType, value string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: "add", RR: rr, Type: recordType, Value: value}); err != nil {
		return "", err
	}
	p.addValue(rr, recordType, value)
	return dnsprovider.RecordID(rr, recordType, value), nil
}

// Update swaps the value named by id for value, or appends value when the old
// one is gone.
func (p *Provider) Update(_ context.Context, id, rr, recordType, value string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: "update", ID: id, RR: rr, Type: recordType, Value: value}); err != nil {
		return "", err
	}
	oldRR, oldType, oldValue, err := dnsprovider.ParseRecordID(id)
	if err != nil {
		return "", err
	}

	k := setKey{rr, recordType}
	if oldRR == rr && oldType == recordType {
		values := p.sets[k]
		if i := slices.Index(values, oldValue); i >= 0 {
			values[i] = value
			p.sets[k] = dedupe(values)
		} else {
			p.addValue(rr, recordType, value)
		}
	} else {
		p.removeValue(oldRR, oldType, oldValue)
		p.addValue(rr, recordType, value)
	}
	return dnsprovider.RecordID(rr, recordType, value), nil
}

// Delete removes the value named by id; an absent value is not an error.
func (p *Provider) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: "delete", ID: id}); err != nil {
		return err
	}
	rr, recordType, value, err := dnsprovider.ParseRecordID(id)
	if err != nil {
		return err
	}
	p.removeValue(rr, recordType, value)
	return nil
}

// Query returns the first value of the A set, then the AAAA set, of rr.
func (p *Provider) Query(_ context.Context, rr string) (*dnsprovider.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: "query", RR: rr}); err != nil {
		return nil, err
	}
	for _, t := range []string{dnsprovider.RecordTypeA, dnsprovider.RecordTypeAAAA} {
		if values := p.sets[setKey{rr, t}]; len(values) > 0 {
			return &dnsprovider.Record{
				ID: dnsprovider.RecordID(rr, t, values[0]), RR: rr, Type: t, Value: values[0],
			}, nil
		}
	}
	return nil, nil
}

func (p *Provider) addValue(rr, recordType, value string) {
	k := setKey{rr, recordType}
	if !slices.Contains(p.sets[k], value) {
		p.sets[k] = append(p.sets[k], value)
	}
}

func (p *Provider) removeValue(rr, recordType, value string) {
	k := setKey{rr, recordType}
	values := slices.DeleteFunc(p.sets[k], func(v string) bool { return v == value })
	if len(values) == 0 {
		delete(p.sets, k)
		return
	}
	p.sets[k] = values
}

func (p *Provider) record(c Call) error {
	p.calls = append(p.calls, c)
	if p.FailOn != nil {
		return p.FailOn(c)
	}
	return nil
}

func dedupe(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
