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

// Package gatewayfake provides a recording gateway.Routes for tests.
package gatewayfake

import (
	"context"
	"sync"

	"github.com/golgoth31/gateway-autodns/internal/gateway"
)

// Call is one recorded route call.
type Call struct {
	Op           string
	UpstreamHost string
	ExternalHost string
	NodePort     int32
}

// Routes records calls. FailOn, when set, decides whether a call fails.
type Routes struct {
	mu     sync.Mutex
	calls  []Call
	FailOn func(c Call) error
}

var _ gateway.Routes = (*Routes)(nil)

// New returns an empty recorder.
func New() *Routes {
	return &Routes{}
}

// Calls returns a copy of the recorded calls.
func (r *Routes) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Routes) AddRoute(_ context.Context, upstreamHost, externalHost string, nodePort int32) error {
	return r.record(Call{Op: "add", UpstreamHost: upstreamHost, ExternalHost: externalHost, NodePort: nodePort})
}

func (r *Routes) UpdateRoute(_ context.Context, upstreamHost, externalHost string, nodePort int32) error {
	return r.record(Call{Op: "update", UpstreamHost: upstreamHost, ExternalHost: externalHost, NodePort: nodePort})
}

func (r *Routes) DeleteRoute(_ context.Context, upstreamHost, externalHost string) error {
	return r.record(Call{Op: "delete", UpstreamHost: upstreamHost, ExternalHost: externalHost})
}

func (r *Routes) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, c)
	if r.FailOn != nil {
		return r.FailOn(c)
	}
	return nil
}
