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

package gateway

import (
	"fmt"
	"strings"
)

// Route is the APISIX route object written for one external host.
type Route struct {
	URI             string         `json:"uri"`
	Host            string         `json:"host"`
	EnableWebsocket bool           `json:"enable_websocket"`
	Upstream        Upstream       `json:"upstream"`
	Plugins         map[string]any `json:"plugins"`
}

// Upstream forwards to the cluster node port with the internal host as Host header.
type Upstream struct {
	Type         string         `json:"type"`
	Scheme       string         `json:"scheme"`
	PassHost     string         `json:"pass_host"`
	UpstreamHost string         `json:"upstream_host"`
	Nodes        map[string]int `json:"nodes"`
}

// RealIPPlugin restores the client address from X-Forwarded-For.
type RealIPPlugin struct {
	Source           string   `json:"source"`
	TrustedAddresses []string `json:"trusted_addresses"`
}

// NewRoute builds the route for externalHost proxying to upstreamHost:nodePort.
func NewRoute(externalHost, upstreamHost string, nodePort int32) Route {
	return Route{
		URI:             "/*",
		Host:            externalHost,
		EnableWebsocket: true,
		Upstream: Upstream{
			Type:         "roundrobin",
			Scheme:       "http",
			PassHost:     "rewrite",
			UpstreamHost: upstreamHost,
			Nodes: map[string]int{
				fmt.Sprintf("%s:%d", upstreamHost, nodePort): 1,
			},
		},
		Plugins: map[string]any{
			"real-ip": RealIPPlugin{
				Source:           "http_x_forwarded_for",
				TrustedAddresses: []string{"0.0.0.0/0", "::/0"},
			},
		},
	}
}

// RouteID derives the route id from the external host. Every character
// outside [A-Za-z0-9] becomes '-', so the mapping is deterministic.
func RouteID(externalHost string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, externalHost)
}
