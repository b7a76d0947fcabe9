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

// Package host holds the pure naming rules that decide which ingress hosts are
// managed and how they map to DNS records, router services and external hosts.
// It has no dependency on Kubernetes or any backend.
package host

import (
	"errors"
	"strings"
)

// ApexRR is the relative record name of the zone apex.
const ApexRR = "@"

// ErrLookupMiss is returned when a resource a host depends on does not exist.
var ErrLookupMiss = errors.New("lookup miss")

// Rules is the immutable naming configuration.
type Rules struct {
	ClassPrefix        string
	ClassSuffix        string
	HostSuffix         string
	ExternalHostSuffix string
	Domain             string
}

// ClassMatches reports whether an ingress class opts into management.
func (r Rules) ClassMatches(className string) bool {
	return r.ClassPrefix != "" && strings.HasPrefix(className, r.ClassPrefix)
}

// ManagedHosts returns the de-duplicated hosts ending in HostSuffix, in first-seen
// order, or nil when the class does not match.
func (r Rules) ManagedHosts(className string, hosts []string) []string {
	if !r.ClassMatches(className) {
		return nil
	}
	seen := make(map[string]struct{}, len(hosts))
	var out []string
	for _, h := range hosts {
		if h == "" || !strings.HasSuffix(h, r.HostSuffix) {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ServiceName derives the router service name by removing every occurrence of
// ClassSuffix from the class name.
// kubesphere-router-namespace-demo with suffix "-namespace" gives kubesphere-router-demo.
func (r Rules) ServiceName(className string) string {
	if r.ClassSuffix == "" {
		return className
	}
	return strings.ReplaceAll(className, r.ClassSuffix, "")
}

// ResourceRecord returns host relative to the zone apex.
// Hosts outside the zone are returned unchanged.
func (r Rules) ResourceRecord(host string) string {
	host = strings.TrimSuffix(host, ".")
	if host == r.Domain {
		return ApexRR
	}
	return strings.TrimSuffix(host, "."+r.Domain)
}

// ExternalHost swaps the internal host suffix for the external one.
func (r Rules) ExternalHost(host string) string {
	if !strings.HasSuffix(host, r.HostSuffix) {
		return host
	}
	return strings.TrimSuffix(host, r.HostSuffix) + r.ExternalHostSuffix
}

// Diff returns the hosts in old that are absent from current.
func Diff(old, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, h := range current {
		keep[h] = struct{}{}
	}
	var removed []string
	for _, h := range old {
		if _, ok := keep[h]; !ok {
			removed = append(removed, h)
		}
	}
	return removed
}
