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

// Package adapter renders stored state as external-dns endpoints and JSON views
// for the read API and MCP tools.
package adapter

import (
	"maps"
	"sort"
	"strconv"
	"time"

	"sigs.k8s.io/external-dns/endpoint"

	"github.com/golgoth31/gateway-autodns/internal/dnsprovider"
	"github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// Endpoint label keys.
const (
	ExternalHostLabelKey     = "autodns.io/external-host"
	NodePortLabelKey         = "autodns.io/node-port"
	ProviderRecordIDLabelKey = "autodns.io/provider-record-id"
)

// HostToEndpoints renders one managed host as external-dns endpoints, one per
// record type present in its node addresses.
func HostToEndpoints(rec store.HostRecord, rules host.Rules, ttl int64) []*endpoint.Endpoint {
	byType := make(map[string][]string)
	for _, ip := range rec.NodeIPs {
		t := dnsprovider.RecordTypeFor(ip)
		byType[t] = append(byType[t], ip)
	}

	labels := endpoint.Labels{
		ExternalHostLabelKey: rules.ExternalHost(rec.Host),
		NodePortLabelKey:     strconv.Itoa(int(rec.NodePort)),
	}
	if rec.ProviderRecordID != "" {
		labels[ProviderRecordIDLabelKey] = rec.ProviderRecordID
	}

	eps := make([]*endpoint.Endpoint, 0, len(byType))
	for _, t := range []string{dnsprovider.RecordTypeA, dnsprovider.RecordTypeAAAA} {
		targets, ok := byType[t]
		if !ok {
			continue
		}
		ep := endpoint.NewEndpointWithTTL(rec.Host, t, endpoint.TTL(ttl), targets...)
		ep.Labels = maps.Clone(labels)
		eps = append(eps, ep)
	}
	return eps
}

// HostsToEndpoints renders every record, sorted by DNS name then record type.
func HostsToEndpoints(recs []store.HostRecord, rules host.Rules, ttl int64) []*endpoint.Endpoint {
	var eps []*endpoint.Endpoint
	for _, rec := range recs {
		eps = append(eps, HostToEndpoints(rec, rules, ttl)...)
	}
	sort.SliceStable(eps, func(i, j int) bool {
		if eps[i].DNSName == eps[j].DNSName {
			return eps[i].RecordType < eps[j].RecordType
		}
		return eps[i].DNSName < eps[j].DNSName
	})
	return eps
}

// EndpointStatus is the JSON form of an endpoint.
type EndpointStatus struct {
	DNSName    string            `json:"dnsName"`
	RecordType string            `json:"recordType"`
	Targets    []string          `json:"targets"`
	TTL        int64             `json:"ttl,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// ToEndpointStatus converts endpoints to their JSON form, keeping their order.
func ToEndpointStatus(eps []*endpoint.Endpoint) []EndpointStatus {
	result := make([]EndpointStatus, 0, len(eps))
	for _, ep := range eps {
		status := EndpointStatus{
			DNSName:    ep.DNSName,
			RecordType: ep.RecordType,
			Targets:    ep.Targets,
			TTL:        int64(ep.RecordTTL),
		}
		if len(ep.Labels) > 0 {
			status.Labels = make(map[string]string, len(ep.Labels))
			maps.Copy(status.Labels, ep.Labels)
		}
		result = append(result, status)
	}
	return result
}

// HostDetails is the full view of one managed host.
type HostDetails struct {
	Host             string           `json:"host"`
	ExternalHost     string           `json:"externalHost"`
	ResourceRecord   string           `json:"resourceRecord"`
	NodeIPs          []string         `json:"nodeIPs"`
	NodePort         int32            `json:"nodePort"`
	ProviderRecordID string           `json:"providerRecordId,omitempty"`
	RecordType       string           `json:"recordType,omitempty"`
	Endpoints        []EndpointStatus `json:"endpoints"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// ToHostDetails builds the full view of rec.
func ToHostDetails(rec store.HostRecord, rules host.Rules, ttl int64) HostDetails {
	return HostDetails{
		Host:             rec.Host,
		ExternalHost:     rules.ExternalHost(rec.Host),
		ResourceRecord:   rec.RR,
		NodeIPs:          rec.NodeIPs,
		NodePort:         rec.NodePort,
		ProviderRecordID: rec.ProviderRecordID,
		RecordType:       rec.RecordType,
		Endpoints:        ToEndpointStatus(HostToEndpoints(rec, rules, ttl)),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

// OperationStatus is the JSON form of a gateway audit row.
type OperationStatus struct {
	ID           int64     `json:"id"`
	Operation    string    `json:"operation"`
	UpstreamHost string    `json:"upstreamHost"`
	ExternalHost string    `json:"externalHost"`
	NodePort     int32     `json:"nodePort,omitempty"`
	RequestBody  string    `json:"requestBody,omitempty"`
	ResponseBody string    `json:"responseBody,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ToOperationStatus converts audit rows, keeping their order.
func ToOperationStatus(ops []store.GatewayOperation) []OperationStatus {
	result := make([]OperationStatus, 0, len(ops))
	for _, op := range ops {
		result = append(result, OperationStatus{
			ID:           op.ID,
			Operation:    string(op.Operation),
			UpstreamHost: op.UpstreamHost,
			ExternalHost: op.ExternalHost,
			NodePort:     op.NodePort,
			RequestBody:  op.RequestBody,
			ResponseBody: op.ResponseBody,
			Status:       string(op.Status),
			ErrorMessage: op.ErrorMessage,
			CreatedAt:    op.CreatedAt,
		})
	}
	return result
}

// PublicIPStatus is the JSON form of the stored public IP.
type PublicIPStatus struct {
	IPAddress  string    `json:"ipAddress"`
	RecordType string    `json:"recordType"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ToPublicIPStatus converts the stored public IP.
func ToPublicIPStatus(ip store.PublicIP) PublicIPStatus {
	return PublicIPStatus{
		IPAddress:  ip.IPAddress,
		RecordType: dnsprovider.RecordTypeFor(ip.IPAddress),
		UpdatedAt:  ip.UpdatedAt,
	}
}
