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

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/golgoth31/gateway-autodns/internal/adapter"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// HostResult represents a managed host in the list results
type HostResult struct {
	Host         string   `json:"host"`
	ExternalHost string   `json:"external_host"`
	NodeIPs      []string `json:"node_ips"`
	NodePort     int32    `json:"node_port"`
	RecordType   string   `json:"record_type,omitempty"`
	Tracked      bool     `json:"dns_record_tracked"`
}

// handleListManagedHosts handles the list_managed_hosts tool call
func (s *Server) handleListManagedHosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.ToLower(request.GetString("query", ""))

	recs, err := s.store.ListHosts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list managed hosts: %v", err)), nil
	}

	results := make([]HostResult, 0, len(recs))
	for _, rec := range recs {
		external := s.rules.ExternalHost(rec.Host)
		if query != "" &&
			!strings.Contains(strings.ToLower(rec.Host), query) &&
			!strings.Contains(strings.ToLower(external), query) {
			continue
		}
		results = append(results, HostResult{
			Host:         rec.Host,
			ExternalHost: external,
			NodeIPs:      rec.NodeIPs,
			NodePort:     rec.NodePort,
			RecordType:   rec.RecordType,
			Tracked:      rec.ProviderRecordID != "",
		})
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No managed hosts found."), nil
	}

	jsonBytes, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Found %d managed host(s):\n\n%s", len(results), string(jsonBytes))), nil
}

// handleGetHostDetails handles the get_host_details tool call
func (s *Server) handleGetHostDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("host")
	if err != nil {
		return mcp.NewToolResultError("host parameter is required"), nil
	}
	name = strings.ToLower(strings.TrimSuffix(name, "."))

	rec, err := s.store.GetHost(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("Host '%s' is not managed.", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read host: %v", err)), nil
	}

	jsonBytes, err := json.MarshalIndent(adapter.ToHostDetails(*rec, s.rules, s.ttl), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal details: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Host details for '%s':\n\n%s", name, string(jsonBytes))), nil
}
