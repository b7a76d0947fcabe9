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
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/golgoth31/gateway-autodns/internal/adapter"
)

const (
	defaultOperationLimit = 20
	maxOperationLimit     = 200
)

// handleListGatewayOperations handles the list_gateway_operations tool call
func (s *Server) handleListGatewayOperations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := strings.ToUpper(request.GetString("status", ""))
	limit := int(request.GetFloat("limit", defaultOperationLimit))
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	limit = min(limit, maxOperationLimit)

	ops, err := s.store.ListOperations(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list gateway operations: %v", err)), nil
	}

	results := adapter.ToOperationStatus(ops)
	if status != "" {
		filtered := results[:0]
		for _, op := range results {
			if op.Status == status {
				filtered = append(filtered, op)
			}
		}
		results = filtered
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No gateway operations found."), nil
	}

	jsonBytes, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Found %d gateway operation(s):\n\n%s", len(results), string(jsonBytes))), nil
}
