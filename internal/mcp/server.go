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
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// Transports accepted by --mcp-transport.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Reader is the read-only view of the state store used by the tools.
type Reader interface {
	GetHost(ctx context.Context, host string) (*store.HostRecord, error)
	ListHosts(ctx context.Context) ([]store.HostRecord, error)
	ListOperations(ctx context.Context, limit int) ([]store.GatewayOperation, error)
}

// Server wraps the MCP server with read access to managed hosts and the gateway audit log
type Server struct {
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	store      Reader
	rules      host.Rules
	ttl        int64
}

// New creates a new MCP server instance
func New(st Reader, rules host.Rules, ttl int64) *Server {
	s := &Server{
		store: st,
		rules: rules,
		ttl:   ttl,
	}

	// Create the MCP server
	s.mcpServer = server.NewMCPServer(
		"gateway-autodns",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.registerTools()

	return s
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_managed_hosts",
			mcp.WithDescription("List the ingress hosts managed by the gateway auto-DNS controller. "+
				"Returns each host with its external host, node addresses and node port."),
			mcp.WithString("query",
				mcp.Description("Substring filter on the internal or external host name"),
			),
		),
		s.handleListManagedHosts,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_host_details",
			mcp.WithDescription("Get the stored state of one managed host, including its DNS provider record id "+
				"and the endpoints it publishes."),
			mcp.WithString("host",
				mcp.Required(),
				mcp.Description("The internal host name as declared on the ingress (e.g., 'app-k8s.example.com')"),
			),
		),
		s.handleGetHostDetails,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_gateway_operations",
			mcp.WithDescription("List recent gateway route operations from the audit log, newest first. "+
				"Useful to troubleshoot failed route updates."),
			mcp.WithString("status",
				mcp.Description("Filter by status: 'SUCCESS' or 'FAILED'"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of operations to return (default 20)"),
			),
		),
		s.handleListGatewayOperations,
	)
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeStreamableHTTP starts the MCP server using streamable HTTP transport on address
func (s *Server) ServeStreamableHTTP(address string) error {
	return s.streamable().Start(address)
}

// HTTPHandler returns the streamable HTTP transport, for mounting on an existing server.
func (s *Server) HTTPHandler() http.Handler {
	return s.streamable()
}

func (s *Server) streamable() *server.StreamableHTTPServer {
	if s.httpServer == nil {
		s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
	}
	return s.httpServer
}

// Shutdown stops the streamable HTTP transport when it was created.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
