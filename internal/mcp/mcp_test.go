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
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/golgoth31/gateway-autodns/internal/adapter"
	"github.com/golgoth31/gateway-autodns/internal/domain/host"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

func TestMCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCP Suite")
}

// newCallToolRequest creates a CallToolRequest with the given arguments
func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// extractTextContent extracts text from a CallToolResult
func extractTextContent(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
	}
	return ""
}

// isErrorResult checks if the result is an error
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// jsonPayload returns the JSON document following the summary line
func jsonPayload(text string) string {
	_, after, _ := strings.Cut(text, "\n\n")
	return after
}

type failingReader struct{}

func (failingReader) GetHost(context.Context, string) (*store.HostRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) ListHosts(context.Context) ([]store.HostRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) ListOperations(context.Context, int) ([]store.GatewayOperation, error) {
	return nil, errors.New("connection refused")
}

var testRules = host.Rules{
	ClassPrefix:        "kubesphere-router-namespace-",
	HostSuffix:         "-k8s.example.com",
	ExternalHostSuffix: "-nj.example.com",
	Domain:             "example.com",
}

var _ = Describe("MCP Server", func() {
	var (
		ctx context.Context
		st  *store.Memory
		s   *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemory()
		s = New(st, testRules, 600)

		Expect(st.SaveHost(ctx, &store.HostRecord{
			Host: "app-k8s.example.com", RR: "app-k8s", NodeIPs: []string{"10.0.0.1", "10.0.0.2"},
			NodePort: 30080, ProviderRecordID: "app-k8s|A|10.0.0.2", RecordType: "A",
		})).To(Succeed())
		Expect(st.SaveHost(ctx, &store.HostRecord{
			Host: "shop-k8s.example.com", RR: "shop-k8s", NodeIPs: []string{"10.0.0.1"}, NodePort: 30081,
		})).To(Succeed())
	})

	Describe("Server creation", func() {
		It("should create server with its dependencies", func() {
			Expect(s.mcpServer).NotTo(BeNil())
			Expect(s.store).To(Equal(st))
			Expect(s.rules).To(Equal(testRules))
		})

		It("should build the HTTP transport once and shut it down", func() {
			h := s.HTTPHandler()
			Expect(h).NotTo(BeNil())
			Expect(s.HTTPHandler()).To(BeIdenticalTo(h))
			Expect(s.Shutdown(ctx)).To(Succeed())
		})

		It("should shut down cleanly without an HTTP transport", func() {
			Expect(New(st, testRules, 600).Shutdown(ctx)).To(Succeed())
		})
	})

	Describe("handleListManagedHosts", func() {
		It("should list every host with its external host", func() {
			result, err := s.handleListManagedHosts(ctx, newCallToolRequest("list_managed_hosts", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(isErrorResult(result)).To(BeFalse())

			text := extractTextContent(result)
			Expect(text).To(HavePrefix("Found 2 managed host(s):"))

			var hosts []HostResult
			Expect(json.Unmarshal([]byte(jsonPayload(text)), &hosts)).To(Succeed())
			Expect(hosts).To(HaveLen(2))
			Expect(hosts[0].ExternalHost).To(Equal("app-nj.example.com"))
			Expect(hosts[0].Tracked).To(BeTrue())
			Expect(hosts[1].Tracked).To(BeFalse())
		})

		It("should filter on the external host, case-insensitively", func() {
			result, err := s.handleListManagedHosts(ctx, newCallToolRequest("list_managed_hosts",
				map[string]any{"query": "SHOP-NJ"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(extractTextContent(result)).To(HavePrefix("Found 1 managed host(s):"))
		})

		It("should return appropriate message when nothing matches", func() {
			result, err := s.handleListManagedHosts(ctx, newCallToolRequest("list_managed_hosts",
				map[string]any{"query": "nope"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(extractTextContent(result)).To(Equal("No managed hosts found."))
		})

		It("should return error when the store fails", func() {
			result, err := New(failingReader{}, testRules, 600).handleListManagedHosts(ctx,
				newCallToolRequest("list_managed_hosts", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(isErrorResult(result)).To(BeTrue())
			Expect(extractTextContent(result)).To(ContainSubstring("connection refused"))
		})
	})

	Describe("handleGetHostDetails", func() {
		It("should return full details for the host", func() {
			result, err := s.handleGetHostDetails(ctx, newCallToolRequest("get_host_details",
				map[string]any{"host": "App-K8s.Example.com."}))
			Expect(err).NotTo(HaveOccurred())
			Expect(isErrorResult(result)).To(BeFalse())

			var details adapter.HostDetails
			Expect(json.Unmarshal([]byte(jsonPayload(extractTextContent(result))), &details)).To(Succeed())
			Expect(details.ProviderRecordID).To(Equal("app-k8s|A|10.0.0.2"))
			Expect(details.Endpoints).To(HaveLen(1))
			Expect(details.Endpoints[0].Targets).To(Equal([]string{"10.0.0.1", "10.0.0.2"}))
		})

		It("should return not managed message", func() {
			result, err := s.handleGetHostDetails(ctx, newCallToolRequest("get_host_details",
				map[string]any{"host": "ghost-k8s.example.com"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(extractTextContent(result)).To(ContainSubstring("is not managed"))
		})

		It("should return error when host is not provided", func() {
			result, err := s.handleGetHostDetails(ctx, newCallToolRequest("get_host_details", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(isErrorResult(result)).To(BeTrue())
		})
	})

	Describe("handleListGatewayOperations", func() {
		BeforeEach(func() {
			for _, status := range []store.OperationStatus{store.StatusSuccess, store.StatusFailed, store.StatusSuccess} {
				Expect(st.RecordOperation(ctx, &store.GatewayOperation{
					Operation: store.OperationAdd, ExternalHost: "app-nj.example.com", Status: status,
				})).To(Succeed())
			}
		})

		It("should list operations newest first", func() {
			result, err := s.handleListGatewayOperations(ctx, newCallToolRequest("list_gateway_operations", nil))
			Expect(err).NotTo(HaveOccurred())

			var ops []adapter.OperationStatus
			Expect(json.Unmarshal([]byte(jsonPayload(extractTextContent(result))), &ops)).To(Succeed())
			Expect(ops).To(HaveLen(3))
			Expect(ops[0].ID).To(Equal(int64(3)))
		})

		It("should filter by status and honour the limit", func() {
			result, err := s.handleListGatewayOperations(ctx, newCallToolRequest("list_gateway_operations",
				map[string]any{"status": "failed"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(extractTextContent(result)).To(HavePrefix("Found 1 gateway operation(s):"))

			result, err = s.handleListGatewayOperations(ctx, newCallToolRequest("list_gateway_operations",
				map[string]any{"limit": float64(1)}))
			Expect(err).NotTo(HaveOccurred())
			Expect(extractTextContent(result)).To(HavePrefix("Found 1 gateway operation(s):"))
		})

		It("should reject a non-positive limit", func() {
			result, err := s.handleListGatewayOperations(ctx, newCallToolRequest("list_gateway_operations",
				map[string]any{"limit": float64(0)}))
			Expect(err).NotTo(HaveOccurred())
			Expect(isErrorResult(result)).To(BeTrue())
		})
	})
})
