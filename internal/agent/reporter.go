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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golgoth31/gateway-autodns/internal/remoteclient"
)

// ReportPath is the controller endpoint receiving reports.
const ReportPath = "/api/v1/public-ip"

// APITokenHeader carries the shared secret.
const APITokenHeader = "X-API-Token"

// HTTPReporter posts addresses to the controller.
type HTTPReporter struct {
	client *remoteclient.Client
	url    string
}

// NewHTTPReporter returns a reporter for the controller at serverURL.
func NewHTTPReporter(serverURL, apiToken string, opts ...remoteclient.Option) *HTTPReporter {
	opts = append([]remoteclient.Option{remoteclient.WithHeader(APITokenHeader, apiToken)}, opts...)
	return &HTTPReporter{
		client: remoteclient.NewClient(opts...),
		url:    strings.TrimSuffix(serverURL, "/") + ReportPath,
	}
}

// Report sends ip. Any non-2xx answer is an error.
func (r *HTTPReporter) Report(ctx context.Context, ip string) error {
	body, err := json.Marshal(map[string]string{"ipAddress": ip})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := r.client.Do(ctx, http.MethodPost, r.url, body); err != nil {
		return fmt.Errorf("report %s: %w", ip, err)
	}
	return nil
}
