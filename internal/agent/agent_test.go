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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golgoth31/gateway-autodns/internal/remoteclient"
)

func addrs(t *testing.T, raw ...string) []netip.Addr {
	t.Helper()
	out := make([]netip.Addr, 0, len(raw))
	for _, r := range raw {
		out = append(out, netip.MustParseAddr(r))
	}
	return out
}

func TestSelectAddress(t *testing.T) {
	tests := []struct {
		name    string
		addrs   []string
		want    string
		wantErr error
	}{
		{
			name:  "prefers temporary over eui-64",
			addrs: []string{"2001:db8::211:22ff:fe33:4455", "2001:db8::8c1a:3b2e:9d4f:1e20"},
			want:  "2001:db8::8c1a:3b2e:9d4f:1e20",
		},
		{
			name:  "falls back to eui-64",
			addrs: []string{"fe80::1", "2001:db8::211:22ff:fe33:4455"},
			want:  "2001:db8::211:22ff:fe33:4455",
		},
		{
			name:  "skips ipv4, loopback and link-local",
			addrs: []string{"192.168.1.10", "::1", "fe80::8c1a:3b2e:9d4f:1e20", "2001:db8::5"},
			want:  "2001:db8::5",
		},
		{
			name:  "keeps the first temporary address",
			addrs: []string{"2001:db8::a", "2001:db8::b"},
			want:  "2001:db8::a",
		},
		{
			name:    "nothing usable",
			addrs:   []string{"10.0.0.1", "fe80::1"},
			wantErr: ErrNoAddress,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectAddress(addrs(t, tt.addrs...))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestIsEUI64(t *testing.T) {
	assert.True(t, IsEUI64(netip.MustParseAddr("2001:db8::211:22ff:fe33:4455")))
	assert.False(t, IsEUI64(netip.MustParseAddr("2001:db8::ff:fe")))
}

type recordingReporter struct {
	reports []string
	err     error
}

func (r *recordingReporter) Report(_ context.Context, ip string) error {
	r.reports = append(r.reports, ip)
	return r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheck_ReportsOnlyChanges(t *testing.T) {
	current := []string{"2001:db8::1"}
	source := func() ([]netip.Addr, error) { return addrs(t, current...), nil }
	rep := &recordingReporter{}
	a := New(source, rep, time.Second, discard())
	ctx := context.Background()

	a.Check(ctx)
	a.Check(ctx)
	current = []string{"2001:db8::2"}
	a.Check(ctx)

	assert.Equal(t, []string{"2001:db8::1", "2001:db8::2"}, rep.reports)
	assert.Equal(t, "2001:db8::2", a.Last())
}

func TestCheck_AdvancesAfterFailedReport(t *testing.T) {
	source := func() ([]netip.Addr, error) { return addrs(t, "2001:db8::1"), nil }
	rep := &recordingReporter{err: errors.New("connection refused")}
	a := New(source, rep, time.Second, discard())

	a.Check(context.Background())
	a.Check(context.Background())

	assert.Len(t, rep.reports, 1)
	assert.Equal(t, "2001:db8::1", a.Last())
}

func TestCheck_NoAddressOrSourceError(t *testing.T) {
	rep := &recordingReporter{}

	New(func() ([]netip.Addr, error) { return nil, errors.New("no such interface") }, rep, time.Second, discard()).
		Check(context.Background())
	New(func() ([]netip.Addr, error) { return addrs(t, "fe80::1"), nil }, rep, time.Second, discard()).
		Check(context.Background())

	assert.Empty(t, rep.reports)
}

func TestRun_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rep := &recordingReporter{}
	a := New(func() ([]netip.Addr, error) { return addrs(t, "2001:db8::1"), nil }, rep, time.Hour, discard())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestHTTPReporter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ReportPath, r.URL.Path)
		assert.Equal(t, "s3cret", r.Header.Get(APITokenHeader))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["ipAddress"] == "2001:db8::dead" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rep := NewHTTPReporter(srv.URL+"/", "s3cret", remoteclient.WithTimeout(time.Second))

	require.NoError(t, rep.Report(context.Background(), "2001:db8::1"))
	err := rep.Report(context.Background(), "2001:db8::dead")
	assert.ErrorIs(t, err, remoteclient.ErrUnexpectedStatus)
	assert.Equal(t, int32(2), calls.Load())
}
