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

package config

import (
	"encoding/json"
	"time"
)

// Duration is a wrapper around time.Duration that supports YAML/JSON unmarshaling from strings.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler for Duration.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		duration, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(duration)
	}
	return nil
}

// MarshalJSON implements json.Marshaler for Duration.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// OperatorConfig is the complete controller configuration loaded from the config file.
type OperatorConfig struct {
	Ingress  IngressConfig  `json:"ingress" yaml:"ingress"`
	DNS      DNSConfig      `json:"dns" yaml:"dns"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Events   EventsConfig   `json:"events" yaml:"events"`
}

// IngressConfig holds the naming rules that select managed ingresses and hosts.
type IngressConfig struct {
	// ClassPrefix selects ingresses whose ingress class name starts with it.
	ClassPrefix string `json:"classPrefix" yaml:"classPrefix"`
	// ClassSuffix is removed from the ingress class name to obtain the router service name.
	ClassSuffix string `json:"classSuffix" yaml:"classSuffix"`
	// HostSuffix selects the internal hosts of a matching ingress.
	HostSuffix string `json:"hostSuffix" yaml:"hostSuffix"`
	// ExternalHostSuffix replaces HostSuffix to derive the externally reachable host.
	ExternalHostSuffix string `json:"externalHostSuffix" yaml:"externalHostSuffix"`
	// ServiceNamespace is where the per-namespace router services live.
	ServiceNamespace string `json:"serviceNamespace" yaml:"serviceNamespace"`
}

// DNSConfig configures the hosted zone that receives the records.
type DNSConfig struct {
	// Domain is the zone apex; record names are relative to it.
	Domain string `json:"domain" yaml:"domain"`
	// Region is the provider region used to build the API client.
	Region string `json:"region" yaml:"region"`
	// HostedZoneID identifies the zone at the provider.
	HostedZoneID string `json:"hostedZoneId" yaml:"hostedZoneId"`
	// AccessKeyID and SecretAccessKey are optional static credentials.
	// When empty the provider's default credential chain is used.
	AccessKeyID     string `json:"accessKeyId,omitempty" yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" yaml:"secretAccessKey,omitempty"`
	// TTL is applied to every record written.
	TTL int64 `json:"ttl" yaml:"ttl"`
}

// GatewayConfig configures the reverse-proxy admin API.
type GatewayConfig struct {
	AdminURL string   `json:"adminUrl" yaml:"adminUrl"`
	AdminKey string   `json:"adminKey,omitempty" yaml:"adminKey,omitempty"`
	Timeout  Duration `json:"timeout" yaml:"timeout"`
}

// SecurityConfig holds the shared secret for the public IP report endpoint.
type SecurityConfig struct {
	APIToken string `json:"apiToken,omitempty" yaml:"apiToken,omitempty"`
}

// DatabaseConfig configures the state store and audit retention.
type DatabaseConfig struct {
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// RecordRetentionDays is how long gateway operation audit rows are kept.
	RecordRetentionDays int `json:"recordRetentionDays" yaml:"recordRetentionDays"`
	// CleanupSchedule is a standard 5-field cron expression for the retention sweep.
	CleanupSchedule string `json:"cleanupSchedule" yaml:"cleanupSchedule"`
}

// EventsConfig tunes the ingress event stream.
type EventsConfig struct {
	BufferSize int `json:"bufferSize" yaml:"bufferSize"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *OperatorConfig {
	return &OperatorConfig{
		Ingress: IngressConfig{
			ClassPrefix:      "kubesphere-router-namespace-",
			ClassSuffix:      "-namespace",
			ServiceNamespace: "kubesphere-controls-system",
		},
		DNS: DNSConfig{
			Region: "us-east-1",
			TTL:    600,
		},
		Gateway: GatewayConfig{
			Timeout: Duration(10 * time.Second),
		},
		Database: DatabaseConfig{
			RecordRetentionDays: 365,
			CleanupSchedule:     "0 2 * * *",
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
	}
}
