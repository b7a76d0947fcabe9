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
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

const (
	// DefaultConfigPath is the default path for the configuration file.
	DefaultConfigPath = "/etc/gateway-autodns/config.yaml"

	// Environment variables that override secrets from the config file.
	EnvAPIToken         = "AUTODNS_API_TOKEN"
	EnvDatabaseDSN      = "AUTODNS_DATABASE_DSN"
	EnvGatewayAdminKey  = "AUTODNS_GATEWAY_ADMIN_KEY"
	EnvDNSAccessKeyID   = "AUTODNS_DNS_ACCESS_KEY_ID"
	EnvDNSSecretKey     = "AUTODNS_DNS_SECRET_ACCESS_KEY"
	redactedPlaceholder = "<redacted>"
)

// LoadFromFile reads the operator configuration from a file path.
// Returns the default configuration if the file doesn't exist.
// Secrets set in the environment take precedence over the file.
func LoadFromFile(path string) (*OperatorConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides secret fields with values found through lookup.
func (c *OperatorConfig) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		EnvAPIToken:        &c.Security.APIToken,
		EnvDatabaseDSN:     &c.Database.DSN,
		EnvGatewayAdminKey: &c.Gateway.AdminKey,
		EnvDNSAccessKeyID:  &c.DNS.AccessKeyID,
		EnvDNSSecretKey:    &c.DNS.SecretAccessKey,
	}
	for key, field := range overrides {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}
}

// Validate reports every missing or out of range setting.
func (c *OperatorConfig) Validate() error {
	var errs []error
	if c.Ingress.ClassPrefix == "" {
		errs = append(errs, ErrEmptyClassPrefix)
	}
	if c.Ingress.HostSuffix == "" {
		errs = append(errs, ErrEmptyHostSuffix)
	}
	if c.Ingress.ExternalHostSuffix == "" {
		errs = append(errs, ErrEmptyExternalHostSuffix)
	}
	if c.DNS.Domain == "" {
		errs = append(errs, ErrEmptyDomain)
	}
	if c.DNS.HostedZoneID == "" {
		errs = append(errs, ErrEmptyHostedZone)
	}
	if c.Gateway.AdminURL == "" {
		errs = append(errs, ErrEmptyAdminURL)
	}
	if c.Gateway.Timeout.Duration() <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.Database.RecordRetentionDays <= 0 {
		errs = append(errs, ErrInvalidRetention)
	}
	if c.Events.BufferSize < 0 {
		errs = append(errs, ErrInvalidBufferSize)
	}
	return errors.Join(errs...)
}

// LogSummary returns a summary of the configuration for logging purposes.
// Secrets are reported only as set or unset.
func (c *OperatorConfig) LogSummary() map[string]any {
	return map[string]any{
		"ingress.classPrefix":          c.Ingress.ClassPrefix,
		"ingress.classSuffix":          c.Ingress.ClassSuffix,
		"ingress.hostSuffix":           c.Ingress.HostSuffix,
		"ingress.externalHostSuffix":   c.Ingress.ExternalHostSuffix,
		"ingress.serviceNamespace":     c.Ingress.ServiceNamespace,
		"dns.domain":                   c.DNS.Domain,
		"dns.region":                   c.DNS.Region,
		"dns.hostedZoneId":             c.DNS.HostedZoneID,
		"dns.ttl":                      c.DNS.TTL,
		"dns.staticCredentials":        c.DNS.AccessKeyID != "",
		"gateway.adminUrl":             c.Gateway.AdminURL,
		"gateway.adminKey":             redact(c.Gateway.AdminKey),
		"gateway.timeout":              c.Gateway.Timeout.Duration().String(),
		"security.apiToken":            redact(c.Security.APIToken),
		"database.dsn":                 redact(c.Database.DSN),
		"database.recordRetentionDays": c.Database.RecordRetentionDays,
		"database.cleanupSchedule":     c.Database.CleanupSchedule,
		"events.bufferSize":            c.Events.BufferSize,
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redactedPlaceholder
}
