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

import "errors"

var (
	// ErrEmptyClassPrefix is returned when no ingress class prefix is configured.
	ErrEmptyClassPrefix = errors.New("ingress classPrefix must not be empty")

	// ErrEmptyHostSuffix is returned when no internal host suffix is configured.
	ErrEmptyHostSuffix = errors.New("ingress hostSuffix must not be empty")

	// ErrEmptyExternalHostSuffix is returned when no external host suffix is configured.
	ErrEmptyExternalHostSuffix = errors.New("ingress externalHostSuffix must not be empty")

	// ErrEmptyDomain is returned when the DNS zone apex is not configured.
	ErrEmptyDomain = errors.New("dns domain must not be empty")

	// ErrEmptyHostedZone is returned when the hosted zone identifier is not configured.
	ErrEmptyHostedZone = errors.New("dns hostedZoneId must not be empty")

	// ErrEmptyAdminURL is returned when the gateway admin API address is not configured.
	ErrEmptyAdminURL = errors.New("gateway adminUrl must not be empty")

	// ErrInvalidTimeout is returned when the gateway timeout is not positive.
	ErrInvalidTimeout = errors.New("gateway timeout must be positive")

	// ErrInvalidRetention is returned when the audit retention is not positive.
	ErrInvalidRetention = errors.New("database recordRetentionDays must be positive")

	// ErrInvalidBufferSize is returned when the event buffer size is negative.
	ErrInvalidBufferSize = errors.New("events bufferSize must not be negative")
)
