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

package dnsprovider

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/golgoth31/gateway-autodns/internal/config"
	"github.com/golgoth31/gateway-autodns/internal/domain/host"
)

const (
	idSeparator   = "|"
	changeComment = "managed by gateway-autodns"
	queryPageSize = 10
)

// Route53API is the subset of the Route53 client used here.
type Route53API interface {
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput,
		optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput,
		optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

// Route53 implements Provider on a Route53 hosted zone.
//
// Route53 stores all values of a (name, type) pair in one record set, so a
// provider record id names a single value inside a set: "rr|type|value".
// Writes are read-modify-write on the set and serialized by mu.
type Route53 struct {
	api    Route53API
	zoneID string
	domain string
	ttl    int64
	mu     sync.Mutex
}

var _ Provider = (*Route53)(nil)

// NewRoute53 builds a provider from configuration. Static credentials are used
// when set, otherwise the SDK default chain applies.
func NewRoute53(ctx context.Context, cfg config.DNSConfig) (*Route53, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewRoute53WithAPI(route53.NewFromConfig(awsCfg), cfg.HostedZoneID, cfg.Domain, cfg.TTL), nil
}

// NewRoute53WithAPI builds a provider around an existing client.
func NewRoute53WithAPI(api Route53API, zoneID, domain string, ttl int64) *Route53 {
	return &Route53{
		api:    api,
		zoneID: zoneID,
		domain: strings.TrimSuffix(domain, "."),
		ttl:    ttl,
	}
}

// RecordID returns the provider record id for one value.
func RecordID(rr, recordType, value string) string {
	return strings.Join([]string{rr, recordType, value}, idSeparator)
}

// ParseRecordID splits a provider record id.
func ParseRecordID(id string) (rr, recordType, value string, err error) {
	parts := strings.SplitN(id, idSeparator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidRecordID, id)
	}
	return parts[0], parts[1], parts[2], nil
}

// Add publishes value in the record set of (rr, recordType) and returns its id.
func (r *Route53) Add(ctx context.Context, rr, recordType, value string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.addValue(ctx, rr, recordType, value); err != nil {
		return "", err
	}
	return RecordID(rr, recordType, value), nil
}

// Update moves the value named by id to value under (rr, recordType).
func (r *Route53) Update(ctx context.Context, id, rr, recordType, value string) (string, error) {
	oldRR, oldType, oldValue, err := ParseRecordID(id)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if oldRR == rr && oldType == recordType {
		set, err := r.lookupSet(ctx, rr, recordType)
		if err != nil {
			return "", err
		}
		values := setValues(set)
		if i := slices.Index(values, oldValue); i >= 0 {
			values[i] = value
		} else {
			values = append(values, value)
		}
		values = dedupe(values)
		if err := r.change(ctx, types.ChangeActionUpsert, rr, recordType, values, r.ttl); err != nil {
			return "", err
		}
		return RecordID(rr, recordType, value), nil
	}

	if err := r.removeValue(ctx, oldRR, oldType, oldValue); err != nil {
		return "", err
	}
	if err := r.addValue(ctx, rr, recordType, value); err != nil {
		return "", err
	}
	return RecordID(rr, recordType, value), nil
}

// Delete removes the value named by id from its record set.
func (r *Route53) Delete(ctx context.Context, id string) error {
	rr, recordType, value, err := ParseRecordID(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeValue(ctx, rr, recordType, value)
}

// Query returns the first A or AAAA value published for rr.
func (r *Route53) Query(ctx context.Context, rr string) (*Record, error) {
	name := r.fqdn(rr)
	out, err := r.api.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(r.zoneID),
		StartRecordName: aws.String(name),
		MaxItems:        aws.Int32(queryPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("list record sets for %s: %w", rr, err)
	}

	for _, set := range out.ResourceRecordSets {
		if !sameName(aws.ToString(set.Name), name) {
			// Sets are sorted by name; the first mismatch ends the candidates.
			break
		}
		if set.Type != types.RRTypeA && set.Type != types.RRTypeAaaa {
			continue
		}
		values := setValues(&set)
		if len(values) == 0 {
			continue
		}
		recordType := string(set.Type)
		return &Record{
			ID:    RecordID(rr, recordType, values[0]),
			RR:    rr,
			Type:  recordType,
			Value: values[0],
			TTL:   aws.ToInt64(set.TTL),
		}, nil
	}
	return nil, nil
}

func (r *Route53) addValue(ctx context.Context, rr, recordType, value string) error {
	set, err := r.lookupSet(ctx, rr, recordType)
	if err != nil {
		return err
	}
	values := setValues(set)
	if slices.Contains(values, value) {
		return nil
	}
	return r.change(ctx, types.ChangeActionUpsert, rr, recordType, append(values, value), r.ttl)
}

func (r *Route53) removeValue(ctx context.Context, rr, recordType, value string) error {
	set, err := r.lookupSet(ctx, rr, recordType)
	if err != nil {
		return err
	}
	values := setValues(set)
	i := slices.Index(values, value)
	if i < 0 {
		return nil
	}

	remaining := slices.Delete(slices.Clone(values), i, i+1)
	if len(remaining) == 0 {
		// DELETE must match the existing set exactly.
		return r.change(ctx, types.ChangeActionDelete, rr, recordType, values, aws.ToInt64(set.TTL))
	}
	return r.change(ctx, types.ChangeActionUpsert, rr, recordType, remaining, r.ttl)
}

// lookupSet returns the record set for (rr, type), or nil when absent.
func (r *Route53) lookupSet(ctx context.Context, rr, recordType string) (*types.ResourceRecordSet, error) {
	name := r.fqdn(rr)
	out, err := r.api.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(r.zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRType(recordType),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("list record sets for %s %s: %w", rr, recordType, err)
	}
	for _, set := range out.ResourceRecordSets {
		if sameName(aws.ToString(set.Name), name) && string(set.Type) == recordType {
			return &set, nil
		}
	}
	return nil, nil
}

func (r *Route53) change(ctx context.Context, action types.ChangeAction, rr, recordType string, values []string, ttl int64) error {
	records := make([]types.ResourceRecord, 0, len(values))
	for _, v := range values {
		records = append(records, types.ResourceRecord{Value: aws.String(v)})
	}

	_, err := r.api.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String(changeComment),
			Changes: []types.Change{
				{
					Action: action,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name:            aws.String(r.fqdn(rr)),
						Type:            types.RRType(recordType),
						TTL:             aws.Int64(ttl),
						ResourceRecords: records,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", action, rr, recordType, err)
	}
	return nil
}

func (r *Route53) fqdn(rr string) string {
	if rr == host.ApexRR || rr == "" {
		return r.domain + "."
	}
	return rr + "." + r.domain + "."
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

func setValues(set *types.ResourceRecordSet) []string {
	if set == nil {
		return nil
	}
	values := make([]string, 0, len(set.ResourceRecords))
	for _, rec := range set.ResourceRecords {
		values = append(values, aws.ToString(rec.Value))
	}
	return values
}

func dedupe(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
