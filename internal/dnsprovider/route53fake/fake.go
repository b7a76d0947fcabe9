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

// Package route53fake is an in-memory hosted zone behind dnsprovider.Route53API.
// Record sets keep every value of a (name, type) pair together, as Route53 does.
package route53fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// API keeps record sets keyed by name and type and lists them in name order.
// ChangeErr and ListErr, when set, fail the matching calls.
type API struct {
	mu        sync.Mutex
	sets      map[string]types.ResourceRecordSet
	changes   []types.Change
	ChangeErr error
	ListErr   error
}

// New returns an empty zone.
func New() *API {
	return &API{sets: make(map[string]types.ResourceRecordSet)}
}

func setKey(name string, t types.RRType) string {
	return strings.ToLower(name) + " " + string(t)
}

// Put replaces the set for (name, t) without recording a change.
func (a *API) Put(name string, t types.RRType, values ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	set := types.ResourceRecordSet{Name: aws.String(name), Type: t, TTL: aws.Int64(300)}
	for _, v := range values {
		set.ResourceRecords = append(set.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}
	a.sets[setKey(name, t)] = set
}

// Values returns the values of the set for (name, t) in stored order, nil when absent.
func (a *API) Values(name string, t types.RRType) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	set, ok := a.sets[setKey(name, t)]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(set.ResourceRecords))
	for _, rec := range set.ResourceRecords {
		values = append(values, aws.ToString(rec.Value))
	}
	return values
}

// Changes returns the applied changes in order.
func (a *API) Changes() []types.Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Change(nil), a.changes...)
}

// ChangeResourceRecordSets applies UPSERT and DELETE changes. DELETE of an absent
// set fails like the real service.
func (a *API) ChangeResourceRecordSets(_ context.Context, in *route53.ChangeResourceRecordSetsInput,
	_ ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ChangeErr != nil {
		return nil, a.ChangeErr
	}
	for _, c := range in.ChangeBatch.Changes {
		key := setKey(aws.ToString(c.ResourceRecordSet.Name), c.ResourceRecordSet.Type)
		switch c.Action {
		case types.ChangeActionUpsert:
			a.sets[key] = *c.ResourceRecordSet
		case types.ChangeActionDelete:
			if _, ok := a.sets[key]; !ok {
				return nil, fmt.Errorf("InvalidChangeBatch: %s not found", key)
			}
			delete(a.sets, key)
		default:
			return nil, fmt.Errorf("unexpected action %s", c.Action)
		}
		a.changes = append(a.changes, c)
	}
	return &route53.ChangeResourceRecordSetsOutput{}, nil
}

// ListResourceRecordSets lists sets from StartRecordName (and StartRecordType) on.
func (a *API) ListResourceRecordSets(_ context.Context, in *route53.ListResourceRecordSetsInput,
	_ ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ListErr != nil {
		return nil, a.ListErr
	}
	keys := make([]string, 0, len(a.sets))
	for k := range a.sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := strings.ToLower(aws.ToString(in.StartRecordName))
	if in.StartRecordType != "" {
		start += " " + string(in.StartRecordType)
	}

	out := &route53.ListResourceRecordSetsOutput{}
	for _, k := range keys {
		if k < start {
			continue
		}
		if in.MaxItems != nil && int32(len(out.ResourceRecordSets)) >= *in.MaxItems {
			out.IsTruncated = true
			break
		}
		out.ResourceRecordSets = append(out.ResourceRecordSets, a.sets[k])
	}
	return out, nil
}
