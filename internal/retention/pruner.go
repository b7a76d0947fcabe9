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

// Package retention deletes gateway audit rows older than the retention window
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/golgoth31/gateway-autodns/internal/metrics"
	"github.com/golgoth31/gateway-autodns/internal/store"
)

// Pruner is a manager runnable that sweeps the audit log.
type Pruner struct {
	store    store.AuditStore
	schedule string
	window   time.Duration
	now      func() time.Time
	log      logr.Logger
}

// NewPruner returns a Pruner keeping retentionDays of audit history.
func NewPruner(st store.AuditStore, schedule string, retentionDays int) *Pruner {
	return &Pruner{
		store:    st,
		schedule: schedule,
		window:   time.Duration(retentionDays) * 24 * time.Hour,
		now:      time.Now,
		log:      ctrl.Log.WithName("retention"),
	}
}

// NeedLeaderElection implements manager.LeaderElectionRunnable.
func (p *Pruner) NeedLeaderElection() bool {
	return true
}

// Start implements manager.Runnable. It blocks until ctx is done and waits for
// a running sweep to finish before returning.
func (p *Pruner) Start(ctx context.Context) error {
	// logr.Logger satisfies cron.Logger.
	c := cron.New(cron.WithLogger(p.log), cron.WithChain(cron.SkipIfStillRunning(p.log)))
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.PruneOnce(ctx); err != nil {
			p.log.Error(err, "audit retention sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule retention sweep %q: %w", p.schedule, err)
	}
	c.Start()
	p.log.Info("audit retention scheduled", "schedule", p.schedule, "window", p.window)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// PruneOnce deletes rows older than the retention window and returns how many went.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.window)
	n, err := p.store.PruneOperations(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit rows before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.RecordAuditRowsPruned(n)
	p.log.Info("audit rows pruned", "count", n, "cutoff", cutoff)
	return n, nil
}
