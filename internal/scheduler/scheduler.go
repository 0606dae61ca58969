// Package scheduler runs CareBear's periodic housekeeping jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/CareBear/internal/store"
)

const (
	// DefaultPruneSpec is how often idle sessions are swept.
	DefaultPruneSpec = "@every 10m"
	// DefaultMaxIdle is how long a session may go untouched before it is pruned.
	DefaultMaxIdle = 24 * time.Hour
	pruneTimeout   = time.Minute
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler. Expressions are standard
// 5-field specs or descriptors such as "@every 10m"; panicking jobs are recovered.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Jobs reports how many jobs are scheduled.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// PruneReporter receives the number of sessions each sweep removed.
type PruneReporter interface {
	AddPruned(n int)
}

// PruneJob returns a task that deletes sessions idle for longer than maxIdle.
// reporter may be nil.
func PruneJob(pruner store.Pruner, maxIdle time.Duration, reporter PruneReporter) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		n, err := pruner.PruneIdle(ctx, time.Now().Add(-maxIdle))
		if err != nil {
			slog.Warn("Scheduler prune failed", "error", err)
			return
		}
		if reporter != nil {
			reporter.AddPruned(n)
		}
		if n > 0 {
			slog.Info("Scheduler pruned idle sessions", "count", n, "maxIdle", maxIdle)
		}
	}
}

// SchedulePrune adds the idle-session sweep when st supports pruning. It reports
// whether a job was added; stores with native expiry (Redis) need none.
func (s *Scheduler) SchedulePrune(spec string, st store.StateStore, maxIdle time.Duration, reporter PruneReporter) (bool, error) {
	pruner, ok := st.(store.Pruner)
	if !ok {
		slog.Debug("Scheduler prune skipped, store expires sessions itself")
		return false, nil
	}
	if spec == "" {
		spec = DefaultPruneSpec
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if err := s.AddJob(spec, PruneJob(pruner, maxIdle, reporter)); err != nil {
		return false, err
	}
	slog.Info("Scheduler idle-session pruning enabled", "spec", spec, "maxIdle", maxIdle)
	return true, nil
}

// DefaultDedupRetention is how long inbound message IDs are kept for redelivery checks.
const DefaultDedupRetention = 48 * time.Hour

// InboundPruneJob returns a task that forgets inbound message IDs older than retention.
func InboundPruneJob(pruner store.InboundPruner, retention time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		n, err := pruner.PruneInbound(ctx, time.Now().Add(-retention))
		if err != nil {
			slog.Warn("Scheduler inbound prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.Debug("Scheduler pruned inbound message IDs", "count", n)
		}
	}
}

// ScheduleInboundPrune adds the message-ID sweep when d keeps IDs forever.
// Dedupers that expire keys themselves (Redis) are skipped.
func (s *Scheduler) ScheduleInboundPrune(spec string, d store.InboundDeduper, retention time.Duration) (bool, error) {
	pruner, ok := d.(store.InboundPruner)
	if !ok {
		return false, nil
	}
	if spec == "" {
		spec = DefaultPruneSpec
	}
	if retention <= 0 {
		retention = DefaultDedupRetention
	}
	if err := s.AddJob(spec, InboundPruneJob(pruner, retention)); err != nil {
		return false, err
	}
	slog.Info("Scheduler inbound dedup pruning enabled", "spec", spec, "retention", retention)
	return true, nil
}
