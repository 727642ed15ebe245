package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/clinicaccess/pkg/observability"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// Scheduler periodically persists the enforcer state
type Scheduler struct {
	enforcer *rbac.Enforcer
	store    Snapshotter
	logger   *observability.Logger
	metrics  *observability.Metrics

	cron *cron.Cron
	// serializes saves so a cron tick and a shutdown flush never interleave
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler. metrics may be nil.
func NewScheduler(enforcer *rbac.Enforcer, store Snapshotter, logger *observability.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		enforcer: enforcer,
		store:    store,
		logger:   logger.WithField("component", "snapshot_scheduler"),
		metrics:  metrics,
		cron:     cron.New(),
	}
}

// SaveNow takes a consistent snapshot and writes it to the store
func (s *Scheduler) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	snap := s.enforcer.Snapshot()
	err := s.store.Save(ctx, snap)
	if s.metrics != nil {
		s.metrics.RecordSnapshot("save", s.store.Backend(), start, err)
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"backend": s.store.Backend(),
		"roles":   len(snap.Roles),
		"groups":  len(snap.Groups),
		"users":   len(snap.Users),
	}).Debug("snapshot saved")
	return nil
}

// Start schedules SaveNow on a standard cron expression
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		defer observability.RecoverPanic(s.logger, "snapshot job")

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.SaveNow(ctx); err != nil {
			s.logger.WithError(err).Error("scheduled snapshot failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule snapshots: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.logger.WithField("schedule", schedule).Info("snapshot scheduler started")
	return nil
}

// Stop waits for a running job, then flushes one final snapshot
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.started {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
			return fmt.Errorf("snapshot scheduler did not stop: %w", ctx.Err())
		}
	}
	return s.SaveNow(ctx)
}
