// Package jobs runs the service's scheduled work: the daily reconciliation
// roll-up and the model-training gate.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/pkg/lock"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler fires jobs on cron schedules evaluated in a fixed reference
// timezone. Each firing is guarded by a lease so that only one service
// instance runs a given job per tick. The lease TTL bounds how long a
// crashed holder can block other instances; it is refreshed for as long as
// the job actually runs, so runTimeout, not guardTTL, bounds the run.
type Scheduler struct {
	cron       *cron.Cron
	locker     lock.Locker
	guardTTL   time.Duration
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in
// the named timezone.
func NewScheduler(timezone string, locker lock.Locker, guardTTL, runTimeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}
	if runTimeout < guardTTL {
		runTimeout = guardTTL
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		locker:     locker,
		guardTTL:   guardTTL,
		runTimeout: runTimeout,
		logger:     logger,
	}, nil
}

// Register schedules a job. The spec is a standard five-field cron
// expression.
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.fire(job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}
	s.logger.Info("job scheduled", zap.String("job", job.Name()), zap.String("spec", spec))
	return nil
}

// Start begins firing registered jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops firing and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fire(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	lease, err := s.locker.Acquire(ctx, "jobs:"+job.Name(), s.guardTTL)
	if err != nil {
		if err == lock.ErrNotAcquired {
			s.logger.Info("job already running on another instance, skipping",
				zap.String("job", job.Name()))
		} else {
			s.logger.Error("job guard unavailable, skipping tick",
				zap.String("job", job.Name()), zap.Error(err))
		}
		return
	}
	stopRefresh := s.keepGuardAlive(ctx, job.Name(), lease)
	defer func() {
		stopRefresh()
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("failed to release job guard",
				zap.String("job", job.Name()), zap.Error(relErr))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	s.logger.Info("job completed",
		zap.String("job", job.Name()),
		zap.Duration("elapsed", time.Since(start)))
}

// keepGuardAlive refreshes the lease at half the guard TTL for as long as
// the job runs, so a run longer than the TTL cannot lose the guard and be
// duplicated on another instance. The returned func stops the refresher.
func (s *Scheduler) keepGuardAlive(ctx context.Context, name string, lease lock.Lease) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.guardTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lease.Refresh(ctx, s.guardTTL); err != nil {
					s.logger.Warn("failed to refresh job guard",
						zap.String("job", name), zap.Error(err))
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
