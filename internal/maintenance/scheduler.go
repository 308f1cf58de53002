// Package maintenance runs periodic housekeeping for the order pipeline.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// Job is one housekeeping task. Run reports how many rows it changed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

// Locker guards a cycle so only one worker replica runs it.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type SchedulerParams struct {
	Logger   *logger.Logger
	Lock     Locker
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	Jobs     []Job
}

// Scheduler runs its jobs once at start and then on every tick.
type Scheduler struct {
	logg     *logger.Logger
	lock     Locker
	metrics  *metrics.JobMetrics
	interval time.Duration
	jobs     []Job
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	seen := make(map[string]struct{}, len(params.Jobs))
	jobs := make([]Job, 0, len(params.Jobs))
	for _, job := range params.Jobs {
		if job == nil {
			continue
		}
		if _, dup := seen[job.Name()]; dup {
			return nil, fmt.Errorf("duplicate job %q", job.Name())
		}
		seen[job.Name()] = struct{}{}
		jobs = append(jobs, job)
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		logg:     params.Logger,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		jobs:     jobs,
	}, nil
}

// Jobs returns the registered job names in run order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "maintenance cycle failed", err)
	}
}

// RunOnce runs every job under the lock. A failing job does not stop the
// others. Returns nil without running anything when another replica holds
// the lock.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "maintenance lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", err)
		}
	}()

	for _, job := range s.jobs {
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "maintenance.job",
	})
	start := time.Now()
	rows, err := job.Run(jobCtx)
	elapsed := time.Since(start)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"rows":        rows,
	})
	s.metrics.AddRows(job.Name(), rows)
	if err != nil {
		s.metrics.Observe(job.Name(), metrics.OutcomeFailure, elapsed)
		s.logg.Error(jobCtx, "maintenance job failed", err)
		return
	}
	s.metrics.Observe(job.Name(), metrics.OutcomeSuccess, elapsed)
	s.logg.Info(jobCtx, "maintenance job completed")
}
