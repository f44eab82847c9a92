package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
)

const (
	defaultInterval = time.Minute
	releaseTimeout  = 5 * time.Second
)

// ServiceParams configure the cron service. JobTimeout defaults to Interval.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	jobTimeout := params.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = interval
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: jobTimeout,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "cron lock held elsewhere; skipping cycle")
		s.metrics.CycleSkipped()
		return nil
	}
	defer func() {
		// Release even when ctx is already canceled so the next replica need not wait out the TTL.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := s.lock.Release(releaseCtx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return nil
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	duration := time.Since(start)
	s.metrics.ObserveRun(job.Name(), err, duration)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Debug(jobCtx, "job completed")
}
