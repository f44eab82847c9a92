package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const defaultBacklogMaxAttempts = 10

type backlogReader interface {
	CountPending(ctx context.Context, maxAttempts int) (int64, error)
	OldestPendingAt(ctx context.Context, maxAttempts int) (*time.Time, error)
}

type backlogGauge interface {
	SetBacklog(pending int64, oldestAge time.Duration)
}

type OutboxBacklogJobParams struct {
	Logger      *logger.Logger
	Repository  backlogReader
	Gauge       backlogGauge
	MaxAttempts int
	// WarnAfter logs a warning once the oldest pending row is older than this.
	WarnAfter time.Duration
}

// NewOutboxBacklogJob samples how far the relay is behind.
func NewOutboxBacklogJob(params OutboxBacklogJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Gauge == nil {
		return nil, fmt.Errorf("backlog gauge required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultBacklogMaxAttempts
	}
	warnAfter := params.WarnAfter
	if warnAfter <= 0 {
		warnAfter = 5 * time.Minute
	}
	return &outboxBacklogJob{
		logg:        params.Logger,
		repo:        params.Repository,
		gauge:       params.Gauge,
		maxAttempts: maxAttempts,
		warnAfter:   warnAfter,
		now:         time.Now,
	}, nil
}

type outboxBacklogJob struct {
	logg        *logger.Logger
	repo        backlogReader
	gauge       backlogGauge
	maxAttempts int
	warnAfter   time.Duration
	now         func() time.Time
}

func (j *outboxBacklogJob) Name() string { return "outbox-backlog" }

func (j *outboxBacklogJob) Run(ctx context.Context) error {
	pending, err := j.repo.CountPending(ctx, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	oldest, err := j.repo.OldestPendingAt(ctx, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("oldest pending: %w", err)
	}

	var age time.Duration
	if oldest != nil {
		age = j.now().UTC().Sub(oldest.UTC())
		if age < 0 {
			age = 0
		}
	}
	j.gauge.SetBacklog(pending, age)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending":         pending,
		"oldest_age_secs": age.Seconds(),
		"max_attempts":    j.maxAttempts,
	})
	if age > j.warnAfter {
		j.logg.Warn(logCtx, "outbox relay is falling behind")
		return nil
	}
	j.logg.Debug(logCtx, "outbox backlog sampled")
	return nil
}
