package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const defaultProcessedRetention = 30 * 24 * time.Hour

type processedPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type ProcessedPruneJobParams struct {
	Logger    *logger.Logger
	Inbox     processedPruner
	Retention time.Duration
}

// NewProcessedPruneJob forgets consumer dedup markers older than the retention. The
// window has to outlive the broker's redelivery horizon.
func NewProcessedPruneJob(params ProcessedPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inbox == nil {
		return nil, fmt.Errorf("inbox required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultProcessedRetention
	}
	return &processedPruneJob{
		logg:      params.Logger,
		inbox:     params.Inbox,
		retention: retention,
		now:       time.Now,
	}, nil
}

type processedPruneJob struct {
	logg      *logger.Logger
	inbox     processedPruner
	retention time.Duration
	now       func() time.Time
}

func (j *processedPruneJob) Name() string { return "processed-messages-prune" }

func (j *processedPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.inbox.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune processed messages: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "processed messages pruned")
	return nil
}
