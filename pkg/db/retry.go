package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

const (
	DefaultTxAttempts = 3
	defaultRetryPause = 25 * time.Millisecond
)

// TxRunner is what RetryTx needs from a connection. *Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetryOptions tunes RetryTx. Zero values fall back to the defaults.
type RetryOptions struct {
	Attempts  int
	Pause     time.Duration
	Operation string
	Logger    *logger.Logger
}

// RetryTx runs fn in a transaction and reruns it from scratch while it loses write
// conflicts, pausing a little longer after each one. A transaction that still
// conflicts after the last attempt surfaces as CONFLICT. Any other error from fn is
// returned unchanged.
func RetryTx(ctx context.Context, runner TxRunner, opts RetryOptions, fn func(tx *gorm.DB) error) error {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultTxAttempts
	}
	pause := opts.Pause
	if pause <= 0 {
		pause = defaultRetryPause
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := runner.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryableTxError(err) {
			return err
		}
		lastErr = err
		if opts.Logger != nil {
			logCtx := opts.Logger.WithFields(ctx, map[string]any{
				"operation": opts.Operation,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			opts.Logger.Warn(logCtx, "transaction conflict")
		}
		if attempt == attempts {
			break
		}
		if err := sleepContext(ctx, time.Duration(attempt)*pause); err != nil {
			return err
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr,
		fmt.Sprintf("transaction for %s kept conflicting after %d attempts", opts.Operation, attempts))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
