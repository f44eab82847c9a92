package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
)

type scriptedRunner struct {
	errs  []error
	calls int
}

func (r *scriptedRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	r.calls++
	if r.calls <= len(r.errs) {
		return r.errs[r.calls-1]
	}
	return fn(nil)
}

func TestRetryTxRerunsConflicts(t *testing.T) {
	runner := &scriptedRunner{errs: []error{
		&pgconn.PgError{Code: "40P01"},
		errors.New("database is locked"),
	}}
	ran := 0
	err := RetryTx(context.Background(), runner, RetryOptions{Pause: time.Millisecond}, func(*gorm.DB) error {
		ran++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, 1, ran)
}

func TestRetryTxSurfacesConflictAfterLastAttempt(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	runner := &scriptedRunner{errs: []error{serialization, serialization, serialization, serialization}}
	err := RetryTx(context.Background(), runner, RetryOptions{Attempts: 4, Pause: time.Millisecond, Operation: "order draft"},
		func(*gorm.DB) error { return nil })
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "order draft")
	assert.Equal(t, 4, runner.calls)
}

func TestRetryTxReturnsOtherErrorsUnchanged(t *testing.T) {
	missing := pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	runner := &scriptedRunner{}
	err := RetryTx(context.Background(), runner, RetryOptions{}, func(*gorm.DB) error { return missing })
	assert.Same(t, missing, err)
	assert.Equal(t, 1, runner.calls)
}

func TestRetryTxStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{errs: []error{errors.New("database is locked")}}
	err := RetryTx(ctx, runner, RetryOptions{Pause: time.Hour}, func(*gorm.DB) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runner.calls)
}
