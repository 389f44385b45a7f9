package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"stroymarket/pos/internal/store"
)

func TestParseID(t *testing.T) {
	id, ok := parseID(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, ok := parseID(bad)
		assert.False(t, ok, bad)
	}
}

func TestErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	deadlock := &pgconn.PgError{Code: pgerrcode.DeadlockDetected}

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(deadlock))
	assert.True(t, isRetryable(deadlock))
	assert.False(t, isRetryable(errors.New("boom")))

	assert.ErrorIs(t, notFound(pgx.ErrNoRows, "get"), store.ErrNotFound)
	assert.NotErrorIs(t, notFound(errors.New("boom"), "get"), store.ErrNotFound)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = withRetry(context.Background(), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
