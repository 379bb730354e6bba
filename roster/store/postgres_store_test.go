package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwanta/matchday/shared/postgres"
)

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: url, MaxConns: 20})
	require.NoError(t, err)
	st := NewPostgresStore(pool)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	require.NoError(t, st.EnsureSchema(ctx))

	runStoreContract(t, st)
}

func TestIsRetryablePgError(t *testing.T) {
	assert.True(t, isRetryablePgError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryablePgError(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isRetryablePgError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryablePgError(errors.New("plain")))
	assert.False(t, isRetryablePgError(nil))
}

func TestRetryDelay(t *testing.T) {
	for attempt := 1; attempt <= maxPostgresTxAttempts; attempt++ {
		base := postgresRetryBaseDelay << min(attempt-1, 6)
		d := retryDelay(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, 2*base)
	}
}

func TestPgDuplicateOr(t *testing.T) {
	err := pgDuplicateOr(&pgconn.PgError{Code: "23505", ConstraintName: "players_slot_key"}, "insert player %s", "p1")
	assert.ErrorIs(t, err, ErrDuplicate)

	err = pgDuplicateOr(errors.New("conn refused"), "insert player %s", "p1")
	assert.NotErrorIs(t, err, ErrDuplicate)
}
