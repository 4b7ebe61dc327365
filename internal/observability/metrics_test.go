package observability_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prunefang/internal/observability"
)

func TestNoopEngineMetricsRecordsWithoutPanic(t *testing.T) {
	t.Parallel()

	em := observability.NewNoopEngineMetrics()
	ctx := context.Background()

	em.RecordOracleCall(ctx, true, 50*time.Millisecond)
	em.RecordOracleCall(ctx, false, time.Second)
	em.RecordCommit(ctx, 1024)
	em.RecordConflict(ctx)
	em.RecordStaleDrop(ctx)
	em.RecordTask(ctx, "delete")
}

func TestPrometheusMeterExposesEngineMetrics(t *testing.T) {
	t.Parallel()

	meter, handler, err := observability.NewPrometheusMeter()
	require.NoError(t, err)

	em, err := observability.NewEngineMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	em.RecordOracleCall(ctx, true, 10*time.Millisecond)
	em.RecordCommit(ctx, 512)
	em.RecordTask(ctx, "explore")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "prunefang_oracle_calls")
	assert.Contains(t, string(body), "prunefang_commits")
}
