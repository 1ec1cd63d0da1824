package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupledger/groupledger/internal/ledger"
)

type fakeMaintainer struct {
	syncCalls  int
	sweepCalls int
	err        error
}

func (f *fakeMaintainer) SyncCategories(ctx context.Context) (ledger.SyncOutcome, error) {
	f.syncCalls++
	return ledger.SyncOutcome{Updated: 3}, f.err
}

func (f *fakeMaintainer) SweepUnrated(ctx context.Context) (int, error) {
	f.sweepCalls++
	return 2, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCategorySyncHandler(t *testing.T) {
	svc := &fakeMaintainer{}
	handler := CategorySyncHandler(svc, testLogger())

	require.NoError(t, handler(context.Background(), NewCategorySyncTask()))
	require.Equal(t, 1, svc.syncCalls)
}

func TestFxBackfillHandler(t *testing.T) {
	svc := &fakeMaintainer{}
	handler := FxBackfillHandler(svc, testLogger())

	require.NoError(t, handler(context.Background(), NewFxBackfillTask()))
	require.Equal(t, 1, svc.sweepCalls)
}

func TestHandlersPropagateErrorsForRetry(t *testing.T) {
	svc := &fakeMaintainer{err: errors.New("db down")}

	require.Error(t, CategorySyncHandler(svc, testLogger())(context.Background(), NewCategorySyncTask()))
	require.Error(t, FxBackfillHandler(svc, testLogger())(context.Background(), NewFxBackfillTask()))
}

func TestTrackerReturnsErrorUntouched(t *testing.T) {
	metrics := NewMetrics(nil)
	sentinel := errors.New("boom")

	require.Equal(t, sentinel, metrics.Track(TaskCategorySync).End(sentinel))
	require.NoError(t, metrics.Track(TaskFxBackfill).End(nil))
}
