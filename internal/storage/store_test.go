package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AElnamaki/simulate/internal/sim"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, RunRecord{ID: "run-1", MaxSteps: 10}))

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, 10, run.MaxSteps)
	assert.Zero(t, run.StepsDone)

	for tick := 0; tick < 3; tick++ {
		require.NoError(t, store.AppendTick(ctx, TickRow{
			RunID:      "run-1",
			Tick:       tick,
			Price:      1.0 + float64(tick),
			Volume:     100,
			Swaps:      1,
			RecordJSON: "{}",
		}))
	}

	require.NoError(t, store.FinishRun(ctx, "run-1", StatusCompleted))

	run, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 3, run.StepsDone)
	assert.NotEmpty(t, run.FinishedAt)

	ticks, err := store.ListTicks(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	assert.Equal(t, 0, ticks[0].Tick)
	assert.Equal(t, 3.0, ticks[2].Price)
}

func TestAppendTickIsIdempotentPerTick(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, RunRecord{ID: "run-1", MaxSteps: 5}))
	require.NoError(t, store.AppendTick(ctx, TickRow{RunID: "run-1", Tick: 0, Price: 1, RecordJSON: "{}"}))
	require.NoError(t, store.AppendTick(ctx, TickRow{RunID: "run-1", Tick: 0, Price: 2, RecordJSON: "{}"}))

	ticks, err := store.ListTicks(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, ticks, 1, "a replayed tick does not duplicate")
	assert.Equal(t, 1.0, ticks[0].Price, "first write wins")
}

func TestGetRunMissing(t *testing.T) {
	store := openTestStore(t)
	run, err := store.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.CreateRun(ctx, RunRecord{ID: id, MaxSteps: 1}))
	}

	runs, err := store.ListRuns(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-a", runs[2].ID)

	// Cursor pages past the newest entry.
	page, err := store.ListRuns(ctx, runs[0].RowID, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "run-b", page[0].ID)
}

func TestRecorderPersistsTicks(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, zerolog.Nop())
	ctx := context.Background()

	rec.Begin(ctx, "run-1", map[string]int{"max_steps": 2}, 2)
	rec.OnTick("run-1", sim.TickRecord{Tick: 0, Metrics: sim.StepMetrics{Tick: 0, Price: 1.5, Swaps: 2, Volume: 300}})
	rec.OnTick("run-1", sim.TickRecord{Tick: 1, Metrics: sim.StepMetrics{Tick: 1, Price: 1.6}})
	rec.Finish(ctx, "run-1", sim.StateCompleted)

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 2, run.StepsDone)

	ticks, err := store.ListTicks(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, 1.5, ticks[0].Price)
	assert.Equal(t, 2, ticks[0].Swaps)
	assert.NotEmpty(t, ticks[0].RecordJSON)
}

func TestRecorderInterruptedState(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, zerolog.Nop())
	ctx := context.Background()

	rec.Begin(ctx, "run-1", nil, 5)
	rec.Finish(ctx, "run-1", sim.StateInterrupted)

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, run.Status)
}
