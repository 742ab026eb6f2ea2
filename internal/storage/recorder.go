package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/AElnamaki/simulate/internal/sim"
)

// Recorder streams tick records from a running simulation into the store.
// Persistence failures are logged and dropped so the run is never held up
// by the database.
type Recorder struct {
	store *Store
	log   zerolog.Logger
}

func NewRecorder(store *Store, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log.With().Str("component", "recorder").Logger()}
}

// Begin registers the run before its first tick.
func (r *Recorder) Begin(ctx context.Context, runID string, cfg any, maxSteps int) {
	err := r.store.CreateRun(ctx, RunRecord{
		ID:         runID,
		ConfigJSON: MarshalConfig(cfg),
		MaxSteps:   maxSteps,
		Status:     StatusRunning,
	})
	if err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("create run failed")
	}
}

// OnTick is wired into the runner and called once per archived tick.
func (r *Recorder) OnTick(runID string, rec sim.TickRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.store.AppendTick(ctx, TickRow{
		RunID:      runID,
		Tick:       rec.Tick,
		Price:      rec.Metrics.Price,
		Volume:     float64(rec.Metrics.Volume),
		Swaps:      rec.Metrics.Swaps,
		Errors:     rec.Metrics.Errors,
		RecordJSON: MarshalConfig(rec),
	})
	if err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Int("tick", rec.Tick).Msg("persist tick failed")
	}
}

// Finish marks the run terminal state.
func (r *Recorder) Finish(ctx context.Context, runID string, state sim.State) {
	status := StatusCompleted
	if state == sim.StateInterrupted {
		status = StatusInterrupted
	}
	if err := r.store.FinishRun(ctx, runID, status); err != nil {
		r.log.Error().Err(err).Str("run_id", runID).Msg("finish run failed")
	}
}
