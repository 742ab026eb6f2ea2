// Package sim contains the simulation engine: the tick scheduler, the
// metrics aggregator and the run result assembly.
package sim

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AElnamaki/simulate/internal/agent"
	"github.com/AElnamaki/simulate/internal/market"
)

// State is the runner lifecycle.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateInterrupted  State = "INTERRUPTED"
)

// TickRecord is the immutable archive entry for one tick. Once appended to
// the run history it is never mutated.
type TickRecord struct {
	Tick        int                                  `json:"tick"`
	Snapshot    *market.Snapshot                     `json:"market_snapshot,omitempty"`
	SnapshotErr string                               `json:"snapshot_error,omitempty"`
	Reports     []*agent.ActionReport                `json:"action_reports"`
	Metrics     StepMetrics                          `json:"step_metrics"`
	Performance map[string]agent.PerformanceSnapshot `json:"agent_performance"`
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Agents      []agent.Agent
	Provider    *market.Provider
	MaxSteps    int
	StepDelay   time.Duration
	StepTimeout time.Duration
	Logger      zerolog.Logger
	// OnTick, when set, observes each record as it is archived. Used by
	// the storage recorder; failures there never affect the run.
	OnTick func(runID string, rec TickRecord)
}

// Runner owns the agent registry and the tick counter, advancing the shared
// market state through discrete ticks. Ticks never overlap and agents are
// evaluated strictly in registration order, so a run is deterministic for a
// given configuration and seed.
type Runner struct {
	runID    string
	agents   []agent.Agent
	provider *market.Provider
	agg      *Aggregator
	log      zerolog.Logger

	maxSteps    int
	stepDelay   time.Duration
	stepTimeout time.Duration
	onTick      func(string, TickRecord)

	state   atomic.Value
	history []TickRecord
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("sim: at least one agent is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("sim: market provider is required")
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("sim: max steps must be positive")
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}

	runID := uuid.NewString()
	r := &Runner{
		runID:       runID,
		agents:      cfg.Agents,
		provider:    cfg.Provider,
		agg:         NewAggregator(cfg.Agents),
		log:         cfg.Logger.With().Str("run_id", runID).Logger(),
		maxSteps:    cfg.MaxSteps,
		stepDelay:   cfg.StepDelay,
		stepTimeout: cfg.StepTimeout,
		onTick:      cfg.OnTick,
	}
	r.state.Store(StateInitializing)
	return r, nil
}

// RunID identifies this run in logs and storage.
func (r *Runner) RunID() string { return r.runID }

// State returns the current lifecycle state.
func (r *Runner) State() State { return r.state.Load().(State) }

// History returns the archived tick records.
func (r *Runner) History() []TickRecord { return r.history }

// Run advances the simulation until maxSteps ticks have completed or the
// context is cancelled. Cancellation is honored only at tick boundaries, so
// a half-applied tick is never persisted. A final result is produced in
// every case, even when every tick recorded errors.
func (r *Runner) Run(ctx context.Context) *Result {
	start := time.Now()
	r.state.Store(StateRunning)
	r.log.Info().Int("max_steps", r.maxSteps).Int("agents", len(r.agents)).Msg("simulation started")

	finalState := StateCompleted
	for tick := 0; tick < r.maxSteps; tick++ {
		if ctx.Err() != nil {
			finalState = StateInterrupted
			break
		}

		rec := r.runTick(ctx, tick)
		r.archive(rec)

		if tick%10 == 0 {
			r.log.Info().Int("tick", tick).Int("of", r.maxSteps).Msg("progress")
		}

		if r.stepDelay > 0 && tick < r.maxSteps-1 {
			select {
			case <-time.After(r.stepDelay):
			case <-ctx.Done():
				finalState = StateInterrupted
			}
			if finalState == StateInterrupted {
				break
			}
		}
	}

	r.state.Store(finalState)
	r.log.Info().Str("state", string(finalState)).Dur("elapsed", time.Since(start)).Msg("simulation finished")
	return r.buildResult(start, finalState)
}

// runTick executes one tick: one shared snapshot, one ordered agent sweep,
// one metrics pass, one performance sweep.
func (r *Runner) runTick(ctx context.Context, tick int) TickRecord {
	snap, err := r.provider.Snapshot(ctx, tick)
	if err != nil {
		// The tick is lost but the run is not: record the failure and
		// move on.
		r.log.Error().Err(err).Int("tick", tick).Msg("snapshot unavailable, skipping tick")
		return TickRecord{
			Tick:        tick,
			SnapshotErr: err.Error(),
			Reports:     []*agent.ActionReport{},
			Metrics:     StepMetrics{Tick: tick},
			Performance: map[string]agent.PerformanceSnapshot{},
		}
	}

	var reports []*agent.ActionReport
	for _, ag := range r.agents {
		if report := r.stepAgent(ctx, ag, snap); report != nil {
			reports = append(reports, report)
		}
	}

	performance := make(map[string]agent.PerformanceSnapshot, len(r.agents))
	for _, ag := range r.agents {
		performance[ag.ID()] = ag.Performance(ctx)
	}

	return TickRecord{
		Tick:        tick,
		Snapshot:    snap,
		Reports:     reports,
		Metrics:     r.agg.Step(tick, reports, snap),
		Performance: performance,
	}
}

// stepAgent isolates one agent's tick. A panic anywhere in the agent, or an
// error it reports, stays on that agent's report; the remaining agents in
// the tick are unaffected. Returns nil when the agent declined to act.
func (r *Runner) stepAgent(ctx context.Context, ag agent.Agent, snap *market.Snapshot) (report *agent.ActionReport) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("agent", ag.ID()).Msg("agent panicked")
			report = &agent.ActionReport{
				AgentID:   ag.ID(),
				AgentType: ag.Kind(),
				Actions:   []agent.ActionRecord{},
				Err:       fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	if !ag.ShouldAct(stepCtx, snap) {
		return nil
	}
	return ag.Step(stepCtx, snap)
}

func (r *Runner) archive(rec TickRecord) {
	r.history = append(r.history, rec)
	if r.onTick != nil {
		r.onTick(r.runID, rec)
	}
}
