package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AElnamaki/simulate/internal/agent"
	"github.com/AElnamaki/simulate/internal/ledger"
	"github.com/AElnamaki/simulate/internal/market"
)

// scriptedAgent is a fully controllable Agent for scheduler tests.
type scriptedAgent struct {
	id        string
	kind      agent.Kind
	shouldAct func(tick int) bool
	step      func(ctx context.Context, snap *market.Snapshot) *agent.ActionReport

	stepTicks []int
}

func (a *scriptedAgent) ID() string              { return a.id }
func (a *scriptedAgent) Kind() agent.Kind        { return a.kind }
func (a *scriptedAgent) Address() ledger.Address { return ledger.Address("0x" + a.id) }

func (a *scriptedAgent) ShouldAct(ctx context.Context, snap *market.Snapshot) bool {
	if a.shouldAct == nil {
		return true
	}
	return a.shouldAct(snap.Tick)
}

func (a *scriptedAgent) Step(ctx context.Context, snap *market.Snapshot) *agent.ActionReport {
	a.stepTicks = append(a.stepTicks, snap.Tick)
	if a.step != nil {
		return a.step(ctx, snap)
	}
	return &agent.ActionReport{AgentID: a.id, AgentType: a.kind, Actions: []agent.ActionRecord{
		{Name: "noop_swap", Kind: agent.TradeSwap, AmountIn: 100},
	}}
}

func (a *scriptedAgent) Performance(ctx context.Context) agent.PerformanceSnapshot {
	return agent.PerformanceSnapshot{AgentID: a.id, AgentType: a.kind, TxCount: uint64(len(a.stepTicks))}
}

// poolStub serves snapshots without a real ledger.
type poolStub struct {
	ledger.Ledger
	state ledger.PoolState
	err   error
}

func (s *poolStub) PoolState(ctx context.Context) (ledger.PoolState, error) {
	return s.state, s.err
}

func stubProvider(err error) *market.Provider {
	return market.NewProvider(&poolStub{
		state: ledger.PoolState{ReserveA: 100_000, ReserveB: 100_000, LPSupply: 100_000, FeeBps: 30},
		err:   err,
	})
}

func newTestRunner(t *testing.T, cfg RunnerConfig) *Runner {
	t.Helper()
	if cfg.Provider == nil {
		cfg.Provider = stubProvider(nil)
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 5
	}
	cfg.Logger = zerolog.Nop()
	runner, err := NewRunner(cfg)
	require.NoError(t, err)
	return runner
}

func TestRunnerCompletesAllSteps(t *testing.T) {
	first := &scriptedAgent{id: "a1", kind: agent.KindRandomTrader}
	second := &scriptedAgent{id: "a2", kind: agent.KindMomentumTrader}
	runner := newTestRunner(t, RunnerConfig{Agents: []agent.Agent{first, second}, MaxSteps: 5})

	result := runner.Run(context.Background())

	assert.Equal(t, StateCompleted, runner.State())
	assert.Equal(t, StateCompleted, result.Summary.State)
	assert.Equal(t, 5, result.Summary.TotalSteps)
	assert.Equal(t, 5, result.Overall.SimulationSteps)
	assert.Len(t, result.FinalPerformance, 2, "every agent gets a performance entry")
	assert.Len(t, runner.History(), 5)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, first.stepTicks)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, second.stepTicks)
}

func TestRunnerRegistrationOrder(t *testing.T) {
	var order []string
	mk := func(id string) *scriptedAgent {
		return &scriptedAgent{
			id:   id,
			kind: agent.KindRandomTrader,
			step: func(ctx context.Context, snap *market.Snapshot) *agent.ActionReport {
				order = append(order, id)
				return &agent.ActionReport{AgentID: id, AgentType: agent.KindRandomTrader, Actions: []agent.ActionRecord{{Name: "x"}}}
			},
		}
	}
	runner := newTestRunner(t, RunnerConfig{Agents: []agent.Agent{mk("first"), mk("second"), mk("third")}, MaxSteps: 2})

	runner.Run(context.Background())

	assert.Equal(t, []string{"first", "second", "third", "first", "second", "third"}, order)
}

func TestRunnerDecliningAgentIsNotStepped(t *testing.T) {
	passive := &scriptedAgent{id: "passive", kind: agent.KindMarketMaker, shouldAct: func(int) bool { return false }}
	active := &scriptedAgent{id: "active", kind: agent.KindRandomTrader}
	runner := newTestRunner(t, RunnerConfig{Agents: []agent.Agent{passive, active}, MaxSteps: 3})

	runner.Run(context.Background())

	assert.Empty(t, passive.stepTicks)
	for _, rec := range runner.History() {
		require.Len(t, rec.Reports, 1, "declining agents contribute no report")
		assert.Equal(t, "active", rec.Reports[0].AgentID)
		assert.Len(t, rec.Performance, 2, "but still get a performance snapshot")
	}
}

func TestRunnerIsolatesAgentFailures(t *testing.T) {
	failing := &scriptedAgent{
		id:   "failing",
		kind: agent.KindArbitrageTrader,
		step: func(ctx context.Context, snap *market.Snapshot) *agent.ActionReport {
			return &agent.ActionReport{AgentID: "failing", AgentType: agent.KindArbitrageTrader, Err: "ledger rejected op"}
		},
	}
	panicking := &scriptedAgent{
		id:   "panicking",
		kind: agent.KindMomentumTrader,
		step: func(ctx context.Context, snap *market.Snapshot) *agent.ActionReport {
			panic("boom")
		},
	}
	healthy := &scriptedAgent{id: "healthy", kind: agent.KindRandomTrader}
	runner := newTestRunner(t, RunnerConfig{Agents: []agent.Agent{failing, panicking, healthy}, MaxSteps: 3})

	result := runner.Run(context.Background())

	assert.Equal(t, StateCompleted, runner.State(), "agent failures never abort the run")
	assert.Equal(t, []int{0, 1, 2}, healthy.stepTicks)

	rec := runner.History()[0]
	require.Len(t, rec.Reports, 3)
	assert.Equal(t, "ledger rejected op", rec.Reports[0].Err)
	assert.Contains(t, rec.Reports[1].Err, "panic: boom")
	assert.Empty(t, rec.Reports[2].Err)

	assert.Equal(t, 2*3, result.Overall.TotalErrors)
}

func TestRunnerSkipsTickOnSnapshotFailure(t *testing.T) {
	ag := &scriptedAgent{id: "a1", kind: agent.KindRandomTrader}
	runner := newTestRunner(t, RunnerConfig{
		Agents:   []agent.Agent{ag},
		Provider: stubProvider(errors.New("node down")),
		MaxSteps: 3,
	})

	result := runner.Run(context.Background())

	assert.Equal(t, StateCompleted, runner.State())
	assert.Empty(t, ag.stepTicks, "no agent runs without a snapshot")
	require.Len(t, runner.History(), 3)
	for _, rec := range runner.History() {
		assert.Contains(t, rec.SnapshotErr, "node down")
		assert.Nil(t, rec.Snapshot)
		assert.Empty(t, rec.Reports)
	}
	assert.Equal(t, 3, result.Overall.SimulationSteps)
}

func TestRunnerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocker := &scriptedAgent{
		id:   "blocker",
		kind: agent.KindRandomTrader,
		step: func(context.Context, *market.Snapshot) *agent.ActionReport {
			cancel()
			return &agent.ActionReport{AgentID: "blocker", AgentType: agent.KindRandomTrader}
		},
	}
	runner := newTestRunner(t, RunnerConfig{Agents: []agent.Agent{blocker}, MaxSteps: 100})

	result := runner.Run(ctx)

	assert.Equal(t, StateInterrupted, runner.State())
	assert.Equal(t, StateInterrupted, result.Summary.State)
	assert.Len(t, runner.History(), 1, "cancellation lands at the next tick boundary")
}

func TestRunnerCancellationDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := newTestRunner(t, RunnerConfig{
		Agents: []agent.Agent{&scriptedAgent{id: "a1", kind: agent.KindRandomTrader, step: func(context.Context, *market.Snapshot) *agent.ActionReport {
			cancel()
			return &agent.ActionReport{AgentID: "a1", AgentType: agent.KindRandomTrader}
		}}},
		MaxSteps:  100,
		StepDelay: time.Hour,
	})

	done := make(chan *Result, 1)
	go func() { done <- runner.Run(ctx) }()

	select {
	case result := <-done:
		assert.Equal(t, StateInterrupted, result.Summary.State)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not abandon the inter-step delay on cancellation")
	}
}

func TestRunnerOnTickObserver(t *testing.T) {
	var seen []int
	runner := newTestRunner(t, RunnerConfig{
		Agents:   []agent.Agent{&scriptedAgent{id: "a1", kind: agent.KindRandomTrader}},
		MaxSteps: 4,
		OnTick: func(runID string, rec TickRecord) {
			seen = append(seen, rec.Tick)
		},
	})

	runner.Run(context.Background())
	assert.Equal(t, []int{0, 1, 2, 3}, seen)
}

func TestRunnerValidation(t *testing.T) {
	_, err := NewRunner(RunnerConfig{Provider: stubProvider(nil), MaxSteps: 5})
	assert.Error(t, err, "no agents")

	_, err = NewRunner(RunnerConfig{Agents: []agent.Agent{&scriptedAgent{id: "a"}}, MaxSteps: 5})
	assert.Error(t, err, "no provider")

	_, err = NewRunner(RunnerConfig{Agents: []agent.Agent{&scriptedAgent{id: "a"}}, Provider: stubProvider(nil)})
	assert.Error(t, err, "no steps")
}
