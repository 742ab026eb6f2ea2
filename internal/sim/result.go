package sim

import (
	"time"

	"github.com/AElnamaki/simulate/config"
	"github.com/AElnamaki/simulate/internal/agent"
)

const recentTickWindow = 10

// ExecutionSummary describes how the run went, independent of what the
// market did.
type ExecutionSummary struct {
	RunID             string  `json:"run_id"`
	State             State   `json:"state"`
	TotalSteps        int     `json:"total_steps"`
	TotalTimeSecs     float64 `json:"total_time_secs"`
	AvgStepTimeSecs   float64 `json:"avg_step_time_secs"`
	TotalTransactions uint64  `json:"total_transactions"`
	TotalGasUsed      uint64  `json:"total_gas_used"`
}

// Result is the full outcome of a run: the configuration it ran under, the
// execution summary, market-level aggregates, final per-agent performance
// and the tail of the tick history for inspection.
type Result struct {
	Config            *config.Config                       `json:"config,omitempty"`
	Summary           ExecutionSummary                     `json:"execution_summary"`
	Overall           OverallMetrics                       `json:"overall_metrics"`
	FinalPerformance  map[string]agent.PerformanceSnapshot `json:"final_agent_performance"`
	RecentTickRecords []TickRecord                         `json:"recent_tick_records"`
}

func (r *Runner) buildResult(start time.Time, state State) *Result {
	elapsed := time.Since(start).Seconds()
	steps := len(r.history)

	summary := ExecutionSummary{
		RunID:         r.runID,
		State:         state,
		TotalSteps:    steps,
		TotalTimeSecs: elapsed,
	}
	if steps > 0 {
		summary.AvgStepTimeSecs = elapsed / float64(steps)
	}

	final := map[string]agent.PerformanceSnapshot{}
	if steps > 0 {
		final = r.history[steps-1].Performance
	}
	for _, perf := range final {
		summary.TotalTransactions += perf.TxCount
		summary.TotalGasUsed += perf.GasUsed
	}

	recent := r.history
	if len(recent) > recentTickWindow {
		recent = recent[len(recent)-recentTickWindow:]
	}

	return &Result{
		Summary:           summary,
		Overall:           r.agg.Overall(r.history),
		FinalPerformance:  final,
		RecentTickRecords: recent,
	}
}
