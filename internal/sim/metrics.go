package sim

import (
	"math"

	"github.com/AElnamaki/simulate/internal/agent"
	"github.com/AElnamaki/simulate/internal/market"
)

// StepMetrics summarizes one tick.
type StepMetrics struct {
	Tick             int     `json:"tick"`
	Swaps            int     `json:"swaps"`
	LiquidityAdds    int     `json:"liquidity_adds"`
	LiquidityRemoves int     `json:"liquidity_removes"`
	Errors           int     `json:"errors"`
	Volume           uint64  `json:"volume"`
	Price            float64 `json:"price"`
	ReserveRatio     float64 `json:"reserve_ratio"`
}

// OverallMetrics summarizes a whole run.
type OverallMetrics struct {
	// SimulationSteps equals the number of tick records supplied; tests
	// use it as a consistency check.
	SimulationSteps int `json:"simulation_steps"`

	PriceMin    float64 `json:"price_min"`
	PriceMax    float64 `json:"price_max"`
	PriceMean   float64 `json:"price_mean"`
	PriceStdDev float64 `json:"price_stddev"`
	FinalPrice  float64 `json:"final_price"`

	CumulativeVolume uint64 `json:"cumulative_volume"`
	TotalSwaps       int    `json:"total_swaps"`
	TotalAdds        int    `json:"total_liquidity_adds"`
	TotalRemoves     int    `json:"total_liquidity_removes"`
	TotalErrors      int    `json:"total_errors"`

	// ActionsByStrategy counts actions per strategy; TradeFrequency is
	// actions per tick per agent of that strategy.
	ActionsByStrategy map[agent.Kind]int     `json:"actions_by_strategy"`
	TradeFrequency    map[agent.Kind]float64 `json:"trade_frequency_by_strategy"`
}

// Aggregator derives step- and run-level statistics from action reports and
// snapshots. It holds no state of its own; both methods are pure over their
// inputs plus the fixed strategy census handed in at construction.
type Aggregator struct {
	// agentsByKind is the registered population per strategy, the
	// denominator for trade frequencies.
	agentsByKind map[agent.Kind]int
}

func NewAggregator(agents []agent.Agent) *Aggregator {
	census := make(map[agent.Kind]int)
	for _, a := range agents {
		census[a.Kind()]++
	}
	return &Aggregator{agentsByKind: census}
}

// Step computes the metrics for one tick from the reports of the agents
// that acted.
func (g *Aggregator) Step(tick int, reports []*agent.ActionReport, snap *market.Snapshot) StepMetrics {
	m := StepMetrics{Tick: tick}

	for _, report := range reports {
		if report.Err != "" {
			m.Errors++
		}
		for _, action := range report.Actions {
			switch action.Kind {
			case agent.TradeSwap:
				m.Swaps++
				m.Volume += action.AmountIn
			case agent.TradeAddLiquidity:
				m.LiquidityAdds++
			case agent.TradeRemoveLiquidity:
				m.LiquidityRemoves++
			}
		}
	}

	if snap != nil {
		m.Price = snap.Price
		total := snap.Pool.ReserveA + snap.Pool.ReserveB
		if total > 0 {
			m.ReserveRatio = float64(snap.Pool.ReserveA) / float64(total)
		}
	}
	return m
}

// Overall folds every tick record into run-level statistics.
func (g *Aggregator) Overall(records []TickRecord) OverallMetrics {
	out := OverallMetrics{
		SimulationSteps:   len(records),
		ActionsByStrategy: make(map[agent.Kind]int),
		TradeFrequency:    make(map[agent.Kind]float64),
	}

	var prices []float64
	for _, rec := range records {
		if rec.Snapshot != nil {
			prices = append(prices, rec.Snapshot.Price)
		}
		out.CumulativeVolume += rec.Metrics.Volume
		out.TotalSwaps += rec.Metrics.Swaps
		out.TotalAdds += rec.Metrics.LiquidityAdds
		out.TotalRemoves += rec.Metrics.LiquidityRemoves
		out.TotalErrors += rec.Metrics.Errors

		for _, report := range rec.Reports {
			out.ActionsByStrategy[report.AgentType] += len(report.Actions)
		}
	}

	if len(prices) > 0 {
		out.PriceMin, out.PriceMax = prices[0], prices[0]
		var sum float64
		for _, p := range prices {
			out.PriceMin = math.Min(out.PriceMin, p)
			out.PriceMax = math.Max(out.PriceMax, p)
			sum += p
		}
		out.PriceMean = sum / float64(len(prices))

		var variance float64
		for _, p := range prices {
			d := p - out.PriceMean
			variance += d * d
		}
		out.PriceStdDev = math.Sqrt(variance / float64(len(prices)))
		out.FinalPrice = prices[len(prices)-1]
	}

	if len(records) > 0 {
		for kind, actions := range out.ActionsByStrategy {
			population := g.agentsByKind[kind]
			if population == 0 {
				continue
			}
			out.TradeFrequency[kind] = float64(actions) / (float64(len(records)) * float64(population))
		}
	}
	return out
}
