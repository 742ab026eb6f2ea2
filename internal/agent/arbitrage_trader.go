package agent

import (
	"context"

	"github.com/AElnamaki/simulate/internal/market"
)

// Fraction of the token A balance used to probe a round trip.
const arbProbeFraction = 0.1

// ArbitrageTrader probes a simulated A→B→A round trip through the pool and
// acts when the round trip clears its profit threshold.
//
// Known limitation, preserved deliberately: Step executes only the first
// leg of a detected round trip. The position stays unhedged until a later
// tick re-detects an opportunity; do not "fix" this into an atomic two-leg
// trade.
type ArbitrageTrader struct {
	*Base
	minProfitThreshold float64
}

func NewArbitrageTrader(base BaseConfig, minProfitThreshold float64) *ArbitrageTrader {
	base.Kind = KindArbitrageTrader
	if minProfitThreshold == 0 {
		minProfitThreshold = 0.01
	}
	return &ArbitrageTrader{
		Base:               newBase(base),
		minProfitThreshold: minProfitThreshold,
	}
}

type arbOpportunity struct {
	amount         uint64
	expectedProfit uint64
	profitPct      float64
}

// findOpportunity quotes both legs of the round trip against the tick's
// reserves without touching pool state.
func (t *ArbitrageTrader) findOpportunity(ctx context.Context, snap *market.Snapshot) *arbOpportunity {
	balanceA := t.balanceOf(ctx, t.tokenA.Symbol)
	if balanceA <= t.minTradeSize {
		return nil
	}

	testAmount := uint64(float64(balanceA) * arbProbeFraction)
	if testAmount == 0 {
		return nil
	}

	reserveA, reserveB := snap.Pool.ReserveA, snap.Pool.ReserveB

	bReceived, err := t.led.GetAmountOut(ctx, testAmount, reserveA, reserveB)
	if err != nil || bReceived == 0 {
		return nil
	}
	aReceived, err := t.led.GetAmountOut(ctx, bReceived, reserveB, reserveA)
	if err != nil || aReceived <= testAmount {
		return nil
	}

	profit := aReceived - testAmount
	profitPct := float64(profit) / float64(testAmount)
	if profitPct <= t.minProfitThreshold {
		return nil
	}
	return &arbOpportunity{
		amount:         testAmount,
		expectedProfit: profit,
		profitPct:      profitPct,
	}
}

func (t *ArbitrageTrader) ShouldAct(ctx context.Context, snap *market.Snapshot) bool {
	return t.findOpportunity(ctx, snap) != nil
}

func (t *ArbitrageTrader) Step(ctx context.Context, snap *market.Snapshot) *ActionReport {
	report := t.newReport()

	opp := t.findOpportunity(ctx, snap)
	if opp == nil {
		return report
	}

	// First leg only; see the type comment.
	receipt, err := t.executeSwap(ctx, snap.Tick, opp.amount, t.tokenA.Symbol)
	if err != nil {
		report.setError(err)
		return report
	}

	report.Actions = append(report.Actions, ActionRecord{
		Name:           "arbitrage_leg_1",
		Kind:           TradeSwap,
		TokenIn:        t.tokenA.Symbol,
		AmountIn:       opp.amount,
		ExpectedProfit: opp.expectedProfit,
		ProfitPct:      opp.profitPct,
		TxRef:          receipt.TxRef,
	})
	return report
}
