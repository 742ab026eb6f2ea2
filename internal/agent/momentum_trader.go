package agent

import (
	"context"
	"math"

	"github.com/AElnamaki/simulate/internal/market"
)

// MomentumTraderConfig holds the strategy parameters.
type MomentumTraderConfig struct {
	// LookbackPeriods is the window momentum is measured over.
	LookbackPeriods int
	// MomentumThreshold is the minimum relative price move that triggers
	// a trade.
	MomentumThreshold float64
	// TradeFrequency is the base probability of acting without a signal.
	TradeFrequency float64
}

// MomentumTrader follows price trends: it buys the trending token when
// momentum is positive past the threshold and sells it when negative.
type MomentumTrader struct {
	*Base
	lookbackPeriods   int
	momentumThreshold float64
	tradeFrequency    float64

	// priceHistory is bounded to twice the lookback window; older samples
	// do not influence the signal.
	priceHistory []float64
}

func NewMomentumTrader(base BaseConfig, cfg MomentumTraderConfig) *MomentumTrader {
	base.Kind = KindMomentumTrader
	if cfg.LookbackPeriods == 0 {
		cfg.LookbackPeriods = 5
	}
	if cfg.MomentumThreshold == 0 {
		cfg.MomentumThreshold = 0.02
	}
	if cfg.TradeFrequency == 0 {
		cfg.TradeFrequency = 0.2
	}
	return &MomentumTrader{
		Base:              newBase(base),
		lookbackPeriods:   cfg.LookbackPeriods,
		momentumThreshold: cfg.MomentumThreshold,
		tradeFrequency:    cfg.TradeFrequency,
	}
}

// Momentum returns the relative price change across the last lookback
// samples, zero when the history is too short or the oldest sample is zero.
func (t *MomentumTrader) Momentum() float64 {
	if len(t.priceHistory) < t.lookbackPeriods {
		return 0
	}
	recent := t.priceHistory[len(t.priceHistory)-t.lookbackPeriods:]
	if recent[0] == 0 {
		return 0
	}
	return (recent[len(recent)-1] - recent[0]) / recent[0]
}

// ShouldAct appends the tick's price to the history buffer before reading
// the signal. Mutating the agent's own history here is the documented
// exception to side-effect freedom; pool state is never touched.
func (t *MomentumTrader) ShouldAct(ctx context.Context, snap *market.Snapshot) bool {
	t.priceHistory = append(t.priceHistory, snap.Price)
	if len(t.priceHistory) > t.lookbackPeriods*2 {
		t.priceHistory = t.priceHistory[len(t.priceHistory)-t.lookbackPeriods:]
	}

	if math.Abs(t.Momentum()) > t.momentumThreshold {
		return true
	}
	return t.rng.Float64() < t.tradeFrequency
}

func (t *MomentumTrader) Step(ctx context.Context, snap *market.Snapshot) *ActionReport {
	report := t.newReport()
	momentum := t.Momentum()

	switch {
	case momentum > t.momentumThreshold:
		// Price of A is rising; spend B to buy A.
		balanceB := t.balanceOf(ctx, t.tokenB.Symbol)
		if balanceB <= t.minTradeSize {
			return report
		}
		amount := uint64(float64(balanceB) * t.maxTradeRatio)
		receipt, err := t.executeSwap(ctx, snap.Tick, amount, t.tokenB.Symbol)
		if err != nil {
			report.setError(err)
			return report
		}
		report.Actions = append(report.Actions, ActionRecord{
			Name:     "momentum_buy_a",
			Kind:     TradeSwap,
			TokenIn:  t.tokenB.Symbol,
			AmountIn: amount,
			Momentum: momentum,
			TxRef:    receipt.TxRef,
		})

	case momentum < -t.momentumThreshold:
		// Price of A is falling; sell A.
		balanceA := t.balanceOf(ctx, t.tokenA.Symbol)
		if balanceA <= t.minTradeSize {
			return report
		}
		amount := uint64(float64(balanceA) * t.maxTradeRatio)
		receipt, err := t.executeSwap(ctx, snap.Tick, amount, t.tokenA.Symbol)
		if err != nil {
			report.setError(err)
			return report
		}
		report.Actions = append(report.Actions, ActionRecord{
			Name:     "momentum_sell_a",
			Kind:     TradeSwap,
			TokenIn:  t.tokenA.Symbol,
			AmountIn: amount,
			Momentum: momentum,
			TxRef:    receipt.TxRef,
		})
	}

	return report
}
