package agent

import (
	"context"

	"github.com/AElnamaki/simulate/internal/ledger"
	"github.com/AElnamaki/simulate/internal/market"
)

// RandomTrader swaps a random amount of a random tradeable token at a
// configurable per-tick probability. It exists to generate volume and
// background noise for the other strategies.
type RandomTrader struct {
	*Base
	tradeFrequency float64
}

func NewRandomTrader(base BaseConfig, tradeFrequency float64) *RandomTrader {
	base.Kind = KindRandomTrader
	if tradeFrequency == 0 {
		tradeFrequency = 0.1
	}
	return &RandomTrader{
		Base:           newBase(base),
		tradeFrequency: tradeFrequency,
	}
}

func (t *RandomTrader) ShouldAct(ctx context.Context, snap *market.Snapshot) bool {
	return t.rng.Float64() < t.tradeFrequency
}

func (t *RandomTrader) Step(ctx context.Context, snap *market.Snapshot) *ActionReport {
	report := t.newReport()

	type candidate struct {
		token   ledger.Symbol
		balance uint64
	}
	var tradeable []candidate
	if bal := t.balanceOf(ctx, t.tokenA.Symbol); bal > t.minTradeSize {
		tradeable = append(tradeable, candidate{t.tokenA.Symbol, bal})
	}
	if bal := t.balanceOf(ctx, t.tokenB.Symbol); bal > t.minTradeSize {
		tradeable = append(tradeable, candidate{t.tokenB.Symbol, bal})
	}
	if len(tradeable) == 0 {
		return report
	}

	pick := tradeable[t.rng.Intn(len(tradeable))]
	maxAmount := uint64(float64(pick.balance) * t.maxTradeRatio)
	if maxAmount < t.minTradeSize {
		// Balance clears the floor but the per-trade cap does not; a
		// no-op, not an error.
		return report
	}
	amount := t.minTradeSize + uint64(t.rng.Int63n(int64(maxAmount-t.minTradeSize+1)))

	receipt, err := t.executeSwap(ctx, snap.Tick, amount, pick.token)
	if err != nil {
		report.setError(err)
		return report
	}

	report.Actions = append(report.Actions, ActionRecord{
		Name:     "random_swap",
		Kind:     TradeSwap,
		TokenIn:  pick.token,
		AmountIn: amount,
		TxRef:    receipt.TxRef,
	})
	return report
}
