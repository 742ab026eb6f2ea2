package agent

import (
	"context"
	"math"

	"github.com/AElnamaki/simulate/internal/amm"
	"github.com/AElnamaki/simulate/internal/ledger"
	"github.com/AElnamaki/simulate/internal/market"
)

// Fraction of tokens the maker is willing to lock as liquidity, and the
// share of the LP position withdrawn when a rebalance triggers.
const (
	maxLiquidityRatio  = 0.9
	rebalanceFraction  = 0.1
	idleActProbability = 0.1
)

// MarketMakerConfig holds the strategy parameters.
type MarketMakerConfig struct {
	// TargetRatio is the desired share of token A in total pool value.
	TargetRatio float64
	// RebalanceThreshold is the ratio deviation that triggers a rebalance.
	RebalanceThreshold float64
}

// MarketMaker provisions liquidity and trims its LP position when the pool
// drifts from its target ratio. The rebalance is one-sided: the withdraw
// leg runs this tick and re-addition only happens if a later tick enters
// the add-liquidity branch again.
type MarketMaker struct {
	*Base
	targetRatio        float64
	rebalanceThreshold float64

	// Reserves at the first successful liquidity add, the baseline for
	// impermanent-loss tracking.
	initialReserves *ledger.PoolState
}

func NewMarketMaker(base BaseConfig, cfg MarketMakerConfig) *MarketMaker {
	base.Kind = KindMarketMaker
	if cfg.TargetRatio == 0 {
		cfg.TargetRatio = 0.5
	}
	if cfg.RebalanceThreshold == 0 {
		cfg.RebalanceThreshold = 0.05
	}
	return &MarketMaker{
		Base:               newBase(base),
		targetRatio:        cfg.TargetRatio,
		rebalanceThreshold: cfg.RebalanceThreshold,
	}
}

// shouldRebalance reports whether the pool's token-A share has drifted past
// the threshold. Zero reserves mean there is nothing to rebalance.
func (m *MarketMaker) shouldRebalance(snap *market.Snapshot) bool {
	reserveA, reserveB := snap.Pool.ReserveA, snap.Pool.ReserveB
	if reserveA == 0 || reserveB == 0 {
		return false
	}
	currentRatio := float64(reserveA) / float64(reserveA+reserveB)
	return math.Abs(currentRatio-m.targetRatio) > m.rebalanceThreshold
}

func (m *MarketMaker) ShouldAct(ctx context.Context, snap *market.Snapshot) bool {
	balanceA := m.balanceOf(ctx, m.tokenA.Symbol)
	balanceB := m.balanceOf(ctx, m.tokenB.Symbol)

	if m.lpBalance(ctx) == 0 && (balanceA > 0 || balanceB > 0) {
		return true
	}
	if m.shouldRebalance(snap) {
		return true
	}
	// A low-probability tick keeps the maker active in quiet markets.
	return m.rng.Float64() < idleActProbability
}

func (m *MarketMaker) Step(ctx context.Context, snap *market.Snapshot) *ActionReport {
	report := m.newReport()

	balanceA := m.balanceOf(ctx, m.tokenA.Symbol)
	balanceB := m.balanceOf(ctx, m.tokenB.Symbol)
	lpBalance := m.lpBalance(ctx)

	switch {
	case lpBalance == 0 && (balanceA > 0 || balanceB > 0):
		amountA, amountB := amm.OptimalLiquidityAmounts(
			balanceA, balanceB,
			snap.Pool.ReserveA, snap.Pool.ReserveB,
			m.targetRatio, maxLiquidityRatio,
		)
		if amountA == 0 || amountB == 0 {
			return report
		}
		receipt, err := m.addLiquidity(ctx, snap.Tick, amountA, amountB)
		if err != nil {
			report.setError(err)
			return report
		}
		report.Actions = append(report.Actions, ActionRecord{
			Name:    "add_initial_liquidity",
			Kind:    TradeAddLiquidity,
			AmountA: amountA,
			AmountB: amountB,
			TxRef:   receipt.TxRef,
		})

	case m.shouldRebalance(snap):
		// First rebalancing leg only: withdraw a fixed slice of the
		// position. The matching re-add is intentionally absent.
		lpAmount := uint64(float64(lpBalance) * rebalanceFraction)
		if lpAmount == 0 {
			return report
		}
		receipt, err := m.submitOp(ctx, ledger.Operation{
			Kind:     ledger.OpRemoveLiquidity,
			LPAmount: lpAmount,
		})
		if err != nil {
			report.setError(err)
			return report
		}
		m.logTrade(TradeRecord{
			Tick:     snap.Tick,
			Kind:     TradeRemoveLiquidity,
			LPAmount: lpAmount,
			TxRef:    receipt.TxRef,
		})
		report.Actions = append(report.Actions, ActionRecord{
			Name:     "rebalance_remove",
			Kind:     TradeRemoveLiquidity,
			LPAmount: lpAmount,
			TxRef:    receipt.TxRef,
		})
	}

	return report
}

// addLiquidity approves both legs and submits the deposit with a 5%
// slippage floor, remembering the pool reserves after the first add.
func (m *MarketMaker) addLiquidity(ctx context.Context, tick int, amountA, amountB uint64) (*ledger.Receipt, error) {
	if err := m.approve(ctx, m.tokenA.Symbol, amountA); err != nil {
		return nil, err
	}
	if err := m.approve(ctx, m.tokenB.Symbol, amountB); err != nil {
		return nil, err
	}

	receipt, err := m.submitOp(ctx, ledger.Operation{
		Kind:       ledger.OpAddLiquidity,
		AmountA:    amountA,
		AmountB:    amountB,
		MinAmountA: uint64(float64(amountA) * (1 - m.slippageTolerance)),
		MinAmountB: uint64(float64(amountB) * (1 - m.slippageTolerance)),
	})
	if err != nil {
		return nil, err
	}

	m.logTrade(TradeRecord{
		Tick:    tick,
		Kind:    TradeAddLiquidity,
		AmountA: amountA,
		AmountB: amountB,
		TxRef:   receipt.TxRef,
	})

	if m.initialReserves == nil {
		if state, err := m.led.PoolState(ctx); err == nil {
			m.initialReserves = &state
		}
	}
	return receipt, nil
}

// ImpermanentLoss values the current reserve divergence against the
// reserves at the first liquidity add. Zero before any position exists.
func (m *MarketMaker) ImpermanentLoss(ctx context.Context) float64 {
	if m.initialReserves == nil {
		return 0
	}
	reserveA, reserveB, err := m.led.GetReserves(ctx)
	if err != nil {
		return 0
	}
	return amm.ImpermanentLoss(m.initialReserves.ReserveA, m.initialReserves.ReserveB, reserveA, reserveB)
}

func (m *MarketMaker) Performance(ctx context.Context) PerformanceSnapshot {
	snap := m.Base.Performance(ctx)
	il := m.ImpermanentLoss(ctx)
	snap.ImpermanentLoss = &il
	return snap
}
