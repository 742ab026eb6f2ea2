// Package agent implements the trading agents that act against the pool.
//
// Strategies form a closed variant set dispatched through the Agent
// interface: market maker, random trader, momentum trader and arbitrage
// trader. New strategies extend the set; there is no open-ended subclassing.
package agent

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/AElnamaki/simulate/internal/ledger"
	"github.com/AElnamaki/simulate/internal/market"
)

// Kind names a strategy variant. The strings double as the agent type
// labels in reports and metrics.
type Kind string

const (
	KindMarketMaker     Kind = "market_maker"
	KindRandomTrader    Kind = "random_trader"
	KindMomentumTrader  Kind = "momentum_trader"
	KindArbitrageTrader Kind = "arbitrage_trader"
)

// Kinds lists every known strategy variant.
func Kinds() []Kind {
	return []Kind{KindMarketMaker, KindRandomTrader, KindMomentumTrader, KindArbitrageTrader}
}

// TradeKind classifies entries in an agent's trade log.
type TradeKind string

const (
	TradeSwap            TradeKind = "SWAP"
	TradeAddLiquidity    TradeKind = "ADD_LIQUIDITY"
	TradeRemoveLiquidity TradeKind = "REMOVE_LIQUIDITY"
)

// TradeRecord is one append-only audit-trail entry.
type TradeRecord struct {
	Tick     int           `json:"tick"`
	Kind     TradeKind     `json:"kind"`
	TokenIn  ledger.Symbol `json:"token_in,omitempty"`
	TokenOut ledger.Symbol `json:"token_out,omitempty"`
	AmountIn uint64        `json:"amount_in,omitempty"`
	AmountA  uint64        `json:"amount_a,omitempty"`
	AmountB  uint64        `json:"amount_b,omitempty"`
	LPAmount uint64        `json:"lp_amount,omitempty"`
	TxRef    string        `json:"tx_ref"`
}

// ActionRecord describes one action taken during a step.
type ActionRecord struct {
	Name           string        `json:"action"`
	Kind           TradeKind     `json:"kind,omitempty"`
	TokenIn        ledger.Symbol `json:"token_in,omitempty"`
	AmountIn       uint64        `json:"amount_in,omitempty"`
	AmountA        uint64        `json:"amount_a,omitempty"`
	AmountB        uint64        `json:"amount_b,omitempty"`
	LPAmount       uint64        `json:"lp_amount,omitempty"`
	Momentum       float64       `json:"momentum,omitempty"`
	ExpectedProfit uint64        `json:"expected_profit,omitempty"`
	ProfitPct      float64       `json:"profit_pct,omitempty"`
	TxRef          string        `json:"tx_ref,omitempty"`
}

// ActionReport is the per-agent, per-tick result the scheduler archives.
// Business-logic no-ops (nothing tradeable, below minimum size) leave
// Actions empty; only unexpected failures populate Err.
type ActionReport struct {
	AgentID   string         `json:"agent_id"`
	AgentType Kind           `json:"agent_type"`
	Actions   []ActionRecord `json:"actions_taken"`
	Err       string         `json:"error,omitempty"`
}

func (r *ActionReport) setError(err error) {
	if err != nil {
		r.Err = err.Error()
	}
}

// PerformanceSnapshot is recomputed from scratch on every request; nothing
// is diffed incrementally, so a missed update can never drift the numbers.
type PerformanceSnapshot struct {
	AgentID         string                            `json:"agent_id"`
	AgentType       Kind                              `json:"agent_type"`
	PnL             decimal.Decimal                   `json:"pnl"`
	GasUsed         uint64                            `json:"gas_used"`
	TxCount         uint64                            `json:"tx_count"`
	TradeCount      int                               `json:"trade_count"`
	Balances        map[ledger.Symbol]decimal.Decimal `json:"balances"`
	ImpermanentLoss *float64                          `json:"impermanent_loss,omitempty"`
}

// Agent is the capability surface the scheduler drives.
type Agent interface {
	ID() string
	Kind() Kind
	Address() ledger.Address

	// ShouldAct decides whether the agent wants this tick. It must not
	// touch pool state. The momentum trader appends to its own price
	// history here, the one documented exception to side-effect freedom.
	ShouldAct(ctx context.Context, snap *market.Snapshot) bool

	// Step performs at most one strategy decision. It never returns a nil
	// report and never panics across the boundary: failures land in the
	// report's Err field.
	Step(ctx context.Context, snap *market.Snapshot) *ActionReport

	// Performance recomputes the agent's performance snapshot.
	Performance(ctx context.Context) PerformanceSnapshot
}
