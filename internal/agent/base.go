package agent

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AElnamaki/simulate/internal/ledger"
)

// Trading defaults shared by every strategy, matching the pool's base-unit
// scale.
const (
	defaultSlippageTolerance = 0.05
	defaultMinTradeSize      = 1000
	defaultMaxTradeRatio     = 0.1
)

// BaseConfig wires a strategy to the ledger and its identity.
type BaseConfig struct {
	ID      string
	Kind    Kind
	Address ledger.Address
	Ledger  ledger.Ledger
	TokenA  ledger.Token
	TokenB  ledger.Token
	// Pool is the spender address for swap and liquidity approvals.
	Pool ledger.Address
	// Seed feeds the agent's private random source. Each agent owns its
	// own source so concurrent runs never cross-contaminate randomness.
	Seed   int64
	Logger zerolog.Logger
	// InitialBalances, in display units, anchor the PnL computation.
	InitialBalances map[ledger.Symbol]decimal.Decimal

	SlippageTolerance float64
	MinTradeSize      uint64
	MaxTradeRatio     float64
}

// Base carries the state and ledger plumbing common to all strategies:
// identity, balances, the pending-nonce counter, the append-only trade log
// and gas/tx accounting.
type Base struct {
	id   string
	kind Kind
	addr ledger.Address
	led  ledger.Ledger

	tokenA ledger.Token
	tokenB ledger.Token
	pool   ledger.Address

	rng *rand.Rand
	log zerolog.Logger

	pendingNonce    uint64
	initialBalances map[ledger.Symbol]decimal.Decimal
	tradeLog        []TradeRecord

	totalGasUsed uint64
	txCount      uint64
	successCount uint64
	failureCount uint64
	totalVolume  uint64

	slippageTolerance float64
	minTradeSize      uint64
	maxTradeRatio     float64
}

func newBase(cfg BaseConfig) *Base {
	if cfg.SlippageTolerance == 0 {
		cfg.SlippageTolerance = defaultSlippageTolerance
	}
	if cfg.MinTradeSize == 0 {
		cfg.MinTradeSize = defaultMinTradeSize
	}
	if cfg.MaxTradeRatio == 0 {
		cfg.MaxTradeRatio = defaultMaxTradeRatio
	}
	initial := cfg.InitialBalances
	if initial == nil {
		initial = make(map[ledger.Symbol]decimal.Decimal)
	}

	return &Base{
		id:                cfg.ID,
		kind:              cfg.Kind,
		addr:              cfg.Address,
		led:               cfg.Ledger,
		tokenA:            cfg.TokenA,
		tokenB:            cfg.TokenB,
		pool:              cfg.Pool,
		rng:               rand.New(rand.NewSource(cfg.Seed)),
		log:               cfg.Logger.With().Str("agent", cfg.ID).Logger(),
		initialBalances:   initial,
		slippageTolerance: cfg.SlippageTolerance,
		minTradeSize:      cfg.MinTradeSize,
		maxTradeRatio:     cfg.MaxTradeRatio,
	}
}

func (b *Base) ID() string              { return b.id }
func (b *Base) Kind() Kind              { return b.kind }
func (b *Base) Address() ledger.Address { return b.addr }

func (b *Base) newReport() *ActionReport {
	return &ActionReport{
		AgentID:   b.id,
		AgentType: b.kind,
		Actions:   []ActionRecord{},
	}
}

// balanceOf reads a token balance in base units, zero on failure.
func (b *Base) balanceOf(ctx context.Context, token ledger.Symbol) uint64 {
	bal, err := b.led.BalanceOf(ctx, b.addr, token)
	if err != nil {
		b.log.Error().Err(err).Str("token", string(token)).Msg("balance read failed")
		return 0
	}
	return bal
}

func (b *Base) lpBalance(ctx context.Context) uint64 {
	bal, err := b.led.LPBalanceOf(ctx, b.addr)
	if err != nil {
		b.log.Error().Err(err).Msg("lp balance read failed")
		return 0
	}
	return bal
}

// submitOp pushes one operation through the ledger and keeps the nonce,
// gas and tx counters honest on both outcomes.
func (b *Base) submitOp(ctx context.Context, op ledger.Operation) (*ledger.Receipt, error) {
	op.From = b.addr
	receipt, err := b.led.Submit(ctx, op)
	if err != nil {
		b.failureCount++
		return nil, err
	}
	b.pendingNonce++
	b.txCount++
	b.successCount++
	b.totalGasUsed += receipt.GasUsed
	return receipt, nil
}

func (b *Base) approve(ctx context.Context, token ledger.Symbol, amount uint64) error {
	_, err := b.submitOp(ctx, ledger.Operation{
		Kind:    ledger.OpApprove,
		Token:   token,
		Spender: b.pool,
		Amount:  amount,
	})
	return err
}

// executeSwap quotes, approves and submits a swap, logging the trade on
// success. The minimum output applies the configured slippage tolerance to
// the quoted amount.
func (b *Base) executeSwap(ctx context.Context, tick int, amountIn uint64, tokenIn ledger.Symbol) (*ledger.Receipt, error) {
	reserveA, reserveB, err := b.led.GetReserves(ctx)
	if err != nil {
		return nil, fmt.Errorf("read reserves: %w", err)
	}

	reserveIn, reserveOut := reserveA, reserveB
	tokenOut := b.tokenB.Symbol
	if tokenIn == b.tokenB.Symbol {
		reserveIn, reserveOut = reserveB, reserveA
		tokenOut = b.tokenA.Symbol
	}

	expected, err := b.led.GetAmountOut(ctx, amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, fmt.Errorf("quote swap: %w", err)
	}
	minOut := uint64(float64(expected) * (1 - b.slippageTolerance))

	if err := b.approve(ctx, tokenIn, amountIn); err != nil {
		return nil, err
	}

	receipt, err := b.submitOp(ctx, ledger.Operation{
		Kind:         ledger.OpSwap,
		TokenIn:      tokenIn,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	})
	if err != nil {
		return nil, err
	}

	b.totalVolume += amountIn
	b.logTrade(TradeRecord{
		Tick:     tick,
		Kind:     TradeSwap,
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		AmountIn: amountIn,
		TxRef:    receipt.TxRef,
	})
	return receipt, nil
}

func (b *Base) logTrade(rec TradeRecord) {
	b.tradeLog = append(b.tradeLog, rec)
	b.log.Info().
		Str("kind", string(rec.Kind)).
		Int("tick", rec.Tick).
		Str("tx", rec.TxRef).
		Msg("trade executed")
}

// displayBalance converts base units to display units using the token's
// ledger decimals.
func (b *Base) displayBalance(ctx context.Context, token ledger.Symbol, raw uint64) decimal.Decimal {
	decimals := b.led.Decimals(ctx, token)
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}

func (b *Base) allBalances(ctx context.Context) map[ledger.Symbol]decimal.Decimal {
	out := make(map[ledger.Symbol]decimal.Decimal, 2)
	for _, token := range []ledger.Token{b.tokenA, b.tokenB} {
		raw := b.balanceOf(ctx, token.Symbol)
		out[token.Symbol] = b.displayBalance(ctx, token.Symbol, raw)
	}
	return out
}

// Performance recomputes the agent snapshot. PnL sums per-token balance
// drift against the initial distribution, a deliberately simplified
// unit-value model rather than a USD mark-to-market.
func (b *Base) Performance(ctx context.Context) PerformanceSnapshot {
	balances := b.allBalances(ctx)

	pnl := decimal.Zero
	for sym, initial := range b.initialBalances {
		current, ok := balances[sym]
		if !ok {
			current = decimal.Zero
		}
		pnl = pnl.Add(current.Sub(initial))
	}

	return PerformanceSnapshot{
		AgentID:    b.id,
		AgentType:  b.kind,
		PnL:        pnl,
		GasUsed:    b.totalGasUsed,
		TxCount:    b.txCount,
		TradeCount: len(b.tradeLog),
		Balances:   balances,
	}
}

// TradeLog returns the append-only audit trail.
func (b *Base) TradeLog() []TradeRecord { return b.tradeLog }
