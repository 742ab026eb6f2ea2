package agent

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AElnamaki/simulate/internal/ledger"
	"github.com/AElnamaki/simulate/internal/market"
)

var (
	tokenA = ledger.Token{Symbol: "TEST", Address: "0xa", Decimals: 6}
	tokenB = ledger.Token{Symbol: "USDC", Address: "0xb", Decimals: 6}
)

// testEnv bundles a funded in-process ledger with a seeded pool. The pool
// liquidity belongs to a dedicated LP address so agent LP balances start
// at zero.
type testEnv struct {
	led  *ledger.MemLedger
	pool ledger.Address
}

func newTestEnv(t *testing.T, reserveA, reserveB uint64) *testEnv {
	t.Helper()

	poolAddr := ledger.Address("0xpool")
	led := ledger.NewMemLedger(tokenA, tokenB, poolAddr, 30)

	if reserveA > 0 && reserveB > 0 {
		lp := ledger.Address("0xlp")
		led.Mint(lp, tokenA.Symbol, reserveA)
		led.Mint(lp, tokenB.Symbol, reserveB)
		for _, tok := range []ledger.Token{tokenA, tokenB} {
			_, err := led.Submit(context.Background(), ledger.Operation{
				Kind:    ledger.OpApprove,
				From:    lp,
				Token:   tok.Symbol,
				Spender: poolAddr,
				Amount:  reserveA + reserveB,
			})
			require.NoError(t, err)
		}
		_, err := led.Submit(context.Background(), ledger.Operation{
			Kind:    ledger.OpAddLiquidity,
			From:    lp,
			AmountA: reserveA,
			AmountB: reserveB,
		})
		require.NoError(t, err)
	}

	return &testEnv{led: led, pool: poolAddr}
}

func (e *testEnv) baseConfig(t *testing.T, id string, seed int64, balanceA, balanceB uint64) BaseConfig {
	t.Helper()

	addr := ledger.Address("0x" + id)
	e.led.Mint(addr, tokenA.Symbol, balanceA)
	e.led.Mint(addr, tokenB.Symbol, balanceB)

	return BaseConfig{
		ID:      id,
		Address: addr,
		Ledger:  e.led,
		TokenA:  tokenA,
		TokenB:  tokenB,
		Pool:    e.pool,
		Seed:    seed,
		Logger:  zerolog.Nop(),
		InitialBalances: map[ledger.Symbol]decimal.Decimal{
			tokenA.Symbol: decimal.NewFromInt(int64(balanceA)).Shift(-int32(tokenA.Decimals)),
			tokenB.Symbol: decimal.NewFromInt(int64(balanceB)).Shift(-int32(tokenB.Decimals)),
		},
	}
}

func (e *testEnv) snapshot(t *testing.T, tick int) *market.Snapshot {
	t.Helper()
	snap, err := market.NewProvider(e.led).Snapshot(context.Background(), tick)
	require.NoError(t, err)
	return snap
}
