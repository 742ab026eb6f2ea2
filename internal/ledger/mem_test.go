package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTokenA = Token{Symbol: "TEST", Address: "0xa", Decimals: 6}
	testTokenB = Token{Symbol: "USDC", Address: "0xb", Decimals: 6}
	poolAddr   = Address("0xpool")
	alice      = Address("0xalice")
	bob        = Address("0xbob")
)

func newFundedLedger(t *testing.T) *MemLedger {
	t.Helper()
	l := NewMemLedger(testTokenA, testTokenB, poolAddr, 30)
	l.Mint(alice, testTokenA.Symbol, 1_000_000)
	l.Mint(alice, testTokenB.Symbol, 1_000_000)
	return l
}

func approve(t *testing.T, l *MemLedger, owner Address, token Symbol, amount uint64) {
	t.Helper()
	_, err := l.Submit(context.Background(), Operation{
		Kind:    OpApprove,
		From:    owner,
		Token:   token,
		Spender: poolAddr,
		Amount:  amount,
	})
	require.NoError(t, err)
}

func seedPool(t *testing.T, l *MemLedger, amountA, amountB uint64) *Receipt {
	t.Helper()
	approve(t, l, alice, testTokenA.Symbol, amountA)
	approve(t, l, alice, testTokenB.Symbol, amountB)
	receipt, err := l.Submit(context.Background(), Operation{
		Kind:    OpAddLiquidity,
		From:    alice,
		AmountA: amountA,
		AmountB: amountB,
	})
	require.NoError(t, err)
	return receipt
}

func TestMintAndBalance(t *testing.T) {
	l := newFundedLedger(t)
	bal, err := l.BalanceOf(context.Background(), alice, testTokenA.Symbol)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), bal)

	bal, err = l.BalanceOf(context.Background(), bob, testTokenA.Symbol)
	require.NoError(t, err)
	assert.Zero(t, bal, "unknown addresses read as empty")
}

func TestAddLiquidity(t *testing.T) {
	t.Run("initial mint is sqrt of product", func(t *testing.T) {
		l := newFundedLedger(t)
		receipt := seedPool(t, l, 90000, 40000)
		// sqrt(90000*40000) = 60000
		assert.Equal(t, uint64(60000), receipt.LPMinted)

		state, err := l.PoolState(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(90000), state.ReserveA)
		assert.Equal(t, uint64(40000), state.ReserveB)
		assert.Equal(t, uint64(60000), state.LPSupply)
	})

	t.Run("live pool trims to reserve ratio", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 100000, 100000)

		approve(t, l, alice, testTokenA.Symbol, 10000)
		approve(t, l, alice, testTokenB.Symbol, 50000)
		receipt, err := l.Submit(context.Background(), Operation{
			Kind:    OpAddLiquidity,
			From:    alice,
			AmountA: 10000,
			AmountB: 50000,
		})
		require.NoError(t, err)
		// Only 10000 of B matches 10000 A at the 1:1 ratio.
		assert.Equal(t, uint64(10000), receipt.LPMinted)

		a, b, err := l.GetReserves(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(110000), a)
		assert.Equal(t, uint64(110000), b)
	})

	t.Run("minimums are enforced after trimming", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 100000, 100000)

		approve(t, l, alice, testTokenA.Symbol, 10000)
		approve(t, l, alice, testTokenB.Symbol, 50000)
		_, err := l.Submit(context.Background(), Operation{
			Kind:       OpAddLiquidity,
			From:       alice,
			AmountA:    10000,
			AmountB:    50000,
			MinAmountB: 40000,
		})
		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
		assert.Equal(t, OpAddLiquidity, subErr.Op)
	})

	t.Run("zero amounts are rejected", func(t *testing.T) {
		l := newFundedLedger(t)
		_, err := l.Submit(context.Background(), Operation{
			Kind:    OpAddLiquidity,
			From:    alice,
			AmountA: 0,
			AmountB: 100,
		})
		var subErr *SubmissionError
		assert.ErrorAs(t, err, &subErr)
	})
}

func TestSwap(t *testing.T) {
	t.Run("swap moves reserves and balances", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 500000, 500000)

		approve(t, l, alice, testTokenA.Symbol, 1000)
		receipt, err := l.Submit(context.Background(), Operation{
			Kind:     OpSwap,
			From:     alice,
			TokenIn:  testTokenA.Symbol,
			AmountIn: 1000,
		})
		require.NoError(t, err)
		assert.NotZero(t, receipt.AmountOut)
		assert.NotEmpty(t, receipt.TxRef)
		assert.Equal(t, uint64(120_000), receipt.GasUsed)

		a, b, err := l.GetReserves(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(501000), a)
		assert.Equal(t, uint64(500000)-receipt.AmountOut, b)

		balB, err := l.BalanceOf(context.Background(), alice, testTokenB.Symbol)
		require.NoError(t, err)
		assert.Equal(t, uint64(500000)+receipt.AmountOut, balB)
	})

	t.Run("swap without allowance fails", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 500000, 500000)

		_, err := l.Submit(context.Background(), Operation{
			Kind:     OpSwap,
			From:     alice,
			TokenIn:  testTokenA.Symbol,
			AmountIn: 1000,
		})
		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
		assert.Contains(t, subErr.Reason, "allowance")
	})

	t.Run("min output is enforced", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 500000, 500000)

		approve(t, l, alice, testTokenA.Symbol, 1000)
		_, err := l.Submit(context.Background(), Operation{
			Kind:         OpSwap,
			From:         alice,
			TokenIn:      testTokenA.Symbol,
			AmountIn:     1000,
			MinAmountOut: 10000,
		})
		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
		assert.Contains(t, subErr.Reason, "insufficient output")
	})

	t.Run("foreign token is rejected", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 500000, 500000)

		_, err := l.Submit(context.Background(), Operation{
			Kind:     OpSwap,
			From:     alice,
			TokenIn:  "WETH",
			AmountIn: 1000,
		})
		var subErr *SubmissionError
		assert.ErrorAs(t, err, &subErr)
	})

	t.Run("cancelled context aborts before execution", func(t *testing.T) {
		l := newFundedLedger(t)
		seedPool(t, l, 500000, 500000)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := l.Submit(ctx, Operation{
			Kind:     OpSwap,
			From:     alice,
			TokenIn:  testTokenA.Symbol,
			AmountIn: 1000,
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRemoveLiquidity(t *testing.T) {
	t.Run("redeems pro rata", func(t *testing.T) {
		l := newFundedLedger(t)
		receipt := seedPool(t, l, 100000, 100000)

		out, err := l.Submit(context.Background(), Operation{
			Kind:     OpRemoveLiquidity,
			From:     alice,
			LPAmount: receipt.LPMinted / 2,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(100000), out.AmountOut, "half the pool on both sides")

		a, b, err := l.GetReserves(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(50000), a)
		assert.Equal(t, uint64(50000), b)

		lp, err := l.LPBalanceOf(context.Background(), alice)
		require.NoError(t, err)
		assert.Equal(t, receipt.LPMinted/2, lp)
	})

	t.Run("cannot burn more than held", func(t *testing.T) {
		l := newFundedLedger(t)
		receipt := seedPool(t, l, 100000, 100000)

		_, err := l.Submit(context.Background(), Operation{
			Kind:     OpRemoveLiquidity,
			From:     alice,
			LPAmount: receipt.LPMinted + 1,
		})
		var subErr *SubmissionError
		assert.ErrorAs(t, err, &subErr)
	})
}

func TestTransfer(t *testing.T) {
	l := newFundedLedger(t)
	_, err := l.Submit(context.Background(), Operation{
		Kind:   OpTransfer,
		From:   alice,
		To:     bob,
		Token:  testTokenA.Symbol,
		Amount: 2500,
	})
	require.NoError(t, err)

	bal, err := l.BalanceOf(context.Background(), bob, testTokenA.Symbol)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), bal)
}

func TestRegistries(t *testing.T) {
	names := NewNameRegistry()
	names.Register(testTokenA)

	tok, err := names.Lookup(testTokenA.Symbol)
	require.NoError(t, err)
	assert.Equal(t, testTokenA, tok)

	_, err = names.Lookup("WETH")
	assert.Error(t, err)

	addrs := NewAddressRegistry()
	addrs.Register(testTokenB)
	tok, err = addrs.Resolve(testTokenB.Address)
	require.NoError(t, err)
	assert.Equal(t, testTokenB, tok)

	_, err = addrs.Resolve("0xmissing")
	assert.Error(t, err)
}
