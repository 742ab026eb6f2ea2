package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNodeStub(t *testing.T, handler http.HandlerFunc) *RPCLedger {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewRPCLedger(server.URL)
}

func TestRPCPoolState(t *testing.T) {
	led := newNodeStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pool", r.URL.Path)
		json.NewEncoder(w).Encode(PoolState{ReserveA: 1000, ReserveB: 2000, LPSupply: 1414, FeeBps: 30})
	})

	state, err := led.PoolState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), state.ReserveA)
	assert.Equal(t, uint64(2000), state.ReserveB)

	a, b, err := led.GetReserves(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), a)
	assert.Equal(t, uint64(2000), b)
}

func TestRPCQuote(t *testing.T) {
	led := newNodeStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("amount_in"))
		json.NewEncoder(w).Encode(map[string]uint64{"amount_out": 450})
	})

	out, err := led.GetAmountOut(context.Background(), 500, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(450), out)
}

func TestRPCSubmit(t *testing.T) {
	t.Run("success returns the node receipt", func(t *testing.T) {
		led := newNodeStub(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/submit", r.URL.Path)
			var op Operation
			require.NoError(t, json.NewDecoder(r.Body).Decode(&op))
			assert.Equal(t, OpSwap, op.Kind)
			json.NewEncoder(w).Encode(Receipt{TxRef: "0xabc", GasUsed: 120000, AmountOut: 990})
		})

		receipt, err := led.Submit(context.Background(), Operation{Kind: OpSwap, AmountIn: 1000})
		require.NoError(t, err)
		assert.Equal(t, "0xabc", receipt.TxRef)
		assert.Equal(t, uint64(990), receipt.AmountOut)
	})

	t.Run("node rejection becomes a submission error", func(t *testing.T) {
		led := newNodeStub(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient output amount"})
		})

		_, err := led.Submit(context.Background(), Operation{Kind: OpSwap})
		var subErr *SubmissionError
		require.ErrorAs(t, err, &subErr)
		assert.Equal(t, OpSwap, subErr.Op)
		assert.Equal(t, "insufficient output amount", subErr.Reason)
	})
}

func TestRPCBalances(t *testing.T) {
	led := newNodeStub(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/balance/0xalice/TEST":
			json.NewEncoder(w).Encode(map[string]uint64{"balance": 777})
		case "/lp/0xalice":
			json.NewEncoder(w).Encode(map[string]uint64{"balance": 55})
		case "/token/TEST":
			json.NewEncoder(w).Encode(map[string]uint8{"decimals": 6})
		default:
			http.NotFound(w, r)
		}
	})

	bal, err := led.BalanceOf(context.Background(), "0xalice", "TEST")
	require.NoError(t, err)
	assert.Equal(t, uint64(777), bal)

	lp, err := led.LPBalanceOf(context.Background(), "0xalice")
	require.NoError(t, err)
	assert.Equal(t, uint64(55), lp)

	assert.Equal(t, uint8(6), led.Decimals(context.Background(), "TEST"))
	assert.Equal(t, uint8(18), led.Decimals(context.Background(), "UNKNOWN"), "falls back to the ERC-20 default")
}

func TestRPCServerErrorSurfaces(t *testing.T) {
	led := newNodeStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := led.PoolState(context.Background())
	assert.Error(t, err)
	_, err = led.GetAmountOut(context.Background(), 1, 2, 3)
	assert.Error(t, err)
	_, err = led.BalanceOf(context.Background(), "0xalice", "TEST")
	assert.Error(t, err)
}
