// Package ledger defines the boundary to the external pool contract.
//
// The simulation engine never enforces the AMM invariant itself; it reads
// authoritative state through this interface and submits state-changing
// operations to it. Two implementations ship with the engine: MemLedger, an
// in-process pool used for hermetic runs and tests, and RPCLedger, a thin
// HTTP client for a remote simulation node.
package ledger

import (
	"context"
	"fmt"
)

// Address identifies an account on the ledger.
type Address string

// Symbol is a token ticker, e.g. "TEST" or "USDC".
type Symbol string

// Token describes a tradeable asset.
type Token struct {
	Symbol   Symbol  `json:"symbol"`
	Address  Address `json:"address"`
	Decimals uint8   `json:"decimals"`
}

// PoolState is the authoritative pool snapshot read each tick.
type PoolState struct {
	ReserveA uint64 `json:"reserve_a"`
	ReserveB uint64 `json:"reserve_b"`
	LPSupply uint64 `json:"lp_supply"`
	FeeBps   uint64 `json:"fee_bps"`
}

// OpKind enumerates the state-changing operations a ledger accepts.
type OpKind string

const (
	OpSwap            OpKind = "swap"
	OpAddLiquidity    OpKind = "add_liquidity"
	OpRemoveLiquidity OpKind = "remove_liquidity"
	OpApprove         OpKind = "approve"
	OpTransfer        OpKind = "transfer"
)

// Operation is a signed-and-submitted unit of work. Fields are used
// according to Kind; unused fields stay zero.
type Operation struct {
	Kind OpKind  `json:"kind"`
	From Address `json:"from"`

	// OpSwap
	TokenIn      Symbol `json:"token_in,omitempty"`
	AmountIn     uint64 `json:"amount_in,omitempty"`
	MinAmountOut uint64 `json:"min_amount_out,omitempty"`

	// OpAddLiquidity / OpRemoveLiquidity
	AmountA    uint64 `json:"amount_a,omitempty"`
	AmountB    uint64 `json:"amount_b,omitempty"`
	MinAmountA uint64 `json:"min_amount_a,omitempty"`
	MinAmountB uint64 `json:"min_amount_b,omitempty"`
	LPAmount   uint64 `json:"lp_amount,omitempty"`

	// OpApprove / OpTransfer
	Token   Symbol  `json:"token,omitempty"`
	Spender Address `json:"spender,omitempty"`
	To      Address `json:"to,omitempty"`
	Amount  uint64  `json:"amount,omitempty"`
}

// Receipt confirms an accepted operation.
type Receipt struct {
	TxRef     string            `json:"tx_ref"`
	GasUsed   uint64            `json:"gas_used"`
	AmountOut uint64            `json:"amount_out,omitempty"`
	LPMinted  uint64            `json:"lp_minted,omitempty"`
	Balances  map[Symbol]uint64 `json:"balances,omitempty"`
}

// SubmissionError reports an operation the ledger rejected. The engine
// records it and moves on; retries are the submitter's concern, and the
// core never retries.
type SubmissionError struct {
	Op     OpKind
	Reason string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("ledger: %s rejected: %s", e.Op, e.Reason)
}

// Ledger is the contract surface the engine consumes.
type Ledger interface {
	// PoolState reads the full pool snapshot.
	PoolState(ctx context.Context) (PoolState, error)
	// GetReserves reads the two pool reserves.
	GetReserves(ctx context.Context) (uint64, uint64, error)
	// GetAmountOut quotes a swap against explicit reserves.
	GetAmountOut(ctx context.Context, amountIn, reserveIn, reserveOut uint64) (uint64, error)
	// Submit applies a state-changing operation. Rejections surface as
	// *SubmissionError.
	Submit(ctx context.Context, op Operation) (*Receipt, error)
	// BalanceOf reads a token balance in base units.
	BalanceOf(ctx context.Context, addr Address, token Symbol) (uint64, error)
	// LPBalanceOf reads an address's liquidity-pool token balance.
	LPBalanceOf(ctx context.Context, addr Address) (uint64, error)
	// Decimals reads token precision, defaulting to 18 when unavailable.
	Decimals(ctx context.Context, token Symbol) uint8
}
