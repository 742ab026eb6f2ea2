package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/AElnamaki/simulate/internal/amm"
)

// Flat per-operation gas charges. The engine only aggregates gas, so a
// fixed schedule keeps runs reproducible.
const (
	gasSwap            = 120_000
	gasAddLiquidity    = 155_000
	gasRemoveLiquidity = 132_000
	gasApprove         = 46_000
	gasTransfer        = 51_000
)

type allowanceKey struct {
	owner   Address
	spender Address
	token   Symbol
}

// MemLedger is an in-process pool ledger enforcing the same constant-product
// math the engine mirrors in package amm. All operations serialize on one
// mutex, which models the external serialization the real chain provides.
type MemLedger struct {
	mu sync.Mutex

	tokenA Token
	tokenB Token
	pool   Address
	feeBps uint64

	reserveA uint64
	reserveB uint64
	lpSupply uint64

	balances   map[Address]map[Symbol]uint64
	lpBalances map[Address]uint64
	allowances map[allowanceKey]uint64
}

// NewMemLedger creates an empty pool for the given token pair.
func NewMemLedger(tokenA, tokenB Token, poolAddr Address, feeBps uint64) *MemLedger {
	return &MemLedger{
		tokenA:     tokenA,
		tokenB:     tokenB,
		pool:       poolAddr,
		feeBps:     feeBps,
		balances:   make(map[Address]map[Symbol]uint64),
		lpBalances: make(map[Address]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// PoolAddress returns the pool contract address, the spender that swap and
// liquidity approvals must target.
func (l *MemLedger) PoolAddress() Address { return l.pool }

// TokenA returns the pool's first token.
func (l *MemLedger) TokenA() Token { return l.tokenA }

// TokenB returns the pool's second token.
func (l *MemLedger) TokenB() Token { return l.tokenB }

// Mint credits an address with tokens, the faucet used for initial
// distribution before a run starts.
func (l *MemLedger) Mint(addr Address, token Symbol, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, token, amount)
}

func (l *MemLedger) PoolState(ctx context.Context) (PoolState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return PoolState{
		ReserveA: l.reserveA,
		ReserveB: l.reserveB,
		LPSupply: l.lpSupply,
		FeeBps:   l.feeBps,
	}, nil
}

func (l *MemLedger) GetReserves(ctx context.Context) (uint64, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserveA, l.reserveB, nil
}

func (l *MemLedger) GetAmountOut(ctx context.Context, amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	return amm.QuoteOut(amountIn, reserveIn, reserveOut, l.feeBps)
}

func (l *MemLedger) BalanceOf(ctx context.Context, addr Address, token Symbol) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr][token], nil
}

func (l *MemLedger) LPBalanceOf(ctx context.Context, addr Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lpBalances[addr], nil
}

func (l *MemLedger) Decimals(ctx context.Context, token Symbol) uint8 {
	switch token {
	case l.tokenA.Symbol:
		return l.tokenA.Decimals
	case l.tokenB.Symbol:
		return l.tokenB.Decimals
	}
	return 18
}

func (l *MemLedger) Submit(ctx context.Context, op Operation) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		receipt *Receipt
		err     error
	)
	switch op.Kind {
	case OpSwap:
		receipt, err = l.swap(op)
	case OpAddLiquidity:
		receipt, err = l.addLiquidity(op)
	case OpRemoveLiquidity:
		receipt, err = l.removeLiquidity(op)
	case OpApprove:
		receipt, err = l.approve(op)
	case OpTransfer:
		receipt, err = l.transfer(op)
	default:
		err = &SubmissionError{Op: op.Kind, Reason: "unknown operation kind"}
	}
	if err != nil {
		return nil, err
	}

	receipt.TxRef = uuid.NewString()
	receipt.Balances = l.balancesOf(op.From)
	return receipt, nil
}

func (l *MemLedger) swap(op Operation) (*Receipt, error) {
	reserveIn, reserveOut := l.reserveA, l.reserveB
	tokenOut := l.tokenB.Symbol
	switch op.TokenIn {
	case l.tokenA.Symbol:
	case l.tokenB.Symbol:
		reserveIn, reserveOut = l.reserveB, l.reserveA
		tokenOut = l.tokenA.Symbol
	default:
		return nil, &SubmissionError{Op: OpSwap, Reason: fmt.Sprintf("token %s not in pool", op.TokenIn)}
	}

	if l.balances[op.From][op.TokenIn] < op.AmountIn {
		return nil, &SubmissionError{Op: OpSwap, Reason: "insufficient balance"}
	}
	if err := l.spendAllowance(op.From, op.TokenIn, op.AmountIn); err != nil {
		return nil, err
	}

	out, err := amm.QuoteOut(op.AmountIn, reserveIn, reserveOut, l.feeBps)
	if err != nil {
		return nil, &SubmissionError{Op: OpSwap, Reason: err.Error()}
	}
	if out < op.MinAmountOut {
		return nil, &SubmissionError{Op: OpSwap, Reason: "insufficient output amount"}
	}

	l.debit(op.From, op.TokenIn, op.AmountIn)
	l.credit(op.From, tokenOut, out)
	if op.TokenIn == l.tokenA.Symbol {
		l.reserveA += op.AmountIn
		l.reserveB -= out
	} else {
		l.reserveB += op.AmountIn
		l.reserveA -= out
	}

	return &Receipt{GasUsed: gasSwap, AmountOut: out}, nil
}

func (l *MemLedger) addLiquidity(op Operation) (*Receipt, error) {
	amountA, amountB := op.AmountA, op.AmountB

	// A live pool dictates the deposit ratio; the caller's desired amounts
	// are trimmed to it.
	if l.reserveA > 0 && l.reserveB > 0 {
		optimalB := mulDiv(op.AmountA, l.reserveB, l.reserveA)
		if optimalB <= op.AmountB {
			amountB = optimalB
		} else {
			amountA = mulDiv(op.AmountB, l.reserveA, l.reserveB)
		}
	}

	if amountA < op.MinAmountA || amountB < op.MinAmountB {
		return nil, &SubmissionError{Op: OpAddLiquidity, Reason: "amounts below minimum"}
	}
	if amountA == 0 || amountB == 0 {
		return nil, &SubmissionError{Op: OpAddLiquidity, Reason: "zero liquidity amounts"}
	}
	if l.balances[op.From][l.tokenA.Symbol] < amountA || l.balances[op.From][l.tokenB.Symbol] < amountB {
		return nil, &SubmissionError{Op: OpAddLiquidity, Reason: "insufficient balance"}
	}
	if err := l.spendAllowance(op.From, l.tokenA.Symbol, amountA); err != nil {
		return nil, err
	}
	if err := l.spendAllowance(op.From, l.tokenB.Symbol, amountB); err != nil {
		return nil, err
	}

	var minted uint64
	if l.lpSupply == 0 {
		minted = isqrt(amountA, amountB)
	} else {
		minted = min(mulDiv(amountA, l.lpSupply, l.reserveA), mulDiv(amountB, l.lpSupply, l.reserveB))
	}
	if minted == 0 {
		return nil, &SubmissionError{Op: OpAddLiquidity, Reason: "insufficient liquidity minted"}
	}

	l.debit(op.From, l.tokenA.Symbol, amountA)
	l.debit(op.From, l.tokenB.Symbol, amountB)
	l.reserveA += amountA
	l.reserveB += amountB
	l.lpSupply += minted
	l.lpBalances[op.From] += minted

	return &Receipt{GasUsed: gasAddLiquidity, LPMinted: minted}, nil
}

func (l *MemLedger) removeLiquidity(op Operation) (*Receipt, error) {
	if op.LPAmount == 0 {
		return nil, &SubmissionError{Op: OpRemoveLiquidity, Reason: "zero lp amount"}
	}
	if l.lpBalances[op.From] < op.LPAmount {
		return nil, &SubmissionError{Op: OpRemoveLiquidity, Reason: "insufficient lp balance"}
	}

	outA := mulDiv(op.LPAmount, l.reserveA, l.lpSupply)
	outB := mulDiv(op.LPAmount, l.reserveB, l.lpSupply)
	if outA < op.MinAmountA || outB < op.MinAmountB {
		return nil, &SubmissionError{Op: OpRemoveLiquidity, Reason: "amounts below minimum"}
	}

	l.lpBalances[op.From] -= op.LPAmount
	l.lpSupply -= op.LPAmount
	l.reserveA -= outA
	l.reserveB -= outB
	l.credit(op.From, l.tokenA.Symbol, outA)
	l.credit(op.From, l.tokenB.Symbol, outB)

	return &Receipt{GasUsed: gasRemoveLiquidity, AmountOut: outA + outB}, nil
}

func (l *MemLedger) approve(op Operation) (*Receipt, error) {
	if op.Token != l.tokenA.Symbol && op.Token != l.tokenB.Symbol {
		return nil, &SubmissionError{Op: OpApprove, Reason: fmt.Sprintf("unknown token %s", op.Token)}
	}
	l.allowances[allowanceKey{op.From, op.Spender, op.Token}] = op.Amount
	return &Receipt{GasUsed: gasApprove}, nil
}

func (l *MemLedger) transfer(op Operation) (*Receipt, error) {
	if l.balances[op.From][op.Token] < op.Amount {
		return nil, &SubmissionError{Op: OpTransfer, Reason: "insufficient balance"}
	}
	l.debit(op.From, op.Token, op.Amount)
	l.credit(op.To, op.Token, op.Amount)
	return &Receipt{GasUsed: gasTransfer}, nil
}

func (l *MemLedger) spendAllowance(owner Address, token Symbol, amount uint64) error {
	key := allowanceKey{owner, l.pool, token}
	if l.allowances[key] < amount {
		return &SubmissionError{Op: OpSwap, Reason: fmt.Sprintf("allowance too low for %s", token)}
	}
	l.allowances[key] -= amount
	return nil
}

func (l *MemLedger) credit(addr Address, token Symbol, amount uint64) {
	if l.balances[addr] == nil {
		l.balances[addr] = make(map[Symbol]uint64)
	}
	l.balances[addr][token] += amount
}

func (l *MemLedger) debit(addr Address, token Symbol, amount uint64) {
	l.balances[addr][token] -= amount
}

func (l *MemLedger) balancesOf(addr Address) map[Symbol]uint64 {
	out := make(map[Symbol]uint64, len(l.balances[addr]))
	for sym, amt := range l.balances[addr] {
		out[sym] = amt
	}
	return out
}

// mulDiv computes a*b/c without intermediate overflow.
func mulDiv(a, b, c uint64) uint64 {
	out := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	out.Div(out, new(big.Int).SetUint64(c))
	return out.Uint64()
}

// isqrt returns floor(sqrt(a*b)), the initial LP mint.
func isqrt(a, b uint64) uint64 {
	out := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return out.Sqrt(out).Uint64()
}
