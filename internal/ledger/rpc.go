package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RPCLedger implements Ledger against a remote simulation node speaking a
// small JSON API. The node owns contract state; this client owns nothing but
// the request shapes.
type RPCLedger struct {
	client *resty.Client
}

// NewRPCLedger creates a client for the node at baseURL.
func NewRPCLedger(baseURL string) *RPCLedger {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Accept", "application/json")

	return &RPCLedger{client: client}
}

type rpcError struct {
	Error string `json:"error"`
}

func (l *RPCLedger) PoolState(ctx context.Context) (PoolState, error) {
	var state PoolState
	resp, err := l.client.R().
		SetContext(ctx).
		SetResult(&state).
		Get("/pool")
	if err != nil {
		return PoolState{}, fmt.Errorf("read pool state: %w", err)
	}
	if resp.IsError() {
		return PoolState{}, fmt.Errorf("read pool state: node returned %s", resp.Status())
	}
	return state, nil
}

func (l *RPCLedger) GetReserves(ctx context.Context) (uint64, uint64, error) {
	state, err := l.PoolState(ctx)
	if err != nil {
		return 0, 0, err
	}
	return state.ReserveA, state.ReserveB, nil
}

func (l *RPCLedger) GetAmountOut(ctx context.Context, amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	var out struct {
		AmountOut uint64 `json:"amount_out"`
	}
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"amount_in":   fmt.Sprintf("%d", amountIn),
			"reserve_in":  fmt.Sprintf("%d", reserveIn),
			"reserve_out": fmt.Sprintf("%d", reserveOut),
		}).
		SetResult(&out).
		Get("/quote")
	if err != nil {
		return 0, fmt.Errorf("quote: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("quote: node returned %s", resp.Status())
	}
	return out.AmountOut, nil
}

func (l *RPCLedger) Submit(ctx context.Context, op Operation) (*Receipt, error) {
	var (
		receipt Receipt
		nodeErr rpcError
	)
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(op).
		SetResult(&receipt).
		SetError(&nodeErr).
		Post("/submit")
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", op.Kind, err)
	}
	if resp.IsError() {
		reason := nodeErr.Error
		if reason == "" {
			reason = resp.Status()
		}
		return nil, &SubmissionError{Op: op.Kind, Reason: reason}
	}
	return &receipt, nil
}

func (l *RPCLedger) BalanceOf(ctx context.Context, addr Address, token Symbol) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	resp, err := l.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"address": string(addr),
			"token":   string(token),
		}).
		SetResult(&out).
		Get("/balance/{address}/{token}")
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", addr, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("balance of %s: node returned %s", addr, resp.Status())
	}
	return out.Balance, nil
}

func (l *RPCLedger) LPBalanceOf(ctx context.Context, addr Address) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	resp, err := l.client.R().
		SetContext(ctx).
		SetPathParam("address", string(addr)).
		SetResult(&out).
		Get("/lp/{address}")
	if err != nil {
		return 0, fmt.Errorf("lp balance of %s: %w", addr, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("lp balance of %s: node returned %s", addr, resp.Status())
	}
	return out.Balance, nil
}

func (l *RPCLedger) Decimals(ctx context.Context, token Symbol) uint8 {
	var out struct {
		Decimals uint8 `json:"decimals"`
	}
	resp, err := l.client.R().
		SetContext(ctx).
		SetPathParam("token", string(token)).
		SetResult(&out).
		Get("/token/{token}")
	if err != nil || resp.IsError() {
		return 18
	}
	return out.Decimals
}
