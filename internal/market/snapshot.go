// Package market assembles the immutable per-tick view of the pool that
// every agent decides against.
package market

import (
	"context"
	"fmt"

	"github.com/AElnamaki/simulate/internal/amm"
	"github.com/AElnamaki/simulate/internal/ledger"
)

// Snapshot is the market state for one tick. It is built once per tick and
// shared read-only by every agent, so sibling actions within a tick are
// never visible at the read layer.
type Snapshot struct {
	Tick  int              `json:"tick"`
	Pool  ledger.PoolState `json:"pool"`
	Price float64          `json:"price"`
}

// Provider reads pool state from the ledger and derives snapshot values.
type Provider struct {
	led ledger.Ledger
}

func NewProvider(led ledger.Ledger) *Provider {
	return &Provider{led: led}
}

// Snapshot reads the pool once and derives the tick's price. A read failure
// here loses only the current tick, never the run.
func (p *Provider) Snapshot(ctx context.Context, tick int) (*Snapshot, error) {
	state, err := p.led.PoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("market: snapshot unavailable at tick %d: %w", tick, err)
	}
	return &Snapshot{
		Tick:  tick,
		Pool:  state,
		Price: amm.CurrentPrice(state.ReserveA, state.ReserveB),
	}, nil
}
