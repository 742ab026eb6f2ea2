package sim

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/AElnamaki/simulate/config"
	"github.com/AElnamaki/simulate/internal/agent"
	"github.com/AElnamaki/simulate/internal/ledger"
)

// Minter is the faucet side of a ledger. The in-process ledger implements
// it; a remote node funds accounts out of band and does not.
type Minter interface {
	Mint(addr ledger.Address, token ledger.Symbol, amount uint64)
}

// Environment is the ledger-side wiring agents are built against.
type Environment struct {
	Ledger ledger.Ledger
	TokenA ledger.Token
	TokenB ledger.Token
	// PoolAddr is the spender agents approve before swapping or providing
	// liquidity.
	PoolAddr ledger.Address

	Names     *ledger.NameRegistry
	Addresses *ledger.AddressRegistry
}

// BuildEnvironment constructs the ledger and token wiring from config. A
// configured ledger URL selects the remote node; otherwise the in-process
// ledger is used.
func BuildEnvironment(cfg *config.Config) Environment {
	tokenA := ledger.Token{
		Symbol:   ledger.Symbol(cfg.Pool.TokenA.Symbol),
		Address:  ledger.Address(fmt.Sprintf("0xa%039x", 1)),
		Decimals: cfg.Pool.TokenA.Decimals,
	}
	tokenB := ledger.Token{
		Symbol:   ledger.Symbol(cfg.Pool.TokenB.Symbol),
		Address:  ledger.Address(fmt.Sprintf("0xb%039x", 1)),
		Decimals: cfg.Pool.TokenB.Decimals,
	}
	poolAddr := ledger.Address(fmt.Sprintf("0xp%039x", 1))

	names := ledger.NewNameRegistry()
	names.Register(tokenA)
	names.Register(tokenB)
	addresses := ledger.NewAddressRegistry()
	addresses.Register(tokenA)
	addresses.Register(tokenB)

	env := Environment{
		TokenA:    tokenA,
		TokenB:    tokenB,
		PoolAddr:  poolAddr,
		Names:     names,
		Addresses: addresses,
	}
	if cfg.LedgerURL != "" {
		env.Ledger = ledger.NewRPCLedger(cfg.LedgerURL)
	} else {
		env.Ledger = ledger.NewMemLedger(tokenA, tokenB, poolAddr, cfg.Pool.FeeBps)
	}
	return env
}

// BuildAgents instantiates one agent per spec, in config order. Addresses
// and random seeds derive from the agent's position, so the same config and
// base seed always yield the same population.
func BuildAgents(cfg *config.Config, env Environment, logger zerolog.Logger) ([]agent.Agent, error) {
	minter, _ := env.Ledger.(Minter)

	agents := make([]agent.Agent, 0, len(cfg.Agents))
	for i, spec := range cfg.Agents {
		addr := ledger.Address(fmt.Sprintf("0x%040x", i+1))
		id := fmt.Sprintf("%s_%d", spec.Type, i)

		initial := make(map[ledger.Symbol]decimal.Decimal, len(spec.InitialBalance))
		for symName, amount := range spec.InitialBalance {
			sym := ledger.Symbol(symName)
			tok, err := env.Names.Lookup(sym)
			if err != nil {
				return nil, fmt.Errorf("%w: agent %s: %v", config.ErrInvalid, id, err)
			}
			display := decimal.NewFromFloat(amount)
			initial[sym] = display
			if minter != nil {
				raw := display.Shift(int32(tok.Decimals))
				minter.Mint(addr, sym, uint64(raw.IntPart()))
			}
		}

		base := agent.BaseConfig{
			ID:              id,
			Kind:            agent.Kind(spec.Type),
			Address:         addr,
			Ledger:          env.Ledger,
			TokenA:          env.TokenA,
			TokenB:          env.TokenB,
			Pool:            env.PoolAddr,
			Seed:            cfg.RandomSeed + int64(i),
			Logger:          logger,
			InitialBalances: initial,
		}

		var ag agent.Agent
		switch spec.Type {
		case "market_maker":
			ag = agent.NewMarketMaker(base, agent.MarketMakerConfig{
				TargetRatio:        spec.TargetRatio,
				RebalanceThreshold: spec.RebalanceThreshold,
			})
		case "random_trader":
			ag = agent.NewRandomTrader(base, spec.TradeFrequency)
		case "momentum_trader":
			ag = agent.NewMomentumTrader(base, agent.MomentumTraderConfig{
				LookbackPeriods:   spec.LookbackPeriods,
				MomentumThreshold: spec.MomentumThreshold,
				TradeFrequency:    spec.TradeFrequency,
			})
		case "arbitrage_trader":
			ag = agent.NewArbitrageTrader(base, spec.MinProfitThreshold)
		default:
			return nil, fmt.Errorf("%w: unknown agent type %q", config.ErrInvalid, spec.Type)
		}
		agents = append(agents, ag)
	}
	return agents, nil
}
