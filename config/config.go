// Package config defines the simulation configuration and its file-backed
// manager.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrInvalid marks configuration errors. They are fatal at startup, before
// any tick runs.
var ErrInvalid = errors.New("config: invalid")

// TokenConfig describes one pool token.
type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// PoolConfig describes the pool the agents trade against.
type PoolConfig struct {
	TokenA TokenConfig `json:"token_a"`
	TokenB TokenConfig `json:"token_b"`
	FeeBps uint64      `json:"fee_bps"`
}

// AgentSpec configures one agent. Strategy parameters not relevant to the
// agent's type are ignored.
type AgentSpec struct {
	Type           string             `json:"type"`
	InitialBalance map[string]float64 `json:"initial_balance"`

	TradeFrequency     float64 `json:"trade_frequency,omitempty"`
	LookbackPeriods    int     `json:"lookback_periods,omitempty"`
	MomentumThreshold  float64 `json:"momentum_threshold,omitempty"`
	MinProfitThreshold float64 `json:"min_profit_threshold,omitempty"`
	TargetRatio        float64 `json:"target_ratio,omitempty"`
	RebalanceThreshold float64 `json:"rebalance_threshold,omitempty"`
}

// Config is the full simulation configuration, persisted as JSON.
type Config struct {
	ResultsDir string `json:"results_dir"`
	DBPath     string `json:"db_path"`

	// LedgerURL points at a remote simulation node; empty selects the
	// in-process ledger.
	LedgerURL string `json:"ledger_url,omitempty"`

	MaxSteps int `json:"max_steps"`
	// StepDelay is the pause between ticks, in seconds.
	StepDelay float64 `json:"step_delay"`
	// StepTimeout bounds each agent's submissions per tick, in seconds.
	StepTimeout float64 `json:"step_timeout"`
	RandomSeed  int64   `json:"random_seed"`

	Pool   PoolConfig  `json:"pool"`
	Agents []AgentSpec `json:"agents"`
}

var agentTypes = map[string]struct{}{
	"market_maker":     {},
	"random_trader":    {},
	"momentum_trader":  {},
	"arbitrage_trader": {},
}

// DefaultConfig mirrors the configuration a fresh run file is seeded with.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the defaults rooted at dir, without
// consulting the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ResultsDir:  filepath.Join(dir, "results"),
		DBPath:      filepath.Join(dir, "results", "simulate.db"),
		MaxSteps:    50,
		StepDelay:   1.0,
		StepTimeout: 30.0,
		RandomSeed:  42,
		Pool: PoolConfig{
			TokenA: TokenConfig{Symbol: "TEST", Decimals: 6},
			TokenB: TokenConfig{Symbol: "USDC", Decimals: 6},
			FeeBps: 30,
		},
		Agents: []AgentSpec{
			{
				Type:           "market_maker",
				InitialBalance: map[string]float64{"TEST": 50000, "USDC": 50000},
			},
			{
				Type:           "random_trader",
				TradeFrequency: 0.2,
				InitialBalance: map[string]float64{"TEST": 10000, "USDC": 10000},
			},
			{
				Type:              "momentum_trader",
				LookbackPeriods:   5,
				MomentumThreshold: 0.02,
				InitialBalance:    map[string]float64{"TEST": 10000, "USDC": 10000},
			},
		},
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("SIMULATE_RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("SIMULATE_DB_PATH"); val != "" {
		c.DBPath = val
	}
	if val := os.Getenv("SIMULATE_LEDGER_URL"); val != "" {
		c.LedgerURL = val
	}
	if val := os.Getenv("SIMULATE_MAX_STEPS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxSteps = v
		}
	}
	if val := os.Getenv("SIMULATE_STEP_DELAY"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.StepDelay = v
		}
	}
	if val := os.Getenv("SIMULATE_STEP_TIMEOUT"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.StepTimeout = v
		}
	}
	if val := os.Getenv("SIMULATE_RANDOM_SEED"); val != "" {
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.RandomSeed = v
		}
	}
}

// Validate is the configuration gate: a failure here aborts the run before
// the first tick.
func (c *Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max_steps must be positive, got %d", ErrInvalid, c.MaxSteps)
	}
	if c.StepDelay < 0 {
		return fmt.Errorf("%w: step_delay must not be negative", ErrInvalid)
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("%w: step_timeout must be positive", ErrInvalid)
	}
	if c.Pool.FeeBps >= 10000 {
		return fmt.Errorf("%w: pool fee_bps %d exceeds 100%%", ErrInvalid, c.Pool.FeeBps)
	}
	if c.Pool.TokenA.Symbol == "" || c.Pool.TokenB.Symbol == "" {
		return fmt.Errorf("%w: pool tokens must both be named", ErrInvalid)
	}
	if c.Pool.TokenA.Symbol == c.Pool.TokenB.Symbol {
		return fmt.Errorf("%w: pool tokens must differ", ErrInvalid)
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("%w: at least one agent is required", ErrInvalid)
	}
	for i, spec := range c.Agents {
		if _, ok := agentTypes[spec.Type]; !ok {
			return fmt.Errorf("%w: agents[%d]: unknown type %q", ErrInvalid, i, spec.Type)
		}
		if spec.TradeFrequency < 0 || spec.TradeFrequency > 1 {
			return fmt.Errorf("%w: agents[%d]: trade_frequency out of [0,1]", ErrInvalid, i)
		}
		if spec.TargetRatio < 0 || spec.TargetRatio >= 1 {
			return fmt.Errorf("%w: agents[%d]: target_ratio out of [0,1)", ErrInvalid, i)
		}
		if spec.LookbackPeriods < 0 {
			return fmt.Errorf("%w: agents[%d]: lookback_periods must not be negative", ErrInvalid, i)
		}
		if spec.MomentumThreshold < 0 {
			return fmt.Errorf("%w: agents[%d]: momentum_threshold must not be negative", ErrInvalid, i)
		}
		if spec.MinProfitThreshold < 0 {
			return fmt.Errorf("%w: agents[%d]: min_profit_threshold must not be negative", ErrInvalid, i)
		}
		if spec.RebalanceThreshold < 0 {
			return fmt.Errorf("%w: agents[%d]: rebalance_threshold must not be negative", ErrInvalid, i)
		}
		for sym, bal := range spec.InitialBalance {
			if bal < 0 {
				return fmt.Errorf("%w: agents[%d]: negative balance for %s", ErrInvalid, i, sym)
			}
		}
	}
	return nil
}

// EnsureDirectories creates the output directories the run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ResultsDir, filepath.Dir(c.DBPath)}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
