package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AElnamaki/simulate/config"
	"github.com/AElnamaki/simulate/internal/market"
	"github.com/AElnamaki/simulate/internal/report"
	"github.com/AElnamaki/simulate/internal/sim"
	"github.com/AElnamaki/simulate/internal/storage"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Agent-based AMM market simulator",
		Long: `simulate runs a population of trading agents against a constant-product
liquidity pool in discrete time steps, recording per-step market metrics and
per-agent performance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunCommand(cmd)
		},
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")

	addRunFlags(rootCmd)

	return rootCmd
}

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run a simulation with the configured agent population.
Example: simulate run --steps=200 --delay=0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunCommand(cmd)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("steps", 0, "Number of simulation steps (overrides config)")
	cmd.Flags().Float64("delay", -1, "Delay between steps in seconds (overrides config)")
	cmd.Flags().Int64("seed", 0, "Base random seed (overrides config)")
	cmd.Flags().String("out", "", "Results directory (overrides config)")
}

// newRunsCmd creates the runs command for browsing stored history
func newRunsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse stored run history",
	}

	runsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List past runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), 0, 50)
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Printf("%s  %-12s  %d/%d steps  started %s\n",
					run.ID, run.Status, run.StepsDone, run.MaxSteps, run.CreatedAt)
			}
			return nil
		},
	})

	runsCmd.AddCommand(&cobra.Command{
		Use:   "show [RUN_ID]",
		Short: "Show the stored ticks of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			ticks, err := store.ListTicks(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			fmt.Printf("run %s (%s), %d ticks\n", run.ID, run.Status, len(ticks))
			for _, tick := range ticks {
				fmt.Printf("  tick %4d  price %.6f  volume %.0f  swaps %d  errors %d\n",
					tick.Tick, tick.Price, tick.Volume, tick.Swaps, tick.Errors)
			}
			return nil
		},
	})

	return runsCmd
}

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("configuration is valid")
			return nil
		},
	})

	return configCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("simulate v1.0.0")
			fmt.Println("Agent-based AMM market simulator")
		},
	}
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// loadConfig resolves the effective configuration: the managed config file
// (created with defaults when absent), then any flag overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.ManagerOption
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()

	if steps, _ := cmd.Flags().GetInt("steps"); steps > 0 {
		cfg.MaxSteps = steps
	}
	if delay, err := cmd.Flags().GetFloat64("delay"); err == nil && delay >= 0 && cmd.Flags().Changed("delay") {
		cfg.StepDelay = delay
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.RandomSeed = seed
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		cfg.ResultsDir = out
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// runRunCommand executes the main simulation workflow
func runRunCommand(cmd *cobra.Command) error {
	logger := newLogger(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	env := sim.BuildEnvironment(cfg)
	agents, err := sim.BuildAgents(cfg, env, logger)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()
	recorder := storage.NewRecorder(store, logger)

	runner, err := sim.NewRunner(sim.RunnerConfig{
		Agents:      agents,
		Provider:    market.NewProvider(env.Ledger),
		MaxSteps:    cfg.MaxSteps,
		StepDelay:   time.Duration(cfg.StepDelay * float64(time.Second)),
		StepTimeout: time.Duration(cfg.StepTimeout * float64(time.Second)),
		Logger:      logger,
		OnTick:      recorder.OnTick,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder.Begin(ctx, runner.RunID(), cfg, cfg.MaxSteps)
	result := runner.Run(ctx)
	result.Config = cfg
	recorder.Finish(context.Background(), runner.RunID(), runner.State())

	if path, err := report.WriteResult(cfg.ResultsDir, result); err != nil {
		logger.Error().Err(err).Msg("write result file failed")
	} else {
		logger.Info().Str("path", path).Msg("result written")
	}

	csvs := report.NewCSVManager(cfg.ResultsDir)
	if _, err := csvs.WriteStepMetrics(runner.RunID(), runner.History()); err != nil {
		logger.Error().Err(err).Msg("write step metrics csv failed")
	}
	if _, err := csvs.WriteAgentSteps(runner.RunID(), runner.History()); err != nil {
		logger.Error().Err(err).Msg("write agent step csv failed")
	}
	if _, err := csvs.WriteAgentPerformance(runner.RunID(), result.FinalPerformance); err != nil {
		logger.Error().Err(err).Msg("write agent performance csv failed")
	}

	fmt.Println(report.RenderSummary(result))
	return nil
}
