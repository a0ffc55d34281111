// Package cmd wires the CLI. Every command is a thin wrapper over the
// operation surface in internal/ops.
package cmd

import (
	"fmt"
	"os"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/dispatch"
	"github.com/modelmux/modelmux/internal/ledger"
	"github.com/modelmux/modelmux/internal/ops"
	"github.com/modelmux/modelmux/internal/policy"
	"github.com/modelmux/modelmux/internal/provider"
	"github.com/modelmux/modelmux/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "modelmux",
	Short: "Route tasks to cost/quality tiers of a language-model backend",
	Long: `modelmux decides which model tier a task deserves.

Keyword rules send high-stakes work (architecture, security, incidents) to
the expensive tier, repeated backend errors escalate one tier up, trivially
simple tasks drop to the cheapest tier, and a monthly budget gate forces
high-cost tiers back down once spending crosses the blocking threshold.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: user config dir)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		orchestrateCmd,
		statusCmd,
		budgetCmd,
		recordCmd,
		tierCmd,
		strategyCmd,
		autoCmd,
		configShowCmd,
	)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs.
type app struct {
	Config  *config.Config
	Service *ops.Service
	Close   func()
}

// setupApp loads the config and wires the dispatcher, stores, and the
// operation surface.
func setupApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(cfg.LogLevel, debug)

	ledgerStore, err := ledger.OpenStore(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, err
	}
	led := ledger.New(ledgerStore, logger)

	sessionStore, err := session.OpenStore(cfg.Storage.SessionPath)
	if err != nil {
		ledgerStore.Close()
		return nil, err
	}
	memCfg := session.DefaultConfig()
	memCfg.Store = sessionStore
	memCfg.Logger = logger
	mem := session.NewMemory(memCfg)

	engine := policy.NewEngine(policy.Config{
		Strategy:         cfg.Strategy,
		Rules:            cfg.PolicyRules(),
		Escalation:       cfg.PolicyEscalation(),
		SimplePatterns:   cfg.SimplePatterns,
		CostOptimization: cfg.CostOptimization,
		Memory:           mem,
		Logger:           logger,
	})

	dispatcher, err := dispatch.New(dispatch.Config{
		Strategy: cfg.Strategy,
		AutoMode: cfg.AutoMode,
		Engine:   engine,
		Memory:   mem,
		Ledger:   led,
		Budget:   cfg.Budget,
		Logger:   logger,
	})
	if err != nil {
		ledgerStore.Close()
		sessionStore.Close()
		return nil, err
	}

	registry := provider.NewRegistry()

	return &app{
		Config: cfg,
		Service: ops.NewService(ops.Deps{
			Dispatcher: dispatcher,
			Ledger:     led,
			Memory:     mem,
			Config:     cfg,
			Providers:  registry,
			Logger:     logger,
		}),
		Close: func() {
			ledgerStore.Close()
			sessionStore.Close()
		},
	}, nil
}

func newLogger(level string, debug bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
