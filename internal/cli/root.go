// Package cli implements the walletbridge command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/sigweihq/walletbridge/pkg/config"
	"github.com/sigweihq/walletbridge/pkg/metrics"
	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/solanarpc"
)

// app holds the state shared by all commands for one invocation
type app struct {
	// Global flags
	configPath  string
	logLevel    string
	jsonOutput  bool
	showMetrics bool

	// Initialized in PersistentPreRunE
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	out    io.Writer
	errOut io.Writer

	// Overridable in tests
	dialer solanarpc.Dialer
}

// Execute runs the root command
func Execute() error {
	return newRootCmd(&app{out: os.Stdout, errOut: os.Stderr}).Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "walletbridge",
		Short: "Solana wallet resolution and native SOL transfers",
		Long: `walletbridge resolves Solana wallet providers (Phantom, OKX, Bitget,
Backpack), hands mobile users to wallet apps through deep links, and submits
native SOL transfers with confirmation polling.

Example:
  walletbridge balance 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  walletbridge send --keypair ~/.config/solana/id.json --wallet okx --amount 0.01
  walletbridge resolve --wallet phantom --user-agent "Mozilla/5.0 (iPhone)" --callback https://dapp.example.com/pay`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.showMetrics && a.registry != nil {
				return writeMetrics(a.errOut, a.registry)
			}
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVar(&a.showMetrics, "metrics", false, "print collected metrics to stderr on exit")

	root.AddCommand(
		newBalanceCmd(a),
		newSendCmd(a),
		newResolveCmd(a),
		newCompleteCmd(a),
		newKeygenCmd(a),
		newRandomCmd(a),
	)
	return root
}

// init loads configuration and builds the logger and metrics
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	logger, err := config.NewLogger(a.errOut, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	a.logger = logger

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

func (a *app) pool() *solanarpc.Pool {
	return solanarpc.NewPool(a.cfg.Network.Name, a.cfg.Endpoints(), solanarpc.Options{
		Attempts: a.cfg.Network.Attempts,
		Dialer:   a.dialer,
	}, a.logger)
}

// pendingStore opens the configured store. The returned func releases it.
func (a *app) pendingStore(ctx context.Context) (providers.PendingStore, func(), error) {
	if a.cfg.Pending.Store == config.PendingStoreRedis {
		store, err := providers.NewRedisPendingStore(ctx, providers.RedisPendingStoreConfig{
			Address: a.cfg.Pending.RedisAddr,
			DB:      a.cfg.Pending.RedisDB,
			TTL:     a.cfg.Pending.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	if a.cfg.Pending.Store == config.PendingStoreFile {
		store, err := providers.NewFilePendingStore(a.cfg.Pending.Dir, a.cfg.Pending.TTL)
		if err != nil {
			return nil, nil, err
		}
		if removed, err := store.Prune(); err == nil && removed > 0 {
			a.logger.Debug("pruned expired pending acquisitions", "removed", removed)
		}
		return store, func() {}, nil
	}
	return providers.NewMemoryPendingStore(a.cfg.Pending.TTL), func() {}, nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
