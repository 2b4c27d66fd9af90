package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meow-stack/chainplan/internal/config"
	"github.com/meow-stack/chainplan/internal/flags"
	"github.com/meow-stack/chainplan/internal/logging"
	"github.com/meow-stack/chainplan/internal/persist"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/store"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose bool
	workDir string
)

var rootCmd = &cobra.Command{
	Use:   "chainplan",
	Short: "Track multi-step transaction plans",
	Long: `chainplan follows chained-action plans executed by the routing backend.

A plan is an ordered list of steps (approvals, swaps, bridges, wraps) whose
progress the backend reports. chainplan normalizes that progress, keeps
plans fresh in the background and cancels steps that are still in flight.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("chainplan {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}

// app bundles everything a command needs.
type app struct {
	dir       string
	cfg       *config.Config
	logger    *slog.Logger
	client    *remote.Client
	store     *store.Store
	persister persist.Persister
	flags     *flags.Static

	closers []io.Closer
}

// newApp loads config, logging and the persisted store for the current
// working directory.
func newApp(ctx context.Context) (*app, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser, err := logging.NewFromConfig(cfg, dir)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	a := &app{
		dir:    dir,
		cfg:    cfg,
		logger: logger,
		client: remote.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger),
		store:  store.New(logger),
		flags:  flags.NewReady(cfg.Flags),
	}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}

	p, err := persist.Open(cfg, dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.persister = p
	a.closers = append(a.closers, p)

	if err := persist.LoadInto(ctx, p, a.store); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// save persists the store. Failures are logged, not returned: the backend
// stays authoritative and the next run re-fetches.
func (a *app) save(ctx context.Context) {
	if err := a.persister.Save(ctx, a.store.Snapshot()); err != nil {
		a.logger.Error("failed to persist plan state", "error", err)
	}
}

// Close releases the persister and log file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}
