// ============================================================================
// Bulu Runtime CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command line interface for standing up and
// inspecting the Bulu concurrency runtime as a standalone process.
//
// Command structure:
//   bulu-runtime                      # Root command
//   ├── --config, -c                  # YAML config file (persistent)
//   ├── run                           # Start the runtime
//   ├── stats                         # Print the last persisted diag snapshot
//   ├── gc                            # Force a collection, report bytes reclaimed
//   └── --version                     # Display version information
//
// Adapted from the donor repository's internal/cli.BuildCLI/buildRunCommand:
// the same persistent --config flag and RunE-based subcommand wiring, with
// the donor's gRPC master/worker mode split removed (this runtime is
// single-process) and its enqueue/status commands replaced by stats/gc.
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bulu-lang/bulu-runtime/internal/diag"
	"github.com/bulu-lang/bulu-runtime/internal/metrics"
	"github.com/bulu-lang/bulu-runtime/internal/runtime"
	"github.com/bulu-lang/bulu-runtime/internal/tracelog"
)

var configFile string

// BuildCLI constructs the root command tree.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "bulu-runtime",
		Short:   "Bulu concurrency runtime: scheduler, channels, GC, and safety layer",
		Version: "0.1.0",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path (YAML)")

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildStatsCommand())
	root.AddCommand(buildGCCommand())

	return root
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the runtime and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystem(cmd.Context())
		},
	}
}

func buildStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the last persisted diagnostics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			mgr := diag.NewManager(cfg.Diag.Path)
			snap, err := mgr.Load()
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}

func buildGCCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Force a synchronous collection against a freshly constructed runtime and report bytes reclaimed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rtConfig := cfg.runtimeConfig()
			rt, err := runtime.New(rtConfig)
			if err != nil {
				return fmt.Errorf("construct runtime: %w", err)
			}
			before := rt.GC.Stats().BytesCollected
			rt.GC.Collect()
			after := rt.GC.Stats()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"bytes_reclaimed":  after.BytesCollected - before,
				"total_collections": after.TotalCollections,
				"heap_size":        after.HeapSize,
			})
		},
	}
}

func runSystem(ctx context.Context) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.Default()
	rtConfig := cfg.runtimeConfig()
	rtConfig.Log = log

	rt, err := runtime.New(rtConfig)
	if err != nil {
		return fmt.Errorf("construct runtime: %w", err)
	}

	if cfg.TraceLog.Enabled {
		tl, err := tracelog.Open(cfg.TraceLog.Path)
		if err != nil {
			return fmt.Errorf("open trace log: %w", err)
		}
		defer tl.Close()
		rt.SetTraceLog(tl)
	}

	rt.Start()
	log.Info("bulu runtime started", "workers", rtConfig.Workers)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	runDemo(rt, log, collector)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Enabled {
		bridge := metrics.NewBridge(rt, collector, time.Second)
		go bridge.Run(runCtx)
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Warn("metrics server stopped", "err", err)
			}
		}()
		log.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	if cfg.Diag.IntervalSeconds > 0 {
		mgr := diag.NewManager(cfg.Diag.Path)
		dumper := diag.NewDumper(rt, mgr, time.Duration(cfg.Diag.IntervalSeconds)*time.Second)
		go dumper.Run(runCtx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	if !rt.WaitAll(5 * time.Second) {
		log.Warn("tasks still running at shutdown deadline")
	}
	rt.Shutdown()
	return nil
}
