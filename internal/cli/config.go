// ============================================================================
// Bulu Runtime CLI - YAML Configuration
// ============================================================================
//
// Package: internal/cli
// File: config.go
// Purpose: YAML-backed configuration for the `run` command, mirroring the
// donor CLI's Config struct (worker/wal/snapshot/metrics sections) with
// runtime-domain sections (scheduler/gc/metrics/tracelog/diag).
//
// ============================================================================

package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bulu-lang/bulu-runtime/internal/runtime"
)

// Config is the complete `run` command configuration, loaded from YAML.
type Config struct {
	Scheduler struct {
		Workers        int `yaml:"workers"`
		SyscallThreads int `yaml:"syscall_threads"`
		SyscallQueue   int `yaml:"syscall_queue"`
	} `yaml:"scheduler"`

	GC struct {
		HeapSize           string  `yaml:"heap_size"`
		TargetUsage        int     `yaml:"target_usage"`
		Threads            int     `yaml:"threads"`
		YoungGenRatio      float64 `yaml:"young_gen_ratio"`
		PromotionThreshold int     `yaml:"promotion_threshold"`
		Concurrent         bool    `yaml:"concurrent"`
		Debug              bool    `yaml:"debug"`
	} `yaml:"gc"`

	Safety struct {
		Bounds bool `yaml:"bounds"`
		Null   bool `yaml:"null"`
		Stack  bool `yaml:"stack"`
	} `yaml:"safety"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	TraceLog struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"tracelog"`

	Diag struct {
		Path            string `yaml:"path"`
		IntervalSeconds int    `yaml:"interval_seconds"`
	} `yaml:"diag"`
}

// defaultConfig mirrors the donor's loadConfig fallback-to-sane-defaults
// behavior when no file is present.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Scheduler.Workers = 0 // 0 means "use runtime.DefaultConfig's CPU-derived default"
	cfg.Scheduler.SyscallThreads = 4
	cfg.Scheduler.SyscallQueue = 64
	cfg.GC.HeapSize = "1G"
	cfg.GC.TargetUsage = 80
	cfg.GC.YoungGenRatio = 0.30
	cfg.GC.PromotionThreshold = 2
	cfg.GC.Concurrent = true
	cfg.Safety.Bounds = true
	cfg.Safety.Null = true
	cfg.Safety.Stack = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090
	cfg.Diag.Path = "diag/snapshot.json"
	cfg.Diag.IntervalSeconds = 30
	return cfg
}

// loadConfig reads path if it exists, overlaying onto defaultConfig;
// a missing file is not an error, matching the donor CLI's tolerance for
// running with no config file present.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// runtimeConfig translates the YAML Config into a runtime.Config, then
// applies the LANG_GC_* environment overlay last so an environment
// variable always wins over a baked-in config file value, per spec.md
// §6's "container deployment can override the config file" requirement.
func (c *Config) runtimeConfig() runtime.Config {
	base := runtime.DefaultConfig()

	if c.GC.HeapSize != "" {
		if size, err := runtime.ParseByteSize(c.GC.HeapSize); err == nil {
			base.GC.MaxHeapSize = size
		}
	}
	if c.Scheduler.Workers > 0 {
		base.Workers = c.Scheduler.Workers
	}
	if c.Scheduler.SyscallThreads > 0 {
		base.SyscallThreads = c.Scheduler.SyscallThreads
	}
	if c.Scheduler.SyscallQueue > 0 {
		base.SyscallQueue = c.Scheduler.SyscallQueue
	}
	if c.GC.TargetUsage > 0 {
		base.GC.TargetHeapUsage = c.GC.TargetUsage
	}
	if c.GC.Threads > 0 {
		base.GC.GCThreads = c.GC.Threads
	}
	if c.GC.YoungGenRatio > 0 {
		base.GC.YoungGenRatio = c.GC.YoungGenRatio
	}
	if c.GC.PromotionThreshold > 0 {
		base.GC.PromotionThreshold = c.GC.PromotionThreshold
	}
	base.GC.ConcurrentGC = c.GC.Concurrent
	base.GC.Debug = base.GC.Debug || c.GC.Debug
	base.Safety = runtime.SafetyConfig{Bounds: c.Safety.Bounds, Null: c.Safety.Null, Stack: c.Safety.Stack}

	return runtime.ApplyEnvOverlay(base)
}
