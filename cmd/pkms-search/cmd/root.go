// Package cmd provides the CLI commands for pkms-search.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashishacharya123/PKMS-sub000/internal/cache"
	"github.com/ashishacharya123/PKMS-sub000/internal/config"
	"github.com/ashishacharya123/PKMS-sub000/internal/logging"
	"github.com/ashishacharya123/PKMS-sub000/internal/profiling"
	"github.com/ashishacharya123/PKMS-sub000/internal/search"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
	"github.com/ashishacharya123/PKMS-sub000/internal/syncer"
	"github.com/ashishacharya123/PKMS-sub000/internal/telemetry"
	"github.com/ashishacharya123/PKMS-sub000/pkg/version"
)

var (
	flagDataDir    string
	flagDebug      bool
	loggingCleanup func()
)

// Profiling flags.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// NewRootCmd creates the root command for the pkms-search CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkms-search",
		Short: "Cross-module search over personal content",
		Long: `pkms-search indexes notes, documents, tasks, journal entries,
archive items and projects into per-type inverted indexes and answers
ranked queries across all of them.

Mutations reach the index through 'pkms-search notify'; queries run
through 'pkms-search search' and 'pkms-search suggest'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("pkms-search version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default: $HOME/.pkms-search)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newNotifyCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	var err error
	if profileCPU != "" {
		if cpuCleanup, err = profiler.StartCPU(profileCPU); err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
	}
	if profileTrace != "" {
		if traceCleanup, err = profiler.StartTrace(profileTrace); err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("start trace: %w", err)
		}
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("write memory profile: %w", err)
		}
	}
	teardownLogging()
	return nil
}

func setupLogging() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: false,
	}
	if flagDebug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging() {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig loads configuration from the working directory, with the
// --data-dir flag taking precedence over file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}
	return cfg, nil
}

// env bundles everything a command needs to serve queries or mutations.
type env struct {
	cfg     *config.Config
	set     *store.Set
	engine  *search.Engine
	sync    *syncer.Syncer
	metrics *telemetry.QueryMetrics

	redis *cache.RedisCache
}

// openEnv opens the index set and wires the engine, cache and telemetry.
// A down Redis degrades to local-only caching instead of failing.
func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	set, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, set: set}

	local, err := cache.NewLocal(cfg.Cache.LocalSize)
	if err != nil {
		_ = set.Close()
		return nil, err
	}
	var shared cache.SharedTier
	if len(cfg.Cache.RedisAddrs) > 0 {
		redis, err := cache.NewRedis(cache.RedisConfig{
			Addrs:    cfg.Cache.RedisAddrs,
			Username: cfg.Cache.RedisUsername,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			slog.Warn("redis_unavailable", slog.String("error", err.Error()))
		} else {
			e.redis = redis
			shared = redis
		}
	}
	tiered := cache.NewTiered(shared, local, cfg.Cache.TTL, slog.Default())

	metricsStore, err := telemetry.NewSQLiteMetricsStore(set.Documents().DB())
	if err != nil {
		e.close()
		return nil, err
	}
	e.metrics = telemetry.New(metricsStore)

	e.engine = search.New(set, cfg,
		search.WithCache(tiered),
		search.WithMetrics(e.metrics))
	e.sync = syncer.New(set, set.Tags())

	return e, nil
}

func (e *env) close() {
	if e.metrics != nil {
		_ = e.metrics.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	if e.set != nil {
		_ = e.set.Close()
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
