package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"xrecap/pkg/auth"
	"xrecap/pkg/cache"
	"xrecap/pkg/config"
	"xrecap/pkg/fetcher"
	"xrecap/pkg/logger"
	"xrecap/pkg/ratelimit"
	"xrecap/pkg/socialdata"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	apiKeyFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xrecap",
	Short: "Fetch complete posting histories and compute yearly activity reports",
	Long: `xrecap walks an account's full posting history through the upstream
search API and turns it into a yearly activity report: contribution
calendar, streaks, peak hours, top hashtags and more.

Features:
  - Resumable full-history pagination with cursor and ID-boundary fallback
  - Sliding-window rate limiting tuned to the upstream budget
  - Redis-backed caching of fetched histories and computed reports
  - Secure API key storage using the system keychain
  - An HTTP API serving histories and reports`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .xrecap.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "upstream API key (overrides stored key)")

	rootCmd.SetVersionTemplate(`xrecap {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// app bundles the wired components every command needs.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	client  *socialdata.Client
	cache   *cache.Cache
	fetcher *fetcher.Fetcher
}

// buildApp loads configuration, resolves the API key and wires the client,
// cache and fetcher.
func buildApp(ctx context.Context, needKey bool) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	key := cfg.API.Key
	if apiKeyFlag != "" {
		key = apiKeyFlag
	}
	if key == "" {
		if manager, err := auth.NewManager(); err == nil {
			if resolved, err := manager.ResolveKey(""); err == nil {
				key = resolved
			}
		}
	}
	if key == "" && needKey {
		return nil, fmt.Errorf("no API key configured: run 'xrecap auth login' or set XRECAP_API_KEY")
	}
	cfg.API.Key = key

	var store cache.Store = cache.NewMemoryStore()
	if cfg.Cache.Enabled {
		redisStore, err := cache.NewRedisStore(ctx, &cfg.Cache)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, falling back to in-memory cache")
		} else {
			store = redisStore
		}
	}
	c := cache.New(store, &cfg.Cache, log)

	throttle := ratelimit.NewSlidingWindow(
		cfg.RateLimit.MaxRequests,
		cfg.RateLimit.Window,
		cfg.RateLimit.SmoothingThreshold,
	)
	client := socialdata.NewClient(cfg, throttle, log)
	f := fetcher.New(client, c, cfg.Fetch, log)

	return &app{cfg: cfg, log: log, client: client, cache: c, fetcher: f}, nil
}
