// Package cli provides the command-line interface for the harvest tool.
package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bluemountains/harvest/internal/config"
	"github.com/bluemountains/harvest/pkg/cache"
	"github.com/bluemountains/harvest/pkg/client"
	"github.com/bluemountains/harvest/pkg/logging"
	"github.com/bluemountains/harvest/pkg/metrics"
	"github.com/bluemountains/harvest/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	verbose     bool
	pretty      bool
	metricsAddr string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect and publish digital-collection metadata",
	Long: "harvest extracts items and tags from a Zotero group library, " +
		"resolves place names against an embedded gazetteer, and publishes " +
		"curated metadata to an Omeka collection site.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := logging.LogLevel(cfg.Logging.Level)
		if verbose {
			level = logging.LevelDebug
		}
		logging.Setup(logging.Config{
			Level:  level,
			Pretty: pretty || cfg.Logging.Pretty,
		})

		if metricsAddr != "" {
			serveMetrics(metricsAddr)
		}

		return nil
	},
}

// serveMetrics exposes Prometheus metrics for the duration of the command.
// Long extractions are the intended consumer; short commands just carry it.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger := logging.NewLogger("metrics")
			logger.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("harvest %s\n", client.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090)")
	rootCmd.AddCommand(versionCmd)
}

// ExecuteContext runs the root command with the given context; cancelling
// it aborts in-flight fetches and backoff waits.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openCache connects the optional Redis response cache. Returns a nil
// manager when no Redis address is configured.
func openCache(ctx context.Context) (*cache.Manager, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	return cache.NewManager(redisClient), func() { _ = redisClient.Close() }, nil
}

// limiterFor builds the per-credential admission gate for one source.
func limiterFor(apiKey, component string) *ratelimit.Limiter {
	return ratelimit.ForCredential(apiKey != "", logging.NewLogger(component))
}
