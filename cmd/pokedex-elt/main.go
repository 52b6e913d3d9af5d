// Command pokedex-elt runs one extract-load-aggregate cycle against the
// Pokémon catalog and exits.
//
// Settings come from POKEDEX_* environment variables, optionally read from a
// .env file in the working directory:
//
//	POKEDEX_BASE_URL      catalog listing endpoint
//	POKEDEX_LIMIT         records per batch (default 10)
//	POKEDEX_DATABASE      DuckDB file (default pokedex.duckdb)
//	POKEDEX_OUTPUT_DIR    directory for batch files (default .)
//	POKEDEX_TIMEOUT       per-request timeout (default 10s)
//	POKEDEX_PREVIEW_ROWS  rows logged per batch (default 5)
//	POKEDEX_LOG_LEVEL     debug, info, warn or error
//	POKEDEX_LOG_PRETTY    console output instead of JSON lines
//	POKEDEX_REDIS_ADDR    enables the Redis page cache
//	POKEDEX_CACHE_TTL     page cache lifetime (default 1h)
//	POKEDEX_METRICS_FILE  Prometheus textfile written at exit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/pokedex-elt/internal/config"
	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/Sternrassler/pokedex-elt/pkg/metrics"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "pokedex-elt",
		Short:         "Extract, load and aggregate the next two catalog batches",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

// run executes one pipeline cycle with cfg and writes the metrics textfile,
// if configured, whether or not the cycle succeeded.
func run(ctx context.Context, cfg *config.Config) (err error) {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if cfg.MetricsFile != "" {
		defer func() {
			if merr := metrics.WriteTextfile(cfg.MetricsFile); merr != nil {
				logger.Error().Err(merr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
				if err == nil {
					err = merr
				}
			}
		}()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Run failed")
		return err
	}

	logger.Info().
		Str("first_batch", res.Batches[0].Path).
		Str("second_batch", res.Batches[1].Path).
		Str("summary", res.Summary.String()).
		Msg("Run finished")
	return nil
}
