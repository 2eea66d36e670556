package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pricer",
		Short:        "USD price resolver over V2 pair reserves",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Resolve current prices once and print them as JSON lines",
		RunE:  runPrice,
	}
	addChainFlags(priceCmd)
	root.AddCommand(priceCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-price tokens on every new block and store the quotes",
		RunE:  runWatch,
	}
	addChainFlags(watchCmd)
	addSinkFlags(watchCmd)
	watchCmd.Flags().Duration("interval", 15*time.Second, "polling interval")
	watchCmd.Flags().String("state-file", "./data/pricer_state.json", "local state file (ignored when pg-dsn is set)")
	watchCmd.Flags().String("metrics-addr", "", "prometheus listen address, empty disables")
	root.AddCommand(watchCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Price tokens at sampled historical blocks (archive RPC required)",
		RunE:  runBackfill,
	}
	addChainFlags(backfillCmd)
	addSinkFlags(backfillCmd)
	backfillCmd.Flags().Uint64("from-block", 0, "first block (inclusive)")
	backfillCmd.Flags().Uint64("to-block", 0, "last block (inclusive), 0 means latest")
	backfillCmd.Flags().Uint64("step", 1200, "blocks between samples")
	root.AddCommand(backfillCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve prices over HTTP",
		RunE:  runServe,
	}
	addChainFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("metrics-addr", "", "prometheus listen address, empty disables")
	serveCmd.Flags().String("redis-addr", "", "Redis address of stored quotes served when RPC reads fail")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("chain-id", 56, "chain id")
	cmd.Flags().String("router", "", "V2 router address (factory is read from it)")
	cmd.Flags().String("factory", "", "V2 factory address")
	cmd.Flags().String("wrapped-native", "", "wrapped native token address")
	cmd.Flags().String("stablecoin", "", "stablecoin address")
	cmd.Flags().StringSlice("token", nil, "tokens to price: addresses or \"native\" (comma-separated)")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("missing-pair-ttl", time.Minute, "how long a missing pair is cached")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addSinkFlags(cmd *cobra.Command) {
	cmd.Flags().String("out", "./data/prices.jsonl", "output JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("redis-addr", "", "Redis address for latest prices")
	cmd.Flags().Duration("redis-ttl", 5*time.Minute, "TTL of latest prices in Redis")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
