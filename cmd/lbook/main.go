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
		Use:          "lbook",
		Short:        "Liquidity book replay and reporting",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an instruction journal into applied events",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("journal", "", "input instruction journal JSONL")
	replayCmd.Flags().String("out", "./data/events.jsonl", "output applied events JSONL")
	replayCmd.Flags().Int("batch-size", 500, "events per storage batch")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().String("state-file", "./data/book_state.json", "book state file path")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("metrics-addr", "", "Prometheus listen address, empty disables")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate applied events into window metrics",
		RunE:  runReport,
	}

	reportCmd.Flags().String("in", "", "input applied events JSONL")
	reportCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	reportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	reportCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	reportCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	reportCmd.Flags().Uint64("recompute-from", 0, "recompute from sequence number")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against a saved book state",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("state-file", "./data/book_state.json", "book state file path")
	quoteCmd.Flags().String("pool", "", "pool id (0x-prefixed hash)")
	quoteCmd.Flags().String("direction", "x_for_y", "swap direction (x_for_y or y_for_x)")
	quoteCmd.Flags().String("amount-in", "", "input amount (decimal)")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
