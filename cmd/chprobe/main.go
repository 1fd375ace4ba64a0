package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gear6io/chprobe/client"
	"github.com/gear6io/chprobe/client/config"
	"github.com/gear6io/chprobe/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(os.Stdout, os.Stderr, os.LookupEnv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.FormatError(err))
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand(stdout, stderr io.Writer, lookup config.LookupFunc) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chprobe",
		Short: "Check connectivity to a ClickHouse server",
		Long: `chprobe pings a ClickHouse server over HTTP, runs SELECT 1 and prints the
timing and result before exiting.

The endpoint is taken from the environment:
  CLICKHOUSE_ENV       cloud (default) or local
  CLICKHOUSE_URL       explicit endpoint, overrides CLICKHOUSE_ENV
  CLICKHOUSE_PASSWORD  password for the default user

Examples:
  chprobe
  CLICKHOUSE_ENV=local chprobe
  CLICKHOUSE_URL=https://host:8443 CLICKHOUSE_PASSWORD=... chprobe`,
		Version:       client.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, opts, stdout, stderr, lookup)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML config file, overridden by CLICKHOUSE_* variables")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (console, json)")

	return cmd
}

func runProbe(cmd *cobra.Command, opts *rootOptions, stdout, stderr io.Writer, lookup config.LookupFunc) error {
	logCfg := config.DefaultConfig().Logging
	if opts.configPath != "" {
		// a broken file is reported by client.Execute with the full context
		if fileCfg, err := config.LoadFromFile(opts.configPath); err == nil {
			logCfg = fileCfg.Logging
		}
	}
	if opts.logLevel != "" {
		logCfg.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		logCfg.Format = opts.logFormat
	}

	logger, closer, err := config.SetupLogger(logCfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog(closer, logger, logCfg.FilePath)

	logger.Debug().Str("config", opts.configPath).Msg("Starting probe")

	report, err := client.Execute(cmd.Context(), opts.configPath, lookup, client.DialClickHouse(logger), stdout, logger)
	if err != nil {
		return err
	}

	logger.Debug().
		Str("run_id", report.RunID).
		Str("state", string(report.State)).
		Dur("elapsed", report.Elapsed).
		Msg("Probe finished")
	return nil
}

func closeLog(closer io.Closer, logger zerolog.Logger, path string) {
	if err := closer.Close(); err != nil {
		logger.Debug().Err(err).Str("file", path).Msg("Failed to close log file")
	}
}
