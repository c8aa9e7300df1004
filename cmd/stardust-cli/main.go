package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"stardust/internal/config"
	"stardust/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stardust-cli",
		Short: "Headless falling-sand engine",
		Long: `stardust-cli runs the particle engine without a window.

It advances scenes for a number of ticks, sweeps worker counts, prints the
shared memory layout and reads back the run journal.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newLayoutCmd(),
		newJournalCmd(),
	)
	return rootCmd
}

// loadConfig reads --config and applies key=value overrides on top.
func loadConfig(cmd *cobra.Command, overrides []string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	kv, err := config.ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(kv); err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
}

func writeJSON(w io.Writer, v any) error {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
