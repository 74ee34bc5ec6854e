package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/patrol/internal/config"
)

type globalOptions struct {
	configFile string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "screen",
		Short: "Batch IP risk screening for product listings",
		Long: `screen classifies product listing texts for intellectual-property risk
using a pool of Gemini API keys, with rotation, backoff, and an optional
refinement pass over flagged items.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.BaseConfigFile, "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newLevelsCommand())

	return rootCmd
}

func (o *globalOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
