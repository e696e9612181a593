package main

import (
	"fmt"
	"os"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/omnihelp/switchboard/internal/cli"
	"github.com/omnihelp/switchboard/internal/logging"
	"github.com/omnihelp/switchboard/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard routes support queries to the right backend",
	Long: `Switchboard classifies customer support queries, gates on classifier
confidence, and dispatches each turn to exactly one backend: policy
retrieval, structured data, or web search. Ambiguous queries trigger a
bounded clarification loop; unrecoverable turns hand off to a human with
the full decision trail.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig resolves the config file flag and applies the debug override.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	level := cli.ParseLevel(cfg.LogLevel)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return cfg, logging.New(level), nil
}
