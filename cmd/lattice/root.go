package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice runs conversational learning activities",
	Long: `Lattice plays declarative YAML activities with participants in rooms,
classifying each answer with a language model and moving through the
activity's sections and steps.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the activity documents (overrides LATTICE_ACTIVITY_ROOT)")
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "Environment files to load")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides LATTICE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("store", "", "State store: memory, file, redis or sql (overrides LATTICE_STORE)")
}

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.ActivityRoot = dir
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.Store = store
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger, err := logging.FromConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
