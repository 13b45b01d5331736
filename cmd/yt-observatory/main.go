// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the yt-observatory CLI. It samples
// newly published YouTube videos, or searches a keyword list, and loads the
// results into the warehouse.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/yt-observatory/internal/logging"
	"github.com/pdiddy/yt-observatory/internal/secrets"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Runtime state built once in PersistentPreRunE.
var (
	appConfig  types.ObservatoryConfig
	logger     *slog.Logger
	logCounter *logging.CountingHandler
	logCloser  io.Closer = nopCloser{}
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rootCmd is the base command for the yt-observatory CLI.
var rootCmd = &cobra.Command{
	Use:   "yt-observatory",
	Short: "Sample YouTube search results into BigQuery",
	Long: `yt-observatory collects metadata about YouTube videos for research.

The sample command polls for videos published in a rolling window and runs
until interrupted. The search command runs one query per keyword from a CSV
or YAML file and uploads the results once. Rows that cannot be inserted are
kept in newline-delimited JSON files; replay uploads them again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCloser.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./yt-observatory.yaml or ~/.config/yt-observatory/yt-observatory.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity for debugging")
	rootCmd.PersistentFlags().StringP("log", "l", "", "also write the log to this file (rotated)")
}

func initConfig() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("yt-observatory")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "yt-observatory"))
		}
	}

	viper.SetEnvPrefix("YT_OBSERVATORY")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
	for _, key := range envKeys {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setup(cmd *cobra.Command) error {
	s, err := secrets.Load(secrets.DefaultDir)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	secrets.Apply(&cfg, s)

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Verbose = true
	}
	if logFile, _ := cmd.Flags().GetString("log"); logFile != "" {
		cfg.Log.File = logFile
	}

	l, counter, closer, err := logging.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	logger, logCounter, logCloser = l, counter, closer
	slog.SetDefault(logger)

	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logger.Debug("loaded secrets", "keys", keys)
	}

	appConfig = cfg
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
