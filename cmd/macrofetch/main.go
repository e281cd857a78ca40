// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the macrofetch CLI.
//
// macrofetch pulls tabular datasets out of statistical data sources (study
// catalogs, public-data APIs, dataverse repositories, per-flow CSV exports)
// and writes them as CSV files or SQLite tables. Each source is a
// subcommand: catalog, dataset, dataverse, flows.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidrpo/macrofetch/internal/secrets"
	"github.com/davidrpo/macrofetch/internal/sink"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "macrofetch/0.1"
)

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is the process-wide structured logger, writing to stderr.
var logger zerolog.Logger

// secretDefault returns fallback when set, else the named secret, else "".
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

var rootCmd = &cobra.Command{
	Use:   "macrofetch",
	Short: "Extract tabular datasets from statistical data sources",
	Long: `macrofetch turns heterogeneous statistical sources into clean tables. It
retries and paginates API requests, flattens nested records, coerces column
types, filters and deduplicates rows, and pivots long data into wide views.

Each source is a subcommand: catalog (microdata study catalogs), dataset
(public-data record APIs), dataverse (published research datasets by DOI),
and flows (local per-flow CSV consolidation). Results go to CSV files, a
SQLite database, or both.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			Level(parsed).
			With().Timestamp().Logger()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./macrofetch.yaml or ~/.config/macrofetch/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace|debug|info|warn|error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("macrofetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "macrofetch"))
		}
	}

	viper.SetEnvPrefix("MACROFETCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// flagOrConfig resolves a string setting: explicit flag, then config file /
// environment, then the built-in default.
func flagOrConfig(cmd *cobra.Command, flag, configKey, fallback string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	if viper.IsSet(configKey) {
		return viper.GetString(configKey)
	}
	v, _ := cmd.Flags().GetString(flag)
	if v != "" {
		return v
	}
	return fallback
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func retryConfig() types.RetryConfig {
	return types.RetryConfig{} // zero values take the package defaults
}

// namedTable pairs a result table with its output name.
type namedTable struct {
	name  string
	table *types.Table
}

// addOutputFlags registers the shared output destination flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("out-dir", "", "directory for CSV output (one file per table)")
	cmd.Flags().String("sqlite", "", "SQLite database path (one table per result)")
}

// writeOutputs writes every table to the destinations selected by the
// command's output flags. With neither destination set, row counts still go
// to the log so a dry run shows what it produced.
func writeOutputs(ctx context.Context, cmd *cobra.Command, tables []namedTable) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	dbPath, _ := cmd.Flags().GetString("sqlite")

	for _, nt := range tables {
		logger.Info().Str("table", nt.name).
			Int("rows", nt.table.NumRows()).
			Int("columns", nt.table.NumColumns()).
			Msg("result")
	}

	if outDir != "" {
		csvSink := sink.CSV{}
		for _, nt := range tables {
			dest := filepath.Join(outDir, nt.name+".csv")
			if err := csvSink.Write(ctx, nt.table, dest); err != nil {
				return err
			}
			logger.Info().Str("path", dest).Msg("wrote CSV")
		}
	}

	if dbPath != "" {
		db, err := sink.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		for _, nt := range tables {
			if err := db.Write(ctx, nt.table, nt.name); err != nil {
				return err
			}
			logger.Info().Str("database", dbPath).Str("table", nt.name).Msg("wrote SQLite table")
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
