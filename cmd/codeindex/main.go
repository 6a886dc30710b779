// Package main is codeindex's CLI entry point and command registration hub:
// this file holds the root command, global flags, and init(); each command
// lives in its own cmd_*.go file.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeindex/internal/config"
	"codeindex/internal/logging"
)

var (
	verbose    bool
	workspace  string
	configPath string
	dbPath     string
	opTimeout  time.Duration

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codeindex",
	Short: "Persistent, queryable code-symbol index",
	Long: `codeindex parses source trees into a persistent SQLite-backed symbol
index: functions, types, imports, references, and a confidence-scored call
graph, queryable by name, fuzzy match, or glob, and reachable from a bounded
tool-using agent loop for task-context collection.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if dbPath != "" {
			cfg.DB.Path = dbPath
		}
		if !filepath.IsAbs(cfg.DB.Path) {
			cfg.DB.Path = filepath.Join(ws, cfg.DB.Path)
		}

		if err := logging.Initialize(ws, cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".codeindex/config.yaml", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the database path from config")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", 5*time.Minute, "operation timeout")

	rootCmd.AddCommand(indexCmd, queryCmd, statsCmd, clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
