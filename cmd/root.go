// Package cmd implements the ccstats CLI commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ccstats/internal/config"
	"ccstats/internal/engine"
	"ccstats/internal/ingest"
)

var (
	flagDays    int
	flagProject string
	flagFrom    string
	flagTo      string
	flagLogDir  string
	flagDBPath  string
	flagQuiet   bool
	flagVerbose bool
	flagRefresh bool
)

var rootCmd = &cobra.Command{
	Use:   "ccstats",
	Short: "Claude Code usage statistics",
	Long:  "Ingest Claude Code session logs and report token usage, costs, and trends.",
	RunE:  runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 0, "Time window in days (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Filter to a project name")
	rootCmd.PersistentFlags().StringVar(&flagFrom, "from", "", "Range start (YYYY-MM-DD), overrides --days")
	rootCmd.PersistentFlags().StringVar(&flagTo, "to", "", "Range end (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVarP(&flagLogDir, "data-dir", "d", "", "Claude data directory")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Aggregate database path")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagRefresh, "refresh", false, "Bypass cached results and recompute")
}

// newLogger builds the CLI logger. Verbose mode gets a development logger
// on stderr; otherwise logs are suppressed so they don't mix with tables.
func newLogger() *zap.Logger {
	if !flagVerbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openEngine loads config and wires an engine for one command invocation.
func openEngine() (*engine.Engine, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}

	var progress ingest.ProgressFunc
	if !flagQuiet {
		progress = func(current, total int) {
			if total > 0 && (current%10 == 0 || current == total) {
				fmt.Fprintf(os.Stderr, "\r  Syncing [%d/%d]", current, total)
			}
		}
	}

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		DBPath:   flagDBPath,
		LogDir:   flagLogDir,
		Logger:   newLogger(),
		Progress: progress,
	})
	if err != nil {
		return nil, cfg, err
	}
	return eng, cfg, nil
}

// queryRange resolves the active date range from --from/--to or --days.
func queryRange(cfg config.Config) (time.Time, time.Time, error) {
	now := time.Now()
	days := flagDays
	if days <= 0 {
		days = cfg.General.DefaultDays
	}
	from, to := now.AddDate(0, 0, -days), now

	if flagFrom != "" {
		t, err := time.ParseInLocation("2006-01-02", flagFrom, time.Local)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from date %q: %w", flagFrom, err)
		}
		from = t
	}
	if flagTo != "" {
		t, err := time.ParseInLocation("2006-01-02", flagTo, time.Local)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to date %q: %w", flagTo, err)
		}
		to = t
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("range end %s precedes start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return from, to, nil
}
