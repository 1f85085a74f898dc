package cmd

import (
	"context"
	"fmt"
	"os"

	"ccstats/internal/cache"
	"ccstats/internal/config"
	"ccstats/internal/engine"
	"ccstats/internal/model"
)

type queryResult struct {
	stats  model.AggregateStatistics
	status cache.Status
	cfg    config.Config
}

// loadStats is the shared query path for all reporting commands: run an
// incremental sync so aggregates are current, then serve from the cache.
func loadStats() (queryResult, error) {
	eng, cfg, err := openEngine()
	if err != nil {
		return queryResult{}, err
	}
	defer func() { _ = eng.Close() }()

	from, to, err := queryRange(cfg)
	if err != nil {
		return queryResult{}, err
	}

	if err := syncBeforeQuery(eng); err != nil {
		return queryResult{}, err
	}

	var (
		stats  model.AggregateStatistics
		status cache.Status
	)
	if flagRefresh {
		stats, status, err = eng.RefreshStatistics(from, to, flagProject)
	} else {
		stats, status, err = eng.GetStatistics(from, to, flagProject)
	}
	if err != nil {
		return queryResult{}, err
	}
	return queryResult{stats: stats, status: status, cfg: cfg}, nil
}

func syncBeforeQuery(eng *engine.Engine) error {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning sessions...\n")
	}

	run, err := eng.RunSync(context.Background(), model.SyncIncremental)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if !flagQuiet {
		if run.ProcessedItems == 0 {
			fmt.Fprintf(os.Stderr, "\r  Aggregates up to date          \n")
		} else {
			fmt.Fprintf(os.Stderr, "\r  Synced %d files (%d events, %d duplicates skipped)    \n",
				run.ProcessedItems, run.EventsIngested, run.EventsDeduped)
		}
		if run.ParseErrors > 0 {
			fmt.Fprintf(os.Stderr, "  %d malformed lines skipped\n", run.ParseErrors)
		}
		if run.FileErrors > 0 {
			fmt.Fprintf(os.Stderr, "  %d files could not be read\n", run.FileErrors)
		}
	}
	return nil
}

func rangeLabel(cfg config.Config) string {
	if flagFrom != "" || flagTo != "" {
		from, to, err := queryRange(cfg)
		if err == nil {
			return fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
		}
	}
	days := flagDays
	if days <= 0 {
		days = cfg.General.DefaultDays
	}
	return fmt.Sprintf("Last %dd", days)
}
