package cli

import (
	"fmt"
	"strings"

	"ccstats/internal/cache"
	"ccstats/internal/model"
)

// RenderSummary renders the top-level aggregate with its freshness status.
func RenderSummary(stats model.AggregateStatistics, status cache.Status) string {
	var b strings.Builder

	rows := [][]string{
		{"Total cost", FormatCost(stats.TotalCost)},
		{"Requests", FormatNumber(stats.TotalRequests)},
		{"Sessions", FormatNumber(int64(stats.TotalSessions))},
		{"Input tokens", FormatTokens(stats.InputTokens)},
		{"Output tokens", FormatTokens(stats.OutputTokens)},
		{"Cache write tokens", FormatTokens(stats.CacheWriteTokens)},
		{"Cache read tokens", FormatTokens(stats.CacheReadTokens)},
		{"Total tokens", FormatTokens(stats.TotalTokens)},
		{"Cost per request", FormatCost(stats.CostPerRequest())},
		{"Cache savings", FormatCost(stats.CacheSavings)},
	}
	b.WriteString(RenderTable(Table{Rows: rows}))
	b.WriteString("\n")
	b.WriteString(RenderCacheStatus(status))
	b.WriteString("\n")

	return b.String()
}

// RenderCacheStatus renders the freshness annotation served with results.
func RenderCacheStatus(status cache.Status) string {
	label := fmt.Sprintf("data: %s", status)
	switch status {
	case cache.StatusFresh:
		return freshStyle.Render(label)
	case cache.StatusStale, cache.StatusExpired:
		return warnStyle.Render(label + " (refresh advisable)")
	case cache.StatusError:
		return errStyle.Render(label)
	default:
		return mutedStyle.Render(label)
	}
}

// RenderDaily renders the per-day breakdown with a cost sparkline.
func RenderDaily(stats model.AggregateStatistics) string {
	var b strings.Builder

	costs := make([]float64, len(stats.ByDate))
	rows := make([][]string, 0, len(stats.ByDate))
	for i, d := range stats.ByDate {
		costs[i] = d.Cost
		rows = append(rows, []string{
			d.Date,
			FormatNumber(d.Requests),
			FormatNumber(int64(d.SessionCount)),
			FormatTokens(d.TotalTokens()),
			FormatCost(d.Cost),
		})
	}

	b.WriteString(RenderTable(Table{
		Title:   "Daily Usage",
		Headers: []string{"Date", "Requests", "Sessions", "Tokens", "Cost"},
		Rows:    rows,
	}))
	if len(costs) > 1 {
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render(RenderSparkline(costs)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderModels renders the per-model breakdown, ranked by cost.
func RenderModels(stats model.AggregateStatistics) string {
	rows := make([][]string, 0, len(stats.ByModel))
	for _, m := range stats.ByModel {
		rows = append(rows, []string{
			m.Model,
			FormatNumber(m.Requests),
			FormatNumber(int64(m.SessionCount)),
			FormatTokens(m.TotalTokens()),
			FormatCost(m.Cost),
		})
	}
	return RenderTable(Table{
		Title:   "By Model",
		Headers: []string{"Model", "Requests", "Sessions", "Tokens", "Cost"},
		Rows:    rows,
	})
}

// RenderProjects renders the per-project breakdown, ranked by cost.
func RenderProjects(stats model.AggregateStatistics) string {
	rows := make([][]string, 0, len(stats.ByProject))
	for _, p := range stats.ByProject {
		rows = append(rows, []string{
			p.Project,
			FormatNumber(p.Requests),
			FormatNumber(int64(p.SessionCount)),
			FormatTokens(p.TotalTokens()),
			FormatCost(p.Cost),
		})
	}
	return RenderTable(Table{
		Title:   "By Project",
		Headers: []string{"Project", "Requests", "Sessions", "Tokens", "Cost"},
		Rows:    rows,
	})
}

// RenderSyncRun renders a one-line sync result.
func RenderSyncRun(run model.SyncRun) string {
	var b strings.Builder
	switch run.State {
	case model.SyncCompleted:
		b.WriteString(freshStyle.Render("sync completed"))
	case model.SyncCancelled:
		b.WriteString(warnStyle.Render("sync cancelled"))
	case model.SyncFailed:
		b.WriteString(errStyle.Render("sync failed"))
	default:
		b.WriteString(mutedStyle.Render(string(run.State)))
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"  files %d/%d  events %s  deduped %s  filtered %s  parse errors %d",
		run.ProcessedItems, run.TotalItems,
		FormatNumber(int64(run.EventsIngested)),
		FormatNumber(int64(run.EventsDeduped)),
		FormatNumber(int64(run.EventsFiltered)),
		run.ParseErrors,
	)))
	if run.LastError != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("  last error: " + run.LastError))
	}
	return b.String()
}
