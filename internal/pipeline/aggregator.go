// Package pipeline folds usage events and persisted cells into roll-up
// statistics.
package pipeline

import (
	"sort"

	"github.com/samber/lo"

	"ccstats/internal/model"
	"ccstats/internal/pricing"
)

// Aggregator computes aggregate statistics from cells. The fold is
// commutative and associative over its input set: grouping is keyed by
// content (date, model, project), never by scan order.
type Aggregator struct {
	pricing *pricing.Table
}

// New returns an aggregator using the given pricing table for the
// cache-savings metric.
func New(table *pricing.Table) *Aggregator {
	return &Aggregator{pricing: table}
}

// CellsFromEvents accumulates a stream of events into aggregate cells,
// one per distinct (day, model, project, session) combination.
func CellsFromEvents(events []*model.UsageEvent) []model.Cell {
	byKey := make(map[model.Cell]*model.Cell)
	var order []model.Cell

	for _, e := range events {
		key := model.CellKeyOf(e)
		cell, ok := byKey[key]
		if !ok {
			c := key
			byKey[key] = &c
			order = append(order, key)
			cell = byKey[key]
		}
		cell.InputTokens += e.InputTokens
		cell.OutputTokens += e.OutputTokens
		cell.CacheWriteTokens += e.CacheWriteTokens
		cell.CacheReadTokens += e.CacheReadTokens
		cell.Cost += e.Cost
		cell.Requests++
	}

	return lo.Map(order, func(key model.Cell, _ int) model.Cell {
		return *byKey[key]
	})
}

// MergeCells combines two cell sets, summing cells that share a key.
func MergeCells(base, add []model.Cell) []model.Cell {
	byKey := make(map[model.Cell]*model.Cell, len(base))
	var order []model.Cell

	absorb := func(cells []model.Cell) {
		for _, c := range cells {
			key := model.Cell{
				Day: c.Day, Model: c.Model,
				Project: c.Project, ProjectPath: c.ProjectPath,
				SessionID: c.SessionID,
			}
			cell, ok := byKey[key]
			if !ok {
				cp := key
				byKey[key] = &cp
				order = append(order, key)
				cell = byKey[key]
			}
			cell.InputTokens += c.InputTokens
			cell.OutputTokens += c.OutputTokens
			cell.CacheWriteTokens += c.CacheWriteTokens
			cell.CacheReadTokens += c.CacheReadTokens
			cell.Cost += c.Cost
			cell.Requests += c.Requests
		}
	}
	absorb(base)
	absorb(add)

	return lo.Map(order, func(key model.Cell, _ int) model.Cell {
		return *byKey[key]
	})
}

type groupAcc struct {
	input, output, cacheWrite, cacheRead int64
	cost                                 float64
	requests                             int64
	sessions                             map[string]struct{}
}

func newGroupAcc() *groupAcc {
	return &groupAcc{sessions: make(map[string]struct{})}
}

func (g *groupAcc) add(c model.Cell) {
	g.input += c.InputTokens
	g.output += c.OutputTokens
	g.cacheWrite += c.CacheWriteTokens
	g.cacheRead += c.CacheReadTokens
	g.cost += c.Cost
	g.requests += c.Requests
	g.sessions[c.SessionID] = struct{}{}
}

func groupFor(groups map[string]*groupAcc, key string) *groupAcc {
	g, ok := groups[key]
	if !ok {
		g = newGroupAcc()
		groups[key] = g
	}
	return g
}

// Fold computes aggregate statistics from a set of cells. ByDate is sorted
// chronologically; ByModel and ByProject are ranked by cost descending.
func (a *Aggregator) Fold(cells []model.Cell) model.AggregateStatistics {
	var stats model.AggregateStatistics

	totalSessions := make(map[string]struct{})
	byModel := make(map[string]*groupAcc)
	byDate := make(map[string]*groupAcc)
	byProject := make(map[string]*groupAcc)
	projectPaths := make(map[string]string)

	for _, c := range cells {
		stats.InputTokens += c.InputTokens
		stats.OutputTokens += c.OutputTokens
		stats.CacheWriteTokens += c.CacheWriteTokens
		stats.CacheReadTokens += c.CacheReadTokens
		stats.TotalCost += c.Cost
		stats.TotalRequests += c.Requests
		totalSessions[c.SessionID] = struct{}{}

		groupFor(byModel, c.Model).add(c)
		groupFor(byDate, c.Day).add(c)
		groupFor(byProject, c.Project).add(c)
		projectPaths[c.Project] = c.ProjectPath

		if a.pricing != nil {
			stats.CacheSavings += a.pricing.CacheSavings(c.Model, c.CacheReadTokens)
		}
	}

	stats.TotalTokens = stats.InputTokens + stats.OutputTokens +
		stats.CacheWriteTokens + stats.CacheReadTokens
	stats.TotalSessions = len(totalSessions)

	for name, g := range byModel {
		stats.ByModel = append(stats.ByModel, model.ModelStats{
			Model:       name,
			InputTokens: g.input, OutputTokens: g.output,
			CacheWriteTokens: g.cacheWrite, CacheReadTokens: g.cacheRead,
			Cost: g.cost, Requests: g.requests,
			SessionCount: len(g.sessions),
		})
	}
	sort.Slice(stats.ByModel, func(i, j int) bool {
		return stats.ByModel[i].Cost > stats.ByModel[j].Cost
	})

	for day, g := range byDate {
		stats.ByDate = append(stats.ByDate, model.DateStats{
			Date:        day,
			InputTokens: g.input, OutputTokens: g.output,
			CacheWriteTokens: g.cacheWrite, CacheReadTokens: g.cacheRead,
			Cost: g.cost, Requests: g.requests,
			SessionCount: len(g.sessions),
		})
	}
	sort.Slice(stats.ByDate, func(i, j int) bool {
		return stats.ByDate[i].Date < stats.ByDate[j].Date
	})

	for proj, g := range byProject {
		stats.ByProject = append(stats.ByProject, model.ProjectStats{
			Project:     proj,
			ProjectPath: projectPaths[proj],
			InputTokens: g.input, OutputTokens: g.output,
			CacheWriteTokens: g.cacheWrite, CacheReadTokens: g.cacheRead,
			Cost: g.cost, Requests: g.requests,
			SessionCount: len(g.sessions),
		})
	}
	sort.Slice(stats.ByProject, func(i, j int) bool {
		return stats.ByProject[i].Cost > stats.ByProject[j].Cost
	})

	return stats
}

// FoldEvents is a convenience for a full in-memory recompute from events.
func (a *Aggregator) FoldEvents(events []*model.UsageEvent) model.AggregateStatistics {
	return a.Fold(CellsFromEvents(events))
}

// Merge applies new events on top of an existing cell set and folds the
// result. Because cell accumulation is additive, Merge over a split input
// equals Fold over the union.
func (a *Aggregator) Merge(existing []model.Cell, newEvents []*model.UsageEvent) model.AggregateStatistics {
	return a.Fold(MergeCells(existing, CellsFromEvents(newEvents)))
}
