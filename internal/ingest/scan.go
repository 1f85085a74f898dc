package ingest

import (
	"bufio"
	"context"
	"os"

	"ccstats/internal/dedup"
	"ccstats/internal/model"
	"ccstats/internal/source"
	"ccstats/internal/store"
)

// fileResult holds the in-memory outcome of processing one log file.
// Nothing is persisted until the sync phase commits it atomically.
type fileResult struct {
	file        source.DiscoveredFile
	cells       *cellAcc
	keys        []store.KeyRecord
	events      int
	deduped     int
	filtered    int
	parseErrors int
	mtimeNs     int64
	sizeBytes   int64
	err         error
}

// cellAcc accumulates events into aggregate cells in insertion order.
type cellAcc struct {
	byKey map[model.Cell]*model.Cell
	order []model.Cell
}

func newCellAcc() *cellAcc {
	return &cellAcc{byKey: make(map[model.Cell]*model.Cell)}
}

func (a *cellAcc) add(e *model.UsageEvent) {
	key := model.CellKeyOf(e)
	cell, ok := a.byKey[key]
	if !ok {
		c := key
		a.byKey[key] = &c
		a.order = append(a.order, key)
		cell = a.byKey[key]
	}
	cell.InputTokens += e.InputTokens
	cell.OutputTokens += e.OutputTokens
	cell.CacheWriteTokens += e.CacheWriteTokens
	cell.CacheReadTokens += e.CacheReadTokens
	cell.Cost += e.Cost
	cell.Requests++
}

func (a *cellAcc) cells() []model.Cell {
	out := make([]model.Cell, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.byKey[key])
	}
	return out
}

// parsePhase decodes, normalizes, and dedup-filters every changed file.
// A pause/cancel checkpoint runs between files, never mid-record.
func (o *Orchestrator) parsePhase(ctx context.Context, files []source.DiscoveredFile, idx *dedup.Index) ([]fileResult, error) {
	results := make([]fileResult, 0, len(files))
	for i, f := range files {
		if err := o.checkpoint(ctx); err != nil {
			return nil, err
		}
		results = append(results, o.processFile(f, idx))
		o.updateProgress(i+1, len(files))
	}
	return results, nil
}

// processFile reads one JSONL file in line order. Per event the commit
// order is: normalize, dedup-check, fold into the cell accumulator, mark
// seen. Malformed lines are counted and skipped; only an unreadable file
// yields an error result.
func (o *Orchestrator) processFile(df source.DiscoveredFile, idx *dedup.Index) fileResult {
	r := fileResult{file: df, cells: newCellAcc()}

	// Stat before reading so data appended mid-scan is re-read next pass.
	info, err := os.Stat(df.Path)
	if err != nil {
		r.err = err
		return r
	}
	r.mtimeNs = info.ModTime().UnixNano()
	r.sizeBytes = info.Size()

	f, err := os.Open(df.Path)
	if err != nil {
		r.err = err
		return r
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 2*1024*1024)

	for scanner.Scan() {
		rec, ok := source.DecodeLine(scanner.Bytes())
		if !ok {
			r.parseErrors++
			continue
		}

		event := o.norm.Normalize(rec, df.ProjectPath, df.Path)
		if event == nil {
			r.filtered++
			continue
		}

		key := dedup.BuildKey(event)
		if idx.Seen(key) {
			r.deduped++
			continue
		}

		r.cells.add(event)
		idx.MarkSeen(key)
		r.keys = append(r.keys, store.KeyRecord{Key: key, SourceFile: df.Path})
		r.events++
	}

	if err := scanner.Err(); err != nil {
		r.err = err
	}
	return r
}

// syncPhase commits per-file batches and returns the set of affected days.
// A pause/cancel checkpoint runs every BatchSize files; a cancelled run
// keeps everything committed so far.
func (o *Orchestrator) syncPhase(ctx context.Context, results []fileResult) ([]string, error) {
	daySet := make(map[string]struct{})

	for i, r := range results {
		if i%o.opts.BatchSize == 0 {
			if err := o.checkpoint(ctx); err != nil {
				return collectDays(daySet), err
			}
		}

		cells := r.cells.cells()
		if err := o.store.CommitBatch(cells, r.keys, r.file.Path, r.mtimeNs, r.sizeBytes); err != nil {
			return collectDays(daySet), err
		}
		for _, c := range cells {
			daySet[c.Day] = struct{}{}
		}
	}
	return collectDays(daySet), nil
}

func collectDays(set map[string]struct{}) []string {
	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	return days
}
