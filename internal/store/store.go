// Package store provides SQLite-backed persistence for aggregate cells,
// the deduplication index, and per-file ingestion checkpoints.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ccstats/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store wraps the aggregate database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FileInfo holds the tracked mtime and size for a log file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// Checkpoints returns a map of file_path -> FileInfo for all synced files.
func (s *Store) Checkpoints() (map[string]FileInfo, error) {
	rows, err := s.db.Query("SELECT file_path, mtime_ns, size_bytes FROM file_checkpoint")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// SeenKeys loads the full deduplication index.
func (s *Store) SeenKeys() (map[string]struct{}, error) {
	rows, err := s.db.Query("SELECT key FROM dedup_keys")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
	}
	return seen, rows.Err()
}

// KeyRecord associates a dedup key with the file that introduced it.
type KeyRecord struct {
	Key        string
	SourceFile string
}

// CommitBatch applies one file's ingestion results in a single transaction:
// additive cell upserts, new dedup keys, and the file checkpoint. Readers
// observe either the pre-batch or post-batch state, never a partial merge.
func (s *Store) CommitBatch(cells []model.Cell, keys []KeyRecord, filePath string, mtimeNs, sizeBytes int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range cells {
		_, err = tx.Exec(`INSERT INTO usage_cells
			(day, model, project, project_path, session_id,
			 input_tokens, output_tokens, cache_write_tokens, cache_read_tokens, cost, requests)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(day, model, project_path, session_id) DO UPDATE SET
			 project            = excluded.project,
			 input_tokens       = input_tokens + excluded.input_tokens,
			 output_tokens      = output_tokens + excluded.output_tokens,
			 cache_write_tokens = cache_write_tokens + excluded.cache_write_tokens,
			 cache_read_tokens  = cache_read_tokens + excluded.cache_read_tokens,
			 cost               = cost + excluded.cost,
			 requests           = requests + excluded.requests`,
			c.Day, c.Model, c.Project, c.ProjectPath, c.SessionID,
			c.InputTokens, c.OutputTokens, c.CacheWriteTokens, c.CacheReadTokens, c.Cost, c.Requests,
		)
		if err != nil {
			return err
		}
	}

	for _, k := range keys {
		_, err = tx.Exec(`INSERT OR IGNORE INTO dedup_keys (key, source_file) VALUES (?, ?)`,
			k.Key, k.SourceFile)
		if err != nil {
			return err
		}
	}

	if filePath != "" {
		now := time.Now().UTC().Format(time.RFC3339)
		_, err = tx.Exec(`INSERT OR REPLACE INTO file_checkpoint (file_path, mtime_ns, size_bytes, synced_at)
			VALUES (?, ?, ?, ?)`, filePath, mtimeNs, sizeBytes, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QueryCells reads all cells whose day falls within [fromDay, toDay]
// (inclusive, YYYY-MM-DD strings; empty bounds are open). A non-empty
// project filter restricts rows to that project name.
func (s *Store) QueryCells(fromDay, toDay, project string) ([]model.Cell, error) {
	query := `SELECT day, model, project, project_path, session_id,
		input_tokens, output_tokens, cache_write_tokens, cache_read_tokens, cost, requests
		FROM usage_cells WHERE 1=1`
	var args []any
	if fromDay != "" {
		query += " AND day >= ?"
		args = append(args, fromDay)
	}
	if toDay != "" {
		query += " AND day <= ?"
		args = append(args, toDay)
	}
	if project != "" {
		query += " AND project = ?"
		args = append(args, project)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cells []model.Cell
	for rows.Next() {
		var c model.Cell
		err := rows.Scan(&c.Day, &c.Model, &c.Project, &c.ProjectPath, &c.SessionID,
			&c.InputTokens, &c.OutputTokens, &c.CacheWriteTokens, &c.CacheReadTokens,
			&c.Cost, &c.Requests)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// Reset clears all persisted state. Used by full sync before rebuilding.
func (s *Store) Reset() error {
	for _, stmt := range []string{
		"DELETE FROM usage_cells",
		"DELETE FROM dedup_keys",
		"DELETE FROM file_checkpoint",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
	}
	return nil
}

// CellCount returns the number of aggregate cells.
func (s *Store) CellCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM usage_cells").Scan(&count)
	return count, err
}
