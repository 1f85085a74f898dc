package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS usage_cells (
    day            TEXT NOT NULL,
    model          TEXT NOT NULL,
    project        TEXT NOT NULL,
    project_path   TEXT NOT NULL,
    session_id     TEXT NOT NULL,
    input_tokens   INTEGER NOT NULL DEFAULT 0,
    output_tokens  INTEGER NOT NULL DEFAULT 0,
    cache_write_tokens INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens  INTEGER NOT NULL DEFAULT 0,
    cost           REAL NOT NULL DEFAULT 0,
    requests       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (day, model, project_path, session_id)
);

CREATE TABLE IF NOT EXISTS dedup_keys (
    key          TEXT PRIMARY KEY,
    source_file  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_checkpoint (
    file_path    TEXT PRIMARY KEY,
    mtime_ns     INTEGER NOT NULL,
    size_bytes   INTEGER NOT NULL,
    synced_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_cells_day ON usage_cells(day);
CREATE INDEX IF NOT EXISTS idx_dedup_keys_source ON dedup_keys(source_file);
`
