package store

import "database/sql"

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS projects (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    name                 TEXT NOT NULL UNIQUE,
    description          TEXT NOT NULL DEFAULT '',
    folder_path          TEXT NOT NULL,
    total_files          INTEGER NOT NULL DEFAULT 0,
    last_indexed         DATETIME,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    chunk_size           INTEGER NOT NULL DEFAULT 1000,
    chunk_overlap        INTEGER NOT NULL DEFAULT 100,
    similarity_threshold REAL NOT NULL DEFAULT 0.25,
    max_context_tokens   INTEGER NOT NULL DEFAULT 4096,
    temperature          REAL NOT NULL DEFAULT 0.3,
    top_p                REAL NOT NULL DEFAULT 0.9,
    embedding_model      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS files (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    path        TEXT NOT NULL,
    name        TEXT NOT NULL,
    ext         TEXT NOT NULL DEFAULT '',
    hash        TEXT NOT NULL,
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    indexed_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (project_id, path)
);

CREATE TABLE IF NOT EXISTS chunks (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    idx        INTEGER NOT NULL,
    content    TEXT NOT NULL,
    start_line INTEGER,
    end_line   INTEGER,
    embedding  BLOB,
    UNIQUE (file_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);
`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
