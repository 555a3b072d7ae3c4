package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrProjectNotFound is returned when a project lookup misses.
var ErrProjectNotFound = errors.New("project not found")

// Store provides persistence for projects, indexed files, and chunks.
type Store interface {
	// CreateProject inserts a project and returns its ID.
	CreateProject(ctx context.Context, p Project) (int64, error)
	// GetProject returns a project by ID, or ErrProjectNotFound.
	GetProject(ctx context.Context, id int64) (Project, error)
	// GetProjectByName returns a project by name, or ErrProjectNotFound.
	GetProjectByName(ctx context.Context, name string) (Project, error)
	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]Project, error)
	// DeleteProject removes a project and, by cascade, its files and chunks.
	DeleteProject(ctx context.Context, id int64) error

	// ReplaceProjectIndex atomically swaps a project's full index: within one
	// transaction it deletes every existing file (cascading to chunks),
	// inserts the replacement set, and updates the project counters. A
	// concurrent reader sees either the old index or the new one, never a
	// half-cleared state.
	ReplaceProjectIndex(ctx context.Context, projectID int64, files []IndexedFile) error

	// ListFiles returns a project's files ordered by path.
	ListFiles(ctx context.Context, projectID int64) ([]FileRecord, error)
	// ListChunks returns all chunks for a project joined with file
	// provenance, ordered by file path then chunk index.
	ListChunks(ctx context.Context, projectID int64) ([]StoredChunk, error)
	// UpdateChunkEmbedding persists a freshly computed embedding for a chunk.
	UpdateChunkEmbedding(ctx context.Context, chunkID int64, vec []float32) error

	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path and initializes the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p Project) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, folder_path, chunk_size, chunk_overlap,
		                      similarity_threshold, max_context_tokens, temperature, top_p, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.FolderPath, p.ChunkSize, p.ChunkOverlap,
		p.SimilarityThreshold, p.MaxContextTokens, p.Temperature, p.TopP, p.EmbeddingModel,
	)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return res.LastInsertId()
}

const projectColumns = `id, name, description, folder_path, total_files, last_indexed, created_at,
	chunk_size, chunk_overlap, similarity_threshold, max_context_tokens, temperature, top_p, embedding_model`

func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	return scanProject(row)
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE name = ?", name)
	return scanProject(row)
}

func scanProject(row *sql.Row) (Project, error) {
	var p Project
	var lastIndexed sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.FolderPath, &p.TotalFiles, &lastIndexed, &p.CreatedAt,
		&p.ChunkSize, &p.ChunkOverlap, &p.SimilarityThreshold, &p.MaxContextTokens, &p.Temperature, &p.TopP, &p.EmbeddingModel)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrProjectNotFound
	}
	if err != nil {
		return Project{}, err
	}
	if lastIndexed.Valid {
		t := lastIndexed.Time
		p.LastIndexed = &t
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var lastIndexed sql.NullTime
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.FolderPath, &p.TotalFiles, &lastIndexed, &p.CreatedAt,
			&p.ChunkSize, &p.ChunkOverlap, &p.SimilarityThreshold, &p.MaxContextTokens, &p.Temperature, &p.TopP, &p.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		if lastIndexed.Valid {
			t := lastIndexed.Time
			p.LastIndexed = &t
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *SQLiteStore) ReplaceProjectIndex(ctx context.Context, projectID int64, files []IndexedFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clear previous index: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (project_id, path, name, ext, hash, size_bytes, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fileStmt.Close()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (file_id, idx, content, start_line, end_line, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	for _, f := range files {
		res, err := fileStmt.ExecContext(ctx,
			projectID, f.File.RelPath, f.File.Name, f.File.Ext, f.File.Hash, f.File.SizeBytes, len(f.Chunks))
		if err != nil {
			return fmt.Errorf("insert file %s: %w", f.File.RelPath, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, c := range f.Chunks {
			blob, err := encodeEmbedding(c.Embedding)
			if err != nil {
				return fmt.Errorf("encode embedding for %s[%d]: %w", f.File.RelPath, c.Index, err)
			}
			if _, err := chunkStmt.ExecContext(ctx,
				fileID, c.Index, c.Content, c.StartLine, c.EndLine, blob); err != nil {
				return fmt.Errorf("insert chunk %s[%d]: %w", f.File.RelPath, c.Index, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE projects SET total_files = ?, last_indexed = ? WHERE id = ?",
		len(files), time.Now().UTC(), projectID); err != nil {
		return fmt.Errorf("update project counters: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListFiles(ctx context.Context, projectID int64) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, path, name, ext, hash, size_bytes, chunk_count, indexed_at
		FROM files WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.RelPath, &f.Name, &f.Ext, &f.Hash,
			&f.SizeBytes, &f.ChunkCount, &f.IndexedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) ListChunks(ctx context.Context, projectID int64) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.file_id, c.idx, c.content, c.start_line, c.end_line, c.embedding, f.name, f.path
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		WHERE f.project_id = ?
		ORDER BY f.path, c.idx`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []StoredChunk
	for rows.Next() {
		var (
			c          StoredChunk
			start, end sql.NullInt64
			blob       []byte
		)
		if err := rows.Scan(&c.ID, &c.FileID, &c.Index, &c.Content, &start, &end, &blob, &c.FileName, &c.RelPath); err != nil {
			return nil, err
		}
		if start.Valid {
			v := int(start.Int64)
			c.StartLine = &v
		}
		if end.Valid {
			v := int(end.Int64)
			c.EndLine = &v
		}
		c.Embedding = decodeEmbedding(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) UpdateChunkEmbedding(ctx context.Context, chunkID int64, vec []float32) error {
	blob, err := encodeEmbedding(vec)
	if err != nil {
		return fmt.Errorf("encode embedding for chunk %d: %w", chunkID, err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE chunks SET embedding = ? WHERE id = ?", blob, chunkID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding serializes a vector into the little-endian float32 blob
// format shared with sqlite-vec, so the column stays queryable by the
// extension. A nil vector stores as NULL.
func encodeEmbedding(vec []float32) ([]byte, error) {
	if vec == nil {
		return nil, nil
	}
	return sqlite_vec.SerializeFloat32(vec)
}

func decodeEmbedding(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
