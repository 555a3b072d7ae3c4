package store

import "time"

// Project is a registered folder with its retrieval configuration. Each
// project carries its own copy of the tuning values so changing global
// defaults never silently re-interprets an existing index.
type Project struct {
	ID          int64
	Name        string
	Description string
	FolderPath  string
	TotalFiles  int
	LastIndexed *time.Time
	CreatedAt   time.Time

	ChunkSize           int
	ChunkOverlap        int
	SimilarityThreshold float64
	MaxContextTokens    int
	Temperature         float64
	TopP                float64
	EmbeddingModel      string
}

// FileRecord is one indexed file, unique per (ProjectID, RelPath).
type FileRecord struct {
	ID         int64
	ProjectID  int64
	RelPath    string
	Name       string
	Ext        string
	Hash       string // hex SHA-256 of the raw bytes
	SizeBytes  int64
	ChunkCount int
	IndexedAt  time.Time
}

// ChunkRecord is one chunk of an indexed file, unique per (FileID, Index).
// Line numbers are nil when the source was not line-oriented. Embedding is
// nil until computed; its dimension is fixed by the project's embedding
// model.
type ChunkRecord struct {
	ID        int64
	FileID    int64
	Index     int
	Content   string
	StartLine *int
	EndLine   *int
	Embedding []float32
}

// IndexedFile bundles a file record with its ordered chunks for the atomic
// index swap.
type IndexedFile struct {
	File   FileRecord
	Chunks []ChunkRecord
}

// StoredChunk is a chunk joined with its file's provenance, as handed to the
// retriever.
type StoredChunk struct {
	ChunkRecord
	FileName string
	RelPath  string
}
