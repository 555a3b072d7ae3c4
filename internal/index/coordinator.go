package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"tessera/internal/chunker"
	"tessera/internal/embedder"
	"tessera/internal/notebook"
	"tessera/internal/scanner"
	"tessera/internal/store"
)

// embedSnippetLen bounds how much of a chunk is embedded at index time.
const embedSnippetLen = 500

// Stats reports the outcome of a reindex pass.
type Stats struct {
	FilesScanned int
	FilesIndexed int
	FilesSkipped int
	Chunks       int
	Embedded     int
}

// IndexSwapper is the slice of the store the coordinator needs.
type IndexSwapper interface {
	ReplaceProjectIndex(ctx context.Context, projectID int64, files []store.IndexedFile) error
}

// Coordinator drives a full project reindex: scan, chunk, embed, and a
// single atomic swap of the stored index.
type Coordinator struct {
	store   IndexSwapper
	emb     embedder.Provider
	scanCfg scanner.Config
	workers int
	log     *slog.Logger
}

// New creates a Coordinator. workers bounds concurrent per-file work.
func New(st IndexSwapper, emb embedder.Provider, scanCfg scanner.Config, workers int, log *slog.Logger) *Coordinator {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: st, emb: emb, scanCfg: scanCfg, workers: workers, log: log}
}

// Reindex rebuilds the project's index from its folder. It is a full
// replace: every file is re-scanned, re-hashed, and re-chunked, and the
// stored set is swapped in one transaction, so the same filesystem state
// always produces the same stored chunks. Per-file failures are logged and
// skipped; a missing root fails the whole operation with
// scanner.ErrRootNotFound.
func (c *Coordinator) Reindex(ctx context.Context, project store.Project) (Stats, error) {
	files, err := scanner.Scan(ctx, project.FolderPath, c.scanCfg)
	if err != nil {
		return Stats{}, fmt.Errorf("scan %s: %w", project.FolderPath, err)
	}

	// Embeddings are best-effort at index time: when the provider is down
	// the chunks are stored without vectors and the retriever backfills
	// them later.
	embedOK := atomic.Bool{}
	embedOK.Store(c.emb.Available(ctx))
	if !embedOK.Load() {
		c.log.Warn("embedding provider unavailable, indexing without vectors", "project", project.Name)
	}

	// Indexed results land at their scan position so chunk order and file
	// order stay deterministic regardless of completion order.
	indexed := make([]*store.IndexedFile, len(files))
	var embeddedCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, fi := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, embedded, err := c.indexFile(gctx, project, fi, &embedOK)
			if err != nil {
				c.log.Warn("skipping file", "path", fi.RelPath, "error", err)
				return nil
			}
			indexed[i] = entry
			embeddedCount.Add(int64(embedded))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Cancellation or an unexpected failure: leave the prior index
		// untouched.
		return Stats{}, err
	}

	var stats Stats
	stats.FilesScanned = len(files)
	stats.Embedded = int(embeddedCount.Load())

	replacement := make([]store.IndexedFile, 0, len(indexed))
	for _, entry := range indexed {
		if entry == nil {
			stats.FilesSkipped++
			continue
		}
		replacement = append(replacement, *entry)
		stats.FilesIndexed++
		stats.Chunks += len(entry.Chunks)
	}

	if err := c.store.ReplaceProjectIndex(ctx, project.ID, replacement); err != nil {
		return Stats{}, fmt.Errorf("replace index: %w", err)
	}
	return stats, nil
}

// indexFile reads, chunks, and embeds a single scanned file.
func (c *Coordinator) indexFile(ctx context.Context, project store.Project, fi scanner.FileInfo, embedOK *atomic.Bool) (*store.IndexedFile, int, error) {
	content, err := readContent(fi)
	if err != nil {
		return nil, 0, err
	}

	pieces := chunker.Chunk(content, fi.Ext, project.ChunkSize, project.ChunkOverlap)

	entry := &store.IndexedFile{
		File: store.FileRecord{
			ProjectID: project.ID,
			RelPath:   fi.RelPath,
			Name:      fi.Name,
			Ext:       fi.Ext,
			Hash:      fi.Hash,
			SizeBytes: fi.Size,
		},
		Chunks: make([]store.ChunkRecord, 0, len(pieces)),
	}

	embedded := 0
	for idx, p := range pieces {
		rec := store.ChunkRecord{
			Index:     idx,
			Content:   p.Content,
			StartLine: intPtr(p.StartLine),
			EndLine:   intPtr(p.EndLine),
		}
		if embedOK.Load() {
			snippet := p.Content
			if len(snippet) > embedSnippetLen {
				snippet = snippet[:embedSnippetLen]
			}
			vec, err := c.emb.Embed(ctx, snippet)
			if err != nil {
				// Provider dropped out mid-run; stop trying for the rest
				// of this pass.
				embedOK.Store(false)
				c.log.Warn("embedding failed mid-index, continuing without vectors", "path", fi.RelPath, "error", err)
			} else {
				rec.Embedding = vec
				embedded++
			}
		}
		entry.Chunks = append(entry.Chunks, rec)
	}
	return entry, embedded, nil
}

// readContent loads a file's text. Notebooks are expanded into their cell
// bodies rather than indexed as raw JSON.
func readContent(fi scanner.FileInfo) (string, error) {
	data, err := os.ReadFile(fi.Path)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(fi.Ext, ".ipynb") {
		return notebook.Extract(data)
	}
	return string(data), nil
}

func intPtr(v int) *int { return &v }
