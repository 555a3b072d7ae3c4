package retriever

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/errgroup"

	"tessera/internal/embedder"
	"tessera/internal/store"
)

// embedSnippetLen bounds how much of a chunk is sent for embedding when the
// vector was not persisted at index time.
const embedSnippetLen = 500

// Result is one ranked chunk with enough provenance for citations.
type Result struct {
	Content   string
	FileName  string
	RelPath   string
	StartLine *int
	EndLine   *int
	Score     float64
}

// ChunkSource is the slice of the store the retriever needs.
type ChunkSource interface {
	ListChunks(ctx context.Context, projectID int64) ([]store.StoredChunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID int64, vec []float32) error
}

// Retriever ranks a project's chunks against a query: cosine similarity over
// embeddings when the provider answers, keyword overlap otherwise.
type Retriever struct {
	source  ChunkSource
	emb     embedder.Provider
	workers int
	log     *slog.Logger
}

// New creates a Retriever. workers bounds concurrent embedding calls for
// chunks whose vectors were not persisted at index time.
func New(source ChunkSource, emb embedder.Provider, workers int, log *slog.Logger) *Retriever {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{source: source, emb: emb, workers: workers, log: log}
}

// Retrieve returns up to topK chunks ranked by relevance to query. The
// semantic path is tried first; if the embedding provider is unavailable the
// lexical path answers instead. A project with no indexed chunks yields an
// empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, project store.Project, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	chunks, err := r.source.ListChunks(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	outcome := r.semantic(ctx, project, query, chunks, topK)
	if !outcome.unavailable {
		return outcome.results, nil
	}

	r.log.Warn("semantic retrieval unavailable, using lexical fallback", "project", project.Name)
	return lexical(query, chunks, topK), nil
}

// semanticOutcome discriminates a scored answer from provider unavailability,
// so the caller decides about the fallback instead of a blanket recover.
type semanticOutcome struct {
	results     []Result
	unavailable bool
}

func (r *Retriever) semantic(ctx context.Context, project store.Project, query string, chunks []store.StoredChunk, topK int) semanticOutcome {
	queryVec, err := r.emb.Embed(ctx, query)
	if err != nil {
		return semanticOutcome{unavailable: true}
	}

	// Backfill missing chunk embeddings with a bounded worker pool. Stored
	// order is deterministic, so scores land at fixed positions regardless
	// of completion order.
	vectors := make([][]float32, len(chunks))
	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, c := range chunks {
		if c.Embedding != nil {
			vectors[i] = c.Embedding
			continue
		}
		g.Go(func() error {
			snippet := c.Content
			if len(snippet) > embedSnippetLen {
				snippet = snippet[:embedSnippetLen]
			}
			vec, err := r.emb.Embed(gctx, snippet)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // chunk drops out of the semantic ranking
			}
			vectors[i] = vec
			if err := r.source.UpdateChunkEmbedding(gctx, c.ID, vec); err != nil {
				r.log.Warn("persist chunk embedding failed", "chunk", c.ID, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return semanticOutcome{unavailable: true}
	}
	if failed == len(chunks) {
		// Provider answered the query embed but failed every chunk; treat
		// the whole path as unavailable rather than returning nothing.
		return semanticOutcome{unavailable: true}
	}

	var results []Result
	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		score := Cosine(queryVec, vectors[i])
		if score > project.SimilarityThreshold {
			results = append(results, toResult(c, score))
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return semanticOutcome{results: results}
}

// lexical scores each chunk by how many distinct query words appear in it,
// case-insensitively.
func lexical(query string, chunks []store.StoredChunk, topK int) []Result {
	words := tokenize(query)
	if len(words) == 0 {
		return []Result{}
	}

	var results []Result
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		score := 0
		for word := range words {
			if strings.Contains(content, word) {
				score++
			}
		}
		if score > 0 {
			results = append(results, toResult(c, float64(score)))
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// tokenize lowers the query and splits it into its alphanumeric runs.
func tokenize(query string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	return words
}

func toResult(c store.StoredChunk, score float64) Result {
	return Result{
		Content:   c.Content,
		FileName:  c.FileName,
		RelPath:   c.RelPath,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Score:     score,
	}
}
