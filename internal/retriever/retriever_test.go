package retriever

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/embedder"
	"tessera/internal/store"
)

// fakeProvider drives the semantic path from a table of canned vectors.
type fakeProvider struct {
	embedFn func(text string) ([]float32, error)
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return f.embedFn(text)
}

func (f *fakeProvider) Available(context.Context) bool { return true }

// fakeSource serves a fixed chunk list and records embedding persistence.
type fakeSource struct {
	chunks []store.StoredChunk

	mu        sync.Mutex
	persisted map[int64][]float32
}

func (f *fakeSource) ListChunks(context.Context, int64) ([]store.StoredChunk, error) {
	return f.chunks, nil
}

func (f *fakeSource) UpdateChunkEmbedding(_ context.Context, chunkID int64, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persisted == nil {
		f.persisted = make(map[int64][]float32)
	}
	f.persisted[chunkID] = vec
	return nil
}

func storedChunk(id int64, content string, vec []float32) store.StoredChunk {
	return store.StoredChunk{
		ChunkRecord: store.ChunkRecord{ID: id, Content: content, Embedding: vec},
		FileName:    "f.go",
		RelPath:     "pkg/f.go",
	}
}

func testProject() store.Project {
	return store.Project{ID: 1, Name: "demo", SimilarityThreshold: 0.25}
}

func TestRetrieve_SemanticRanking(t *testing.T) {
	src := &fakeSource{chunks: []store.StoredChunk{
		storedChunk(1, "exact match", []float32{1, 0}),
		storedChunk(2, "orthogonal", []float32{0, 1}),
		storedChunk(3, "close match", []float32{0.9, 0.1}),
	}}
	emb := &fakeProvider{embedFn: func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}

	r := New(src, emb, 2, nil)
	results, err := r.Retrieve(context.Background(), testProject(), "anything", 5)
	require.NoError(t, err)
	require.Len(t, results, 2) // orthogonal chunk is below the threshold

	assert.Equal(t, "exact match", results[0].Content)
	assert.Equal(t, "close match", results[1].Content)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "pkg/f.go", results[0].RelPath)
}

func TestRetrieve_TopKTruncates(t *testing.T) {
	var chunks []store.StoredChunk
	for i := int64(1); i <= 10; i++ {
		chunks = append(chunks, storedChunk(i, "chunk", []float32{1, float32(i) * 0.01}))
	}
	src := &fakeSource{chunks: chunks}
	emb := &fakeProvider{embedFn: func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}

	r := New(src, emb, 2, nil)
	results, err := r.Retrieve(context.Background(), testProject(), "q", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRetrieve_BackfillsAndPersistsEmbeddings(t *testing.T) {
	src := &fakeSource{chunks: []store.StoredChunk{
		storedChunk(1, "stored vector", []float32{1, 0}),
		storedChunk(2, "missing vector", nil),
	}}
	emb := &fakeProvider{embedFn: func(string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}

	r := New(src, emb, 2, nil)
	results, err := r.Retrieve(context.Background(), testProject(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []float32{1, 0}, src.persisted[2])
	assert.NotContains(t, src.persisted, int64(1))
}

func TestRetrieve_LexicalFallbackWhenProviderDown(t *testing.T) {
	src := &fakeSource{chunks: []store.StoredChunk{
		storedChunk(1, "func ParseJSON decodes json input", nil),
		storedChunk(2, "func WriteYAML encodes yaml output", nil),
		storedChunk(3, "json schema validation and parse helpers", nil),
	}}
	emb := &fakeProvider{embedFn: func(string) ([]float32, error) {
		return nil, embedder.ErrUnavailable
	}}

	r := New(src, emb, 2, nil)
	results, err := r.Retrieve(context.Background(), testProject(), "parse json", 5)
	require.NoError(t, err)
	require.Len(t, results, 2) // the yaml chunk matches neither word

	// Both query words hit chunk 3; only "json" hits chunk 1 ("ParseJSON"
	// lowercases to parsejson, which contains "parse" too, so both score 2
	// and stored order breaks the tie).
	for _, res := range results {
		assert.Greater(t, res.Score, 0.0)
	}
	assert.Equal(t, "func ParseJSON decodes json input", results[0].Content)
}

func TestRetrieve_AllChunkEmbedsFailedFallsBack(t *testing.T) {
	src := &fakeSource{chunks: []store.StoredChunk{
		storedChunk(1, "alpha parse", nil),
		storedChunk(2, "beta parse", nil),
	}}
	// The query embed succeeds, every chunk embed fails.
	calls := 0
	emb := &fakeProvider{embedFn: func(string) ([]float32, error) {
		calls++
		if calls == 1 {
			return []float32{1, 0}, nil
		}
		return nil, embedder.ErrUnavailable
	}}

	r := New(src, emb, 1, nil)
	results, err := r.Retrieve(context.Background(), testProject(), "parse", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2) // lexical path answered
}

func TestRetrieve_NoChunks(t *testing.T) {
	r := New(&fakeSource{}, &fakeProvider{embedFn: func(string) ([]float32, error) {
		return []float32{1}, nil
	}}, 2, nil)

	results, err := r.Retrieve(context.Background(), testProject(), "q", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestTokenize(t *testing.T) {
	words := tokenize("How does the Parser-v2 work?")
	assert.Contains(t, words, "parser")
	assert.Contains(t, words, "v2")
	assert.Contains(t, words, "work")
	assert.NotContains(t, words, "parser-v2")
}
