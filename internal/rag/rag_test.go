package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/llm"
	"tessera/internal/retriever"
	"tessera/internal/store"
)

func intp(v int) *int { return &v }

func result(file, content string) retriever.Result {
	return retriever.Result{
		Content:   content,
		FileName:  file,
		RelPath:   "src/" + file,
		StartLine: intp(0),
		EndLine:   intp(10),
		Score:     0.9,
	}
}

func TestBuildPrompt_WithContext(t *testing.T) {
	prompt := BuildPrompt("how does parsing work?", []retriever.Result{
		result("parser.go", "func Parse(input string) (AST, error) { ... }"),
	}, 4096)

	assert.Contains(t, prompt, "Context from project files:")
	assert.Contains(t, prompt, "File: parser.go (lines 0-10)")
	assert.Contains(t, prompt, "func Parse(input string)")
	assert.Contains(t, prompt, "User Question: how does parsing work?")
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt := BuildPrompt("what is a goroutine?", nil, 4096)
	assert.Contains(t, prompt, "Answer the following question:")
	assert.Contains(t, prompt, "what is a goroutine?")
	assert.NotContains(t, prompt, "Context from project files:")
}

func TestBuildPrompt_OmitsLinesWhenUnknown(t *testing.T) {
	r := result("notes.md", "prose content")
	r.StartLine = nil
	r.EndLine = nil
	prompt := BuildPrompt("q", []retriever.Result{r}, 4096)
	assert.Contains(t, prompt, "File: notes.md\nprose content")
	assert.NotContains(t, prompt, "lines")
}

func TestBuildPrompt_BudgetTruncates(t *testing.T) {
	big := strings.Repeat("x", 2000)
	results := []retriever.Result{
		result("a.go", big),
		result("b.go", big),
		result("c.go", big),
	}

	// ~500 tokens of budget fits one 2000-char chunk but not two.
	prompt := BuildPrompt("q", results, 500)
	assert.Contains(t, prompt, "File: a.go")
	assert.NotContains(t, prompt, "File: b.go")
}

func TestBuildPrompt_ChunkCap(t *testing.T) {
	var results []retriever.Result
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		results = append(results, result(name+".go", "content of "+name))
	}
	prompt := BuildPrompt("q", results, 1<<20)

	assert.Contains(t, prompt, "File: e.go")
	assert.NotContains(t, prompt, "File: f.go")
	assert.NotContains(t, prompt, "File: g.go")
}

// fixedSource feeds one pre-embedded chunk to the retriever.
type fixedSource struct{}

func (fixedSource) ListChunks(context.Context, int64) ([]store.StoredChunk, error) {
	return []store.StoredChunk{{
		ChunkRecord: store.ChunkRecord{ID: 1, Content: "func Handler() {}", Embedding: []float32{1, 0}},
		FileName:    "handler.go",
		RelPath:     "srv/handler.go",
	}}, nil
}

func (fixedSource) UpdateChunkEmbedding(context.Context, int64, []float32) error { return nil }

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fixedEmbedder) Available(context.Context) bool { return true }

// echoGenerator returns a canned answer and records the prompt and options.
type echoGenerator struct {
	prompt string
	opts   llm.Options
}

func (g *echoGenerator) Generate(_ context.Context, prompt string, opts llm.Options) (string, error) {
	g.prompt = prompt
	g.opts = opts
	return "canned answer", nil
}

func (g *echoGenerator) GenerateStream(_ context.Context, prompt string, opts llm.Options, fn func(string)) error {
	g.prompt = prompt
	g.opts = opts
	fn("canned ")
	fn("answer")
	return nil
}

func TestAnswer(t *testing.T) {
	gen := &echoGenerator{}
	engine := New(retriever.New(fixedSource{}, fixedEmbedder{}, 1, nil), gen)
	project := store.Project{ID: 1, Name: "p", SimilarityThreshold: 0.25, Temperature: 0.3, TopP: 0.9, MaxContextTokens: 4096}

	answer, sources, err := engine.Answer(context.Background(), project, "what handles requests?")
	require.NoError(t, err)
	assert.Equal(t, "canned answer", answer)
	require.Len(t, sources, 1)
	assert.Equal(t, "handler.go", sources[0].FileName)

	assert.Contains(t, gen.prompt, "func Handler() {}")
	assert.Equal(t, 0.3, gen.opts.Temperature)
	assert.Equal(t, 0.9, gen.opts.TopP)
}

func TestAnswerStream(t *testing.T) {
	gen := &echoGenerator{}
	engine := New(retriever.New(fixedSource{}, fixedEmbedder{}, 1, nil), gen)
	project := store.Project{ID: 1, Name: "p", SimilarityThreshold: 0.25, MaxContextTokens: 4096}

	var got string
	sources, err := engine.AnswerStream(context.Background(), project, "q", func(fragment string) {
		got += fragment
	})
	require.NoError(t, err)
	assert.Equal(t, "canned answer", got)
	require.Len(t, sources, 1)
}
