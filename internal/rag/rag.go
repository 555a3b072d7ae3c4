package rag

import (
	"context"
	"fmt"
	"strings"

	"tessera/internal/llm"
	"tessera/internal/retriever"
	"tessera/internal/store"
)

// maxContextChunks caps how many retrieved chunks are stitched into a prompt
// regardless of the token budget.
const maxContextChunks = 5

// Engine answers questions about a project by retrieving relevant chunks and
// handing them to the generation model.
type Engine struct {
	retriever *retriever.Retriever
	gen       llm.Generator
}

// New creates an Engine.
func New(r *retriever.Retriever, gen llm.Generator) *Engine {
	return &Engine{retriever: r, gen: gen}
}

// Answer retrieves context for question and generates a grounded response.
// The retrieved chunks are returned alongside the answer so callers can show
// citations.
func (e *Engine) Answer(ctx context.Context, project store.Project, question string) (string, []retriever.Result, error) {
	results, err := e.retriever.Retrieve(ctx, project, question, maxContextChunks)
	if err != nil {
		return "", nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := BuildPrompt(question, results, project.MaxContextTokens)
	answer, err := e.gen.Generate(ctx, prompt, llm.Options{
		Temperature: project.Temperature,
		TopP:        project.TopP,
	})
	if err != nil {
		return "", results, fmt.Errorf("generate answer: %w", err)
	}
	return answer, results, nil
}

// AnswerStream is Answer with incremental delivery of the generated text.
func (e *Engine) AnswerStream(ctx context.Context, project store.Project, question string, fn func(fragment string)) ([]retriever.Result, error) {
	results, err := e.retriever.Retrieve(ctx, project, question, maxContextChunks)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := BuildPrompt(question, results, project.MaxContextTokens)
	err = e.gen.GenerateStream(ctx, prompt, llm.Options{
		Temperature: project.Temperature,
		TopP:        project.TopP,
	}, fn)
	if err != nil {
		return results, fmt.Errorf("generate answer: %w", err)
	}
	return results, nil
}

// BuildPrompt assembles the generation prompt from the question and the
// retrieved chunks, trimming context to roughly maxContextTokens (estimated
// at four characters per token). With no usable context it falls back to a
// plain question prompt.
func BuildPrompt(question string, results []retriever.Result, maxContextTokens int) string {
	context := buildContext(results, maxContextTokens)
	if context == "" {
		return fmt.Sprintf(`You are a helpful coding assistant. Answer the following question:

%s

Provide a clear and concise response.`, question)
	}

	return fmt.Sprintf(`You are a helpful coding assistant. Use the provided code context to answer questions accurately.

Context from project files:
%s

---

User Question: %s

Please provide a helpful response based on the context above. If the context doesn't contain relevant information, say so clearly.`, context, question)
}

func buildContext(results []retriever.Result, maxContextTokens int) string {
	if maxContextTokens <= 0 {
		maxContextTokens = 4096
	}
	budget := maxContextTokens * 4

	var (
		sections []string
		used     int
	)
	for _, r := range results {
		if len(sections) >= maxContextChunks {
			break
		}
		section := formatChunk(r)
		if used+len(section) > budget && len(sections) > 0 {
			break
		}
		sections = append(sections, section)
		used += len(section)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func formatChunk(r retriever.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s", r.FileName)
	if r.StartLine != nil && r.EndLine != nil {
		fmt.Fprintf(&b, " (lines %d-%d)", *r.StartLine, *r.EndLine)
	}
	b.WriteString("\n")
	b.WriteString(r.Content)
	return b.String()
}
