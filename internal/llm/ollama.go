package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tessera/internal/embedder"
)

// Options are the sampling parameters for a generation call.
type Options struct {
	Temperature float64
	TopP        float64
}

// Generator produces text from a prompt, optionally streaming fragments.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	GenerateStream(ctx context.Context, prompt string, opts Options, fn func(fragment string)) error
}

// Ollama calls the Ollama /api/generate endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a generation client for the given instance and model.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured generation model name.
func (o *Ollama) Model() string { return o.model }

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt and returns the full response text.
func (o *Ollama) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := o.post(ctx, prompt, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return result.Response, nil
}

// GenerateStream sends the prompt and delivers response fragments to fn as
// they arrive. The response is NDJSON, one fragment per line.
func (o *Ollama) GenerateStream(ctx context.Context, prompt string, opts Options, fn func(fragment string)) error {
	resp, err := o.post(ctx, prompt, opts, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue // malformed progress line, keep reading
		}
		if chunk.Response != "" {
			fn(chunk.Response)
		}
		if chunk.Done {
			break
		}
	}
	return scanner.Err()
}

func (o *Ollama) post(ctx context.Context, prompt string, opts Options, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{
		Model:       o.model,
		Prompt:      prompt,
		Stream:      stream,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedder.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: generate returned %d: %s", embedder.ErrUnavailable, resp.StatusCode, string(respBody))
	}
	return resp, nil
}
