package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/embedder"
)

func TestOllama_Generate(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(generateResponse{Response: "the answer", Done: true})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "deepseek-coder:6.7b", time.Minute)
	out, err := o.Generate(context.Background(), "question?", Options{Temperature: 0.3, TopP: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)

	assert.Equal(t, "deepseek-coder:6.7b", gotReq.Model)
	assert.Equal(t, "question?", gotReq.Prompt)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, 0.3, gotReq.Temperature)
	assert.Equal(t, 0.9, gotReq.TopP)
}

func TestOllama_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)

		w.Write([]byte(`{"response": "Hello", "done": false}` + "\n"))
		w.Write([]byte("\n"))                // blank line is skipped
		w.Write([]byte("not json at all\n")) // malformed progress line is skipped
		w.Write([]byte(`{"response": " world", "done": false}` + "\n"))
		w.Write([]byte(`{"response": "", "done": true}` + "\n"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "m", time.Minute)
	var got string
	err := o.GenerateStream(context.Background(), "q", Options{}, func(fragment string) {
		got += fragment
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
}

func TestOllama_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "m", time.Minute)
	_, err := o.Generate(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrUnavailable)
}

func TestOllama_GenerateConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	o := NewOllama(srv.URL, "m", time.Second)
	err := o.GenerateStream(context.Background(), "q", Options{}, func(string) {})
	assert.ErrorIs(t, err, embedder.ErrUnavailable)
}
