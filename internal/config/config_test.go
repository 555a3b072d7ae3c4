package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Equal(t, "deepseek-coder:6.7b", cfg.Ollama.ChatModel)
	assert.Equal(t, 1000, cfg.Scan.MaxFiles)
	assert.Equal(t, 10, cfg.Scan.MaxFileSizeMB)
	assert.Contains(t, cfg.Scan.DenyExts, ".pyc")
	assert.Contains(t, cfg.Scan.DenyExts, ".exe")
	assert.Equal(t, 1000, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 100, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 0.25, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 4096, cfg.Retrieval.MaxContextTokens)
	assert.Equal(t, 0.3, cfg.Retrieval.Temperature)
	assert.Equal(t, 0.9, cfg.Retrieval.TopP)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval, cfg.Retrieval)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tessera.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ollama:\n  embed_model: custom-embed\nretrieval:\n  chunk_size: 500\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-embed", cfg.Ollama.EmbedModel)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)

	// Everything not set keeps its default.
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 100, cfg.Retrieval.ChunkOverlap)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ollama: [not: a: map\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Ollama.BaseURL = "http://example:11434"
	cfg.Retrieval.TopK = 12
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://example:11434", loaded.Ollama.BaseURL)
	assert.Equal(t, 12, loaded.Retrieval.TopK)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TESSERA_OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("TESSERA_EMBED_MODEL", "mxbai-embed-large")
	t.Setenv("TESSERA_DB", "/tmp/override.db")

	path := filepath.Join(t.TempDir(), "tessera.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "mxbai-embed-large", cfg.Ollama.EmbedModel)
	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}
