package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OllamaConfig holds connection details for the local Ollama instance.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	EmbedModel  string `yaml:"embed_model"`
	ChatModel   string `yaml:"chat_model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ScanConfig bounds what the file scanner will pick up.
type ScanConfig struct {
	MaxFiles      int      `yaml:"max_files"`
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	AllowExts     []string `yaml:"allow_exts,omitempty"`
	DenyExts      []string `yaml:"deny_exts,omitempty"`
	DenyNames     []string `yaml:"deny_names,omitempty"`
	Workers       int      `yaml:"workers"`
}

// RetrievalConfig is the default per-project retrieval tuning. New projects
// inherit these values; each project keeps its own copy in the store.
type RetrievalConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopK                int     `yaml:"top_k"`
	MaxContextTokens    int     `yaml:"max_context_tokens"`
	Temperature         float64 `yaml:"temperature"`
	TopP                float64 `yaml:"top_p"`
}

// Config is the root application configuration.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Scan      ScanConfig      `yaml:"scan"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// denyExts excludes binaries and media by default. The original deny set:
// anything that is not text worth embedding.
var denyExts = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico", ".tiff",
	".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv", ".webm", ".m4v", ".mpg", ".mpeg",
	".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a",
	".zip", ".rar", ".7z", ".tar", ".gz", ".bz2",
	".exe", ".dll", ".so", ".dylib", ".bin", ".o", ".pyc", ".pyo",
}

// Load reads a config from the given path. A missing file returns defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./tessera.yaml first, then ~/.config/tessera/config.yaml.
// If neither exists, defaults are written to the user path and returned.
func LoadDefault() (*Config, string, error) {
	cwdPath := "tessera.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := userConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	applyEnv(cfg)
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func userConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tessera", "config.yaml"), nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".local", "share", "tessera", "tessera.db")
		} else {
			cfg.DBPath = "tessera.db"
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}
	if cfg.Ollama.ChatModel == "" {
		cfg.Ollama.ChatModel = "deepseek-coder:6.7b"
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = 300
	}
	if cfg.Scan.MaxFiles == 0 {
		cfg.Scan.MaxFiles = 1000
	}
	if cfg.Scan.MaxFileSizeMB == 0 {
		cfg.Scan.MaxFileSizeMB = 10
	}
	if cfg.Scan.DenyExts == nil {
		cfg.Scan.DenyExts = append([]string(nil), denyExts...)
	}
	if cfg.Scan.DenyNames == nil {
		cfg.Scan.DenyNames = []string{"node_modules", ".ds_store"}
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 8
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 1000
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 100
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.25
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxContextTokens == 0 {
		cfg.Retrieval.MaxContextTokens = 4096
	}
	if cfg.Retrieval.Temperature == 0 {
		cfg.Retrieval.Temperature = 0.3
	}
	if cfg.Retrieval.TopP == 0 {
		cfg.Retrieval.TopP = 0.9
	}
}

// applyEnv overrides connection settings from the environment so a .env file
// can point at a non-default Ollama without editing the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TESSERA_OLLAMA_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("TESSERA_EMBED_MODEL"); v != "" {
		cfg.Ollama.EmbedModel = v
	}
	if v := os.Getenv("TESSERA_CHAT_MODEL"); v != "" {
		cfg.Ollama.ChatModel = v
	}
	if v := os.Getenv("TESSERA_DB"); v != "" {
		cfg.DBPath = v
	}
}
