package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/embedder"
	"tessera/internal/llm"
	"tessera/internal/scanner"
	"tessera/internal/store"
)

var (
	flagConfig     string
	flagDB         string
	flagOllama     string
	flagEmbedModel string
	flagChatModel  string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Index project folders and answer questions about them with local models",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if flagConfig != "" {
			cfg, err = config.Load(flagConfig)
		} else {
			cfg, _, err = config.LoadDefault()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Flags win over config file and environment.
		if flagDB != "" {
			cfg.DBPath = flagDB
		}
		if flagOllama != "" {
			cfg.Ollama.BaseURL = flagOllama
		}
		if flagEmbedModel != "" {
			cfg.Ollama.EmbedModel = flagEmbedModel
		}
		if flagChatModel != "" {
			cfg.Ollama.ChatModel = flagChatModel
		}

		level := slog.LevelInfo
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default ./tessera.yaml or ~/.config/tessera/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagEmbedModel, "embed-model", "", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "", "generative model for chat")
}

func openStore() (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return store.Open(cfg.DBPath)
}

func newEmbedder() *embedder.Ollama {
	return embedder.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel,
		time.Duration(cfg.Ollama.TimeoutSecs)*time.Second)
}

func newGenerator() *llm.Ollama {
	return llm.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel,
		time.Duration(cfg.Ollama.TimeoutSecs)*time.Second)
}

func scanConfig() scanner.Config {
	return scanner.Config{
		AllowExts:   cfg.Scan.AllowExts,
		DenyExts:    cfg.Scan.DenyExts,
		DenyNames:   cfg.Scan.DenyNames,
		MaxFiles:    cfg.Scan.MaxFiles,
		MaxFileSize: int64(cfg.Scan.MaxFileSizeMB) << 20,
		Workers:     cfg.Scan.Workers,
	}
}

// lookupProject resolves a project by name, falling back to a numeric ID.
func lookupProject(ctx context.Context, st store.Store, key string) (store.Project, error) {
	p, err := st.GetProjectByName(ctx, key)
	if err == nil {
		return p, nil
	}
	id, convErr := strconv.ParseInt(key, 10, 64)
	if convErr != nil {
		return store.Project{}, err
	}
	return st.GetProject(ctx, id)
}
