package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagPull bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check provider availability and list local models",
	RunE: func(cmd *cobra.Command, args []string) error {
		emb := newEmbedder()

		if !emb.Available(cmd.Context()) {
			fmt.Printf("Ollama: unavailable at %s\n", cfg.Ollama.BaseURL)
			fmt.Println("Retrieval will fall back to keyword matching until it is reachable.")
			return nil
		}

		fmt.Printf("Ollama: available at %s\n", cfg.Ollama.BaseURL)
		fmt.Printf("  embed model: %s\n", cfg.Ollama.EmbedModel)
		fmt.Printf("  chat model:  %s\n", cfg.Ollama.ChatModel)

		models, err := emb.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("\nLocal models (%d):\n", len(models))
		for _, m := range models {
			fmt.Printf("  %s\n", m)
		}

		var missing []string
		for _, want := range []string{cfg.Ollama.EmbedModel, cfg.Ollama.ChatModel} {
			if !hasModel(models, want) {
				missing = append(missing, want)
			}
		}
		if len(missing) == 0 {
			return nil
		}

		if !flagPull {
			fmt.Printf("\nMissing models: %s\n", strings.Join(missing, ", "))
			fmt.Println("Run 'tessera status --pull' to download them.")
			return nil
		}
		for _, m := range missing {
			fmt.Printf("\nPulling %s (this can take a while)...\n", m)
			if err := emb.Pull(cmd.Context(), m); err != nil {
				return fmt.Errorf("pull %s: %w", m, err)
			}
			fmt.Printf("Pulled %s.\n", m)
		}
		return nil
	},
}

// hasModel matches a configured model name against the local list, treating
// a missing tag as :latest the way Ollama does.
func hasModel(models []string, want string) bool {
	for _, m := range models {
		if m == want || m == want+":latest" {
			return true
		}
	}
	return false
}

func init() {
	statusCmd.Flags().BoolVar(&flagPull, "pull", false, "download any missing configured models")
	rootCmd.AddCommand(statusCmd)
}
