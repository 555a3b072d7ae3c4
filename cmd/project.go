package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tessera/internal/store"
)

var flagProjectDesc string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name> <folder>",
	Short: "Register a project folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		folder, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			return fmt.Errorf("folder not found: %s", folder)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.CreateProject(cmd.Context(), store.Project{
			Name:                name,
			Description:         flagProjectDesc,
			FolderPath:          folder,
			ChunkSize:           cfg.Retrieval.ChunkSize,
			ChunkOverlap:        cfg.Retrieval.ChunkOverlap,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			MaxContextTokens:    cfg.Retrieval.MaxContextTokens,
			Temperature:         cfg.Retrieval.Temperature,
			TopP:                cfg.Retrieval.TopP,
			EmbeddingModel:      cfg.Ollama.EmbedModel,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		fmt.Printf("Registered project %q (id %d) for %s\n", name, id, folder)
		fmt.Printf("Run 'tessera index %s' to build its index.\n", name)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		projects, err := st.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects registered. Use 'tessera project add <name> <folder>'.")
			return nil
		}

		for _, p := range projects {
			indexed := "never indexed"
			if p.LastIndexed != nil {
				indexed = fmt.Sprintf("%d files, indexed %s", p.TotalFiles, p.LastIndexed.Format("2006-01-02 15:04"))
			}
			fmt.Printf("%-3d %-24s %s (%s)\n", p.ID, p.Name, p.FolderPath, indexed)
		}
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a project and its index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := lookupProject(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		if err := st.DeleteProject(cmd.Context(), p.ID); err != nil {
			return err
		}
		fmt.Printf("Removed project %q and its index.\n", p.Name)
		return nil
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&flagProjectDesc, "description", "", "project description")
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}
