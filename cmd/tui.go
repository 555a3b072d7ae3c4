package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tessera/internal/rag"
	"tessera/internal/retriever"
	"tessera/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui <project>",
	Short: "Chat with a project in a terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		project, err := lookupProject(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		if project.LastIndexed == nil {
			return fmt.Errorf("project %q has not been indexed yet\nRun 'tessera index %s' first", project.Name, project.Name)
		}

		r := retriever.New(st, newEmbedder(), cfg.Scan.Workers, logger)
		return tui.Run(tui.Config{
			Engine:  rag.New(r, newGenerator()),
			Project: project,
		})
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
