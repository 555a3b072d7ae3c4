package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"tessera/internal/index"
)

var flagWorkers int

var indexCmd = &cobra.Command{
	Use:   "index <project>",
	Short: "Rebuild a project's index from its folder",
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

		coord := index.New(st, newEmbedder(), scanConfig(), flagWorkers, logger)

		fmt.Printf("Indexing %s (%s)...\n", project.Name, project.FolderPath)
		start := time.Now()

		stats, err := coord.Reindex(cmd.Context(), project)
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Files:  %d scanned, %d indexed, %d skipped\n",
			stats.FilesScanned, stats.FilesIndexed, stats.FilesSkipped)
		fmt.Printf("  Chunks: %d (%d embedded)\n", stats.Chunks, stats.Embedded)
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "parallel workers")
	rootCmd.AddCommand(indexCmd)
}
