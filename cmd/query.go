package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/retriever"
)

var flagTopK int

var queryCmd = &cobra.Command{
	Use:   "query <project> <question...>",
	Short: "Retrieve the most relevant chunks for a question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args[1:], " ")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		project, err := lookupProject(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}

		k := flagTopK
		if k <= 0 {
			k = cfg.Retrieval.TopK
		}

		r := retriever.New(st, newEmbedder(), cfg.Scan.Workers, logger)
		results, err := r.Retrieve(cmd.Context(), project, question, k)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No relevant chunks found.")
			return nil
		}

		for i, res := range results {
			loc := res.FileName
			if res.StartLine != nil && res.EndLine != nil {
				loc = fmt.Sprintf("%s:%d-%d", res.FileName, *res.StartLine, *res.EndLine)
			}
			fmt.Printf("--- %d. %s (score %.3f) ---\n%s\n\n", i+1, loc, res.Score, res.Content)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&flagTopK, "k", 0, "number of chunks to return (default from config)")
	rootCmd.AddCommand(queryCmd)
}
