package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/rag"
	"tessera/internal/retriever"
)

var chatCmd = &cobra.Command{
	Use:   "chat <project>",
	Short: "Ask questions about a project interactively",
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
		engine := rag.New(r, newGenerator())

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Printf("tessera chat — project %q (type /help for commands, /exit to quit)\n\n", project.Name)

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			switch question {
			case "/exit", "/quit":
				fmt.Println("Goodbye.")
				return nil
			case "/help":
				fmt.Println("Commands:")
				fmt.Println("  /exit   - quit chat")
				fmt.Println("  /help   - show this help")
				continue
			}

			sources, err := engine.AnswerStream(cmd.Context(), project, question, func(fragment string) {
				fmt.Print(fragment)
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
				continue
			}
			fmt.Println()

			if len(sources) > 0 {
				var refs []string
				for _, s := range sources {
					if s.StartLine != nil && s.EndLine != nil {
						refs = append(refs, fmt.Sprintf("%s:%d-%d", s.FileName, *s.StartLine, *s.EndLine))
					} else {
						refs = append(refs, s.FileName)
					}
				}
				fmt.Printf("\n[sources: %s]\n", strings.Join(refs, ", "))
			}
			fmt.Println()
		}

		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
