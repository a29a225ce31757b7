// ABOUTME: CLI command to list example questions
// ABOUTME: Prints the categorized starter questions served by the HTTP API
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/api"
)

// NewExamplesCmd creates the examples command
func NewExamplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List example questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := api.Examples()
			if wantJSON() {
				return printJSON(cmd, categories)
			}

			out := cmd.OutOrStdout()
			for i, category := range categories {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s\n", category.Category)
				for _, q := range category.Questions {
					fmt.Fprintf(out, "  - %s\n", q)
				}
			}
			return nil
		},
	}

	return cmd
}
