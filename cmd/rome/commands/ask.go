// ABOUTME: CLI command to ask a question about the podcast
// ABOUTME: Prints the generated answer with its source excerpts, optionally streaming phases
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

var (
	askLimit  int
	askStream bool
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about Roman history",
		Long: `Ask a question answered from The History of Rome transcripts.

Retrieves the most relevant transcript excerpts, asks the language model
to answer from them, and prints the answer with episode citations.

Examples:
  rome ask "How did Hannibal cross the Alps?"
  rome ask --limit 8 "Why did the Republic fall?"
  rome ask --stream "Who was Cincinnatus?"
  rome ask --format json "What happened at Cannae?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().IntVar(&askLimit, "limit", core.DefaultContextLimit, "Number of excerpts to retrieve (1-10)")
	cmd.Flags().BoolVar(&askStream, "stream", false, "Print progress phases as they happen")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(askLimit, "limit"); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	services, _, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	limit := core.ClampContextLimit(askLimit)
	if askStream {
		return streamAsk(cmd, services.RAG, question, limit)
	}

	result, err := services.RAG.Ask(cmd.Context(), question, limit)
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd, result)
	}
	printAnswer(cmd, result)
	return nil
}

func streamAsk(cmd *cobra.Command, rag *core.RAGService, question string, limit int) error {
	emit := func(event models.StreamEvent) error {
		if wantJSON() {
			return printJSON(cmd, event)
		}
		switch event.Type {
		case models.EventStatus:
			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "... %s\n", event.Message)
			}
		case models.EventContexts:
			if hits, ok := event.Data.([]models.SearchHit); ok && !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "... found %d relevant excerpt(s)\n", len(hits))
			}
		case models.EventAnswer:
			if result, ok := event.Data.(*models.AnswerResult); ok {
				printAnswer(cmd, result)
			}
		}
		return nil
	}
	return rag.AskStream(cmd.Context(), question, limit, emit)
}

func printAnswer(cmd *cobra.Command, result *models.AnswerResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", result.Answer)
	if quiet || len(result.Contexts) == 0 {
		return
	}

	rows := make([][]string, 0, len(result.Contexts))
	for _, c := range result.Contexts {
		rows = append(rows, []string{
			fmt.Sprintf("%.3f", c.Score),
			fmt.Sprintf("%d", c.EpisodeNumber),
			c.Timestamp,
			truncate(c.Text, 60),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Score", "Episode", "Time", "Excerpt"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft}))
	fmt.Fprintf(out, "search %.2fs, generation %.2fs, total %.2fs\n",
		result.SearchTime, result.GenerationTime, result.TotalTime)
}
