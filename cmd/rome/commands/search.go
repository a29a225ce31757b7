// ABOUTME: CLI command to search podcast transcripts
// ABOUTME: Semantic search without answer generation, optionally within one episode
package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

var (
	searchLimit   int
	searchEpisode int
)

// searchOutput is the JSON shape of search results
type searchOutput struct {
	Query   string             `json:"query"`
	Episode int                `json:"episode,omitempty"`
	Results []models.SearchHit `json:"results"`
	Count   int                `json:"count"`
}

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search transcripts",
		Long: `Search transcript excerpts by meaning.

Embeds the query and returns the closest transcript chunks with their
episode, timestamp and similarity score. No answer is generated.

Examples:
  rome search "elephants in the Alps"
  rome search --limit 10 "Sulla marches on Rome"
  rome search --episode 14 "Cannae"
  rome search --format json "Gracchi land reform"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", core.DefaultContextLimit, "Maximum results to return (1-10)")
	cmd.Flags().IntVar(&searchEpisode, "episode", 0, "Only search this episode number")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	if searchEpisode < 0 {
		return fmt.Errorf("episode must be positive, got %d", searchEpisode)
	}
	query := strings.TrimSpace(strings.Join(args, " "))

	services, _, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	hits, err := services.RAG.Search(cmd.Context(), query, core.ClampContextLimit(searchLimit), searchEpisode)
	if err != nil {
		return fmt.Errorf("searching transcripts: %w", err)
	}

	if wantJSON() {
		return printJSON(cmd, searchOutput{Query: query, Episode: searchEpisode, Results: hits, Count: len(hits)})
	}

	if len(hits) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No excerpts found for query: %s\n", query)
		}
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for _, hit := range hits {
		duration := ""
		if hit.Duration != nil {
			duration = formatDuration(*hit.Duration)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%.3f", hit.Score),
			strconv.Itoa(hit.EpisodeNumber),
			truncate(hit.EpisodeTitle, 30),
			hit.Timestamp,
			duration,
			truncate(hit.Text, 60),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Score", "Episode", "Title", "Time", "Length", "Excerpt"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d result(s)\n", len(hits))
	}
	return nil
}
