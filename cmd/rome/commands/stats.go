// ABOUTME: CLI command to summarize the indexed collection
// ABOUTME: Shows point count, episode range, languages and estimated duration
package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the indexed collection",
		Long: `Summarize the indexed transcript collection.

Counts are exact; episode, language and duration figures come from a
sample of up to 1000 points.`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	services, _, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	stats, err := services.RAG.CollectionStats(cmd.Context())
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd, stats)
	}

	rows := [][]string{
		{"Collection", services.RAG.Collection()},
		{"Points", strconv.FormatInt(stats.TotalPoints, 10)},
		{"Vector size", strconv.Itoa(stats.VectorSize)},
		{"Episodes (sampled)", strconv.Itoa(stats.UniqueEpisodes)},
		{"Episode range", stats.EpisodeRange},
		{"Languages", strings.Join(stats.Languages, ", ")},
		{"Estimated hours", fmt.Sprintf("%.1f", stats.EstimatedTotalDurationHours)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Statistic", "Value"}, rows,
		[]columnAlignment{alignLeft, alignRight}))
	return nil
}
