// ABOUTME: CLI command to show the stored segments of one episode
// ABOUTME: Lists segment timestamps and text with an estimated duration
package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
)

var episodeMaxSegments int

// NewEpisodeCmd creates the episode command
func NewEpisodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episode <number>",
		Short: "Show the indexed segments of an episode",
		Long: `Show the indexed transcript segments of one episode.

Examples:
  rome episode 1
  rome episode 14 --max-segments 25
  rome episode 73 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runEpisode,
	}

	cmd.Flags().IntVar(&episodeMaxSegments, "max-segments", core.DefaultEpisodeSegments, "Maximum segments to show")

	return cmd
}

func runEpisode(cmd *cobra.Command, args []string) error {
	number, err := strconv.Atoi(args[0])
	if err != nil || number <= 0 {
		return fmt.Errorf("episode number must be a positive integer, got %q", args[0])
	}
	if err := validatePositiveInt(episodeMaxSegments, "max-segments"); err != nil {
		return err
	}

	services, _, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	summary, err := services.RAG.EpisodeSummary(cmd.Context(), number, episodeMaxSegments)
	if errors.Is(err, core.ErrEpisodeNotFound) {
		return fmt.Errorf("episode %d not found", number)
	}
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd, summary)
	}

	out := cmd.OutOrStdout()
	if !quiet {
		fmt.Fprintf(out, "Episode %d: %s\n", summary.EpisodeNumber, summary.EpisodeTitle)
	}
	rows := make([][]string, 0, len(summary.Segments))
	for _, seg := range summary.Segments {
		rows = append(rows, []string{seg.Timestamp, formatDuration(seg.Duration), truncate(seg.Text, 70)})
	}
	fmt.Fprintln(out, renderTable([]string{"Time", "Length", "Text"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
	if !quiet {
		fmt.Fprintf(out, "%d segment(s), about %s\n", summary.TotalSegments, formatDuration(summary.EstimatedDuration))
	}
	return nil
}
