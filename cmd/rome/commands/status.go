// ABOUTME: CLI command to check collaborator health
// ABOUTME: Reports vector store, generator and collection status
package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check vector store, model and collection health",
		Long: `Check the health of every collaborator.

Exits with an error when any component is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	services, _, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	status := services.RAG.Status(cmd.Context())

	if wantJSON() {
		if err := printJSON(cmd, status); err != nil {
			return err
		}
	} else {
		rows := [][]string{
			statusRow("Vector store", status.VectorStore),
			statusRow("Generator", status.Generator),
			statusRow("Collection", status.Collection),
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Component", "Status", "Details"}, rows, nil))
	}

	if !status.Healthy() {
		return errors.New("one or more components are unhealthy")
	}
	return nil
}

func statusRow(name string, c models.ComponentStatus) []string {
	details := c.Details
	if c.PointsCount != nil {
		details += " (" + strconv.FormatInt(*c.PointsCount, 10) + " points)"
	}
	if len(c.AvailableModels) > 0 {
		details += " [" + strings.Join(c.AvailableModels, ", ") + "]"
	}
	return []string{name, c.Status, truncate(details, 70)}
}
