// ABOUTME: CLI command to run the HTTP query service
// ABOUTME: Binds the listen address at once and connects collaborators in the background
package commands

import (
	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/app"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP question answering service",
		Long: `Run the HTTP question answering service.

The server listens on SERVER_HOST:SERVER_PORT immediately and answers
/health right away; query endpoints return 503 until the vector store,
embedder and language model are connected. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.Serve(cmd.Context(), cfg, app.WithLogger(logger))
		},
	}

	return cmd
}
