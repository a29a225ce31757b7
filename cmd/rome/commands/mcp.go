// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents like Claude query the podcast archive via stdio
package commands

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the podcast archive as an MCP (Model Context Protocol) server,
enabling LLM agents like Claude to ask questions, search transcripts,
and read episode summaries via stdio.

Logs are written to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  rome mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "rome": {
  #       "command": "rome",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	services, logger, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	server := mcp.NewServer(services.RAG, logger)

	logger.Info("MCP server starting on stdio", "collection", services.RAG.Collection())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-cmd.Context().Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
