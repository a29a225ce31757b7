// ABOUTME: MCP tool definitions and registration for the podcast RAG server
// ABOUTME: Declares JSON schemas for the question, search, episode and stats tools
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
)

// Server identity reported to MCP clients
const (
	ServerName    = "History of Rome Podcast"
	ServerVersion = "0.1.0"
)

// NewServer creates an MCP server with every podcast tool registered
func NewServer(rag *core.RAGService, logger *slog.Logger) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(ServerName, ServerVersion)
	RegisterTools(server, rag, logger)
	return server
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, rag *core.RAGService, logger *slog.Logger) *Handlers {
	handlers := &Handlers{
		rag:    rag,
		logger: logging.NewComponentLogger(logger, "mcp"),
	}

	// 1. ask_question - answer a question from transcript context
	server.AddTool(mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question about Roman history using retrieved transcript excerpts from The History of Rome podcast. Returns the answer with its cited contexts and timings.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer",
				},
				"context_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of transcript excerpts to retrieve (1-10, default 5)",
					"minimum":     core.MinContextLimit,
					"maximum":     core.MaxContextLimit,
				},
			},
			Required: []string{"question"},
		},
	}, handlers.AskQuestion)

	// 2. search_transcripts - semantic search without generation
	server.AddTool(mcp.Tool{
		Name:        "search_transcripts",
		Description: "Semantic search over podcast transcript chunks. Optionally restrict results to a single episode.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-10, default 5)",
					"minimum":     core.MinContextLimit,
					"maximum":     core.MaxContextLimit,
				},
				"episode": map[string]interface{}{
					"type":        "integer",
					"description": "Only return chunks from this episode number",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchTranscripts)

	// 3. get_episode_summary - leading chunks of one episode
	server.AddTool(mcp.Tool{
		Name:        "get_episode_summary",
		Description: "List the stored transcript segments of one episode with timestamps and an estimated duration.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"episode_number": map[string]interface{}{
					"type":        "integer",
					"description": "Episode number",
				},
				"max_segments": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of segments to return (default 10)",
				},
			},
			Required: []string{"episode_number"},
		},
	}, handlers.GetEpisodeSummary)

	// 4. get_collection_stats - collection overview
	server.AddTool(mcp.Tool{
		Name:        "get_collection_stats",
		Description: "Summarize the indexed transcript collection: point count, episode range, languages and estimated duration.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.GetCollectionStats)

	return handlers
}
