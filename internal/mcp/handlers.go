// ABOUTME: MCP tool handler implementations for the podcast RAG server
// ABOUTME: Each handler validates arguments, calls the RAG service and returns JSON text
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	rag    *core.RAGService
	logger *slog.Logger
}

// searchResponse mirrors the HTTP search payload
type searchResponse struct {
	Query   string             `json:"query"`
	Episode int                `json:"episode,omitempty"`
	Results []models.SearchHit `json:"results"`
	Count   int                `json:"count"`
}

// AskQuestion handles the ask_question tool
func (h *Handlers) AskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question argument is required and must be a non-empty string"), nil
	}
	limit := core.ClampContextLimit(request.GetInt("context_limit", core.DefaultContextLimit))

	result, err := h.rag.Ask(ctx, strings.TrimSpace(question), limit)
	if err != nil {
		h.logger.Error("ask_question failed", logging.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to answer question: %v", err)), nil
	}
	return jsonResult(result)
}

// SearchTranscripts handles the search_transcripts tool
func (h *Handlers) SearchTranscripts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument is required and must be a non-empty string"), nil
	}
	limit := core.ClampContextLimit(request.GetInt("limit", core.DefaultContextLimit))
	episode := request.GetInt("episode", 0)
	if episode < 0 {
		return mcp.NewToolResultError("episode must be a positive integer"), nil
	}

	hits, err := h.rag.Search(ctx, strings.TrimSpace(query), limit, episode)
	if err != nil {
		h.logger.Error("search_transcripts failed", logging.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(searchResponse{
		Query:   query,
		Episode: episode,
		Results: hits,
		Count:   len(hits),
	})
}

// GetEpisodeSummary handles the get_episode_summary tool
func (h *Handlers) GetEpisodeSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	episode, err := request.RequireInt("episode_number")
	if err != nil || episode < 0 {
		return mcp.NewToolResultError("episode_number argument is required and must be a non-negative integer"), nil
	}
	maxSegments := request.GetInt("max_segments", core.DefaultEpisodeSegments)

	summary, err := h.rag.EpisodeSummary(ctx, episode, maxSegments)
	if errors.Is(err, core.ErrEpisodeNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Episode %d not found", episode)), nil
	}
	if err != nil {
		h.logger.Error("get_episode_summary failed", slog.Int("episode", episode), logging.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to load episode: %v", err)), nil
	}
	return jsonResult(summary)
}

// GetCollectionStats handles the get_collection_stats tool
func (h *Handlers) GetCollectionStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.rag.CollectionStats(ctx)
	if err != nil {
		h.logger.Error("get_collection_stats failed", logging.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute stats: %v", err)), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
