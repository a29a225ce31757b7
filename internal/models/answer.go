// ABOUTME: Query-path models returned to API, CLI, and MCP callers
// ABOUTME: SearchHit, AnswerResult, Generation, and streaming events
package models

import "time"

// NoContextAnswer is returned when retrieval finds nothing
const NoContextAnswer = "I couldn't find relevant information in the podcast transcripts to answer your question."

// SearchHit is one ranked retrieval result
type SearchHit struct {
	Text          string  `json:"text"`
	EpisodeTitle  string  `json:"episode_title"`
	EpisodeNumber int     `json:"episode_number"`
	Timestamp     string  `json:"timestamp"`
	Score         float64 `json:"score"`
	Duration      *int    `json:"duration,omitempty"`
}

// NewSearchHit converts a scored point into a hit
func NewSearchHit(sp ScoredPoint, withDuration bool) SearchHit {
	hit := SearchHit{
		Text:          sp.Payload.Text,
		EpisodeTitle:  sp.Payload.EpisodeTitle,
		EpisodeNumber: sp.Payload.EpisodeNumber,
		Timestamp:     sp.Payload.Timestamp(),
		Score:         sp.Score,
	}
	if withDuration {
		d := sp.Payload.Duration
		hit.Duration = &d
	}
	return hit
}

// AnswerResult is the response envelope for one question
type AnswerResult struct {
	RequestID      string      `json:"request_id,omitempty"`
	Question       string      `json:"question"`
	Answer         string      `json:"answer"`
	Contexts       []SearchHit `json:"contexts"`
	SearchTime     float64     `json:"search_time"`
	GenerationTime float64     `json:"generation_time"`
	TotalTime      float64     `json:"total_time"`
	Model          string      `json:"model,omitempty"`
	PromptTokens   int         `json:"prompt_tokens,omitempty"`
	Error          bool        `json:"error"`
}

// Generation is the raw output of the answer generator
type Generation struct {
	Text    string
	Model   string
	Elapsed time.Duration
}

// Stream event types, emitted in this order on success
const (
	EventStatus   = "status"
	EventContexts = "contexts"
	EventAnswer   = "answer"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is one phase of a streamed answer
type StreamEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}
