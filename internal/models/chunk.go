// ABOUTME: Chunk represents a span of consecutive transcript segments for embedding
// ABOUTME: Carries its time range and a read-only pointer to the episode metadata
package models

// Chunk is a bounded span of space-joined segment text
type Chunk struct {
	Text         string           `json:"text"`
	StartTime    int              `json:"start_time"`
	EndTime      int              `json:"end_time"`
	Segments     []Segment        `json:"segments"`
	EpisodeTitle string           `json:"episode_title"`
	Episode      *EpisodeMetadata `json:"-"`
}

// Duration returns the chunk length in seconds
func (c Chunk) Duration() int {
	return c.EndTime - c.StartTime
}
