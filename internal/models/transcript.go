// ABOUTME: Transcript document model produced by the transcript parser
// ABOUTME: Holds episode header metadata and the ordered timed segments
package models

// Default header values applied when a transcript omits a field
const (
	DefaultLanguage = "en"
	DefaultModel    = "unknown"
	DefaultDevice   = "unknown"
)

// Segment is the smallest timestamped unit of a transcript
type Segment struct {
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	Text      string `json:"text"`
}

// Duration returns the segment length in seconds
func (s Segment) Duration() int {
	return s.EndTime - s.StartTime
}

// EpisodeMetadata is the header block of a transcript file
type EpisodeMetadata struct {
	EpisodeTitle    string  `json:"episode_title"`
	Language        string  `json:"language"`
	DurationSeconds float64 `json:"duration_seconds"`
	ModelName       string  `json:"model_name"`
	Device          string  `json:"device"`
	SourcePath      string  `json:"source_path"`
}

// TranscriptDocument is one parsed transcript file
type TranscriptDocument struct {
	Metadata EpisodeMetadata `json:"metadata"`
	Segments []Segment       `json:"segments"`
}
