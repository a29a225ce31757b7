// ABOUTME: Aggregate views over the indexed collection
// ABOUTME: Episode summaries, collection statistics, status, and ingest reports
package models

// EpisodeSegment is one stored chunk shown in an episode summary
type EpisodeSegment struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Duration  int    `json:"duration"`
}

// EpisodeSummary lists the leading chunks of one episode
type EpisodeSummary struct {
	EpisodeNumber     int              `json:"episode_number"`
	EpisodeTitle      string           `json:"episode_title"`
	TotalSegments     int              `json:"total_segments"`
	Segments          []EpisodeSegment `json:"segments"`
	EstimatedDuration int              `json:"estimated_duration"`
}

// CollectionStats summarizes a sample of the collection
type CollectionStats struct {
	TotalPoints                   int64    `json:"total_points"`
	TotalVectors                  int64    `json:"total_vectors"`
	UniqueEpisodes                int      `json:"unique_episodes"`
	EpisodeRange                  string   `json:"episode_range"`
	EstimatedTotalDurationSeconds int      `json:"estimated_total_duration_seconds"`
	EstimatedTotalDurationHours   float64  `json:"estimated_total_duration_hours"`
	Languages                     []string `json:"languages"`
	VectorSize                    int      `json:"vector_size"`
}

// Component health values
const (
	StatusHealthy = "healthy"
	StatusError   = "error"
)

// ComponentStatus reports the health of one collaborator
type ComponentStatus struct {
	Status          string   `json:"status"`
	Details         string   `json:"details"`
	PointsCount     *int64   `json:"points_count,omitempty"`
	AvailableModels []string `json:"available_models,omitempty"`
}

// SystemStatus reports every collaborator
type SystemStatus struct {
	VectorStore ComponentStatus `json:"vector_store"`
	Generator   ComponentStatus `json:"generator"`
	Collection  ComponentStatus `json:"collection"`
}

// Healthy reports whether every component is healthy
func (s SystemStatus) Healthy() bool {
	return s.VectorStore.Status == StatusHealthy &&
		s.Generator.Status == StatusHealthy &&
		s.Collection.Status == StatusHealthy
}

// SkippedFile records a transcript that failed to parse
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IngestReport summarizes one ingestion run
type IngestReport struct {
	Collection     string        `json:"collection"`
	FilesFound     int           `json:"files_found"`
	FilesParsed    int           `json:"files_parsed"`
	Skipped        []SkippedFile `json:"skipped,omitempty"`
	ChunksCreated  int           `json:"chunks_created"`
	PointsUploaded int           `json:"points_uploaded"`
	VectorSize     int           `json:"vector_size"`
}
