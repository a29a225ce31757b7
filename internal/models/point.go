// ABOUTME: Vector store point, payload, and filter types
// ABOUTME: Payload carries chunk text plus episode provenance for retrieval
package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Payload field names used for filtering
const (
	FieldEpisodeNumber = "episode_number"
	FieldEpisodeTitle  = "episode_title"
)

var episodeNumberPattern = regexp.MustCompile(`\d+`)

// Payload is the metadata stored alongside each vector
type Payload struct {
	Text           string `json:"text"`
	EpisodeTitle   string `json:"episode_title"`
	EpisodeNumber  int    `json:"episode_number"`
	StartTime      int    `json:"start_time"`
	EndTime        int    `json:"end_time"`
	Duration       int    `json:"duration"`
	Language       string `json:"language"`
	Model          string `json:"model"`
	Device         string `json:"device"`
	FilePath       string `json:"file_path"`
	SegmentCount   int    `json:"segment_count"`
	TimestampStart string `json:"timestamp_start"`
	TimestampEnd   string `json:"timestamp_end"`
}

// Timestamp renders the payload range as "MM:SS --> MM:SS"
func (p Payload) Timestamp() string {
	return fmt.Sprintf("%s --> %s", p.TimestampStart, p.TimestampEnd)
}

// Point is a vector with its id and payload
type Point struct {
	ID      int64     `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a search result from the vector store
type ScoredPoint struct {
	ID      int64   `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// FieldMatch is an equality condition on a payload field
type FieldMatch struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Filter holds conditions that must all match
type Filter struct {
	Must []FieldMatch `json:"must"`
}

// EpisodeFilter matches points belonging to one episode
func EpisodeFilter(episode int) *Filter {
	return &Filter{Must: []FieldMatch{{Key: FieldEpisodeNumber, Value: strconv.Itoa(episode)}}}
}

// Matches reports whether the payload satisfies every condition
func (f *Filter) Matches(p Payload) bool {
	if f == nil {
		return true
	}
	for _, m := range f.Must {
		var actual string
		switch m.Key {
		case FieldEpisodeNumber:
			actual = strconv.Itoa(p.EpisodeNumber)
		case FieldEpisodeTitle:
			actual = p.EpisodeTitle
		case "language":
			actual = p.Language
		case "file_path":
			actual = p.FilePath
		default:
			return false
		}
		if actual != m.Value {
			return false
		}
	}
	return true
}

// SearchOptions bounds a similarity search
type SearchOptions struct {
	Limit  int
	Filter *Filter
}

// CollectionInfo describes a named collection
type CollectionInfo struct {
	Name        string `json:"name"`
	VectorSize  int    `json:"vector_size"`
	PointsCount int64  `json:"points_count"`
}

// EpisodeNumber returns the first integer in the title, or 0
func EpisodeNumber(title string) int {
	match := episodeNumberPattern.FindString(title)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// FormatClock renders seconds as zero padded MM:SS
func FormatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// NewPayload builds the stored payload for a chunk
func NewPayload(c Chunk) Payload {
	p := Payload{
		Text:           c.Text,
		EpisodeTitle:   c.EpisodeTitle,
		EpisodeNumber:  EpisodeNumber(c.EpisodeTitle),
		StartTime:      c.StartTime,
		EndTime:        c.EndTime,
		Duration:       c.Duration(),
		Language:       DefaultLanguage,
		Model:          DefaultModel,
		Device:         DefaultDevice,
		SegmentCount:   len(c.Segments),
		TimestampStart: FormatClock(c.StartTime),
		TimestampEnd:   FormatClock(c.EndTime),
	}
	if c.Episode != nil {
		p.Language = c.Episode.Language
		p.Model = c.Episode.ModelName
		p.Device = c.Episode.Device
		p.FilePath = c.Episode.SourcePath
	}
	return p
}
