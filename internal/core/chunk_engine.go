// ABOUTME: ChunkEngine groups consecutive transcript segments into overlapping chunks
// ABOUTME: Chunks are bounded by a character budget and never split a segment
package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Default chunking parameters, in characters
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// ChunkEngine handles sliding-window chunking with segment overlap
type ChunkEngine struct {
	chunkSize int
	overlap   int
}

// NewChunkEngine creates a ChunkEngine; overlap must be smaller than chunkSize
func NewChunkEngine(chunkSize, overlap int) (*ChunkEngine, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, errors.New("chunk overlap cannot be negative")
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return &ChunkEngine{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkDocument chunks a parsed transcript
func (ce *ChunkEngine) ChunkDocument(doc *models.TranscriptDocument) []models.Chunk {
	if doc == nil {
		return nil
	}
	return ce.ChunkSegments(doc.Segments, &doc.Metadata)
}

// ChunkSegments groups segments into chunks. A chunk closes when appending the
// next segment would push its text past the chunk size; the next chunk is
// seeded with trailing segments of the closed one that fit the overlap budget.
func (ce *ChunkEngine) ChunkSegments(segments []models.Segment, meta *models.EpisodeMetadata) []models.Chunk {
	var (
		chunks  []models.Chunk
		text    string
		current []models.Segment
	)

	title := ""
	if meta != nil {
		title = meta.EpisodeTitle
	}

	for _, seg := range segments {
		candidate := joinText(text, seg.Text)

		if utf8.RuneCountInString(candidate) > ce.chunkSize && hasText(text) {
			chunks = append(chunks, newChunk(text, current, title, meta))

			carried := ce.overlapSegments(current)
			text = ""
			for _, s := range carried {
				text = joinText(text, s.Text)
			}
			text = joinText(text, seg.Text)
			current = append(carried, seg)
			continue
		}

		text = candidate
		current = append(current, seg)
	}

	// segments with no text at all never make a chunk of their own
	if len(current) > 0 && hasText(text) {
		chunks = append(chunks, newChunk(text, current, title, meta))
	}
	return chunks
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}

// overlapSegments collects trailing segments, newest first, while their total
// length fits the overlap budget. The scan stops at the first segment that
// does not fit, so one long segment at the boundary suppresses all overlap.
func (ce *ChunkEngine) overlapSegments(closed []models.Segment) []models.Segment {
	used := 0
	first := len(closed)
	for i := len(closed) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(closed[i].Text)
		if used+n > ce.overlap {
			break
		}
		used += n
		first = i
	}

	carried := make([]models.Segment, len(closed)-first, len(closed)-first+1)
	copy(carried, closed[first:])
	return carried
}

func newChunk(text string, segs []models.Segment, title string, meta *models.EpisodeMetadata) models.Chunk {
	owned := make([]models.Segment, len(segs))
	copy(owned, segs)
	return models.Chunk{
		Text:         strings.TrimSpace(text),
		StartTime:    owned[0].StartTime,
		EndTime:      owned[len(owned)-1].EndTime,
		Segments:     owned,
		EpisodeTitle: title,
		Episode:      meta,
	}
}

func joinText(acc, next string) string {
	if acc == "" {
		return next
	}
	return acc + " " + next
}
