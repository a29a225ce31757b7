// ABOUTME: Parses timestamped transcript files into episode metadata and segments
// ABOUTME: Header lines start with '#', body lines are "[MM:SS --> MM:SS] text"
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

const headerMarker = "#"

var (
	segmentPattern = regexp.MustCompile(`^\[(\d{2}):(\d{2}) --> (\d{2}):(\d{2})\]\s*(.*)`)
	numberPattern  = regexp.MustCompile(`(\d+\.?\d*)`)
)

// ParseTranscriptFile reads and parses one transcript file.
// Read failures and empty bodies are returned as *ParseError.
func ParseTranscriptFile(path string) (*models.TranscriptDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return ParseTranscript(string(data), path)
}

// ParseTranscript parses transcript text. Body lines that do not match the
// timestamp pattern are skipped; a body with no matching lines is an error.
func ParseTranscript(content, sourcePath string) (*models.TranscriptDocument, error) {
	meta := models.EpisodeMetadata{
		Language:   models.DefaultLanguage,
		ModelName:  models.DefaultModel,
		Device:     models.DefaultDevice,
		SourcePath: sourcePath,
	}

	var segments []models.Segment
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		if strings.HasPrefix(line, headerMarker) {
			if i == 0 {
				meta.EpisodeTitle = strings.TrimSpace(line[len(headerMarker):])
				continue
			}
			parseHeaderField(line, &meta)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		seg, ok := parseSegment(line)
		if !ok {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, &ParseError{Path: sourcePath, Err: ErrNoSegments}
	}
	if meta.EpisodeTitle == "" && sourcePath != "" {
		meta.EpisodeTitle = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}

	return &models.TranscriptDocument{Metadata: meta, Segments: segments}, nil
}

// parseHeaderField detects a labeled field by line content, so header order does not matter
func parseHeaderField(line string, meta *models.EpisodeMetadata) {
	switch {
	case strings.Contains(line, "Detected language:"):
		if v, ok := afterColon(line); ok && v != "" {
			meta.Language = v
		}
	case strings.Contains(line, "Duration:"):
		if m := numberPattern.FindString(line); m != "" {
			if d, err := strconv.ParseFloat(m, 64); err == nil {
				meta.DurationSeconds = d
			}
		}
	case strings.Contains(line, "Model:"):
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return
		}
		if v, ok := afterColon(parts[0]); ok {
			meta.ModelName = v
		}
		if v, ok := afterColon(parts[1]); ok {
			meta.Device = v
		}
	}
}

// afterColon returns the trimmed text between the first and second colon
func afterColon(s string) (string, bool) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 {
		return "", false
	}
	return strings.TrimSpace(fields[1]), true
}

func parseSegment(line string) (models.Segment, bool) {
	m := segmentPattern.FindStringSubmatch(line)
	if m == nil {
		return models.Segment{}, false
	}

	start := clockSeconds(m[1], m[2])
	end := clockSeconds(m[3], m[4])
	if end < start {
		return models.Segment{}, false
	}

	return models.Segment{
		StartTime: start,
		EndTime:   end,
		Text:      strings.TrimSpace(m[5]),
	}, true
}

func clockSeconds(minutes, seconds string) int {
	// both fields are exactly two digits, guaranteed by segmentPattern
	mm, _ := strconv.Atoi(minutes)
	ss, _ := strconv.Atoi(seconds)
	return mm*60 + ss
}

// FormatSegmentLine renders a segment in transcript body syntax
func FormatSegmentLine(s models.Segment) string {
	return fmt.Sprintf("[%s --> %s] %s", models.FormatClock(s.StartTime), models.FormatClock(s.EndTime), s.Text)
}
