// ABOUTME: Tests for payload construction, episode numbering, and filters
// ABOUTME: Includes titles with several numbers where the first one wins
package models

import "testing"

func TestEpisodeNumber(t *testing.T) {
	tests := []struct {
		title string
		want  int
	}{
		{"001- In the Beginning", 1},
		{"Episode 42 - The Gracchi", 42},
		{"The Fall of the West", 0},
		{"", 0},
		// First integer wins even when it is a year, not the episode
		{"476 AD - Episode 179", 476},
		{"179 - Death of an Empire (476)", 179},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := EpisodeNumber(tt.title); got != tt.want {
				t.Errorf("EpisodeNumber(%q) = %d, want %d", tt.title, got, tt.want)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{65, "01:05"},
		{3599, "59:59"},
		{6000, "100:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestNewPayload(t *testing.T) {
	meta := &EpisodeMetadata{
		EpisodeTitle: "012 - Pyrrhic Victories",
		Language:     "en",
		ModelName:    "large-v3",
		Device:       "cuda",
		SourcePath:   "all_transcripts/012.txt",
	}
	chunk := Chunk{
		Text:         "Pyrrhus lands in Italy",
		StartTime:    61,
		EndTime:      125,
		Segments:     []Segment{{61, 90, "Pyrrhus lands"}, {90, 125, "in Italy"}},
		EpisodeTitle: meta.EpisodeTitle,
		Episode:      meta,
	}

	p := NewPayload(chunk)

	if p.EpisodeNumber != 12 {
		t.Errorf("EpisodeNumber = %d, want 12", p.EpisodeNumber)
	}
	if p.Duration != 64 {
		t.Errorf("Duration = %d, want 64", p.Duration)
	}
	if p.SegmentCount != 2 {
		t.Errorf("SegmentCount = %d, want 2", p.SegmentCount)
	}
	if p.Timestamp() != "01:01 --> 02:05" {
		t.Errorf("Timestamp() = %q", p.Timestamp())
	}
	if p.Model != "large-v3" || p.Device != "cuda" || p.FilePath != "all_transcripts/012.txt" {
		t.Errorf("provenance not copied: %+v", p)
	}
}

func TestNewPayload_NoEpisodeMetadata(t *testing.T) {
	p := NewPayload(Chunk{Text: "x", EpisodeTitle: "Untitled"})
	if p.Language != DefaultLanguage || p.Model != DefaultModel || p.Device != DefaultDevice {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestFilterMatches(t *testing.T) {
	p := Payload{EpisodeNumber: 7, EpisodeTitle: "007 - Kings", Language: "en"}

	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &Filter{}, true},
		{"episode match", EpisodeFilter(7), true},
		{"episode mismatch", EpisodeFilter(8), false},
		{"title and language", &Filter{Must: []FieldMatch{{FieldEpisodeTitle, "007 - Kings"}, {"language", "en"}}}, true},
		{"unknown field", &Filter{Must: []FieldMatch{{"speaker", "mike"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(p); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSearchHit(t *testing.T) {
	sp := ScoredPoint{ID: 3, Score: 0.82, Payload: Payload{
		Text: "Hannibal crosses the Alps", EpisodeTitle: "019 - Hannibal", EpisodeNumber: 19,
		Duration: 40, TimestampStart: "10:00", TimestampEnd: "10:40",
	}}

	hit := NewSearchHit(sp, false)
	if hit.Duration != nil {
		t.Error("Duration should be omitted")
	}
	if hit.Timestamp != "10:00 --> 10:40" {
		t.Errorf("Timestamp = %q", hit.Timestamp)
	}

	hit = NewSearchHit(sp, true)
	if hit.Duration == nil || *hit.Duration != 40 {
		t.Errorf("Duration = %v, want 40", hit.Duration)
	}
}
