// ABOUTME: Tests for RAGService ask, streaming, search, summaries, stats, and status
// ABOUTME: Uses in-memory stubs so generator calls and timings can be asserted
package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

const testCollection = "history_of_rome"

type fixture struct {
	embedder  *letterEmbedder
	store     *memoryStore
	generator *recordingGenerator
	service   *RAGService
}

func newFixture(t *testing.T, texts map[string][]string) *fixture {
	t.Helper()
	f := &fixture{
		embedder:  &letterEmbedder{},
		store:     newMemoryStore(),
		generator: &recordingGenerator{answer: "  Hannibal crossed the Alps (Episode 19).  ", models: []string{"llama3.1:8b", "all-minilm"}},
	}
	f.service = NewRAGService(RAGConfig{Collection: testCollection, MaxContextLength: 4000, Logger: logging.NewNop()},
		f.embedder, f.store, f.generator)

	ctx := context.Background()
	if err := f.store.RecreateCollection(ctx, testCollection, 26); err != nil {
		t.Fatal(err)
	}

	var id int64
	for title, segments := range texts {
		meta := &models.EpisodeMetadata{EpisodeTitle: title, Language: "en", ModelName: "large-v3", Device: "cpu"}
		for i, text := range segments {
			chunk := models.Chunk{
				Text: text, StartTime: i * 30, EndTime: i*30 + 30,
				Segments: []models.Segment{seg(i*30, i*30+30, text)}, EpisodeTitle: title, Episode: meta,
			}
			vec, _ := f.embedder.Embed(ctx, []string{text})
			if err := f.store.Upsert(ctx, testCollection, []models.Point{{ID: id, Vector: vec[0], Payload: models.NewPayload(chunk)}}); err != nil {
				t.Fatal(err)
			}
			id++
		}
	}
	return f
}

var corpus = map[string][]string{
	"019 - Hannibal Crosses the Alps": {
		"Hannibal led his army and elephants across the Alps into Italy.",
		"The crossing cost Hannibal nearly half his army.",
	},
	"022 - Cannae": {
		"At Cannae the Roman legions were encircled and destroyed.",
	},
	"100 - Augustus": {
		"Augustus became the first emperor of Rome.",
		"Augustus reorganized the provinces.",
		"Augustus died in 14 AD.",
	},
}

func TestClampContextLimit(t *testing.T) {
	tests := map[int]int{-3: 1, 0: 1, 1: 1, 5: 5, 10: 10, 11: 10, 1000: 10}
	for in, want := range tests {
		if got := ClampContextLimit(in); got != want {
			t.Errorf("ClampContextLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAsk_Success(t *testing.T) {
	f := newFixture(t, corpus)

	result, err := f.service.Ask(context.Background(), "How did Hannibal cross the Alps?", 3)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if result.Error {
		t.Error("Error flag should be false")
	}
	if result.Answer != "Hannibal crossed the Alps (Episode 19)." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Contexts) != 3 {
		t.Fatalf("contexts = %d, want 3", len(result.Contexts))
	}
	for i := 1; i < len(result.Contexts); i++ {
		if result.Contexts[i].Score > result.Contexts[i-1].Score {
			t.Error("contexts should be ranked by descending score")
		}
	}
	if result.Contexts[0].Duration != nil {
		t.Error("ask contexts do not carry duration")
	}
	if result.Model != "llama3.1:8b" {
		t.Errorf("Model = %q", result.Model)
	}
	if result.GenerationTime != 1.5 {
		t.Errorf("GenerationTime = %v, want 1.5", result.GenerationTime)
	}
	if result.TotalTime < result.GenerationTime {
		t.Errorf("TotalTime %v should include generation time", result.TotalTime)
	}

	if f.generator.calls() != 1 {
		t.Fatalf("generator calls = %d, want 1", f.generator.calls())
	}
	prompt := f.generator.prompts[0]
	if !strings.Contains(prompt, "QUESTION: How did Hannibal cross the Alps?") {
		t.Error("prompt should contain the question")
	}
	if !strings.Contains(prompt, "Episode 19: 019 - Hannibal Crosses the Alps") {
		t.Error("prompt should cite the episode of the top hit")
	}
}

func TestAsk_ZeroHitsSkipsGenerator(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.service.Ask(context.Background(), "Who was Romulus?", 5)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if f.generator.calls() != 0 {
		t.Errorf("generator should not be called, got %d calls", f.generator.calls())
	}
	if result.Contexts == nil || len(result.Contexts) != 0 {
		t.Errorf("Contexts = %#v, want empty non-nil slice", result.Contexts)
	}
	if result.GenerationTime != 0 {
		t.Errorf("GenerationTime = %v, want 0", result.GenerationTime)
	}
	if result.TotalTime != result.SearchTime {
		t.Errorf("TotalTime = %v, want SearchTime %v", result.TotalTime, result.SearchTime)
	}
	if result.Answer != models.NoContextAnswer {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Error {
		t.Error("empty result is not an error")
	}
}

func TestAsk_GenerationFailureIsRecovered(t *testing.T) {
	f := newFixture(t, corpus)
	f.generator.err = errors.New("connection refused")

	result, err := f.service.Ask(context.Background(), "What happened at Cannae?", 2)
	if err != nil {
		t.Fatalf("generation failures must not be returned, got %v", err)
	}

	if !result.Error {
		t.Error("Error flag should be set")
	}
	want := "I apologize, but I encountered an error while generating the answer: connection refused"
	if result.Answer != want {
		t.Errorf("Answer = %q, want %q", result.Answer, want)
	}
	if result.GenerationTime != 0 {
		t.Errorf("GenerationTime = %v, want 0", result.GenerationTime)
	}
	if len(result.Contexts) != 2 {
		t.Errorf("contexts should still be returned, got %d", len(result.Contexts))
	}
	if result.Model != "llama3.1:8b" {
		t.Errorf("Model = %q", result.Model)
	}
}

func TestAsk_SearchFailureIsReturned(t *testing.T) {
	f := newFixture(t, corpus)
	f.store.searchErr = errors.New("relation does not exist")

	if _, err := f.service.Ask(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error")
	}
	if f.generator.calls() != 0 {
		t.Error("generator should not be called when search fails")
	}
}

func TestAsk_EmbedFailureIsReturned(t *testing.T) {
	f := newFixture(t, corpus)
	f.embedder.err = errors.New("model not loaded")

	_, err := f.service.Ask(context.Background(), "q", 5)
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected embed error, got %v", err)
	}
}

func TestAsk_PromptTokens(t *testing.T) {
	f := newFixture(t, corpus)
	f.service.countTokens = func(s string) int { return len(strings.Fields(s)) }

	result, err := f.service.Ask(context.Background(), "Augustus", 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.PromptTokens == 0 {
		t.Error("PromptTokens should be populated when a counter is configured")
	}
}

func TestGenerationResult_Answer(t *testing.T) {
	ok := GenerationResult{Generation: &models.Generation{Text: " text ", Model: "m", Elapsed: 2}}
	text, model, elapsed, failed := ok.Answer()
	if text != "text" || model != "m" || elapsed != 2 || failed || ok.Failed() {
		t.Errorf("unexpected success collapse: %q %q %v %v", text, model, elapsed, failed)
	}

	bad := GenerationResult{Failure: &GenerationError{Model: "m", Err: errors.New("timeout")}}
	text, _, elapsed, failed = bad.Answer()
	if !failed || elapsed != 0 || !strings.HasSuffix(text, "timeout") || !bad.Failed() {
		t.Errorf("unexpected failure collapse: %q %v %v", text, elapsed, failed)
	}
}

func collectEvents(t *testing.T, f *fixture, question string) ([]models.StreamEvent, error) {
	t.Helper()
	var events []models.StreamEvent
	err := f.service.AskStream(context.Background(), question, 3, func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func eventTypes(events []models.StreamEvent) []string {
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestAskStream_Phases(t *testing.T) {
	f := newFixture(t, corpus)

	events, err := collectEvents(t, f, "Tell me about Augustus")
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}

	want := []string{"status", "contexts", "status", "answer", "complete"}
	if got := eventTypes(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	if events[0].Message != StatusSearching || events[2].Message != StatusGenerating {
		t.Errorf("unexpected status messages: %q, %q", events[0].Message, events[2].Message)
	}
	if hits, ok := events[1].Data.([]models.SearchHit); !ok || len(hits) != 3 {
		t.Errorf("contexts event data = %#v", events[1].Data)
	}
	result, ok := events[3].Data.(*models.AnswerResult)
	if !ok || result.Answer == "" || result.Error {
		t.Errorf("answer event data = %#v", events[3].Data)
	}
}

func TestAskStream_ZeroHits(t *testing.T) {
	f := newFixture(t, nil)

	events, err := collectEvents(t, f, "Romulus")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"status", "contexts", "answer", "complete"}
	if got := eventTypes(events); !reflect.DeepEqual(got, want) {
		t.Errorf("event types = %v, want %v", got, want)
	}
	if f.generator.calls() != 0 {
		t.Error("generator should not be called")
	}
}

func TestAskStream_SearchError(t *testing.T) {
	f := newFixture(t, corpus)
	f.store.searchErr = errors.New("store down")

	events, err := collectEvents(t, f, "q")
	if err == nil {
		t.Fatal("expected error")
	}
	want := []string{"status", "error"}
	if got := eventTypes(events); !reflect.DeepEqual(got, want) {
		t.Errorf("event types = %v, want %v", got, want)
	}
	if !strings.Contains(events[1].Message, "store down") {
		t.Errorf("error message = %q", events[1].Message)
	}
}

func TestAskStream_EmitErrorAborts(t *testing.T) {
	f := newFixture(t, corpus)
	gone := errors.New("client disconnected")

	calls := 0
	err := f.service.AskStream(context.Background(), "Augustus", 3, func(models.StreamEvent) error {
		calls++
		if calls == 2 {
			return gone
		}
		return nil
	})

	if !errors.Is(err, gone) {
		t.Errorf("expected emit error, got %v", err)
	}
	if f.generator.calls() != 0 {
		t.Error("generation should not start after the client is gone")
	}
}

func TestSearch_EpisodeFilter(t *testing.T) {
	f := newFixture(t, corpus)

	hits, err := f.service.Search(context.Background(), "Hannibal army", 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3 (episode 100 only)", len(hits))
	}
	for _, h := range hits {
		if h.EpisodeNumber != 100 {
			t.Errorf("hit from episode %d leaked through the filter", h.EpisodeNumber)
		}
		if h.Duration == nil || *h.Duration != 30 {
			t.Errorf("Duration = %v, want 30", h.Duration)
		}
	}

	all, err := f.service.Search(context.Background(), "Hannibal army", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Errorf("unfiltered hits = %d, want 6", len(all))
	}
	if all[0].EpisodeNumber != 19 {
		t.Errorf("top hit episode = %d, want 19", all[0].EpisodeNumber)
	}
}

func TestEpisodeSummary(t *testing.T) {
	f := newFixture(t, corpus)

	summary, err := f.service.EpisodeSummary(context.Background(), 100, 2)
	if err != nil {
		t.Fatal(err)
	}
	if summary.EpisodeTitle != "100 - Augustus" {
		t.Errorf("EpisodeTitle = %q", summary.EpisodeTitle)
	}
	if summary.TotalSegments != 2 || len(summary.Segments) != 2 {
		t.Errorf("TotalSegments = %d, want 2", summary.TotalSegments)
	}
	if summary.EstimatedDuration != 60 {
		t.Errorf("EstimatedDuration = %d, want 60", summary.EstimatedDuration)
	}
	if summary.Segments[0].Timestamp != "00:00 --> 00:30" {
		t.Errorf("Timestamp = %q", summary.Segments[0].Timestamp)
	}

	full, err := f.service.EpisodeSummary(context.Background(), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if full.TotalSegments != 3 {
		t.Errorf("default max segments should cover all 3, got %d", full.TotalSegments)
	}

	_, err = f.service.EpisodeSummary(context.Background(), 7, 10)
	if !errors.Is(err, ErrEpisodeNotFound) {
		t.Errorf("expected ErrEpisodeNotFound, got %v", err)
	}
}

func TestCollectionStats(t *testing.T) {
	f := newFixture(t, corpus)

	stats, err := f.service.CollectionStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.TotalPoints != 6 || stats.TotalVectors != 6 {
		t.Errorf("TotalPoints = %d", stats.TotalPoints)
	}
	if stats.UniqueEpisodes != 3 {
		t.Errorf("UniqueEpisodes = %d, want 3", stats.UniqueEpisodes)
	}
	if stats.EpisodeRange != "19 - 100" {
		t.Errorf("EpisodeRange = %q", stats.EpisodeRange)
	}
	if stats.EstimatedTotalDurationSeconds != 180 {
		t.Errorf("duration = %d, want 180", stats.EstimatedTotalDurationSeconds)
	}
	if stats.EstimatedTotalDurationHours != 0.1 {
		t.Errorf("hours = %v, want 0.1", stats.EstimatedTotalDurationHours)
	}
	if !reflect.DeepEqual(stats.Languages, []string{"en"}) {
		t.Errorf("Languages = %v", stats.Languages)
	}
	if stats.VectorSize != 26 {
		t.Errorf("VectorSize = %d", stats.VectorSize)
	}
}

func TestCollectionStats_Empty(t *testing.T) {
	f := newFixture(t, nil)

	stats, err := f.service.CollectionStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.EpisodeRange != "Unknown" || stats.UniqueEpisodes != 0 {
		t.Errorf("unexpected empty stats: %+v", stats)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, corpus)

	status := f.service.Status(context.Background())
	if !status.Healthy() {
		t.Fatalf("expected healthy status: %+v", status)
	}
	if status.Collection.PointsCount == nil || *status.Collection.PointsCount != 6 {
		t.Errorf("PointsCount = %v", status.Collection.PointsCount)
	}
	if status.Collection.Details != "6 points loaded" {
		t.Errorf("Collection.Details = %q", status.Collection.Details)
	}
	if status.Generator.Details != "Models: llama3.1:8b, all-minilm" {
		t.Errorf("Generator.Details = %q", status.Generator.Details)
	}
	if status.VectorStore.Details != "1 collections available" {
		t.Errorf("VectorStore.Details = %q", status.VectorStore.Details)
	}
}

func TestStatus_ComponentFailures(t *testing.T) {
	f := newFixture(t, corpus)
	f.generator.err = errors.New("ollama unreachable")
	f.service.collection = "missing"

	status := f.service.Status(context.Background())
	if status.Healthy() {
		t.Fatal("status should not be healthy")
	}
	if status.Generator.Status != models.StatusError || !strings.Contains(status.Generator.Details, "ollama unreachable") {
		t.Errorf("Generator = %+v", status.Generator)
	}
	if status.Collection.Status != models.StatusError {
		t.Errorf("Collection = %+v", status.Collection)
	}
	if status.VectorStore.Status != models.StatusHealthy {
		t.Errorf("VectorStore = %+v", status.VectorStore)
	}
}
