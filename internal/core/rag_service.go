// ABOUTME: RAGService orchestrates retrieval, prompt assembly, and answer generation
// ABOUTME: Also serves episode summaries, collection statistics, and component status
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Defaults for query callers
const (
	DefaultContextLimit    = 5
	MinContextLimit        = 1
	MaxContextLimit        = 10
	DefaultEpisodeSegments = 10
	statsSampleSize        = 1000
)

// Stream status messages
const (
	StatusSearching  = "Searching for relevant context..."
	StatusGenerating = "Generating answer..."
)

// RAGConfig configures a RAGService
type RAGConfig struct {
	Collection       string
	MaxContextLength int
	// CountTokens reports prompt size; nil disables the prompt_tokens field
	CountTokens func(string) int
	Logger      *slog.Logger
}

// RAGService answers questions over an indexed collection.
// It holds only read-only collaborator handles and is safe for concurrent use.
type RAGService struct {
	embedder    Embedder
	store       VectorStore
	generator   Generator
	assembler   *ContextAssembler
	collection  string
	countTokens func(string) int
	logger      *slog.Logger
}

// NewRAGService wires the orchestrator to its collaborators
func NewRAGService(cfg RAGConfig, embedder Embedder, store VectorStore, generator Generator) *RAGService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Component("rag")
	}
	return &RAGService{
		embedder:    embedder,
		store:       store,
		generator:   generator,
		assembler:   NewContextAssembler(cfg.MaxContextLength),
		collection:  cfg.Collection,
		countTokens: cfg.CountTokens,
		logger:      logger,
	}
}

// Collection returns the collection being queried
func (s *RAGService) Collection() string {
	return s.collection
}

// ModelName returns the generator model name
func (s *RAGService) ModelName() string {
	return s.generator.ModelName()
}

// ClampContextLimit bounds a requested context limit to [1, 10]
func ClampContextLimit(limit int) int {
	return max(MinContextLimit, min(MaxContextLimit, limit))
}

// SearchContext retrieves up to limit hits for a question
func (s *RAGService) SearchContext(ctx context.Context, question string, limit int) ([]models.SearchHit, error) {
	points, err := s.searchPoints(ctx, question, models.SearchOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, models.NewSearchHit(p, false))
	}
	return hits, nil
}

// Search retrieves hits with durations, optionally restricted to one episode (0 means all)
func (s *RAGService) Search(ctx context.Context, query string, limit, episode int) ([]models.SearchHit, error) {
	opts := models.SearchOptions{Limit: limit}
	if episode > 0 {
		opts.Filter = models.EpisodeFilter(episode)
	}
	points, err := s.searchPoints(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, models.NewSearchHit(p, true))
	}
	return hits, nil
}

func (s *RAGService) searchPoints(ctx context.Context, query string, opts models.SearchOptions) ([]models.ScoredPoint, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	points, err := s.store.Search(ctx, s.collection, vectors[0], opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}
	return points, nil
}

// GenerationResult is either a generation or the failure that prevented it
type GenerationResult struct {
	Generation *models.Generation
	Failure    *GenerationError
}

// Failed reports whether generation failed
func (r GenerationResult) Failed() bool {
	return r.Failure != nil
}

// Answer collapses the result into answer text, model, elapsed time, and error flag.
// A failure becomes an apologetic answer with zero generation time.
func (r GenerationResult) Answer() (text, model string, elapsed time.Duration, failed bool) {
	if r.Failure != nil {
		return fmt.Sprintf("I apologize, but I encountered an error while generating the answer: %v", r.Failure.Err),
			r.Failure.Model, 0, true
	}
	return strings.TrimSpace(r.Generation.Text), r.Generation.Model, r.Generation.Elapsed, false
}

func (s *RAGService) generate(ctx context.Context, prompt string) GenerationResult {
	start := time.Now()
	gen, err := s.generator.Generate(ctx, prompt)
	if err == nil && gen == nil {
		err = errors.New("generator returned no output")
	}
	if err != nil {
		s.logger.Error("answer generation failed", logging.Error(err))
		return GenerationResult{Failure: &GenerationError{Model: s.generator.ModelName(), Err: err}}
	}
	if gen.Elapsed == 0 {
		gen.Elapsed = time.Since(start)
	}
	if gen.Model == "" {
		gen.Model = s.generator.ModelName()
	}
	return GenerationResult{Generation: gen}
}

// Ask runs search, prompt assembly, and generation for one question.
// Generation failures are folded into the result; only search failures are returned.
func (s *RAGService) Ask(ctx context.Context, question string, limit int) (*models.AnswerResult, error) {
	s.logger.Info("processing question", "question", question, "context_limit", limit)

	searchStart := time.Now()
	hits, err := s.SearchContext(ctx, question, limit)
	searchElapsed := time.Since(searchStart)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		return noContextResult(question, searchElapsed), nil
	}

	prompt := s.assembler.BuildPrompt(question, hits)
	outcome := s.generate(ctx, prompt)
	return s.answerResult(question, hits, prompt, searchElapsed, outcome), nil
}

// AskStream performs Ask as observable phases: status, contexts, status, answer, complete.
// A search failure emits an error event. Emit errors abort the stream.
func (s *RAGService) AskStream(ctx context.Context, question string, limit int, emit func(models.StreamEvent) error) error {
	if err := emit(models.StreamEvent{Type: models.EventStatus, Message: StatusSearching}); err != nil {
		return err
	}

	searchStart := time.Now()
	hits, err := s.SearchContext(ctx, question, limit)
	searchElapsed := time.Since(searchStart)
	if err != nil {
		_ = emit(models.StreamEvent{Type: models.EventError, Message: err.Error()})
		return err
	}

	if err := emit(models.StreamEvent{Type: models.EventContexts, Data: hits}); err != nil {
		return err
	}

	var result *models.AnswerResult
	if len(hits) == 0 {
		result = noContextResult(question, searchElapsed)
	} else {
		if err := emit(models.StreamEvent{Type: models.EventStatus, Message: StatusGenerating}); err != nil {
			return err
		}
		prompt := s.assembler.BuildPrompt(question, hits)
		result = s.answerResult(question, hits, prompt, searchElapsed, s.generate(ctx, prompt))
	}

	if err := emit(models.StreamEvent{Type: models.EventAnswer, Data: result}); err != nil {
		return err
	}
	return emit(models.StreamEvent{Type: models.EventComplete})
}

func (s *RAGService) answerResult(question string, hits []models.SearchHit, prompt string, searchElapsed time.Duration, outcome GenerationResult) *models.AnswerResult {
	answer, model, genElapsed, failed := outcome.Answer()
	result := &models.AnswerResult{
		Question:       question,
		Answer:         answer,
		Contexts:       hits,
		SearchTime:     roundSeconds(searchElapsed),
		GenerationTime: roundSeconds(genElapsed),
		TotalTime:      roundSeconds(searchElapsed + genElapsed),
		Model:          model,
		Error:          failed,
	}
	if s.countTokens != nil {
		result.PromptTokens = s.countTokens(prompt)
	}
	return result
}

func noContextResult(question string, searchElapsed time.Duration) *models.AnswerResult {
	return &models.AnswerResult{
		Question:       question,
		Answer:         models.NoContextAnswer,
		Contexts:       []models.SearchHit{},
		SearchTime:     roundSeconds(searchElapsed),
		GenerationTime: 0,
		TotalTime:      roundSeconds(searchElapsed),
	}
}

// roundSeconds converts to seconds rounded to two decimals
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// EpisodeSummary returns up to maxSegments stored chunks of one episode
func (s *RAGService) EpisodeSummary(ctx context.Context, episode, maxSegments int) (*models.EpisodeSummary, error) {
	if maxSegments <= 0 {
		maxSegments = DefaultEpisodeSegments
	}

	points, err := s.store.Scroll(ctx, s.collection, models.EpisodeFilter(episode), maxSegments)
	if err != nil {
		return nil, fmt.Errorf("scroll episode %d: %w", episode, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("episode %d: %w", episode, ErrEpisodeNotFound)
	}

	summary := &models.EpisodeSummary{
		EpisodeNumber: episode,
		Segments:      make([]models.EpisodeSegment, 0, len(points)),
	}
	for _, p := range points {
		if summary.EpisodeTitle == "" {
			summary.EpisodeTitle = p.Payload.EpisodeTitle
		}
		summary.Segments = append(summary.Segments, models.EpisodeSegment{
			Text:      p.Payload.Text,
			Timestamp: p.Payload.Timestamp(),
			Duration:  p.Payload.Duration,
		})
		summary.EstimatedDuration += p.Payload.Duration
	}
	summary.TotalSegments = len(summary.Segments)
	return summary, nil
}

// CollectionStats summarizes a sample of up to 1000 points
func (s *RAGService) CollectionStats(ctx context.Context) (*models.CollectionStats, error) {
	info, err := s.store.CollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}

	points, err := s.store.Scroll(ctx, s.collection, nil, statsSampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample collection: %w", err)
	}

	episodes := map[int]struct{}{}
	languages := map[string]struct{}{}
	duration := 0
	for _, p := range points {
		episodes[p.Payload.EpisodeNumber] = struct{}{}
		lang := p.Payload.Language
		if lang == "" {
			lang = "unknown"
		}
		languages[lang] = struct{}{}
		duration += p.Payload.Duration
	}

	stats := &models.CollectionStats{
		TotalPoints:                   info.PointsCount,
		TotalVectors:                  info.PointsCount,
		UniqueEpisodes:                len(episodes),
		EpisodeRange:                  "Unknown",
		EstimatedTotalDurationSeconds: duration,
		EstimatedTotalDurationHours:   math.Round(float64(duration)/3600*10) / 10,
		Languages:                     make([]string, 0, len(languages)),
		VectorSize:                    info.VectorSize,
	}
	if len(episodes) > 0 {
		nums := make([]int, 0, len(episodes))
		for n := range episodes {
			nums = append(nums, n)
		}
		stats.EpisodeRange = fmt.Sprintf("%d - %d", slices.Min(nums), slices.Max(nums))
	}
	for lang := range languages {
		stats.Languages = append(stats.Languages, lang)
	}
	slices.Sort(stats.Languages)
	return stats, nil
}

// Status probes every collaborator. It never fails; problems are reported per component.
func (s *RAGService) Status(ctx context.Context) models.SystemStatus {
	var status models.SystemStatus

	if names, err := s.store.ListCollections(ctx); err != nil {
		status.VectorStore = models.ComponentStatus{Status: models.StatusError, Details: err.Error()}
	} else {
		status.VectorStore = models.ComponentStatus{
			Status:  models.StatusHealthy,
			Details: fmt.Sprintf("%d collections available", len(names)),
		}
	}

	if names, err := s.generator.ListModels(ctx); err != nil {
		status.Generator = models.ComponentStatus{Status: models.StatusError, Details: err.Error()}
	} else {
		status.Generator = models.ComponentStatus{
			Status:          models.StatusHealthy,
			Details:         "Models: " + strings.Join(names, ", "),
			AvailableModels: names,
		}
	}

	info, err := s.store.CollectionInfo(ctx, s.collection)
	switch {
	case errors.Is(err, ErrCollectionNotFound):
		status.Collection = models.ComponentStatus{Status: models.StatusError, Details: fmt.Sprintf("collection %q not found", s.collection)}
	case err != nil:
		status.Collection = models.ComponentStatus{Status: models.StatusError, Details: err.Error()}
	default:
		count := info.PointsCount
		status.Collection = models.ComponentStatus{
			Status:      models.StatusHealthy,
			Details:     fmt.Sprintf("%d points loaded", count),
			PointsCount: &count,
		}
	}

	return status
}
