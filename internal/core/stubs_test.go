// ABOUTME: In-memory collaborator stubs shared by core tests
// ABOUTME: Letter-frequency embedder, map-backed vector store, recording generator
package core

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// letterEmbedder embeds text as a 26-dimension letter histogram
type letterEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, len(texts))

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 26)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *letterEmbedder) ModelName() string { return "letters" }

type memoryCollection struct {
	dim    int
	points map[int64]models.Point
}

// memoryStore is a brute-force cosine VectorStore
type memoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	recreated   []int
	upserts     []int
	searchErr   error
	listErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{collections: map[string]*memoryCollection{}}
}

func (s *memoryStore) RecreateCollection(_ context.Context, name string, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &memoryCollection{dim: size, points: map[int64]models.Point{}}
	s.recreated = append(s.recreated, size)
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, name string, points []models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return ErrCollectionNotFound
	}
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return errors.New("dimension mismatch")
		}
		c.points[p.ID] = p
	}
	s.upserts = append(s.upserts, len(points))
	return nil
}

func (s *memoryStore) Search(_ context.Context, name string, vector []float32, opts models.SearchOptions) ([]models.ScoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}

	var out []models.ScoredPoint
	for _, p := range c.points {
		if !opts.Filter.Matches(p.Payload) {
			continue
		}
		out = append(out, models.ScoredPoint{ID: p.ID, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *memoryStore) Scroll(_ context.Context, name string, filter *models.Filter, limit int) ([]models.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}

	var out []models.Point
	for _, p := range c.points {
		if filter.Matches(p.Payload) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CollectionInfo(_ context.Context, name string) (*models.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return &models.CollectionInfo{Name: name, VectorSize: c.dim, PointsCount: int64(len(c.points))}, nil
}

func (s *memoryStore) ListCollections(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var names []string
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memoryStore) Ping(context.Context) error { return s.listErr }

func (s *memoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// recordingGenerator records every prompt it receives
type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
	models  []string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (*models.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return nil, g.err
	}
	return &models.Generation{Text: g.answer, Model: g.ModelName(), Elapsed: 1500 * time.Millisecond}, nil
}

func (g *recordingGenerator) ListModels(context.Context) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.models, nil
}

func (g *recordingGenerator) ModelName() string { return "llama3.1:8b" }

func (g *recordingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}
