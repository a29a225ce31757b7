// ABOUTME: Collaborator contracts for embedding, vector storage, and generation
// ABOUTME: Implemented by llm and storage packages, stubbed in tests
package core

import (
	"context"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Embedder converts text into fixed-length vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// VectorStore persists and searches chunk vectors
type VectorStore interface {
	// RecreateCollection drops any existing collection of that name and creates it empty
	RecreateCollection(ctx context.Context, name string, vectorSize int) error
	Upsert(ctx context.Context, name string, points []models.Point) error
	// Search returns points ranked by descending cosine similarity
	Search(ctx context.Context, name string, vector []float32, opts models.SearchOptions) ([]models.ScoredPoint, error)
	// Scroll lists points matching filter in id order; limit <= 0 means all
	Scroll(ctx context.Context, name string, filter *models.Filter, limit int) ([]models.Point, error)
	CollectionInfo(ctx context.Context, name string) (*models.CollectionInfo, error)
	ListCollections(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Generator produces an answer for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (*models.Generation, error)
	ListModels(ctx context.Context) ([]string, error)
	ModelName() string
}
