// ABOUTME: Caching decorator for embedders keyed by model and text digest
// ABOUTME: Only cache misses reach the wrapped embedder; cache faults fall through
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
)

// DefaultTTL keeps query embeddings for a day
const DefaultTTL = 24 * time.Hour

// EmbeddingCache wraps an embedder with a key-value cache
type EmbeddingCache struct {
	inner   core.Embedder
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
}

// NewEmbeddingCache decorates inner. A ttl of zero uses DefaultTTL.
func NewEmbeddingCache(inner core.Embedder, backend Backend, ttl time.Duration, logger *slog.Logger) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmbeddingCache{
		inner:   inner,
		backend: backend,
		ttl:     ttl,
		logger:  logging.NewComponentLogger(logger, "embedding_cache"),
	}
}

// Key derives the cache key for a text under a model
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%s", model, hex.EncodeToString(sum[:]))
}

func (c *EmbeddingCache) ModelName() string {
	return c.inner.ModelName()
}

// Embed serves hits from the cache and embeds the rest in one call
func (c *EmbeddingCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	model := c.inner.ModelName()
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = Key(model, t)
	}

	vectors := make([][]float32, len(texts))
	cached, err := c.backend.GetMany(ctx, keys)
	if err != nil {
		c.logger.Warn("embedding cache read failed", logging.Error(err))
		cached = nil
	}
	for i := range cached {
		if i < len(vectors) && cached[i] != nil {
			if v, ok := decodeVector(cached[i]); ok {
				vectors[i] = v
			}
		}
	}

	var (
		missIdx   []int
		missTexts []string
	)
	for i, v := range vectors {
		if v == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missIdx) == 0 {
		c.logger.Debug("embedding cache hit", slog.Int("count", len(texts)))
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	entries := make(map[string][]byte, len(missIdx))
	for j, i := range missIdx {
		vectors[i] = fresh[j]
		entries[keys[i]] = encodeVector(fresh[j])
	}
	if err := c.backend.SetMany(ctx, entries, c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", logging.Error(err))
	}

	c.logger.Debug("embedding cache lookup",
		slog.Int("hits", len(texts)-len(missIdx)),
		slog.Int("misses", len(missIdx)),
	)
	return vectors, nil
}

// Close releases the backend
func (c *EmbeddingCache) Close() error {
	return c.backend.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, true
}

var _ core.Embedder = (*EmbeddingCache)(nil)
