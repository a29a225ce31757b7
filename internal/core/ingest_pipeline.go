// ABOUTME: IngestPipeline loads transcript directories into a vector collection
// ABOUTME: Parse, chunk, embed in batches, recreate collection, upsert in batches
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Default ingestion batch sizes
const (
	DefaultEmbedBatchSize  = 32
	DefaultUploadBatchSize = 100
)

// Progress stage names
const (
	StageParse  = "Parsing transcripts"
	StageEmbed  = "Generating embeddings"
	StageUpload = "Uploading to vector store"
)

// ProgressReporter observes long-running ingestion stages
type ProgressReporter interface {
	Start(stage string, total int)
	Add(n int)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(string, int) {}
func (nopProgress) Add(int)           {}
func (nopProgress) Finish()           {}

// IngestConfig configures an IngestPipeline
type IngestConfig struct {
	Collection      string
	EmbedBatchSize  int
	UploadBatchSize int
	Progress        ProgressReporter
	Logger          *slog.Logger
}

// IngestPipeline is a one-shot batch loader. Loading is destructive: the
// named collection is replaced.
type IngestPipeline struct {
	chunker     *ChunkEngine
	embedder    Embedder
	store       VectorStore
	collection  string
	embedBatch  int
	uploadBatch int
	progress    ProgressReporter
	logger      *slog.Logger
}

// NewIngestPipeline wires the pipeline to its collaborators
func NewIngestPipeline(cfg IngestConfig, chunker *ChunkEngine, embedder Embedder, store VectorStore) *IngestPipeline {
	p := &IngestPipeline{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		collection:  cfg.Collection,
		embedBatch:  cfg.EmbedBatchSize,
		uploadBatch: cfg.UploadBatchSize,
		progress:    cfg.Progress,
		logger:      cfg.Logger,
	}
	if p.embedBatch <= 0 {
		p.embedBatch = DefaultEmbedBatchSize
	}
	if p.uploadBatch <= 0 {
		p.uploadBatch = DefaultUploadBatchSize
	}
	if p.progress == nil {
		p.progress = nopProgress{}
	}
	if p.logger == nil {
		p.logger = logging.Component("ingest")
	}
	return p
}

// CollectTranscriptFiles lists *.txt files in each directory. Missing
// directories are logged and skipped.
func CollectTranscriptFiles(dirs []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var files []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			logger.Warn("directory not found", "dir", dir)
			continue
		}

		matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		sort.Strings(matches)
		logger.Info("found transcript files", "dir", dir, "count", len(matches))
		files = append(files, matches...)
	}
	return files, nil
}

// Run ingests every transcript in dirs into the collection
func (p *IngestPipeline) Run(ctx context.Context, dirs []string) (*models.IngestReport, error) {
	files, err := CollectTranscriptFiles(dirs, p.logger)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoTranscripts
	}

	report := &models.IngestReport{Collection: p.collection, FilesFound: len(files)}
	p.logger.Info("processing transcript files", "count", len(files))

	chunks, err := p.parseAndChunk(ctx, files, report)
	if err != nil {
		return report, err
	}
	report.ChunksCreated = len(chunks)
	p.logger.Info("created chunks", "chunks", len(chunks), "files", report.FilesParsed)
	if len(chunks) == 0 {
		return report, errors.New("no chunks produced from transcripts")
	}

	uploaded, dim, err := p.Upload(ctx, chunks)
	report.PointsUploaded = uploaded
	report.VectorSize = dim
	if err != nil {
		return report, err
	}

	p.logger.Info("ingestion complete", "collection", p.collection, "points", uploaded, "vector_size", dim)
	return report, nil
}

func (p *IngestPipeline) parseAndChunk(ctx context.Context, files []string, report *models.IngestReport) ([]models.Chunk, error) {
	var chunks []models.Chunk

	p.progress.Start(StageParse, len(files))
	defer p.progress.Finish()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := ParseTranscriptFile(path)
		p.progress.Add(1)
		if err != nil {
			var perr *ParseError
			if !errors.As(err, &perr) {
				return nil, err
			}
			p.logger.Warn("skipping transcript", "file", path, logging.Error(err))
			report.Skipped = append(report.Skipped, models.SkippedFile{Path: path, Reason: perr.Err.Error()})
			continue
		}

		docChunks := p.chunker.ChunkDocument(doc)
		p.logger.Debug("chunked transcript", "file", filepath.Base(path), "chunks", len(docChunks))
		chunks = append(chunks, docChunks...)
		report.FilesParsed++
	}

	if len(report.Skipped) > 0 {
		p.logger.Warn("failed to parse some files", "count", len(report.Skipped))
	}
	return chunks, nil
}

// Upload embeds chunks, recreates the collection with the embedding
// dimension, and upserts points with ids assigned in chunk order.
// It returns the number of points written and the vector size.
func (p *IngestPipeline) Upload(ctx context.Context, chunks []models.Chunk) (int, int, error) {
	if len(chunks) == 0 {
		return 0, 0, nil
	}

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return 0, 0, err
	}

	dim := len(vectors[0])
	if dim == 0 {
		return 0, 0, errors.New("embedder returned empty vectors")
	}
	if err := p.store.RecreateCollection(ctx, p.collection, dim); err != nil {
		return 0, dim, fmt.Errorf("recreate collection %s: %w", p.collection, err)
	}

	p.progress.Start(StageUpload, len(chunks))
	defer p.progress.Finish()

	uploaded := 0
	for start := 0; start < len(chunks); start += p.uploadBatch {
		end := min(start+p.uploadBatch, len(chunks))

		batch := make([]models.Point, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, models.Point{
				ID:      int64(i),
				Vector:  vectors[i],
				Payload: models.NewPayload(chunks[i]),
			})
		}

		if err := p.store.Upsert(ctx, p.collection, batch); err != nil {
			return uploaded, dim, fmt.Errorf("upsert points %d-%d: %w", start, end-1, err)
		}
		uploaded += len(batch)
		p.progress.Add(len(batch))
	}

	return uploaded, dim, nil
}

func (p *IngestPipeline) embedAll(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	p.progress.Start(StageEmbed, len(chunks))
	defer p.progress.Finish()

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.embedBatch {
		end := min(start+p.embedBatch, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: expected %d vectors, got %d", start, end-1, len(texts), len(batch))
		}
		for _, v := range batch {
			if len(vectors) > 0 && len(v) != len(vectors[0]) {
				return nil, fmt.Errorf("embedding dimension changed from %d to %d", len(vectors[0]), len(v))
			}
			vectors = append(vectors, v)
		}
		p.progress.Add(len(texts))
	}
	return vectors, nil
}
