// ABOUTME: Services is the context object holding collaborators opened once at startup
// ABOUTME: Opens the vector store, embedder, and generator with bounded startup retries
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/cache"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/config"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/llm"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/storage/pgvector"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/storage/sqlite"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/util"
)

// Services holds read-only collaborator handles shared by every request
type Services struct {
	Config    *config.Config
	Store     core.VectorStore
	Embedder  core.Embedder
	Generator core.Generator
	RAG       *core.RAGService

	logger  *slog.Logger
	closers []io.Closer
}

type options struct {
	logger      *slog.Logger
	store       core.VectorStore
	embedder    core.Embedder
	generator   core.Generator
	countTokens func(string) int
	puller      ModelPuller
}

// ModelPuller fetches a generation model the server does not have yet
type ModelPuller interface {
	PullModel(ctx context.Context, model string) error
}

// Option customizes how Services is built
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore injects a vector store instead of opening one from config
func WithStore(store core.VectorStore) Option {
	return func(o *options) { o.store = store }
}

// WithEmbedder injects an embedder instead of opening one from config
func WithEmbedder(embedder core.Embedder) Option {
	return func(o *options) { o.embedder = embedder }
}

// WithGenerator injects a generator instead of opening one from config
func WithGenerator(generator core.Generator) Option {
	return func(o *options) { o.generator = generator }
}

// WithTokenCounter replaces the tiktoken prompt counter
func WithTokenCounter(count func(string) int) Option {
	return func(o *options) { o.countTokens = count }
}

// WithModelPuller sets how a missing generation model is fetched. Without it
// only a configured Ollama generator pulls; injected generators just warn.
func WithModelPuller(puller ModelPuller) Option {
	return func(o *options) { o.puller = puller }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// New opens every collaborator once and verifies the store and generator are
// reachable. It does not retry; see Connect.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Services, error) {
	o := buildOptions(opts)
	s := &Services{
		Config: cfg,
		logger: logging.NewComponentLogger(o.logger, "services"),
	}

	var err error
	if s.Store = o.store; s.Store == nil {
		if s.Store, err = OpenStore(ctx, cfg); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.Store)
	}

	if s.Embedder = o.embedder; s.Embedder == nil {
		var closers []io.Closer
		if s.Embedder, closers, err = OpenEmbedder(ctx, cfg, o.logger); err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, closers...)
	}

	puller := o.puller
	if s.Generator = o.generator; s.Generator == nil {
		if s.Generator, err = OpenGenerator(cfg); err != nil {
			_ = s.Close()
			return nil, err
		}
		if puller == nil {
			puller = llm.NewModelPuller(cfg.OllamaURL())
		}
	}

	if err := s.verify(ctx, puller); err != nil {
		_ = s.Close()
		return nil, err
	}

	countTokens := o.countTokens
	if countTokens == nil {
		countTokens = tokenCounter(o.logger)
	}
	s.RAG = core.NewRAGService(core.RAGConfig{
		Collection:       cfg.Collection,
		MaxContextLength: cfg.MaxContextLength,
		CountTokens:      countTokens,
		Logger:           logging.NewComponentLogger(o.logger, "rag"),
	}, s.Embedder, s.Store, s.Generator)

	return s, nil
}

// verify checks that the store answers and the generator lists its models,
// pulling the configured model when it is missing and a puller is available
func (s *Services) verify(ctx context.Context, puller ModelPuller) error {
	if err := s.Store.Ping(ctx); err != nil {
		return asConnectivity("vector store", err)
	}
	if _, err := s.Store.ListCollections(ctx); err != nil {
		return asConnectivity("vector store", err)
	}
	models, err := s.Generator.ListModels(ctx)
	if err != nil {
		return asConnectivity("generator", err)
	}
	if model := s.Generator.ModelName(); !llm.HasModel(models, model) {
		s.logger.Warn("generation model not found",
			slog.String("model", model),
			slog.Any("available", models),
		)
		if puller != nil {
			s.logger.Info("pulling generation model", slog.String("model", model))
			if err := puller.PullModel(ctx, model); err != nil {
				return fmt.Errorf("pull model %s: %w", model, err)
			}
			s.logger.Info("pulled generation model", slog.String("model", model))
		}
	}
	s.logger.Info("collaborators ready",
		slog.String("store", s.Config.VectorStore),
		slog.String("embedding_model", s.Embedder.ModelName()),
		slog.String("generation_model", s.Generator.ModelName()),
		slog.Int("available_models", len(models)),
	)
	return nil
}

func asConnectivity(service string, err error) error {
	var connErr *core.ConnectivityError
	if errors.As(err, &connErr) {
		return err
	}
	return &core.ConnectivityError{Service: service, Err: err}
}

// isConnectivity reports whether a startup failure is worth retrying
func isConnectivity(err error) bool {
	var connErr *core.ConnectivityError
	return errors.As(err, &connErr)
}

// Connect builds Services, retrying connectivity failures with a fixed delay.
// Configuration errors fail immediately.
func Connect(ctx context.Context, cfg *config.Config, opts ...Option) (*Services, error) {
	o := buildOptions(opts)
	logger := logging.NewComponentLogger(o.logger, "startup")

	var services *Services
	result := util.Retry(ctx, util.RetryPolicy{
		MaxAttempts: cfg.StartupMaxAttempts,
		Delay:       cfg.StartupRetryDelay.Duration,
		Retryable:   isConnectivity,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("service initialization failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.StartupMaxAttempts),
				slog.Duration("delay", delay),
				logging.Error(err),
			)
		},
	}, func(ctx context.Context, attempt int) error {
		var err error
		services, err = New(ctx, cfg, opts...)
		return err
	})
	if !result.OK() {
		return nil, fmt.Errorf("failed to initialize services: %w", result.Err)
	}

	logger.Info("services initialized", slog.Int("attempts", result.Attempts))
	return services, nil
}

// WaitForStore opens the vector store, waiting for it to come up
func WaitForStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.VectorStore, error) {
	logger = logging.NewComponentLogger(logger, "startup")

	var store core.VectorStore
	result := util.Retry(ctx, util.RetryPolicy{
		MaxAttempts: cfg.StoreWaitAttempts,
		Delay:       cfg.StoreWaitDelay.Duration,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Info("waiting for vector store",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logging.Error(err),
			)
		},
	}, func(ctx context.Context, attempt int) error {
		s, err := OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return err
		}
		store = s
		return nil
	})
	if !result.OK() {
		return nil, fmt.Errorf("vector store not ready: %w", result.Err)
	}
	return store, nil
}

// OpenStore opens the configured vector store backend
func OpenStore(ctx context.Context, cfg *config.Config) (core.VectorStore, error) {
	switch cfg.VectorStore {
	case config.StoreSQLite:
		store, err := sqlite.OpenStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorePGVector:
		store, err := pgvector.New(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}

// OpenEmbedder opens the configured embedding provider, wrapped in the Redis
// cache when REDIS_ADDR is set. An unreachable cache is skipped with a warning.
func OpenEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Embedder, []io.Closer, error) {
	var (
		embedder core.Embedder
		closers  []io.Closer
	)

	switch cfg.EmbeddingProvider {
	case config.ProviderONNX:
		onnx, err := llm.NewONNXEmbedder(llm.ONNXConfig{
			ModelPath:     cfg.ONNXModelPath,
			TokenizerPath: cfg.ONNXTokenizerPath,
			LibraryPath:   cfg.ONNXLibraryPath,
			MaxTokens:     cfg.ONNXMaxTokens,
		})
		if err != nil {
			return nil, nil, err
		}
		embedder = onnx
		closers = append(closers, onnx)
	case config.ProviderOllama:
		clientCfg := llm.DefaultConfig(cfg.EmbeddingURL())
		clientCfg.APIKey = cfg.OpenAIKey
		clientCfg.EmbeddingModel = cfg.EmbeddingModel
		clientCfg.Timeout = cfg.GenerationTimeout.Duration
		clientCfg.MaxRetries = cfg.MaxRetries
		clientCfg.RetryDelay = cfg.RetryDelay.Duration
		client, err := llm.NewOpenAIClientWithConfig(clientCfg)
		if err != nil {
			return nil, nil, err
		}
		embedder = client.Embedder()
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	if cfg.RedisAddr == "" {
		return embedder, closers, nil
	}

	backend, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logging.NewComponentLogger(logger, "services").Warn("embedding cache disabled",
			slog.String("redis_addr", cfg.RedisAddr),
			logging.Error(err),
		)
		return embedder, closers, nil
	}
	cached := cache.NewEmbeddingCache(embedder, backend, cfg.EmbeddingCacheTTL.Duration, logger)
	return cached, append(closers, cached), nil
}

// OpenGenerator creates the answer generator for the configured Ollama model
func OpenGenerator(cfg *config.Config) (core.Generator, error) {
	clientCfg := llm.DefaultConfig(cfg.GenerationBaseURL())
	clientCfg.APIKey = cfg.OpenAIKey
	clientCfg.ChatModel = cfg.OllamaModel
	clientCfg.Temperature = float32(cfg.Temperature)
	clientCfg.TopP = float32(cfg.TopP)
	clientCfg.MaxTokens = cfg.MaxTokens
	clientCfg.Timeout = cfg.GenerationTimeout.Duration
	clientCfg.MaxRetries = cfg.MaxRetries
	clientCfg.RetryDelay = cfg.RetryDelay.Duration

	client, err := llm.NewOpenAIClientWithConfig(clientCfg)
	if err != nil {
		return nil, err
	}
	return client.Generator(), nil
}

// NewIngestPipeline builds a pipeline with the configured collection and batch sizes
func NewIngestPipeline(cfg *config.Config, chunker *core.ChunkEngine, embedder core.Embedder, store core.VectorStore, progress core.ProgressReporter, logger *slog.Logger) *core.IngestPipeline {
	return core.NewIngestPipeline(core.IngestConfig{
		Collection:      cfg.Collection,
		EmbedBatchSize:  cfg.EmbedBatchSize,
		UploadBatchSize: cfg.UploadBatchSize,
		Progress:        progress,
		Logger:          logging.NewComponentLogger(logger, "ingest"),
	}, chunker, embedder, store)
}

// Close releases everything Services opened, in reverse order
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func tokenCounter(logger *slog.Logger) func(string) int {
	counter, err := llm.NewTokenCounter()
	if err != nil {
		logging.NewComponentLogger(logger, "services").Debug("token counter unavailable, estimating", logging.Error(err))
	}
	return counter.CountTokens
}
