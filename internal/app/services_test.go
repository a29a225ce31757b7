package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/config"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/llm"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (fixedEmbedder) ModelName() string { return "fixed" }

type flakyGenerator struct {
	failures int
	calls    int
	err      error
}

func (g *flakyGenerator) Generate(context.Context, string) (*models.Generation, error) {
	return &models.Generation{Text: "answer"}, nil
}

func (g *flakyGenerator) ListModels(context.Context) ([]string, error) {
	g.calls++
	if g.calls <= g.failures {
		return nil, g.err
	}
	return []string{"llama3.1:8b"}, nil
}

func (g *flakyGenerator) ModelName() string { return "llama3.1:8b" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.VectorStore = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "vectors.db")
	cfg.StartupMaxAttempts = 3
	cfg.StartupRetryDelay = config.Duration{Duration: time.Millisecond}
	return cfg
}

func testOptions(gen core.Generator) []Option {
	return []Option{
		WithLogger(logging.NewNop()),
		WithEmbedder(fixedEmbedder{}),
		WithGenerator(gen),
		WithTokenCounter(llm.EstimateTokens),
	}
}

func TestNewOpensConfiguredStore(t *testing.T) {
	cfg := testConfig(t)

	services, err := New(context.Background(), cfg, testOptions(&flakyGenerator{})...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })

	require.NotNil(t, services.RAG)
	assert.Equal(t, cfg.Collection, services.RAG.Collection())
	assert.FileExists(t, cfg.SQLitePath)
}

func TestConnectRetriesConnectivityFailures(t *testing.T) {
	cfg := testConfig(t)
	gen := &flakyGenerator{
		failures: 2,
		err:      &core.ConnectivityError{Service: "ollama", Err: errors.New("connection refused")},
	}

	services, err := Connect(context.Background(), cfg, testOptions(gen)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	assert.Equal(t, 3, gen.calls)
}

func TestConnectGivesUpAfterMaxAttempts(t *testing.T) {
	cfg := testConfig(t)
	gen := &flakyGenerator{
		failures: 10,
		err:      &core.ConnectivityError{Service: "ollama", Err: errors.New("connection refused")},
	}

	_, err := Connect(context.Background(), cfg, testOptions(gen)...)
	require.Error(t, err)
	assert.Equal(t, 3, gen.calls)

	var connErr *core.ConnectivityError
	assert.True(t, errors.As(err, &connErr))
}

func TestConnectPlainErrorsAreWrappedAsConnectivity(t *testing.T) {
	cfg := testConfig(t)
	gen := &flakyGenerator{failures: 1, err: errors.New("dial tcp: refused")}

	services, err := Connect(context.Background(), cfg, testOptions(gen)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	assert.Equal(t, 2, gen.calls)
}

func TestConnectFailsFastOnConfigurationError(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorStore = "qdrant"
	gen := &flakyGenerator{}

	_, err := Connect(context.Background(), cfg, testOptions(gen)...)
	require.Error(t, err)
	assert.Zero(t, gen.calls)
}

func TestOpenEmbedderSkipsUnreachableCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	embedder, closers, err := OpenEmbedder(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Empty(t, closers)
	assert.Equal(t, cfg.EmbeddingModel, embedder.ModelName())
}

func TestWaitForStore(t *testing.T) {
	cfg := testConfig(t)
	store, err := WaitForStore(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

// fakeOllama lists only the embedding model and records pull requests
func fakeOllama(t *testing.T, pullStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu     sync.Mutex
		pulled []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []any{map[string]any{"id": "all-minilm:latest", "object": "model"}},
		})
	})
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		pulled = append(pulled, req.Model)
		mu.Unlock()
		if pullStatus != http.StatusOK {
			w.WriteHeader(pullStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "pull model manifest: file does not exist"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &pulled
}

func pointAtOllama(t *testing.T, cfg *config.Config, server *httptest.Server) {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	cfg.OllamaHost = host
	cfg.OllamaPort, err = strconv.Atoi(port)
	require.NoError(t, err)
}

func TestNewPullsMissingGenerationModel(t *testing.T) {
	cfg := testConfig(t)
	server, pulled := fakeOllama(t, http.StatusOK)
	pointAtOllama(t, cfg, server)

	services, err := New(context.Background(), cfg,
		WithLogger(logging.NewNop()),
		WithEmbedder(fixedEmbedder{}),
		WithTokenCounter(llm.EstimateTokens),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	assert.Equal(t, []string{cfg.OllamaModel}, *pulled)
}

func TestNewFailsWhenModelCannotBePulled(t *testing.T) {
	cfg := testConfig(t)
	server, pulled := fakeOllama(t, http.StatusInternalServerError)
	pointAtOllama(t, cfg, server)

	_, err := New(context.Background(), cfg,
		WithLogger(logging.NewNop()),
		WithEmbedder(fixedEmbedder{}),
		WithTokenCounter(llm.EstimateTokens),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
	assert.Len(t, *pulled, 1)
}

type recordingPuller struct {
	models []string
}

func (p *recordingPuller) PullModel(_ context.Context, model string) error {
	p.models = append(p.models, model)
	return nil
}

// missingModelGenerator serves a model list without its own model
type missingModelGenerator struct {
	flakyGenerator
}

func (g *missingModelGenerator) ListModels(context.Context) ([]string, error) {
	return []string{"mistral:latest"}, nil
}

func TestNewSkipsPullWhenModelIsListed(t *testing.T) {
	cfg := testConfig(t)
	puller := &recordingPuller{}

	services, err := New(context.Background(), cfg, append(testOptions(&flakyGenerator{}), WithModelPuller(puller))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	assert.Empty(t, puller.models)
}

func TestNewInjectedGeneratorOnlyWarnsWithoutPuller(t *testing.T) {
	cfg := testConfig(t)

	services, err := New(context.Background(), cfg, testOptions(&missingModelGenerator{})...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })

	puller := &recordingPuller{}
	services2, err := New(context.Background(), testConfig(t), append(testOptions(&missingModelGenerator{}), WithModelPuller(puller))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services2.Close() })
	assert.Equal(t, []string{"llama3.1:8b"}, puller.models)
}
