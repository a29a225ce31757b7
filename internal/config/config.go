// ABOUTME: Centralized configuration for ingestion, query service, and CLI
// ABOUTME: Defaults, then optional TOML file (CONFIG_FILE), then environment overrides
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Vector store backends
const (
	StorePGVector = "pgvector"
	StoreSQLite   = "sqlite"
)

// Embedding providers
const (
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
)

// Duration is a time.Duration that decodes from strings like "5s"
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all configuration
type Config struct {
	// Vector store
	VectorStore string `toml:"vector_store"`
	PGHost      string `toml:"pgvector_host"`
	PGPort      int    `toml:"pgvector_port"`
	PGUser      string `toml:"pgvector_user"`
	PGPassword  string `toml:"pgvector_password"`
	PGDatabase  string `toml:"pgvector_db"`
	PGSSLMode   string `toml:"pgvector_sslmode"`
	SQLitePath  string `toml:"sqlite_path"`
	Collection  string `toml:"collection_name"`

	// Embeddings
	EmbeddingProvider string   `toml:"embedding_provider"`
	EmbeddingModel    string   `toml:"embedding_model"`
	EmbeddingBaseURL  string   `toml:"embedding_base_url"`
	ONNXModelPath     string   `toml:"onnx_model_path"`
	ONNXTokenizerPath string   `toml:"onnx_tokenizer_path"`
	ONNXLibraryPath   string   `toml:"onnx_library_path"`
	ONNXMaxTokens     int      `toml:"onnx_max_tokens"`
	RedisAddr         string   `toml:"redis_addr"`
	EmbeddingCacheTTL Duration `toml:"embedding_cache_ttl"`

	// Generation
	OpenAIKey         string   `toml:"-"`
	OllamaHost        string   `toml:"ollama_host"`
	OllamaPort        int      `toml:"ollama_port"`
	OllamaModel       string   `toml:"ollama_model"`
	Temperature       float64  `toml:"generation_temperature"`
	TopP              float64  `toml:"generation_top_p"`
	MaxTokens         int      `toml:"generation_max_tokens"`
	GenerationTimeout Duration `toml:"generation_timeout"`
	MaxRetries        int      `toml:"llm_max_retries"`
	RetryDelay        Duration `toml:"llm_retry_delay"`

	// Retrieval and chunking
	MaxContextLength int      `toml:"max_context_length"`
	ChunkSize        int      `toml:"chunk_size"`
	ChunkOverlap     int      `toml:"chunk_overlap"`
	TranscriptDirs   []string `toml:"transcript_dirs"`
	EmbedBatchSize   int      `toml:"embed_batch_size"`
	UploadBatchSize  int      `toml:"upload_batch_size"`

	// Startup connectivity
	StartupMaxAttempts int      `toml:"startup_max_attempts"`
	StartupRetryDelay  Duration `toml:"startup_retry_delay"`
	StoreWaitAttempts  int      `toml:"store_wait_attempts"`
	StoreWaitDelay     Duration `toml:"store_wait_delay"`

	// HTTP server
	ServerHost string `toml:"server_host"`
	ServerPort int    `toml:"server_port"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		VectorStore:        StorePGVector,
		PGHost:             "localhost",
		PGPort:             5432,
		PGUser:             "rome",
		PGPassword:         "rome",
		PGDatabase:         "rome",
		PGSSLMode:          "disable",
		SQLitePath:         "rome_vectors.db",
		Collection:         "history_of_rome",
		EmbeddingProvider:  ProviderOllama,
		EmbeddingModel:     "all-minilm",
		ONNXMaxTokens:      256,
		EmbeddingCacheTTL:  Duration{24 * time.Hour},
		OllamaHost:         "localhost",
		OllamaPort:         11434,
		OllamaModel:        "llama3.1:8b",
		Temperature:        0.7,
		TopP:               0.9,
		MaxTokens:          1000,
		GenerationTimeout:  Duration{120 * time.Second},
		MaxRetries:         0,
		RetryDelay:         Duration{2 * time.Second},
		MaxContextLength:   4000,
		ChunkSize:          512,
		ChunkOverlap:       50,
		TranscriptDirs:     []string{"all_transcripts"},
		EmbedBatchSize:     32,
		UploadBatchSize:    100,
		StartupMaxAttempts: 10,
		StartupRetryDelay:  Duration{5 * time.Second},
		StoreWaitAttempts:  30,
		StoreWaitDelay:     Duration{2 * time.Second},
		ServerHost:         "0.0.0.0",
		ServerPort:         5000,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load builds configuration from defaults, the CONFIG_FILE TOML file if set,
// and environment variables, in increasing precedence
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFile decodes a TOML file over the current values
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.VectorStore = strings.ToLower(getEnv("VECTOR_STORE", c.VectorStore))
	c.PGHost = getEnv("PGVECTOR_HOST", c.PGHost)
	c.PGPort = getEnvInt("PGVECTOR_PORT", c.PGPort)
	c.PGUser = getEnv("PGVECTOR_USER", c.PGUser)
	c.PGPassword = getEnv("PGVECTOR_PASSWORD", c.PGPassword)
	c.PGDatabase = getEnv("PGVECTOR_DB", c.PGDatabase)
	c.PGSSLMode = getEnv("PGVECTOR_SSLMODE", c.PGSSLMode)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.Collection = getEnv("COLLECTION_NAME", c.Collection)

	c.EmbeddingProvider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider))
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", c.EmbeddingBaseURL)
	c.ONNXModelPath = getEnv("ONNX_MODEL_PATH", c.ONNXModelPath)
	c.ONNXTokenizerPath = getEnv("ONNX_TOKENIZER_PATH", c.ONNXTokenizerPath)
	c.ONNXLibraryPath = getEnv("ONNX_LIBRARY_PATH", c.ONNXLibraryPath)
	c.ONNXMaxTokens = getEnvInt("ONNX_MAX_TOKENS", c.ONNXMaxTokens)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.EmbeddingCacheTTL.Duration = getEnvDuration("EMBEDDING_CACHE_TTL", c.EmbeddingCacheTTL.Duration)

	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OllamaPort = getEnvInt("OLLAMA_PORT", c.OllamaPort)
	c.OllamaModel = getEnv("OLLAMA_MODEL", c.OllamaModel)
	c.Temperature = getEnvFloat("GENERATION_TEMPERATURE", c.Temperature)
	c.TopP = getEnvFloat("GENERATION_TOP_P", c.TopP)
	c.MaxTokens = getEnvInt("GENERATION_MAX_TOKENS", c.MaxTokens)
	c.GenerationTimeout.Duration = getEnvDuration("GENERATION_TIMEOUT", c.GenerationTimeout.Duration)
	c.MaxRetries = getEnvInt("LLM_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay.Duration = getEnvDuration("LLM_RETRY_DELAY", c.RetryDelay.Duration)

	c.MaxContextLength = getEnvInt("MAX_CONTEXT_LENGTH", c.MaxContextLength)
	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.TranscriptDirs = getEnvList("TRANSCRIPT_DIRS", c.TranscriptDirs)
	c.EmbedBatchSize = getEnvInt("EMBED_BATCH_SIZE", c.EmbedBatchSize)
	c.UploadBatchSize = getEnvInt("UPLOAD_BATCH_SIZE", c.UploadBatchSize)

	c.StartupMaxAttempts = getEnvInt("STARTUP_MAX_ATTEMPTS", c.StartupMaxAttempts)
	c.StartupRetryDelay.Duration = getEnvDuration("STARTUP_RETRY_DELAY", c.StartupRetryDelay.Duration)
	c.StoreWaitAttempts = getEnvInt("STORE_WAIT_ATTEMPTS", c.StoreWaitAttempts)
	c.StoreWaitDelay.Duration = getEnvDuration("STORE_WAIT_DELAY", c.StoreWaitDelay.Duration)

	c.ServerHost = getEnv("SERVER_HOST", c.ServerHost)
	c.ServerPort = getEnvInt("SERVER_PORT", c.ServerPort)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.VectorStore {
	case StorePGVector, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("VECTOR_STORE must be %s or %s, got %q", StorePGVector, StoreSQLite, c.VectorStore))
	}
	switch c.EmbeddingProvider {
	case ProviderOllama:
	case ProviderONNX:
		if c.ONNXModelPath == "" || c.ONNXTokenizerPath == "" {
			errs = append(errs, errors.New("ONNX_MODEL_PATH and ONNX_TOKENIZER_PATH are required for the onnx provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER must be %s or %s, got %q", ProviderOllama, ProviderONNX, c.EmbeddingProvider))
	}
	if c.Collection == "" {
		errs = append(errs, errors.New("COLLECTION_NAME must not be empty"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be 0 to CHUNK_SIZE-1, got %d", c.ChunkOverlap))
	}
	if c.MaxContextLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_LENGTH must be positive, got %d", c.MaxContextLength))
	}
	if c.EmbedBatchSize <= 0 || c.UploadBatchSize <= 0 {
		errs = append(errs, errors.New("EMBED_BATCH_SIZE and UPLOAD_BATCH_SIZE must be positive"))
	}
	if c.StartupMaxAttempts < 1 || c.StoreWaitAttempts < 1 {
		errs = append(errs, errors.New("STARTUP_MAX_ATTEMPTS and STORE_WAIT_ATTEMPTS must be at least 1"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("GENERATION_TEMPERATURE must be 0-2, got %f", c.Temperature))
	}
	if c.TopP <= 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("GENERATION_TOP_P must be in (0, 1], got %f", c.TopP))
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("LLM_MAX_RETRIES must be 0-10, got %d", c.MaxRetries))
	}
	if c.MaxRetries > 0 && c.RetryDelay.Duration <= 0 {
		errs = append(errs, fmt.Errorf("LLM_RETRY_DELAY must be positive when LLM_MAX_RETRIES is set, got %s", c.RetryDelay.Duration))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be 1-65535, got %d", c.ServerPort))
	}

	return errors.Join(errs...)
}

// OllamaURL is the base URL of the Ollama server
func (c *Config) OllamaURL() string {
	return "http://" + net.JoinHostPort(c.OllamaHost, strconv.Itoa(c.OllamaPort))
}

// GenerationBaseURL is Ollama's OpenAI-compatible API root
func (c *Config) GenerationBaseURL() string {
	return c.OllamaURL() + "/v1"
}

// EmbeddingURL is the OpenAI-compatible API root used for embeddings
func (c *Config) EmbeddingURL() string {
	if c.EmbeddingBaseURL != "" {
		return strings.TrimRight(c.EmbeddingBaseURL, "/")
	}
	return c.GenerationBaseURL()
}

// PostgresDSN builds the pgvector connection string
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PGUser, c.PGPassword),
		Host:     net.JoinHostPort(c.PGHost, strconv.Itoa(c.PGPort)),
		Path:     "/" + c.PGDatabase,
		RawQuery: "sslmode=" + url.QueryEscape(c.PGSSLMode),
	}
	return u.String()
}

// ServerAddr is the HTTP listen address
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
