package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"policy-manual-ai/internal/content"
	"policy-manual-ai/internal/rag"
	"policy-manual-ai/internal/scrape"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  slog.Level
	LogFormat string
	APIPort   string

	DBPath    string
	DataDir   string
	BlevePath string

	SourceBaseURL string
	FetchTimeout  time.Duration
	FetchRPS      float64
	Delays        scrape.Delays
	SegmentMode   content.Mode

	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	LLMTimeout         time.Duration
	EmbeddingBaseURL   string
	EmbeddingModelName string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	CitationMode       rag.CitationMode
	SessionIdleTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	llmBaseURL := getEnv("LLM_BASE_URL", "http://localhost:11434")

	cfg := &Config{
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		APIPort:            getEnv("API_PORT", "5555"),
		DBPath:             getEnv("DB_PATH", "./data/policy-manual.db"),
		DataDir:            getEnv("DATA_DIR", "./data/raw_data"),
		BlevePath:          getEnv("BLEVE_PATH", "./data/policy-manual.bleve"),
		SourceBaseURL:      strings.TrimRight(getEnv("SOURCE_BASE_URL", "https://www.uscis.gov"), "/"),
		LLMBaseURL:         llmBaseURL,
		LLMModelName:       getEnv("LLM_MODEL", "llama3.2"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", llmBaseURL),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "nomic-embed-text"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "USCIS_Policy_Manual"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// The vector size must match the embedding model's output; changing it
	// requires recreating the Qdrant collection.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"FETCH_TIMEOUT", scrape.DefaultFetchTimeout, &cfg.FetchTimeout},
		{"CHAPTER_DELAY", scrape.DefaultDelays().Chapter, &cfg.Delays.Chapter},
		{"PART_DELAY", scrape.DefaultDelays().Part, &cfg.Delays.Part},
		{"VOLUME_DELAY", scrape.DefaultDelays().Volume, &cfg.Delays.Volume},
		{"LLM_TIMEOUT", 120 * time.Second, &cfg.LLMTimeout},
		{"SESSION_IDLE_TIMEOUT", 24 * time.Hour, &cfg.SessionIdleTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}

	rps, err := strconv.ParseFloat(getEnv("FETCH_RPS", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("FETCH_RPS must be a number: %w", err)
	}
	if rps <= 0 {
		return nil, fmt.Errorf("FETCH_RPS must be greater than 0")
	}
	cfg.FetchRPS = rps

	if cfg.SegmentMode, err = content.ParseMode(getEnv("SEGMENT_MODE", "subsections")); err != nil {
		return nil, fmt.Errorf("SEGMENT_MODE is invalid: %w", err)
	}
	if cfg.CitationMode, err = rag.ParseCitationMode(getEnv("CITATION_MODE", "lenient")); err != nil {
		return nil, fmt.Errorf("CITATION_MODE is invalid: %w", err)
	}

	// Create ./data directory if it doesn't exist (for the DB file)
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a Go duration ("30s", "2m") from key.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// CacheDir is where fetched pages are cached.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "html")
}

// ChunksDir is where run logs are written.
func (c *Config) ChunksDir() string {
	return filepath.Join(c.DataDir, "chunks")
}
