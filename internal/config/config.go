// Package config loads service configuration from defaults, an optional
// .env file, and DOCIDX_* environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Indexing  IndexingConfig
	Search    SearchConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	MCPPort  int
	APIToken string
}

type DatabaseConfig struct {
	URL string
}

type EmbeddingConfig struct {
	APIKey            string
	Model             string
	RequestsPerSecond float64
}

type IndexingConfig struct {
	BatchSize     int
	ChunkSize     int
	ChunkOverlap  int
	WatchInterval time.Duration
}

type SearchConfig struct {
	Threshold  float64
	MaxResults int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			// Loopback by default; container deployments override the
			// bind host (typically 0.0.0.0) to be reachable from peers.
			Host:    "127.0.0.1",
			Port:    4000,
			MCPPort: 4001,
		},
		Embedding: EmbeddingConfig{
			Model:             "embedding-001",
			RequestsPerSecond: 10,
		},
		Indexing: IndexingConfig{
			BatchSize:     50,
			ChunkSize:     1000,
			ChunkOverlap:  200,
			WatchInterval: 5 * time.Minute,
		},
		Search: SearchConfig{
			Threshold:  0.7,
			MaxResults: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file in the working directory (if
// present) and DOCIDX_* environment variables. Environment variables
// override .env values, which override the built-in defaults.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("missing required config: database URL. Set it via DOCIDX_DATABASE_URL")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("missing required config: embedding API key. Set it via DOCIDX_GEMINI_API_KEY")
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("search threshold %.2f out of range [0, 1]", c.Search.Threshold)
	}
	if c.Indexing.ChunkOverlap >= c.Indexing.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			c.Indexing.ChunkOverlap, c.Indexing.ChunkSize)
	}
	return nil
}
