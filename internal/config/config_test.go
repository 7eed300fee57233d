package config

import (
	"strings"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DOCIDX_DATABASE_URL", "postgres://localhost/erp?sslmode=disable")
	t.Setenv("DOCIDX_GEMINI_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4000 || cfg.Server.MCPPort != 4001 {
		t.Errorf("server ports = %d/%d", cfg.Server.Port, cfg.Server.MCPPort)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server host = %q, want loopback default", cfg.Server.Host)
	}
	if cfg.Embedding.Model != "embedding-001" {
		t.Errorf("embedding model = %q", cfg.Embedding.Model)
	}
	if cfg.Indexing.ChunkSize != 1000 || cfg.Indexing.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d", cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
	}
	if cfg.Indexing.WatchInterval != 5*time.Minute {
		t.Errorf("watch interval = %v", cfg.Indexing.WatchInterval)
	}
	if cfg.Search.Threshold != 0.7 || cfg.Search.MaxResults != 10 {
		t.Errorf("search = %v/%d", cfg.Search.Threshold, cfg.Search.MaxResults)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("DOCIDX_SERVER_HOST", "0.0.0.0")
	t.Setenv("DOCIDX_SERVER_PORT", "8080")
	t.Setenv("DOCIDX_SEARCH_THRESHOLD", "0.55")
	t.Setenv("DOCIDX_INDEXING_WATCH_INTERVAL", "30s")
	t.Setenv("DOCIDX_EMBEDDING_MODEL", "embedding-002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Search.Threshold != 0.55 {
		t.Errorf("threshold = %v, want 0.55", cfg.Search.Threshold)
	}
	if cfg.Indexing.WatchInterval != 30*time.Second {
		t.Errorf("watch interval = %v, want 30s", cfg.Indexing.WatchInterval)
	}
	if cfg.Embedding.Model != "embedding-002" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	t.Setenv("DOCIDX_DATABASE_URL", "")
	t.Setenv("DOCIDX_GEMINI_API_KEY", "test-key")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DOCIDX_DATABASE_URL") {
		t.Fatalf("Load = %v, want error naming DOCIDX_DATABASE_URL", err)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("DOCIDX_DATABASE_URL", "postgres://localhost/erp")
	t.Setenv("DOCIDX_GEMINI_API_KEY", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DOCIDX_GEMINI_API_KEY") {
		t.Fatalf("Load = %v, want error naming DOCIDX_GEMINI_API_KEY", err)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	validEnv(t)
	t.Setenv("DOCIDX_SEARCH_THRESHOLD", "1.2")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for threshold above 1")
	}
}

func TestLoadRejectsOverlapNotSmallerThanChunkSize(t *testing.T) {
	validEnv(t)
	t.Setenv("DOCIDX_INDEXING_CHUNK_SIZE", "100")
	t.Setenv("DOCIDX_INDEXING_CHUNK_OVERLAP", "100")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for overlap equal to chunk size")
	}
}

func TestLoadIgnoresMalformedNumericEnv(t *testing.T) {
	validEnv(t)
	t.Setenv("DOCIDX_SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, malformed override should keep the default", cfg.Server.Port)
	}
}
