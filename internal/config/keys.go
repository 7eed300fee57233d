package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "DOCIDX_SERVER_HOST", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
	},
	{
		env: "DOCIDX_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "DOCIDX_SERVER_MCP_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
	},
	{
		env: "DOCIDX_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "DOCIDX_DATABASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Database.URL = v.(string) },
	},
	{
		env: "DOCIDX_GEMINI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Embedding.APIKey = v.(string) },
	},
	{
		env: "DOCIDX_EMBEDDING_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Embedding.Model = v.(string) },
	},
	{
		env: "DOCIDX_EMBEDDING_RPS", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Embedding.RequestsPerSecond = v.(float64) },
	},
	{
		env: "DOCIDX_INDEXING_BATCH_SIZE", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Indexing.BatchSize = v.(int) },
	},
	{
		env: "DOCIDX_INDEXING_CHUNK_SIZE", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Indexing.ChunkSize = v.(int) },
	},
	{
		env: "DOCIDX_INDEXING_CHUNK_OVERLAP", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Indexing.ChunkOverlap = v.(int) },
	},
	{
		env: "DOCIDX_INDEXING_WATCH_INTERVAL", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.Indexing.WatchInterval = v.(time.Duration) },
	},
	{
		env: "DOCIDX_SEARCH_THRESHOLD", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Search.Threshold = v.(float64) },
	},
	{
		env: "DOCIDX_SEARCH_MAX_RESULTS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Search.MaxResults = v.(int) },
	},
	{
		env: "DOCIDX_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
