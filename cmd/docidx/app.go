package main

import (
	"context"
	"fmt"

	"github.com/kalambet/docidx/internal/config"
	"github.com/kalambet/docidx/internal/embedding"
	"github.com/kalambet/docidx/internal/erp"
	"github.com/kalambet/docidx/internal/extract"
	"github.com/kalambet/docidx/internal/indexer"
	"github.com/kalambet/docidx/internal/retriever"
	"github.com/kalambet/docidx/internal/vectorstore"
)

// app bundles the wired pipeline components every command works with.
type app struct {
	cfg       config.Config
	vectors   *vectorstore.Store
	documents *erp.Store
	embedder  *embedding.Client
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
}

// buildApp loads config, connects to the database, and wires the pipeline.
// The caller must Close the returned app.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)

	vectors, err := vectorstore.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// ir_attachment lives in the same database as the embedding table.
	documents := erp.NewStore(vectors.DB())
	embedder := embedding.New(cfg.Embedding.APIKey, cfg.Embedding.Model,
		cfg.Embedding.RequestsPerSecond, embedding.DefaultPolicy())

	ix := indexer.New(documents, extract.DefaultRegistry(), embedder, vectors, indexer.Config{
		BatchSize:    cfg.Indexing.BatchSize,
		ChunkSize:    cfg.Indexing.ChunkSize,
		ChunkOverlap: cfg.Indexing.ChunkOverlap,
	})

	return &app{
		cfg:       cfg,
		vectors:   vectors,
		documents: documents,
		embedder:  embedder,
		indexer:   ix,
		retriever: retriever.New(embedder, vectors),
	}, nil
}

func (a *app) Close() error {
	return a.vectors.Close()
}

// setBatchSize rebuilds the indexer with a per-invocation batch limit.
func (a *app) setBatchSize(batchSize int) {
	a.cfg.Indexing.BatchSize = batchSize
	a.indexer = indexer.New(a.documents, extract.DefaultRegistry(), a.embedder, a.vectors, indexer.Config{
		BatchSize:    batchSize,
		ChunkSize:    a.cfg.Indexing.ChunkSize,
		ChunkOverlap: a.cfg.Indexing.ChunkOverlap,
	})
}

// Purge removes a document's embedding rows and returns it to the indexing
// queue. Returns the number of rows deleted.
func (a *app) Purge(ctx context.Context, documentID int64) (int64, error) {
	deleted, err := a.vectors.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := a.documents.Reset(ctx, documentID); err != nil {
		return deleted, fmt.Errorf("embeddings deleted but reset failed: %w", err)
	}
	return deleted, nil
}
