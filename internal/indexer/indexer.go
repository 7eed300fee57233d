// Package indexer drives indexing cycles: discover pending ERP
// attachments, extract and chunk their text, embed each chunk, persist the
// vectors, and write the indexing state back to the ERP. One bad document
// never aborts a batch; systemic failures abort the cycle and are retried
// on the next one.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/docidx/internal/chunker"
	"github.com/kalambet/docidx/internal/embedding"
	"github.com/kalambet/docidx/internal/erp"
	"github.com/kalambet/docidx/internal/extract"
	"github.com/kalambet/docidx/internal/vectorstore"
)

// maxStoredChunkChars caps the text persisted per embedding row.
const maxStoredChunkChars = 2000

// DocumentSource abstracts the ERP attachment queries.
type DocumentSource interface {
	FetchPending(ctx context.Context, mediaTypes []string, limit int) ([]erp.Attachment, error)
	MarkIndexed(ctx context.Context, id int64) error
	MarkError(ctx context.Context, id int64, message string) error
}

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingStore persists embedding records.
type EmbeddingStore interface {
	InsertBatch(ctx context.Context, documentID int64, records []vectorstore.Record) error
}

// Config bounds one indexing cycle.
type Config struct {
	BatchSize    int
	ChunkSize    int
	ChunkOverlap int
}

// CycleStats summarizes one indexing cycle for the operator log.
type CycleStats struct {
	Pending    int
	Succeeded  int
	Failed     int
	Embeddings int
	Duration   time.Duration
}

// Indexer runs indexing cycles over pending ERP attachments.
type Indexer struct {
	source   DocumentSource
	registry *extract.Registry
	embedder Embedder
	store    EmbeddingStore
	cfg      Config
	logger   *slog.Logger
}

// New creates an Indexer. Zero config values fall back to defaults
// (batch 50, chunk size 1000, overlap 200).
func New(source DocumentSource, registry *extract.Registry, embedder Embedder, store EmbeddingStore, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultMaxSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	return &Indexer{
		source:   source,
		registry: registry,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// RunCycle processes one batch of pending documents. Per-document failures
// are recorded on the document and the batch continues; the returned error
// is non-nil only for systemic failures (pending query failed, or the
// embedding service rejected us permanently) that abort the remainder of
// the cycle.
func (ix *Indexer) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	var stats CycleStats
	defer func() {
		stats.Duration = time.Since(start)
		ix.logger.Info("indexing cycle finished",
			"pending", stats.Pending,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"embeddings", stats.Embeddings,
			"duration", stats.Duration.Round(time.Millisecond),
		)
	}()

	docs, err := ix.source.FetchPending(ctx, ix.registry.MediaTypes(), ix.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("fetching pending documents: %w", err)
	}
	stats.Pending = len(docs)
	if len(docs) == 0 {
		return stats, nil
	}

	for _, doc := range docs {
		written, err := ix.processDocument(ctx, doc)
		if err != nil {
			if errors.Is(err, embedding.ErrPermanent) {
				// Credentials or quota problems hit every remaining
				// document too; stop here and let the next cycle retry.
				stats.Failed++
				return stats, fmt.Errorf("document %d: %w", doc.ID, err)
			}
			ix.logger.Warn("document failed", "document_id", doc.ID, "name", doc.Name, "error", err)
			if markErr := ix.source.MarkError(ctx, doc.ID, err.Error()); markErr != nil {
				ix.logger.Error("failed to record document error", "document_id", doc.ID, "error", markErr)
			}
			stats.Failed++
			continue
		}

		if err := ix.source.MarkIndexed(ctx, doc.ID); err != nil {
			// Rows are stored; the purge-before-insert makes the retry
			// next cycle harmless.
			ix.logger.Error("failed to mark document indexed", "document_id", doc.ID, "error", err)
			stats.Failed++
			continue
		}

		ix.logger.Info("document indexed", "document_id", doc.ID, "name", doc.Name, "embeddings", written)
		stats.Succeeded++
		stats.Embeddings += written
	}

	return stats, nil
}

// Watch runs cycles every interval until ctx is cancelled. The in-flight
// cycle always finishes: document work runs detached from the shutdown
// signal, which is only honored between cycles. A failed cycle is logged
// and does not stop the loop.
func (ix *Indexer) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	for {
		if _, err := ix.RunCycle(context.WithoutCancel(ctx)); err != nil {
			ix.logger.Error("indexing cycle aborted", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// chunkMetadata is stored alongside each embedding row.
type chunkMetadata struct {
	DocumentName string    `json:"document_name"`
	MediaType    string    `json:"media_type"`
	ChunkLength  int       `json:"chunk_length"`
	PageNumber   int       `json:"page_number,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// processDocument extracts, chunks, embeds, and stores one attachment.
// Returns the number of embedding rows written.
func (ix *Indexer) processDocument(ctx context.Context, doc erp.Attachment) (int, error) {
	extractor, err := ix.registry.Lookup(doc.MediaType)
	if err != nil {
		return 0, err
	}

	content, err := doc.DecodeContent()
	if err != nil {
		return 0, err
	}

	spans, err := extractor.Extract(content, doc.MediaType)
	if err != nil {
		return 0, err
	}

	var records []vectorstore.Record
	seq := 0
	now := time.Now().UTC()

	for _, span := range spans {
		for _, text := range chunker.Chunk(span.Text, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}

			// Serialized on purpose: the embedding service's rate limit
			// dominates throughput, and the client paces itself.
			vec, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				return 0, fmt.Errorf("embedding chunk %d: %w", seq, err)
			}

			metadata, err := json.Marshal(chunkMetadata{
				DocumentName: doc.Name,
				MediaType:    doc.MediaType,
				ChunkLength:  len(text),
				PageNumber:   span.Page,
				ProcessedAt:  now,
			})
			if err != nil {
				return 0, fmt.Errorf("marshaling chunk metadata: %w", err)
			}

			records = append(records, vectorstore.Record{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				ChunkIndex: seq,
				Content:    truncate(text, maxStoredChunkChars),
				Embedding:  vec,
				Metadata:   metadata,
				CreatedAt:  now,
			})
			seq++
		}
	}

	if len(records) == 0 {
		return 0, fmt.Errorf("no indexable content extracted")
	}

	if err := ix.store.InsertBatch(ctx, doc.ID, records); err != nil {
		return 0, fmt.Errorf("storing embeddings: %w", err)
	}
	return len(records), nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
