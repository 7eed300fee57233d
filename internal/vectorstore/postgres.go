// Package vectorstore owns the embedding table in PostgreSQL: a pgvector
// vector(768) column with an HNSW index for approximate nearest-neighbor
// search, a B-tree index on document id for per-document maintenance, and
// the similarity-search query that is the sole supported read path.
package vectorstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/kalambet/docidx/internal/embedding"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Record is one stored embedding row: a chunk of document text plus its
// vector. Rows are immutable after insertion and removed only by explicit
// per-document deletion.
type Record struct {
	ID         string
	DocumentID int64
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SearchResult is a similarity query hit. Similarity is computed as
// 1 / (1 + d) where d is the cosine distance between the stored vector and
// the query vector: distance 0 maps to 1.0 and the score decays toward 0
// as distance grows. This is a monotonic transform of distance, not a
// normalized cosine similarity; thresholds are tuned against this scale.
type SearchResult struct {
	DocumentID int64           `json:"document_id"`
	ChunkIndex int             `json:"chunk_index"`
	Content    string          `json:"content"`
	Similarity float64         `json:"similarity"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Stats summarizes the stored embeddings.
type Stats struct {
	TotalEmbeddings int
	UniqueDocuments int
	AvgChunkLength  float64
	Oldest          time.Time
	Newest          time.Time
}

// Store wraps a PostgreSQL database holding the embedding table.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the pgvector extension is
// installed, and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// The CREATE EXTENSION in the first migration needs superuser rights
	// on some deployments; confirm it actually took effect.
	var ext string
	err = db.QueryRowContext(ctx, `SELECT extname FROM pg_extension WHERE extname = 'vector'`).Scan(&ext)
	if err == sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("pgvector extension is not installed in this database")
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking pgvector extension: %w", err)
	}

	return s, nil
}

// DB exposes the underlying connection pool so the ERP attachment queries
// can share it (the embedding table and ir_attachment live in the same
// database).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migration files that haven't been run yet,
// tracked in a schema_version table.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS docidx_schema_version (
		version integer PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docidx_schema_version WHERE version = $1`, version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO docidx_schema_version (version) VALUES ($1)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// parseMigrationVersion extracts the numeric prefix from a migration
// filename like "0001_embeddings.sql".
func parseMigrationVersion(name string) (int, error) {
	base, _, found := strings.Cut(name, "_")
	if !found {
		return 0, fmt.Errorf("migration %s: missing version prefix", name)
	}
	version, err := strconv.Atoi(base)
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", name, err)
	}
	return version, nil
}

// InsertBatch stores all records for one document in a single transaction.
// Any rows from a prior indexing pass for the same document are deleted
// first, so re-indexing never accumulates stale or duplicate
// (document_id, chunk_index) rows.
func (s *Store) InsertBatch(ctx context.Context, documentID int64, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.validate(documentID); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ai_document_embeddings WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("purging prior embeddings for document %d: %w", documentID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ai_document_embeddings
			(id, document_id, chunk_index, content, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		metadata := r.Metadata
		if metadata == nil {
			metadata = json.RawMessage(`{}`)
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.DocumentID,
			r.ChunkIndex,
			r.Content,
			pgvector.NewVector(r.Embedding),
			[]byte(metadata),
			createdAt,
			now,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of document %d: %w", r.ChunkIndex, documentID, err)
		}
	}

	return tx.Commit()
}

func (r Record) validate(documentID int64) error {
	if r.DocumentID != documentID {
		return fmt.Errorf("record for document %d in batch for document %d", r.DocumentID, documentID)
	}
	if r.ID == "" {
		return fmt.Errorf("record for document %d chunk %d has no id", r.DocumentID, r.ChunkIndex)
	}
	if len(r.Embedding) != embedding.Dimensions {
		return fmt.Errorf("document %d chunk %d: embedding has %d components, want %d",
			r.DocumentID, r.ChunkIndex, len(r.Embedding), embedding.Dimensions)
	}
	return nil
}

// DeleteDocument removes all embedding rows for a document and returns how
// many were deleted.
func (s *Store) DeleteDocument(ctx context.Context, documentID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ai_document_embeddings WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings for document %d: %w", documentID, err)
	}
	return result.RowsAffected()
}

// Search returns chunks ranked by similarity to the query vector,
// descending, excluding rows below threshold and capped at limit. The HNSW
// index serves the nearest-neighbor ordering; an empty result set is a nil
// slice, not an error.
func (s *Store) Search(ctx context.Context, queryVector []float32, threshold float64, limit int) ([]SearchResult, error) {
	if len(queryVector) != embedding.Dimensions {
		return nil, fmt.Errorf("query vector has %d components, want %d", len(queryVector), embedding.Dimensions)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, chunk_index, content, metadata,
		       1 / (1 + (embedding <=> $1)) AS similarity
		FROM ai_document_embeddings
		WHERE 1 / (1 + (embedding <=> $1)) >= $2
		ORDER BY similarity DESC
		LIMIT $3
	`, pgvector.NewVector(queryVector), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var metadata []byte
		if err := rows.Scan(&r.DocumentID, &r.ChunkIndex, &r.Content, &metadata, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Metadata = json.RawMessage(metadata)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats returns aggregate figures about the stored embeddings.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT document_id),
		       AVG(LENGTH(content)),
		       MIN(created_at),
		       MAX(created_at)
		FROM ai_document_embeddings
	`).Scan(&st.TotalEmbeddings, &st.UniqueDocuments, &avg, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("querying embedding stats: %w", err)
	}
	st.AvgChunkLength = avg.Float64
	st.Oldest = oldest.Time
	st.Newest = newest.Time
	return st, nil
}
