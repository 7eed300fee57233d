// Package erp reads attachment documents from the ERP's ir_attachment
// table and writes back the two indexing-state fields the indexer owns:
// x_is_indexed and x_indexing_error. Everything else about attachments is
// owned and mutated by the ERP.
package erp

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Attachment is a pending document pulled from the ERP: identity, declared
// media type, and the payload as stored. Data is the raw base64 text from
// the datas column; DecodeContent turns it into bytes so a corrupt payload
// fails that one document instead of the batch fetch.
type Attachment struct {
	ID        int64
	Name      string
	MediaType string
	Data      string
	CreatedAt time.Time
}

// DecodeContent returns the attachment's raw bytes. Odoo stores payloads
// base64-encoded.
func (a Attachment) DecodeContent() ([]byte, error) {
	content, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding content of attachment %d: %w", a.ID, err)
	}
	return content, nil
}

// Store runs attachment queries against the ERP database. It shares the
// connection pool with the vector store since both tables live in the same
// PostgreSQL instance.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchPending returns up to limit unindexed attachments whose media type
// has a registered extractor, newest first. Documents that already carry
// an indexing error are excluded until they are explicitly reset.
func (s *Store) FetchPending(ctx context.Context, mediaTypes []string, limit int) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, datas, mimetype, create_date
		FROM ir_attachment
		WHERE x_is_indexed = FALSE
		  AND datas IS NOT NULL
		  AND x_indexing_error IS NULL
		  AND mimetype = ANY($1)
		ORDER BY create_date DESC
		LIMIT $2
	`, pq.Array(mediaTypes), limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending attachments: %w", err)
	}
	defer rows.Close()

	var pending []Attachment
	for rows.Next() {
		var (
			a       Attachment
			datas   string
			created sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Name, &datas, &a.MediaType, &created); err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		a.CreatedAt = created.Time
		a.Data = strings.TrimSpace(datas)
		pending = append(pending, a)
	}
	return pending, rows.Err()
}

// MarkIndexed flags the attachment as indexed and clears any prior error.
func (s *Store) MarkIndexed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ir_attachment
		SET x_is_indexed = TRUE, x_indexed_date = now(), x_indexing_error = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking attachment %d indexed: %w", id, err)
	}
	return nil
}

// MarkError records an indexing failure on the attachment. The document
// stays unindexed and is skipped by FetchPending until reset.
func (s *Store) MarkError(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ir_attachment
		SET x_indexing_error = $2
		WHERE id = $1
	`, id, message)
	if err != nil {
		return fmt.Errorf("marking attachment %d failed: %w", id, err)
	}
	return nil
}

// Reset returns the attachment to the unindexed state so the next cycle
// picks it up again. Used together with purging its embedding rows to
// force a clean re-index.
func (s *Store) Reset(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ir_attachment
		SET x_is_indexed = FALSE, x_indexing_error = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("resetting attachment %d: %w", id, err)
	}
	return nil
}
