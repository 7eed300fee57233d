package erp

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// --- fake driver ---

type statementCall struct {
	query string
	args  []driver.Value
}

type fakeConn struct {
	rows     [][]driver.Value
	queries  []statementCall
	execs    []statementCall
	queryErr error
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

type fakeStmt struct {
	conn  *fakeConn
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.conn.execs = append(s.conn.execs, statementCall{s.query, args})
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.conn.queries = append(s.conn.queries, statementCall{s.query, args})
	if s.conn.queryErr != nil {
		return nil, s.conn.queryErr
	}
	return &fakeRows{rows: s.conn.rows}, nil
}

type fakeRows struct {
	rows [][]driver.Value
	pos  int
}

func (r *fakeRows) Columns() []string {
	return []string{"id", "name", "datas", "mimetype", "create_date"}
}

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

type fakeConnector struct {
	conn *fakeConn
}

func (f fakeConnector) Connect(context.Context) (driver.Conn, error) { return f.conn, nil }
func (f fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

func newTestStore(rows [][]driver.Value) (*Store, *fakeConn) {
	conn := &fakeConn{rows: rows}
	return NewStore(sql.OpenDB(fakeConnector{conn: conn})), conn
}

func b64(content string) string {
	return base64.StdEncoding.EncodeToString([]byte(content))
}

// --- tests ---

func TestFetchPending(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	store, conn := newTestStore([][]driver.Value{
		{int64(7), "manual.pdf", "  " + b64("pdf bytes") + "\n", "application/pdf", created},
		{int64(9), "note.txt", b64("plain note"), "text/plain", created},
	})

	pending, err := store.FetchPending(context.Background(), []string{"application/pdf", "text/plain"}, 50)
	if err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d attachments, want 2", len(pending))
	}

	a := pending[0]
	if a.ID != 7 || a.Name != "manual.pdf" || a.MediaType != "application/pdf" {
		t.Errorf("attachment = %+v", a)
	}
	if a.Data != b64("pdf bytes") {
		t.Errorf("Data = %q, want surrounding whitespace trimmed", a.Data)
	}
	if !a.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, created)
	}

	if len(conn.queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(conn.queries))
	}
	query := conn.queries[0].query
	for _, clause := range []string{
		"x_is_indexed = FALSE",
		"x_indexing_error IS NULL",
		"datas IS NOT NULL",
		"ORDER BY create_date DESC",
	} {
		if !strings.Contains(query, clause) {
			t.Errorf("pending query missing %q", clause)
		}
	}
	args := conn.queries[0].args
	if len(args) != 2 || args[1] != int64(50) {
		t.Errorf("query args = %v, want media types and limit 50", args)
	}
}

func TestFetchPendingCorruptPayloadIsNotABatchError(t *testing.T) {
	store, _ := newTestStore([][]driver.Value{
		{int64(1), "garbled.bin", "%%%not-base64%%%", "text/plain", time.Now()},
		{int64(2), "fine.txt", b64("readable"), "text/plain", time.Now()},
	})

	pending, err := store.FetchPending(context.Background(), []string{"text/plain"}, 50)
	if err != nil {
		t.Fatalf("FetchPending must not fail on a corrupt payload: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d attachments, the corrupt row must still be returned", len(pending))
	}

	// The decode failure surfaces per document, where the indexer records it.
	if _, err := pending[0].DecodeContent(); err == nil {
		t.Error("DecodeContent should fail for the corrupt payload")
	}
	content, err := pending[1].DecodeContent()
	if err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	if string(content) != "readable" {
		t.Errorf("content = %q", content)
	}
}

func TestDecodeContent(t *testing.T) {
	a := Attachment{ID: 42, Data: b64("warranty terms")}
	content, err := a.DecodeContent()
	if err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	if string(content) != "warranty terms" {
		t.Errorf("content = %q", content)
	}

	a.Data = "!!!"
	_, err = a.DecodeContent()
	if err == nil || !strings.Contains(err.Error(), "decoding content of attachment 42") {
		t.Errorf("DecodeContent = %v, want error naming the attachment", err)
	}
}

func TestFetchPendingQueryFailure(t *testing.T) {
	store, conn := newTestStore(nil)
	conn.queryErr = errors.New("connection refused")

	_, err := store.FetchPending(context.Background(), []string{"text/plain"}, 50)
	if err == nil || !strings.Contains(err.Error(), "querying pending attachments") {
		t.Fatalf("FetchPending = %v, want wrapped query error", err)
	}
}

func TestMarkIndexed(t *testing.T) {
	store, conn := newTestStore(nil)

	if err := store.MarkIndexed(context.Background(), 5); err != nil {
		t.Fatalf("MarkIndexed: %v", err)
	}
	if len(conn.execs) != 1 {
		t.Fatalf("expected 1 update, got %d", len(conn.execs))
	}
	query := conn.execs[0].query
	if !strings.Contains(query, "x_is_indexed = TRUE") || !strings.Contains(query, "x_indexing_error = NULL") {
		t.Errorf("update should set indexed and clear the error, got %q", query)
	}
	if args := conn.execs[0].args; len(args) != 1 || args[0] != int64(5) {
		t.Errorf("update args = %v, want document id 5", args)
	}
}

func TestMarkError(t *testing.T) {
	store, conn := newTestStore(nil)

	if err := store.MarkError(context.Background(), 8, "unsupported media type: application/zip"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}
	query := conn.execs[0].query
	if !strings.Contains(query, "x_indexing_error = $2") {
		t.Errorf("update should set the error field, got %q", query)
	}
	if strings.Contains(query, "x_is_indexed") {
		t.Errorf("MarkError must leave the indexed flag untouched, got %q", query)
	}
	args := conn.execs[0].args
	if len(args) != 2 || args[0] != int64(8) || args[1] != "unsupported media type: application/zip" {
		t.Errorf("update args = %v", args)
	}
}

func TestReset(t *testing.T) {
	store, conn := newTestStore(nil)

	if err := store.Reset(context.Background(), 3); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	query := conn.execs[0].query
	if !strings.Contains(query, "x_is_indexed = FALSE") || !strings.Contains(query, "x_indexing_error = NULL") {
		t.Errorf("reset should clear both state fields, got %q", query)
	}
	if args := conn.execs[0].args; len(args) != 1 || args[0] != int64(3) {
		t.Errorf("update args = %v, want document id 3", args)
	}
}
