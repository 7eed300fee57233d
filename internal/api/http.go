// Package api exposes the search pipeline over HTTP and MCP. The HTTP
// surface is read-mostly: searching and stats, plus per-document purge for
// operators forcing a re-index.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/docidx/internal/retriever"
	"github.com/kalambet/docidx/internal/vectorstore"
)

const maxRequestBodySize = 1 << 20 // 1MB

// SearchRequest is the POST /v1/search body.
type SearchRequest struct {
	Query      string  `json:"query"`
	Threshold  float64 `json:"threshold,omitempty"`
	MaxResults int     `json:"max_results,omitempty"`
}

// SearchResponse wraps search hits with the query that produced them.
type SearchResponse struct {
	Query   string                     `json:"query"`
	Results []vectorstore.SearchResult `json:"results"`
	Count   int                        `json:"count"`
}

// Retriever abstracts semantic search for the HTTP layer.
type Retriever interface {
	Search(ctx context.Context, query string, opts retriever.Options) ([]vectorstore.SearchResult, error)
}

// StatsSource reports aggregate embedding figures.
type StatsSource interface {
	Stats(ctx context.Context) (vectorstore.Stats, error)
}

// DocumentPurger removes a document's embeddings and returns it to the
// indexing queue.
type DocumentPurger interface {
	Purge(ctx context.Context, documentID int64) (int64, error)
}

// AppDeps holds dependencies for the HTTP handler.
type AppDeps struct {
	Retriever Retriever
	Stats     StatsSource
	Purger    DocumentPurger // optional; if nil, DELETE returns 501
	Token     string
}

// NewAppHandler builds the HTTP routes.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/healthz", handleHealth(deps))
	r.Post("/v1/search", handleSearch(deps))
	r.Get("/v1/stats", handleStats(deps))
	r.Delete("/v1/documents/{id}", handlePurgeDocument(deps))

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := deps.Stats.Stats(ctx); err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "database unreachable: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.Threshold < 0 || req.Threshold > 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "threshold must be between 0 and 1")
			return
		}

		results, err := deps.Retriever.Search(r.Context(), req.Query, retriever.Options{
			Threshold:  req.Threshold,
			MaxResults: req.MaxResults,
		})
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
			return
		}
		if results == nil {
			results = []vectorstore.SearchResult{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{
			Query:   req.Query,
			Results: results,
			Count:   len(results),
		})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Stats.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read stats: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_embeddings": stats.TotalEmbeddings,
			"unique_documents": stats.UniqueDocuments,
			"avg_chunk_length": stats.AvgChunkLength,
			"oldest":           stats.Oldest,
			"newest":           stats.Newest,
		})
	}
}

func handlePurgeDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Purger == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "purge is not enabled")
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid document id")
			return
		}

		deleted, err := deps.Purger.Purge(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to purge document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"document_id":        id,
			"deleted_embeddings": deleted,
			"status":             "purged",
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
