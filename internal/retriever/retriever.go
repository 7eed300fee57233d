// Package retriever answers natural-language queries against the stored
// document embeddings: embed the query text, then rank stored chunks by
// vector similarity.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/docidx/internal/vectorstore"
)

const (
	// DefaultThreshold filters out weak matches. The scale is the
	// 1/(1+distance) transform the vector store computes, not raw cosine
	// similarity.
	DefaultThreshold = 0.7

	// DefaultMaxResults caps a search response.
	DefaultMaxResults = 10
)

// Embedder turns query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs similarity queries against stored embeddings.
type Searcher interface {
	Search(ctx context.Context, queryVector []float32, threshold float64, limit int) ([]vectorstore.SearchResult, error)
}

// Options tune one search. Zero values fall back to the defaults.
type Options struct {
	Threshold  float64
	MaxResults int
}

func (o Options) withDefaults() (Options, error) {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return o, fmt.Errorf("threshold %.2f out of range [0, 1]", o.Threshold)
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	return o, nil
}

// Retriever performs semantic search over indexed documents.
type Retriever struct {
	embedder Embedder
	searcher Searcher
}

// New creates a Retriever.
func New(embedder Embedder, searcher Searcher) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher}
}

// Search embeds the query and returns matching chunks, best first. An
// empty result is a nil slice; only embedding or storage failures return
// an error.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]vectorstore.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.searcher.Search(ctx, vector, opts.Threshold, opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}
	return results, nil
}

// SearchVector runs a similarity search with an already-computed query
// vector, bypassing the embedding call.
func (r *Retriever) SearchVector(ctx context.Context, vector []float32, opts Options) ([]vectorstore.SearchResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	results, err := r.searcher.Search(ctx, vector, opts.Threshold, opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}
	return results, nil
}
