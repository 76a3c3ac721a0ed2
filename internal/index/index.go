// Package index holds the in-memory vector index over ingested chunks.
//
// The index is rebuilt from the store at startup and kept current as
// documents are added or removed. Search over it is a brute-force scan,
// which is the right trade-off for a personal corpus of a few thousand
// chunks; there is no external vector database.
package index

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Chunk is an indexed retrieval unit.
type Chunk struct {
	ID         string
	DocumentID string
	DocTitle   string
	Section    string
	Content    string
	Embedding  []float32
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is a concurrency-safe in-memory chunk index.
type Index struct {
	mu       sync.RWMutex
	chunks   []Chunk
	embedder Embedder
}

// New creates an empty index backed by the given embedder.
func New(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Rebuild replaces the entire index content.
func (x *Index) Rebuild(chunks []Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = append([]Chunk(nil), chunks...)
}

// Add appends chunks to the index.
func (x *Index) Add(chunks ...Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = append(x.chunks, chunks...)
}

// RemoveDocument drops every chunk belonging to a document.
func (x *Index) RemoveDocument(documentID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	kept := x.chunks[:0]
	for _, c := range x.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	x.chunks = kept
}

// Chunks returns a snapshot of the indexed chunks.
func (x *Index) Chunks() []Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Chunk(nil), x.chunks...)
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// EmbedQuery embeds a query string through the index's embedder. The query
// is embedded exactly once per retrieval regardless of corpus size.
func (x *Index) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vec, nil
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero-norm vectors score 0 rather than erroring, so a degenerate
// embedding just never ranks.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
