// Package retrieval ranks indexed chunks against a user query.
//
// Scoring blends vector similarity with a simple lexical signal: each query
// word found in a chunk bumps its lexical score. The blend keeps retrieval
// useful when embeddings miss exact terms (names, error codes, identifiers).
// An optional LLM reranking stage refines the top of the list.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alcove-ai/alcove/internal/config"
	"github.com/alcove-ai/alcove/internal/index"
)

// Result is one retrieved chunk with its blended score.
type Result struct {
	Chunk index.Chunk
	Score float64
}

// Retriever scores the index against queries.
type Retriever struct {
	index  *index.Index
	cfg    config.RetrievalConfig
	logger *slog.Logger
}

// NewRetriever creates a Retriever over the given index.
func NewRetriever(idx *index.Index, cfg config.RetrievalConfig, logger *slog.Logger) *Retriever {
	return &Retriever{index: idx, cfg: cfg, logger: logger}
}

// Retrieve returns the top-K chunks for the query, best first.
//
// The query is embedded exactly once. Candidates below the minimum score
// are dropped; ties keep index order so results are stable across calls.
// An empty index short-circuits without touching the embedder.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	chunks := r.index.Chunks()
	if len(chunks) == 0 {
		return nil, nil
	}

	queryVec, err := r.index.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieving for query: %w", err)
	}

	words := queryWords(query)

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		score := r.cfg.VectorWeight*index.Cosine(queryVec, c.Embedding) +
			r.cfg.LexicalWeight*lexicalScore(c.Content, words, r.cfg.LexicalHit)
		if score < r.cfg.MinScore {
			continue
		}
		results = append(results, Result{Chunk: c, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > r.cfg.TopK {
		results = results[:r.cfg.TopK]
	}

	r.logger.Debug("retrieval complete",
		"candidates", len(chunks),
		"results", len(results))
	return results, nil
}

// lexicalScore adds a fixed increment per query word found as a substring
// of the chunk. Unbounded above: a chunk matching many query words should
// rank well even with a mediocre embedding.
func lexicalScore(content string, words []string, hit float64) float64 {
	if len(words) == 0 {
		return 0
	}
	lower := strings.ToLower(content)

	var score float64
	for _, w := range words {
		if strings.Contains(lower, w) {
			score += hit
		}
	}
	return score
}

// queryWords lowercases and splits the query, dropping words too short to
// be a meaningful lexical signal.
func queryWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			words = append(words, f)
		}
	}
	return words
}
