package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// rerankOutputMaxBytes caps the model output accepted by the parser.
// Anything larger is treated as malformed.
const rerankOutputMaxBytes = 4 * 1024

// Generator produces text from a prompt. Defined here because this package
// is the consumer; the app layer supplies the AI-backed implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reranker asks the model to pick the most relevant candidates.
//
// Reranking never fails a query: any model or parse error falls back to the
// original score order.
type Reranker struct {
	generator Generator
	topN      int
	logger    *slog.Logger
}

// NewReranker creates a Reranker selecting topN results.
func NewReranker(generator Generator, topN int, logger *slog.Logger) *Reranker {
	return &Reranker{generator: generator, topN: topN, logger: logger}
}

// Rerank reorders candidates by model-judged relevance and truncates to
// topN. When the candidate count is already within topN the model is not
// consulted at all.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Result) []Result {
	if len(candidates) <= r.topN {
		return candidates
	}

	raw, err := r.generator.Generate(ctx, buildRerankPrompt(query, candidates, r.topN))
	if err != nil {
		r.logger.Warn("reranking failed, keeping score order", "error", err)
		return candidates[:r.topN]
	}

	indices, err := parseRerankOutput(raw, len(candidates), r.topN)
	if err != nil {
		r.logger.Warn("reranker output unusable, keeping score order", "error", err)
		return candidates[:r.topN]
	}

	out := make([]Result, 0, len(indices))
	for _, i := range indices {
		out = append(out, candidates[i])
	}
	return out
}

// buildRerankPrompt enumerates candidates so the model answers in indexes,
// never by echoing chunk text.
func buildRerankPrompt(query string, candidates []Result, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rank the following passages by relevance to the question and return the indexes of the %d most relevant as a JSON array of integers, nothing else.\n\n", topN)
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	for i, c := range candidates {
		title := c.Chunk.DocTitle
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n\n", i, title, c.Chunk.Content)
	}
	b.WriteString("Answer with only the JSON array, for example: [2, 0, 5]")
	return b.String()
}

// parseRerankOutput parses a JSON integer array, tolerating code fences.
// Out-of-range and duplicate indexes are dropped; an empty usable list is
// an error so the caller falls back.
func parseRerankOutput(raw string, candidateCount, topN int) ([]int, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	if len(cleaned) > rerankOutputMaxBytes {
		return nil, fmt.Errorf("output too large: %d bytes", len(cleaned))
	}

	var indices []int
	if err := json.Unmarshal([]byte(cleaned), &indices); err != nil {
		return nil, fmt.Errorf("parsing rerank output: %w", err)
	}

	seen := make(map[int]bool, len(indices))
	valid := indices[:0]
	for _, i := range indices {
		if i < 0 || i >= candidateCount || seen[i] {
			continue
		}
		seen[i] = true
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid indexes in %q", cleaned)
	}
	if len(valid) > topN {
		valid = valid[:topN]
	}
	return valid, nil
}

// stripCodeFences removes a surrounding Markdown code fence if present.
// Models often wrap JSON in ```json blocks despite instructions.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
