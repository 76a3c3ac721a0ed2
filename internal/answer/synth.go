package answer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/alcove-ai/alcove/internal/retrieval"
)

// failureMessage is shown (and persisted) when answer generation fails
// after retries. The conversation survives the failure.
const failureMessage = "I wasn't able to generate an answer just now. Please try again."

// thinContextThreshold is the retrieved-chunk count below which live web
// grounding kicks in automatically (when configured).
const thinContextThreshold = 2

// Completer streams a model completion. Deltas arrive through onDelta in
// order; the returned string is the complete final text. Defined here
// because this package is the consumer; the app layer supplies the
// AI-backed implementation.
type Completer interface {
	Complete(ctx context.Context, spec PromptSpec, onDelta func(delta string)) (string, error)
}

// GroundingSource is one web citation backing the answer.
type GroundingSource struct {
	Title string
	URL   string
}

// Snapshot is one point-in-time view of a streaming answer. Text is always
// the full text so far, never a delta, so a consumer can render any
// snapshot standalone. The last snapshot has Done set; if Err is also set,
// Text carries the failure message.
type Snapshot struct {
	Text             string
	Sources          []string
	GroundingSources []GroundingSource
	Done             bool
	Err              error
}

// Request describes one answer to synthesize.
type Request struct {
	Query string
	// Results are the reranked retrieval results backing the answer.
	Results []retrieval.Result
	// DocTitles lists every document in the knowledge base.
	DocTitles []string
	History   []Turn
	// LiveSearch forces web grounding even when local context is rich.
	LiveSearch bool
	// ProfileName and Persona shape the system prompt.
	ProfileName string
	Persona     string
}

// Synthesizer turns retrieval results into streamed answers.
type Synthesizer struct {
	completer     Completer
	searcher      WebSearcher // nil disables live grounding
	limiter       *rate.Limiter
	retry         RetryConfig
	historyWindow int
	logger        *slog.Logger
}

// NewSynthesizer creates a Synthesizer. searcher may be nil to disable
// live web grounding.
func NewSynthesizer(completer Completer, searcher WebSearcher, limiter *rate.Limiter, retry RetryConfig, historyWindow int, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		completer:     completer,
		searcher:      searcher,
		limiter:       limiter,
		retry:         retry,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Generate streams an answer for the request. The returned channel is
// always closed, and the final value on it always has Done set. Generation
// failures surface as a terminal snapshot carrying the failure message and
// the error, never as a panic or a silently empty channel.
func (s *Synthesizer) Generate(ctx context.Context, req Request) <-chan Snapshot {
	out := make(chan Snapshot, 8)

	go func() {
		defer close(out)

		emit := func(snap Snapshot) bool {
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		webResults := s.searchWeb(ctx, req)

		sources := SourceTitles(req.Results)
		grounding := make([]GroundingSource, 0, len(webResults))
		for _, w := range webResults {
			grounding = append(grounding, GroundingSource{Title: w.Title, URL: w.URL})
		}

		spec := BuildPrompt(PromptInput{
			Query:         req.Query,
			Results:       req.Results,
			WebResults:    webResults,
			DocTitles:     req.DocTitles,
			History:       req.History,
			HistoryWindow: s.historyWindow,
			ProfileName:   req.ProfileName,
			Persona:       req.Persona,
		})

		var cum strings.Builder
		var final string

		err := executeWithRetry(ctx, s.retry, s.limiter, func() error {
			text, err := s.completer.Complete(ctx, spec, func(delta string) {
				cum.WriteString(delta)
				emit(Snapshot{
					Text:             cum.String(),
					Sources:          sources,
					GroundingSources: grounding,
				})
			})
			if err != nil {
				// Once deltas have reached the consumer a retry
				// would replay text, so the failure is final.
				if cum.Len() > 0 {
					return permanent(err)
				}
				return err
			}
			final = text
			return nil
		})

		if err != nil {
			s.logger.Error("answer generation failed", "error", err)
			emit(Snapshot{
				Text:             failureMessage,
				Sources:          sources,
				GroundingSources: grounding,
				Done:             true,
				Err:              err,
			})
			return
		}

		if final == "" {
			final = cum.String()
		}
		emit(Snapshot{
			Text:             final,
			Sources:          sources,
			GroundingSources: grounding,
			Done:             true,
		})
	}()

	return out
}

// searchWeb runs live grounding when a searcher is configured and either
// the caller asked for it or local retrieval came back thin. Search
// failures degrade to no web results; the answer still generates.
func (s *Synthesizer) searchWeb(ctx context.Context, req Request) []WebResult {
	if s.searcher == nil {
		return nil
	}
	if !req.LiveSearch && len(req.Results) >= thinContextThreshold {
		return nil
	}

	results, err := s.searcher.Search(ctx, req.Query)
	if err != nil {
		s.logger.Warn("live search failed, answering without web grounding", "error", err)
		return nil
	}
	return results
}
