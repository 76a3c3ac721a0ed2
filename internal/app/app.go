package app

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/firebase/genkit/go/genkit"

	"github.com/alcove-ai/alcove/internal/answer"
	"github.com/alcove-ai/alcove/internal/config"
	"github.com/alcove-ai/alcove/internal/index"
	"github.com/alcove-ai/alcove/internal/ingest"
	"github.com/alcove-ai/alcove/internal/retrieval"
	"github.com/alcove-ai/alcove/internal/session"
	"github.com/alcove-ai/alcove/internal/store"
)

// ErrBusy indicates a query is already in flight. One query at a time
// keeps session state writes strictly ordered.
var ErrBusy = errors.New("a query is already in progress")

// App holds the wired application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Genkit *genkit.Genkit

	Store       *store.Store
	Index       *index.Index
	Ingestor    *ingest.Ingestor
	Retriever   *retrieval.Retriever
	Reranker    *retrieval.Reranker // nil when reranking is disabled
	Synthesizer *answer.Synthesizer
	Sessions    *session.Store
	State       *session.State

	generator retrieval.Generator

	inFlight    atomic.Bool
	otelCleanup func()
}

// Close releases application resources. Safe on a partially initialized App.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return errors.Join(errs...)
}

// acquire takes the single-query gate. Release with release.
func (a *App) acquire() error {
	if !a.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (a *App) release() {
	a.inFlight.Store(false)
}
