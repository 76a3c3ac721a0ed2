// Package app wires configuration, the AI provider, storage, and the
// retrieval pipeline into a running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/firebase/genkit/go/core/tracing"

	"github.com/alcove-ai/alcove/internal/answer"
	"github.com/alcove-ai/alcove/internal/chunk"
	"github.com/alcove-ai/alcove/internal/config"
	"github.com/alcove-ai/alcove/internal/index"
	"github.com/alcove-ai/alcove/internal/ingest"
	"github.com/alcove-ai/alcove/internal/retrieval"
	"github.com/alcove-ai/alcove/internal/session"
	"github.com/alcove-ai/alcove/internal/store"
	"golang.org/x/time/rate"
)

// modelRequestsPerSecond throttles calls to the hosted model across the
// whole app, including embedding bursts during ingestion.
const modelRequestsPerSecond = 5

// Setup creates and initializes the application.
// Returns an App that owns its resources; call Close to release them.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	g, embedderName, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := &genkitEmbedder{embedder: provideEmbedder(g, cfg)}
	if embedder.embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", embedderName, cfg.Provider)
	}

	db, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}
	a.Store = db

	limiter := rate.NewLimiter(rate.Limit(modelRequestsPerSecond), modelRequestsPerSecond)

	a.Index = index.New(embedder)
	chunker := chunk.New(cfg.Chunking.Window, cfg.Chunking.Overlap, cfg.Chunking.SectionCap)
	a.Ingestor = ingest.New(db, embedder, chunker, a.Index, logger)

	if err := a.Ingestor.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}

	a.Retriever = retrieval.NewRetriever(a.Index, cfg.Retrieval, logger)

	generator := &genkitGenerator{g: g, model: cfg.FullModelName(), limiter: limiter}
	a.generator = generator
	if cfg.Retrieval.RerankEnabled {
		a.Reranker = retrieval.NewReranker(generator, cfg.Retrieval.RerankTopN, logger)
	}

	var searcher answer.WebSearcher
	if cfg.SearXNG.BaseURL != "" {
		searcher = answer.NewSearXNGClient(cfg.SearXNG.BaseURL)
	}
	completer := &genkitCompleter{g: g, model: cfg.FullModelName()}
	a.Synthesizer = answer.NewSynthesizer(completer, searcher, limiter,
		answer.DefaultRetryConfig(), cfg.HistoryWindow, logger)

	a.Sessions = session.NewStore(db, logger)
	a.State = session.NewState(cfg.DataDir)

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready when spans start.
// A missing endpoint disables export entirely.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLP.Endpoint == "" {
		return func() {}
	}

	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly once
	// during startup before goroutines are spawned.
	if cfg.OTLP.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.OTLP.ServiceName)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLP.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled", "endpoint", cfg.OTLP.Endpoint)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Returns the instance and the embedder name it registered.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, string, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, "", errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, cfg.EmbedderModel, nil

	default: // "gemini"
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, "", errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
		return g, cfg.EmbedderModel, nil
	}
}
