package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"golang.org/x/time/rate"

	"github.com/alcove-ai/alcove/internal/answer"
	"github.com/alcove-ai/alcove/internal/config"
	"github.com/alcove-ai/alcove/internal/session"
)

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// genkitEmbedder adapts a Genkit embedder to the single-text interface the
// index and ingest packages consume.
type genkitEmbedder struct {
	embedder ai.Embedder
}

func (e *genkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("embedder returned no embeddings")
	}
	return resp.Embeddings[0].Embedding, nil
}

// genkitGenerator adapts Genkit to the plain-prompt Generator interface
// used for reranking and title generation.
type genkitGenerator struct {
	g       *genkit.Genkit
	model   string
	limiter *rate.Limiter
}

func (gen *genkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if gen.limiter != nil {
		if err := gen.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating: %w", err)
	}
	return resp.Text(), nil
}

// genkitCompleter adapts Genkit streaming generation to the Completer
// interface the synthesizer consumes.
type genkitCompleter struct {
	g     *genkit.Genkit
	model string
}

func (c *genkitCompleter) Complete(ctx context.Context, spec answer.PromptSpec, onDelta func(string)) (string, error) {
	messages := make([]*ai.Message, 0, len(spec.History)+1)
	for _, turn := range spec.History {
		part := ai.NewTextPart(turn.Content)
		if turn.Role == session.RoleAssistant {
			messages = append(messages, ai.NewModelMessage(part))
		} else {
			messages = append(messages, ai.NewUserMessage(part))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(spec.UserQuery)))

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithSystem(spec.System),
		ai.WithMessages(messages...),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				if part.Text != "" {
					onDelta(part.Text)
				}
			}
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}
