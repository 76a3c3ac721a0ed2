package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Validate checks configuration correctness and fails fast on missing
// credentials so errors surface at startup, not mid-conversation.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set (get one at https://aistudio.google.com/apikey)", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if err := validateOllamaHost(c.OllamaHost); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)", ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}

	if err := c.Chunking.validate(); err != nil {
		return err
	}
	if err := c.Retrieval.validate(); err != nil {
		return err
	}

	if c.HistoryWindow < 1 || c.HistoryWindow > MaxHistoryWindow {
		return fmt.Errorf("%w: history_window must be between 1 and %d, got %d",
			ErrInvalidHistoryWindow, MaxHistoryWindow, c.HistoryWindow)
	}

	return nil
}

func (cc ChunkingConfig) validate() error {
	if cc.Window < 1 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidChunking, cc.Window)
	}
	if cc.Overlap < 0 || cc.Overlap >= cc.Window {
		return fmt.Errorf("%w: overlap must be in [0, window), got %d with window %d",
			ErrInvalidChunking, cc.Overlap, cc.Window)
	}
	if cc.SectionCap < 1 {
		return fmt.Errorf("%w: section_cap must be positive, got %d", ErrInvalidChunking, cc.SectionCap)
	}
	return nil
}

func (rc RetrievalConfig) validate() error {
	if rc.VectorWeight < 0 || rc.LexicalWeight < 0 || rc.LexicalHit < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidRetrieval)
	}
	if rc.MinScore < 0 || rc.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0, 1], got %g", ErrInvalidRetrieval, rc.MinScore)
	}
	if rc.TopK < 1 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidRetrieval, rc.TopK)
	}
	if rc.RerankTopN < 1 {
		return fmt.Errorf("%w: rerank_top_n must be positive, got %d", ErrInvalidRetrieval, rc.RerankTopN)
	}
	return nil
}

func validateOllamaHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidOllamaHost)
	}
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOllamaHost, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidOllamaHost, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidOllamaHost, host)
	}
	return nil
}
