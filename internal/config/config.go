// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.alcove/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, embedder model
//   - Chunking: window size, overlap, section cap
//   - Retrieval: score weights, threshold, top-K, rerank size
//   - Storage: data directory for the SQLite store and state files
//   - Search: SearXNG endpoint for live web grounding
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidChunking indicates the chunking parameters are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates the retrieval parameters are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultHistoryWindow is the default number of recent turns included in
	// the prompt. The full unbounded history is never sent to the model.
	DefaultHistoryWindow = 10

	// MaxHistoryWindow is the absolute maximum to bound prompt size.
	MaxHistoryWindow = 50
)

// ChunkingConfig controls how documents are split into retrieval units.
type ChunkingConfig struct {
	// Window is the fixed-window chunk size in runes.
	Window int `mapstructure:"window" json:"window"`
	// Overlap is the number of runes shared between adjacent windows.
	Overlap int `mapstructure:"overlap" json:"overlap"`
	// SectionCap is the soft size cap for structure-aware chunks.
	SectionCap int `mapstructure:"section_cap" json:"section_cap"`
}

// RetrievalConfig controls hybrid scoring and result shaping.
//
// The weights and threshold are tunable constants with no derivation beyond
// empirical behavior; they are configuration, not law.
type RetrievalConfig struct {
	VectorWeight  float64 `mapstructure:"vector_weight" json:"vector_weight"`
	LexicalWeight float64 `mapstructure:"lexical_weight" json:"lexical_weight"`
	// LexicalHit is the score increment per query word found in a chunk.
	LexicalHit float64 `mapstructure:"lexical_hit" json:"lexical_hit"`
	// MinScore filters candidates whose combined score falls below it.
	MinScore float64 `mapstructure:"min_score" json:"min_score"`
	// TopK bounds the retriever output.
	TopK int `mapstructure:"top_k" json:"top_k"`
	// RerankTopN is the subset size the reranker selects. Reranking only
	// runs when the candidate count exceeds it.
	RerankTopN int `mapstructure:"rerank_top_n" json:"rerank_top_n"`
	// RerankEnabled toggles the LLM reranking stage.
	RerankEnabled bool `mapstructure:"rerank_enabled" json:"rerank_enabled"`
}

// SearXNGConfig holds SearXNG service configuration for live web grounding.
type SearXNGConfig struct {
	// BaseURL is the SearXNG instance URL (e.g., http://localhost:8888).
	// Empty disables live search regardless of the per-query toggle.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

// ProfileConfig is the static user profile injected into every prompt.
type ProfileConfig struct {
	Name    string `mapstructure:"name" json:"name"`
	Persona string `mapstructure:"persona" json:"persona"`
}

// OTLPConfig holds optional trace export configuration.
type OTLPConfig struct {
	// Endpoint is the OTLP HTTP collector address (host:port). Empty disables export.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// ServiceName overrides the reported service name.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Prompt shaping
	HistoryWindow int `mapstructure:"history_window" json:"history_window"`

	// Storage configuration
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	Chunking  ChunkingConfig  `mapstructure:"chunking" json:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" json:"retrieval"`
	SearXNG   SearXNGConfig   `mapstructure:"searxng" json:"searxng"`
	Profile   ProfileConfig   `mapstructure:"profile" json:"profile"`
	OTLP      OTLPConfig      `mapstructure:"otlp" json:"otlp"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".alcove")

	// 0750: the directory holds the SQLite store and session state
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Prompt shaping
	v.SetDefault("history_window", DefaultHistoryWindow)

	// Storage defaults
	v.SetDefault("data_dir", configDir)

	// Chunking defaults
	v.SetDefault("chunking.window", 1000)
	v.SetDefault("chunking.overlap", 200)
	v.SetDefault("chunking.section_cap", 1500)

	// Retrieval defaults
	v.SetDefault("retrieval.vector_weight", 0.7)
	v.SetDefault("retrieval.lexical_weight", 0.3)
	v.SetDefault("retrieval.lexical_hit", 0.15)
	v.SetDefault("retrieval.min_score", 0.35)
	v.SetDefault("retrieval.top_k", 12)
	v.SetDefault("retrieval.rerank_top_n", 5)
	v.SetDefault("retrieval.rerank_enabled", true)

	// SearXNG defaults (empty base_url = live search disabled)
	v.SetDefault("searxng.base_url", "")

	// Profile defaults
	v.SetDefault("profile.name", "")
	v.SetDefault("profile.persona", "")

	// OTLP defaults (empty endpoint = tracing disabled)
	v.SetDefault("otlp.endpoint", "")
	v.SetDefault("otlp.service_name", "alcove")
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// NOTE: GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper.
// Validation checks its presence based on the selected provider.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ALCOVE_PROVIDER")
	mustBind("model_name", "ALCOVE_MODEL_NAME")
	mustBind("embedder_model", "ALCOVE_EMBEDDER_MODEL")
	mustBind("ollama_host", "ALCOVE_OLLAMA_HOST")
	mustBind("data_dir", "ALCOVE_DATA_DIR")
	mustBind("searxng.base_url", "ALCOVE_SEARXNG_URL")
	mustBind("otlp.endpoint", "ALCOVE_OTLP_ENDPOINT")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// StorePath returns the SQLite database path inside the data directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "alcove.db")
}

// String implements Stringer for debug logging.
func (c Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
