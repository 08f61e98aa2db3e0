package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source variants understood by the registry.
const (
	VariantSingle     = "single"
	VariantMultiChunk = "multi_chunk"
	VariantDirect     = "direct"
)

// Environment variables that override the file. The API key is usually
// supplied this way, either exported or through a .env file.
const (
	EnvAPIKey  = "LLM_API_KEY"
	EnvBaseURL = "LLM_BASE_URL"
	EnvModel   = "LLM_MODEL"
)

// Config represents the main configuration structure for the question answering service
type Config struct {
	LLM       LLMConfig        `json:"llm" yaml:"llm"`
	Router    StageConfig      `json:"router" yaml:"router"`
	Agents    StageConfig      `json:"agents" yaml:"agents"`
	Synthesis StageConfig      `json:"synthesis" yaml:"synthesis"`
	Pipeline  PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	Messages  MessagesConfig   `json:"messages" yaml:"messages"`
	Sources   []SourceConfig   `json:"sources" yaml:"sources" validate:"required,min=1,dive"`
	HTTP      HTTPClientConfig `json:"http" yaml:"http"`
	Server    ServerConfig     `json:"server" yaml:"server"`
	Log       LogConfig        `json:"log" yaml:"log"`
}

// LLMConfig defines configuration for Large Language Models
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider" validate:"omitempty,oneof=openai dashscope qwen gemini"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	// MaxConcurrency bounds the number of model calls in flight across the whole process.
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty" validate:"gte=0"`
}

// StageConfig overrides LLM settings for one pipeline stage.
type StageConfig struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	// TimeoutMs caps each model call made by the stage.
	TimeoutMs int `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" validate:"gte=0"`
}

// PipelineConfig holds behaviour shared by the pipeline stages.
type PipelineConfig struct {
	// MetaSource names the direct-answer source used for questions about the broker itself.
	MetaSource string `json:"meta_source,omitempty" yaml:"meta_source,omitempty"`
	// Sentinel is the reply an agent model gives when its corpus holds nothing relevant.
	Sentinel     string `json:"sentinel" yaml:"sentinel" validate:"required"`
	ChunkTokens  int    `json:"chunk_tokens,omitempty" yaml:"chunk_tokens,omitempty" validate:"gte=0"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" yaml:"chunk_overlap,omitempty" validate:"gte=0"`
	// Encoding is the tiktoken encoding used to split documents.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// MessagesConfig holds the fixed user-facing texts.
type MessagesConfig struct {
	Greeting        string `json:"greeting" yaml:"greeting" validate:"required"`
	OffTopic        string `json:"off_topic" yaml:"off_topic" validate:"required"`
	NoSources       string `json:"no_sources" yaml:"no_sources" validate:"required"`
	Apology         string `json:"apology" yaml:"apology" validate:"required"`
	MetaUnavailable string `json:"meta_unavailable" yaml:"meta_unavailable" validate:"required"`
	// NotFound is the content of a source result that found nothing.
	NotFound string `json:"not_found" yaml:"not_found" validate:"required"`
	// SourceSilent replaces the content of a non-answering source in the synthesis input.
	SourceSilent string `json:"source_silent" yaml:"source_silent" validate:"required"`
}

// SourceConfig declares one answer source.
type SourceConfig struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Variant string `json:"variant" yaml:"variant" validate:"required"`
	// Path is the corpus file for single and direct sources, or the document
	// to split for a multi_chunk source with Split set.
	Path  string   `json:"path,omitempty" yaml:"path,omitempty"`
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	Dir   string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	Split bool     `json:"split,omitempty" yaml:"split,omitempty"`
}

// DisplayLabel is the label used in answers, defaulting to the upper-cased id.
func (s SourceConfig) DisplayLabel() string {
	if strings.TrimSpace(s.Label) != "" {
		return s.Label
	}
	return strings.ToUpper(strings.TrimSpace(s.ID))
}

// HTTPClientConfig tunes the outbound client used for model calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" validate:"gte=0"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty" validate:"gte=0"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty" validate:"gte=0"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Development bool   `json:"development,omitempty" yaml:"development,omitempty"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			MaxTokens:      2048,
			MaxConcurrency: 8,
		},
		Router:    StageConfig{TimeoutMs: 15000, MaxTokens: 256},
		Agents:    StageConfig{TimeoutMs: 60000},
		Synthesis: StageConfig{TimeoutMs: 60000},
		Pipeline: PipelineConfig{
			Sentinel:     "AUCUNE INFORMATION PERTINENTE",
			ChunkTokens:  1200,
			ChunkOverlap: 80,
			Encoding:     "cl100k_base",
		},
		Messages: MessagesConfig{
			Greeting:        "Bonjour ! Je suis votre assistant assurance emprunteur. Comment puis-je vous aider avec les contrats aujourd'hui ?",
			OffTopic:        "Je suis spécialisé dans les questions relatives aux contrats d'assurance emprunteur. Je ne peux pas répondre à cette demande.",
			NoSources:       "Désolé, aucun agent n'a pu traiter votre demande ou trouver une information.",
			Apology:         "Désolé, aucun de nos assureurs partenaires n'a pu fournir d'information pertinente pour répondre à votre question.",
			MetaUnavailable: "Désolé, je n'ai pas pu récupérer ces informations pour le moment.",
			NotFound:        "Aucune information pertinente trouvée.",
			SourceSilent:    "Cet assureur n'a pas trouvé d'information pertinente.",
		},
		HTTP: HTTPClientConfig{
			TimeoutMs:              90000,
			MaxConsecutiveFailures: 5,
			CircuitOpenSeconds:     10,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults, applies the environment overlay
// (a .env file next to the working directory is honoured) and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s failed, err: %w", path, err)
	}
	_ = godotenv.Load()
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config failed, err: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides credentials and endpoint settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && strings.TrimSpace(v) != "" {
		c.LLM.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.LLM.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvModel); ok && strings.TrimSpace(v) != "" {
		c.LLM.Model = strings.TrimSpace(v)
	}
}

// StageLLM merges a stage override into the base LLM settings.
func (c *Config) StageLLM(stage StageConfig) LLMConfig {
	out := c.LLM
	if stage.Model != "" {
		out.Model = stage.Model
	}
	if stage.Temperature != nil {
		out.Temperature = *stage.Temperature
	}
	if stage.MaxTokens > 0 {
		out.MaxTokens = stage.MaxTokens
	}
	return out
}

// Source returns the declaration for id, if any.
func (c *Config) Source(id string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if strings.EqualFold(strings.TrimSpace(s.ID), strings.TrimSpace(id)) {
			return s, true
		}
	}
	return SourceConfig{}, false
}
