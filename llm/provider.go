package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/config"
)

const (
	PROVIDER_TYPE_OPENAI    = "openai"
	PROVIDER_TYPE_DASHSCOPE = "dashscope"
	PROVIDER_TYPE_QWEN      = "qwen"
	PROVIDER_TYPE_GEMINI    = "gemini"
)

var (
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrTimeout       = errors.New("llm: call timed out")
)

// Provider is the opaque text-generation call. Implementations must honour ctx.
type Provider interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
	GetProviderType() string
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, prompt string) (string, error)

func (f ProviderFunc) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func (f ProviderFunc) GetProviderType() string { return "func" }

var defaultBaseURLs = map[string]string{
	PROVIDER_TYPE_DASHSCOPE: "https://dashscope.aliyuncs.com/compatible-mode/v1",
	PROVIDER_TYPE_QWEN:      "https://dashscope.aliyuncs.com/compatible-mode/v1",
	PROVIDER_TYPE_GEMINI:    "https://generativelanguage.googleapis.com/v1beta/openai/",
}

// NewLLMProvider creates a provider for cfg. Every supported backend speaks the
// OpenAI chat-completions protocol; they differ only in default endpoint.
func NewLLMProvider(cfg config.LLMConfig, hc *http.Client) (Provider, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if typ == "" {
		typ = PROVIDER_TYPE_OPENAI
	}
	switch typ {
	case PROVIDER_TYPE_OPENAI, PROVIDER_TYPE_DASHSCOPE, PROVIDER_TYPE_QWEN, PROVIDER_TYPE_GEMINI:
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURLs[typ]
	}
	return NewOpenAIProvider(typ, cfg, hc)
}
