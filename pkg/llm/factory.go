// Package llm adapts hosted language-model and embedding APIs to the domain interfaces.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/genepilepsy-guide/internal/domain"
)

// Supported providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Providers lists every supported provider name.
func Providers() []string {
	return []string{ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderGemini}
}

type options struct {
	httpClient *http.Client
	maxRetries int
}

// Option tunes a provider client.
type Option func(*options)

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithMaxRetries overrides the SDK retry count.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

func applyOptions(opts []Option) options {
	o := options{maxRetries: -1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLanguageModel builds the configured chat model.
func NewLanguageModel(ctx context.Context, cfg domain.LLMConfig, opts ...Option) (domain.LanguageModel, error) {
	var (
		model domain.LanguageModel
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderGroq, "":
		model, err = NewOpenAIModel(ProviderGroq, cfg, opts...)
	case ProviderOpenAI:
		model, err = NewOpenAIModel(ProviderOpenAI, cfg, opts...)
	case ProviderAnthropic:
		model, err = NewAnthropicModel(cfg, opts...)
	case ProviderGemini:
		model, err = NewGeminiModel(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return model, nil
}

// NewEmbedder builds the configured embedding client.
func NewEmbedder(cfg domain.EmbeddingConfig, opts ...Option) (domain.Embedder, error) {
	embedder, err := NewOpenAIEmbedder(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
