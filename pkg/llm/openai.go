package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/genepilepsy-guide/internal/domain"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIModel completes prompts against any OpenAI-compatible chat endpoint.
// Groq is served through it with a different base URL.
type OpenAIModel struct {
	client   openai.Client
	model    string
	provider string
}

// NewOpenAIModel creates a chat model for provider ("openai" or "groq").
func NewOpenAIModel(provider string, cfg domain.LLMConfig, opts ...Option) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewMissingCredentialError("llm.api_key")
	}
	o := applyOptions(opts)

	baseURL := cfg.BaseURL
	if baseURL == "" && provider == ProviderGroq {
		baseURL = GroqBaseURL
	}

	client := openai.NewClient(openaiRequestOptions(cfg.APIKey, baseURL, cfg.Timeout, o)...)
	return &OpenAIModel{client: client, model: cfg.Model, provider: provider}, nil
}

// Name returns the provider and model identifier.
func (m *OpenAIModel) Name() string {
	return m.provider + "/" + m.model
}

// Complete sends one system and one user message.
func (m *OpenAIModel) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapError(m.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: m.provider, Err: errors.New("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIEmbedder produces embeddings with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder from the embedding configuration.
func NewOpenAIEmbedder(cfg domain.EmbeddingConfig, opts ...Option) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewMissingCredentialError("embedding.api_key")
	}
	o := applyOptions(opts)

	client := openai.NewClient(openaiRequestOptions(cfg.APIKey, cfg.BaseURL, cfg.Timeout, o)...)
	return &OpenAIEmbedder{client: client, model: cfg.Model, dimensions: cfg.Dimensions}, nil
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, wrapError(ProviderOpenAI, err)
	}
	if len(resp.Data) == 0 {
		return nil, &ProviderError{Provider: ProviderOpenAI, Err: errors.New("no embedding returned")}
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func openaiRequestOptions(apiKey, baseURL string, timeout time.Duration, o options) []openaioption.RequestOption {
	reqOpts := []openaioption.RequestOption{openaioption.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, openaioption.WithBaseURL(baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, openaioption.WithHTTPClient(o.httpClient))
	} else if timeout > 0 {
		reqOpts = append(reqOpts, openaioption.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	if o.maxRetries >= 0 {
		reqOpts = append(reqOpts, openaioption.WithMaxRetries(o.maxRetries))
	}
	return reqOpts
}
