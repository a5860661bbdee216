package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/genepilepsy-guide/internal/domain"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicModel completes prompts with Claude models.
type AnthropicModel struct {
	client anthropic.Client
	model  string
}

// NewAnthropicModel creates an Anthropic-backed model.
func NewAnthropicModel(cfg domain.LLMConfig, opts ...Option) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewMissingCredentialError("llm.api_key")
	}
	o := applyOptions(opts)

	reqOpts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, anthropicoption.WithHTTPClient(o.httpClient))
	} else if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, anthropicoption.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if o.maxRetries >= 0 {
		reqOpts = append(reqOpts, anthropicoption.WithMaxRetries(o.maxRetries))
	}

	return &AnthropicModel{client: anthropic.NewClient(reqOpts...), model: cfg.Model}, nil
}

// Name returns the provider and model identifier.
func (m *AnthropicModel) Name() string {
	return ProviderAnthropic + "/" + m.model
}

// Complete sends one user message with the system prompt.
func (m *AnthropicModel) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapError(ProviderAnthropic, err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}
