package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/genepilepsy-guide/internal/domain"
)

// GeminiModel completes prompts with Gemini through the Gemini API backend.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates a Gemini-backed model.
func NewGeminiModel(ctx context.Context, cfg domain.LLMConfig, opts ...Option) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewMissingCredentialError("llm.api_key")
	}
	o := applyOptions(opts)

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.httpClient != nil {
		clientCfg.HTTPClient = o.httpClient
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: cfg.Model}, nil
}

// Name returns the provider and model identifier.
func (m *GeminiModel) Name() string {
	return ProviderGemini + "/" + m.model
}

// Complete generates content for the user prompt under the system instruction.
func (m *GeminiModel) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(req.User), config)
	if err != nil {
		return "", wrapError(ProviderGemini, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ProviderError{Provider: ProviderGemini, Err: errors.New("no candidates returned")}
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}
	return content.String(), nil
}
