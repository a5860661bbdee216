package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/parsing"
	"github.com/genepilepsy-guide/internal/prompts"
)

// Completion settings for structured extraction.
const (
	extractTemperature = 0.0
	extractMaxTokens   = 1000
)

// Extractor turns a free-text patient description into a ParsedRecord.
type Extractor struct {
	llm     domain.LanguageModel
	catalog *prompts.Catalog
	logger  *logrus.Logger
}

// NewExtractor creates an extractor. A nil language model is a configuration error.
func NewExtractor(llm domain.LanguageModel, catalog *prompts.Catalog, logger *logrus.Logger) (*Extractor, error) {
	if llm == nil {
		return nil, domain.NewMissingCredentialError("llm.api_key")
	}
	if catalog == nil {
		catalog = prompts.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{llm: llm, catalog: catalog, logger: logger}, nil
}

// Extract never fails: any problem yields the all-"NA" default record.
func (e *Extractor) Extract(ctx context.Context, description string) domain.ParsedRecord {
	prompt, err := e.catalog.Render(prompts.ExtractRecord, struct{ Input string }{Input: description})
	if err != nil {
		e.logger.WithError(err).Error("Failed to render extraction prompt")
		return domain.DefaultParsedRecord()
	}

	raw, err := e.llm.Complete(ctx, domain.CompletionRequest{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: extractTemperature,
		MaxTokens:   extractMaxTokens,
	})
	if err != nil {
		e.logger.WithError(err).WithField("model", e.llm.Name()).Warn("Extraction completion failed, using default record")
		return domain.DefaultParsedRecord()
	}

	record, err := parsing.ParseRecord(raw)
	if err != nil {
		e.logger.WithError(err).Warn("Could not parse extraction output, using default record")
		return domain.DefaultParsedRecord()
	}

	e.logger.WithFields(logrus.Fields{
		"gene":       record.Gene,
		"variant":    record.Variant,
		"phenotypes": len(record.Phenotypes),
	}).Debug("Extracted patient record")
	return record
}

// Process runs extraction on the state's input.
func (e *Extractor) Process(ctx context.Context, state domain.WorkflowState) domain.WorkflowState {
	return state.WithParsed(e.Extract(ctx, state.Input))
}
