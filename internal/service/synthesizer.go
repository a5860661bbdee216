package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/parsing"
	"github.com/genepilepsy-guide/internal/prompts"
)

// Completion settings for treatment synthesis.
const (
	treatmentTemperature = 0.3
	treatmentMaxTokens   = 1000
)

// Fixed texts of the treatment report.
const (
	NoSyndromesMessage   = "No syndromes identified to recommend treatments for."
	NoGuidelinesMessage  = "No treatment information found in vector database."
	treatmentErrorPrefix = "Error generating treatment recommendations: "
	noContent            = "No content available"
	unknownDocument      = "Unknown Document"
	unknownPage          = "Unknown"
)

// DefaultTopK is the number of guideline passages retrieved per syndrome.
const DefaultTopK = 5

// GuidelineRetriever embeds a query and searches the guideline index.
type GuidelineRetriever struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	namespace string
	topK      int
}

// NewGuidelineRetriever creates a retriever over namespace. A non-positive topK uses DefaultTopK.
func NewGuidelineRetriever(embedder domain.Embedder, index domain.VectorIndex, namespace string, topK int) *GuidelineRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &GuidelineRetriever{embedder: embedder, index: index, namespace: namespace, topK: topK}
}

// Retrieve returns the nearest guideline passages for query.
func (g *GuidelineRetriever) Retrieve(ctx context.Context, query string) ([]domain.Match, error) {
	vector, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := g.index.Query(ctx, vector, g.topK, g.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query guideline index: %w", err)
	}
	return matches, nil
}

// Synthesizer writes a cited treatment pathway for each syndrome from retrieved guidelines.
type Synthesizer struct {
	retriever *GuidelineRetriever
	llm       domain.LanguageModel
	catalog   *prompts.Catalog
	logger    *logrus.Logger
}

// NewSynthesizer creates a synthesizer. A nil language model is a configuration error.
func NewSynthesizer(retriever *GuidelineRetriever, llm domain.LanguageModel, catalog *prompts.Catalog, logger *logrus.Logger) (*Synthesizer, error) {
	if llm == nil {
		return nil, domain.NewMissingCredentialError("llm.api_key")
	}
	if retriever == nil {
		return nil, fmt.Errorf("guideline retriever is required")
	}
	if catalog == nil {
		catalog = prompts.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Synthesizer{retriever: retriever, llm: llm, catalog: catalog, logger: logger}, nil
}

// TreatmentQuery is the retrieval query for one syndrome.
func TreatmentQuery(patientContext, syndrome string) string {
	return fmt.Sprintf("How would you treat patient: %s possibly diagnosed by %s", patientContext, syndrome)
}

// Sections produces one section per syndrome, in input order. The first failing external
// call aborts the whole run.
func (s *Synthesizer) Sections(ctx context.Context, syndromes []string, patientContext string) ([]domain.TreatmentSection, error) {
	sections := make([]domain.TreatmentSection, 0, len(syndromes))
	for _, syndrome := range syndromes {
		log := s.logger.WithField("syndrome", syndrome)

		matches, err := s.retriever.Retrieve(ctx, TreatmentQuery(patientContext, syndrome))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			log.Info("No guideline passages found")
			sections = append(sections, domain.TreatmentSection{
				Syndrome: syndrome,
				Markdown: sectionMarkdown(syndrome, NoGuidelinesMessage),
			})
			continue
		}

		prompt, err := s.catalog.Render(prompts.TreatmentPathway, struct {
			Syndrome string
			Context  string
		}{
			Syndrome: syndrome,
			Context:  FormatPassages(matches),
		})
		if err != nil {
			return nil, err
		}

		raw, err := s.llm.Complete(ctx, domain.CompletionRequest{
			System:      prompt.System,
			User:        prompt.User,
			Temperature: treatmentTemperature,
			MaxTokens:   treatmentMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("treatment completion failed for %s: %w", syndrome, err)
		}

		log.WithField("passages", len(matches)).Debug("Treatment pathway generated")
		sections = append(sections, domain.TreatmentSection{
			Syndrome: syndrome,
			Markdown: sectionMarkdown(syndrome, parsing.StripThinking(raw)),
		})
	}
	return sections, nil
}

// Synthesize returns the markdown treatment report. It never fails: errors become the
// whole returned text.
func (s *Synthesizer) Synthesize(ctx context.Context, syndromes []string, patientContext string) string {
	_, report := s.synthesize(ctx, syndromes, patientContext)
	return report
}

func (s *Synthesizer) synthesize(ctx context.Context, syndromes []string, patientContext string) ([]domain.TreatmentSection, string) {
	if len(syndromes) == 0 {
		return []domain.TreatmentSection{}, NoSyndromesMessage
	}

	sections, err := s.Sections(ctx, syndromes, patientContext)
	if err != nil {
		s.logger.WithError(err).Error("Treatment synthesis failed")
		return []domain.TreatmentSection{}, treatmentErrorPrefix + err.Error()
	}
	return sections, JoinSections(sections)
}

// Process synthesizes treatments for the state's resolved syndromes.
func (s *Synthesizer) Process(ctx context.Context, state domain.WorkflowState, patientContext string) domain.WorkflowState {
	sections, report := s.synthesize(ctx, state.ResolvedSyndromes, patientContext)
	return state.WithTreatments(sections, report)
}

// JoinSections concatenates sections with a blank line between them.
func JoinSections(sections []domain.TreatmentSection) string {
	parts := make([]string, len(sections))
	for i, section := range sections {
		parts[i] = section.Markdown
	}
	return strings.Join(parts, "\n")
}

func sectionMarkdown(syndrome, body string) string {
	return fmt.Sprintf("## Treatment for %s\n\n%s\n", syndrome, body)
}

// FormatPassages renders matches as passage text followed by its source, one blank line
// between passages.
func FormatPassages(matches []domain.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("%s\nSource: %s", PassageText(m.Metadata), PassageSource(m.Metadata)))
	}
	return strings.Join(parts, "\n\n")
}

// PassageText reads the passage from "text", falling back to the text inside the
// serialized "_node_content" document.
func PassageText(metadata map[string]any) string {
	if text, ok := metadata["text"].(string); ok && text != "" {
		return text
	}
	if node, ok := metadata["_node_content"].(string); ok && node != "" {
		var content struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(node), &content); err == nil && content.Text != "" {
			return content.Text
		}
	}
	return noContent
}

// PassageSource formats "<document_name>, page <page_number>".
func PassageSource(metadata map[string]any) string {
	document := unknownDocument
	if v, ok := metadata["document_name"]; ok && v != nil {
		if s := metadataString(v); s != "" {
			document = s
		}
	}
	page := unknownPage
	if v, ok := metadata["page_number"]; ok && v != nil {
		if s := metadataString(v); s != "" {
			page = s
		}
	}
	return fmt.Sprintf("%s, page %s", document, page)
}

func metadataString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
