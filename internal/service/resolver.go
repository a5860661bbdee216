package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/parsing"
	"github.com/genepilepsy-guide/internal/prompts"
	"github.com/genepilepsy-guide/pkg/external"
)

// Completion settings for per-record report generation.
const (
	reportTemperature = 0.1
	reportMaxTokens   = 2000
)

// Resolution is the outcome of resolving one gene and variant to syndromes.
type Resolution struct {
	Records   map[string]json.RawMessage `json:"records"`
	IDs       []string                   `json:"ids"`
	Reports   []domain.DoctorReport      `json:"reports"`
	Syndromes []string                   `json:"syndromes"`
}

func emptyResolution() Resolution {
	return Resolution{
		Records:   map[string]json.RawMessage{},
		IDs:       []string{},
		Reports:   []domain.DoctorReport{},
		Syndromes: []string{},
	}
}

// Resolver looks a variant up in ClinVar and has the language model summarize each record.
type Resolver struct {
	db      domain.VariantDatabase
	llm     domain.LanguageModel
	catalog *prompts.Catalog
	logger  *logrus.Logger
}

// NewResolver creates a resolver. A nil language model is a configuration error because
// report generation has no fallback.
func NewResolver(db domain.VariantDatabase, llm domain.LanguageModel, catalog *prompts.Catalog, logger *logrus.Logger) (*Resolver, error) {
	if llm == nil {
		return nil, domain.NewMissingCredentialError("llm.api_key")
	}
	if db == nil {
		return nil, fmt.Errorf("variant database is required")
	}
	if catalog == nil {
		catalog = prompts.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{db: db, llm: llm, catalog: catalog, logger: logger}, nil
}

// Resolve returns the ClinVar records, one doctor report per record and the deduplicated
// epilepsy syndromes. Lookup failures degrade to an empty resolution; a failed report
// completion is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, gene, variant string) (Resolution, error) {
	if domain.IsNA(gene) && domain.IsNA(variant) {
		r.logger.Debug("No gene or variant supplied, skipping variant lookup")
		return emptyResolution(), nil
	}

	term := external.SearchTerm(gene, variant)
	log := r.logger.WithFields(logrus.Fields{
		"gene":    gene,
		"variant": variant,
		"term":    term,
	})

	lookup := r.db.Lookup(ctx, term)
	if lookup.Empty() {
		log.Info("No variant records found")
		return emptyResolution(), nil
	}

	res := emptyResolution()
	var all []string
	for _, id := range lookup.IDs {
		if id == domain.ManifestKey {
			continue
		}
		record, ok := lookup.Records[id]
		if !ok {
			continue
		}

		report, err := r.reportRecord(ctx, gene, variant, id, record)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to generate report for record %s: %w", id, err)
		}

		res.Records[id] = record
		res.IDs = append(res.IDs, id)
		res.Reports = append(res.Reports, report)
		all = append(all, report.Syndromes...)
	}
	res.Syndromes = parsing.FilterSyndromes(all)

	log.WithFields(logrus.Fields{
		"records":   len(res.Reports),
		"syndromes": len(res.Syndromes),
	}).Info("Variant resolved")
	return res, nil
}

// reportRecord sends exactly one record to the model so that syndromes stay attributed
// to the record they came from.
func (r *Resolver) reportRecord(ctx context.Context, gene, variant, id string, record json.RawMessage) (domain.DoctorReport, error) {
	single, err := json.MarshalIndent(map[string]json.RawMessage{id: record}, "", "  ")
	if err != nil {
		return domain.DoctorReport{}, fmt.Errorf("failed to encode record: %w", err)
	}

	prompt, err := r.catalog.Render(prompts.ClinVarReport, struct {
		Gene       string
		Variant    string
		RecordJSON string
		Marker     string
	}{
		Gene:       displayValue(gene),
		Variant:    displayValue(variant),
		RecordJSON: string(single),
		Marker:     parsing.SyndromeMarker,
	})
	if err != nil {
		return domain.DoctorReport{}, err
	}

	raw, err := r.llm.Complete(ctx, domain.CompletionRequest{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: reportTemperature,
		MaxTokens:   reportMaxTokens,
	})
	if err != nil {
		return domain.DoctorReport{}, err
	}

	parsed := parsing.ParseSyndromeResponse(raw)
	syndromes := groundedSyndromes(record, parsing.FilterSyndromes(parsed.Syndromes))
	r.logger.WithFields(logrus.Fields{
		"record_id": id,
		"marker":    parsed.Marker,
		"strategy":  parsed.Strategy,
		"proposed":  len(parsed.Syndromes),
		"syndromes": len(syndromes),
	}).Debug("Parsed record report")

	return domain.DoctorReport{
		RecordID:  id,
		Title:     recordTitle(id, record),
		Report:    parsed.Report,
		Syndromes: syndromes,
	}, nil
}

// Process runs resolution on the state's parsed gene and variant.
func (r *Resolver) Process(ctx context.Context, state domain.WorkflowState) (domain.WorkflowState, error) {
	res, err := r.Resolve(ctx, state.Parsed.Gene, state.Parsed.Variant)
	if err != nil {
		return state, err
	}
	return state.WithResolution(res.Records, res.Reports, res.Syndromes), nil
}

func recordTitle(id string, record json.RawMessage) string {
	var head struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(record, &head); err == nil && strings.TrimSpace(head.Title) != "" {
		return strings.TrimSpace(head.Title)
	}
	return "Variant " + id
}

// traitSet is the part of an esummary record that names its conditions. Older records carry
// trait_set at the top level, newer ones under each classification block.
type traitSet []struct {
	TraitName string `json:"trait_name"`
}

type classificationTraits struct {
	TraitSet traitSet `json:"trait_set"`
}

// recordTraitNames returns the trimmed condition names present in record.
func recordTraitNames(record json.RawMessage) map[string]struct{} {
	var doc struct {
		TraitSet                   traitSet             `json:"trait_set"`
		GermlineClassification     classificationTraits `json:"germline_classification"`
		ClinicalImpact             classificationTraits `json:"clinical_impact_classification"`
		OncogenicityClassification classificationTraits `json:"oncogenicity_classification"`
	}
	names := map[string]struct{}{}
	if err := json.Unmarshal(record, &doc); err != nil {
		return names
	}
	for _, set := range []traitSet{
		doc.TraitSet,
		doc.GermlineClassification.TraitSet,
		doc.ClinicalImpact.TraitSet,
		doc.OncogenicityClassification.TraitSet,
	} {
		for _, t := range set {
			if name := strings.TrimSpace(t.TraitName); name != "" {
				names[name] = struct{}{}
			}
		}
	}
	return names
}

// groundedSyndromes keeps only the syndromes named verbatim in the record's trait data.
func groundedSyndromes(record json.RawMessage, syndromes []string) []string {
	names := recordTraitNames(record)
	kept := make([]string, 0, len(syndromes))
	for _, s := range syndromes {
		if _, ok := names[s]; ok {
			kept = append(kept, s)
		}
	}
	return kept
}

func displayValue(v string) string {
	if domain.IsNA(v) {
		return domain.NotAvailable
	}
	return strings.TrimSpace(v)
}
