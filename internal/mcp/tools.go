package mcp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/service"
)

// LookupVariantInput is the lookup_variant argument object.
type LookupVariantInput struct {
	Gene    string `json:"gene" jsonschema:"gene symbol, for example SCN1A"`
	Variant string `json:"variant" jsonschema:"variant notation, for example c.5347G>A"`
}

// LookupVariantOutput is the lookup_variant result.
type LookupVariantOutput struct {
	LookupID  string                `json:"lookup_id,omitempty"`
	Gene      string                `json:"gene"`
	Variant   string                `json:"variant"`
	RecordIDs []string              `json:"record_ids"`
	Reports   []domain.DoctorReport `json:"reports"`
	Syndromes []string              `json:"syndromes"`
}

// RecommendTreatmentInput is the recommend_treatment argument object.
type RecommendTreatmentInput struct {
	Syndrome       string `json:"syndrome" jsonschema:"epilepsy syndrome name"`
	PatientContext string `json:"patient_context,omitempty" jsonschema:"free-text patient context"`
	LookupID       string `json:"lookup_id,omitempty" jsonschema:"id returned by lookup_variant"`
}

// TreatmentOutput is the recommend_treatment result.
type TreatmentOutput struct {
	Syndrome       string `json:"syndrome"`
	PatientContext string `json:"patient_context"`
	Treatment      string `json:"treatment"`
}

// DescriptionInput is the argument object of the free-text tools.
type DescriptionInput struct {
	Description string `json:"description" jsonschema:"free-text case description"`
}

// WorkflowOutput is the run_workflow result.
type WorkflowOutput struct {
	Parsed            domain.ParsedRecord   `json:"parsed"`
	RecordIDs         []string              `json:"record_ids"`
	DoctorReports     []domain.DoctorReport `json:"doctor_reports"`
	ResolvedSyndromes []string              `json:"resolved_syndromes"`
	Treatments        string                `json:"treatments"`
}

func (s *Server) handleLookupVariant(ctx context.Context, _ *mcp.CallToolRequest, in LookupVariantInput) (*mcp.CallToolResult, LookupVariantOutput, error) {
	gene, variant := strings.TrimSpace(in.Gene), strings.TrimSpace(in.Variant)
	if gene == "" || variant == "" {
		return nil, LookupVariantOutput{}, domain.NewValidationError("gene/variant", "gene and variant are both required", in)
	}

	log := s.logger.WithFields(logrus.Fields{"tool": ToolLookupVariant, "gene": gene, "variant": variant})
	log.Info("Tool invoked")

	res, err := s.workflow.LookupVariant(ctx, gene, variant)
	if err != nil {
		log.WithError(err).Error("Variant lookup failed")
		return nil, LookupVariantOutput{}, fmt.Errorf("failed to look up variant: %w", err)
	}

	out := LookupVariantOutput{
		Gene:      gene,
		Variant:   variant,
		RecordIDs: nonNil(res.IDs),
		Reports:   res.Reports,
		Syndromes: nonNil(slices.Sorted(slices.Values(res.Syndromes))),
	}
	if out.Reports == nil {
		out.Reports = []domain.DoctorReport{}
	}

	if s.sessions != nil {
		id, err := s.sessions.Save(ctx, domain.Lookup{
			Gene:      gene,
			Variant:   variant,
			Reports:   res.Reports,
			Syndromes: res.Syndromes,
			Raw:       res.Records,
		})
		if err != nil {
			log.WithError(err).Warn("Failed to store lookup session")
		} else {
			out.LookupID = id
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: lookupMarkdown(out)}},
	}, out, nil
}

func (s *Server) handleRecommendTreatment(ctx context.Context, _ *mcp.CallToolRequest, in RecommendTreatmentInput) (*mcp.CallToolResult, TreatmentOutput, error) {
	syndrome := strings.TrimSpace(in.Syndrome)
	if syndrome == "" {
		return nil, TreatmentOutput{}, domain.NewValidationError("syndrome", "must not be blank", in.Syndrome)
	}
	patientContext := in.PatientContext

	if in.LookupID != "" {
		if s.sessions == nil {
			return nil, TreatmentOutput{}, fmt.Errorf("lookup sessions are not enabled")
		}
		lookup, err := s.sessions.Get(ctx, in.LookupID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, TreatmentOutput{}, fmt.Errorf("lookup %s not found or expired", in.LookupID)
		}
		if err != nil {
			return nil, TreatmentOutput{}, fmt.Errorf("failed to load lookup: %w", err)
		}
		if !lookup.HasSyndrome(syndrome) {
			return nil, TreatmentOutput{}, domain.NewValidationError("syndrome", "not among the lookup's syndromes", syndrome)
		}
		if patientContext == "" {
			patientContext = service.PatientContext(lookup.Gene, lookup.Variant)
		}
	}

	s.logger.WithFields(logrus.Fields{"tool": ToolRecommendTreatment, "syndrome": syndrome}).Info("Tool invoked")

	out := TreatmentOutput{
		Syndrome:       syndrome,
		PatientContext: patientContext,
		Treatment:      s.workflow.RecommendTreatment(ctx, syndrome, patientContext),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Treatment}},
	}, out, nil
}

func (s *Server) handleParseDescription(ctx context.Context, _ *mcp.CallToolRequest, in DescriptionInput) (*mcp.CallToolResult, domain.ParsedRecord, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.ParsedRecord{}, domain.NewValidationError("description", "must not be blank", in.Description)
	}
	s.logger.WithField("tool", ToolParseDescription).Info("Tool invoked")
	return nil, s.workflow.ParseDescription(ctx, in.Description), nil
}

func (s *Server) handleRunWorkflow(ctx context.Context, _ *mcp.CallToolRequest, in DescriptionInput) (*mcp.CallToolResult, WorkflowOutput, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, WorkflowOutput{}, domain.NewValidationError("description", "must not be blank", in.Description)
	}
	s.logger.WithField("tool", ToolRunWorkflow).Info("Tool invoked")

	state, err := s.workflow.Run(ctx, in.Description)
	if err != nil {
		return nil, WorkflowOutput{}, fmt.Errorf("workflow run failed: %w", err)
	}

	out := WorkflowOutput{
		Parsed:            state.Parsed,
		DoctorReports:     state.DoctorReports,
		ResolvedSyndromes: nonNil(state.ResolvedSyndromes),
		Treatments:        state.Treatments,
		RecordIDs:         []string{},
	}
	for _, r := range state.DoctorReports {
		out.RecordIDs = append(out.RecordIDs, r.RecordID)
	}
	if out.DoctorReports == nil {
		out.DoctorReports = []domain.DoctorReport{}
	}

	text := out.Treatments
	if text == "" {
		text = service.NoSyndromesMessage
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

func lookupMarkdown(out LookupVariantOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Variant lookup: %s %s\n\n", out.Gene, out.Variant)
	if len(out.Reports) == 0 {
		b.WriteString("No ClinVar records found.\n")
		return b.String()
	}
	for _, r := range out.Reports {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", r.Title, r.Report)
	}
	if len(out.Syndromes) > 0 {
		b.WriteString("**Associated syndromes:** " + strings.Join(out.Syndromes, ", ") + "\n")
	}
	if out.LookupID != "" {
		fmt.Fprintf(&b, "\nlookup_id: %s\n", out.LookupID)
	}
	return b.String()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
