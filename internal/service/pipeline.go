package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
)

// Stage names used in logs and metrics.
const (
	StageExtract    = "extract"
	StageResolve    = "resolve"
	StageSynthesize = "synthesize"
)

// DefaultMaxSyndromes leaves Run uncapped: every resolved syndrome gets a treatment section.
const DefaultMaxSyndromes = 0

// StageObserver receives stage timings and resolution counts.
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveSyndromes(count int)
}

type noopStageObserver struct{}

func (noopStageObserver) ObserveStage(string, time.Duration) {}
func (noopStageObserver) ObserveSyndromes(int)               {}

// Pipeline runs the three stages in sequence and exposes the interactive entry points.
type Pipeline struct {
	extractor    *Extractor
	resolver     *Resolver
	synthesizer  *Synthesizer
	maxSyndromes int
	logger       *logrus.Logger
	observer     StageObserver
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithMaxSyndromes caps the syndromes forwarded to treatment synthesis by Run. Zero or
// less disables the cap.
func WithMaxSyndromes(n int) PipelineOption {
	return func(p *Pipeline) { p.maxSyndromes = n }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *logrus.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithStageObserver sets the stage observer.
func WithStageObserver(observer StageObserver) PipelineOption {
	return func(p *Pipeline) { p.observer = observer }
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(extractor *Extractor, resolver *Resolver, synthesizer *Synthesizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractor:    extractor,
		resolver:     resolver,
		synthesizer:  synthesizer,
		maxSyndromes: DefaultMaxSyndromes,
		logger:       logrus.StandardLogger(),
		observer:     noopStageObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PatientContext is the patient context used by interactive treatment requests.
func PatientContext(gene, variant string) string {
	return fmt.Sprintf("Gene: %s, Variant: %s", strings.TrimSpace(gene), strings.TrimSpace(variant))
}

// Run executes extraction, resolution and synthesis on a free-text description. The raw
// description is the patient context for synthesis.
func (p *Pipeline) Run(ctx context.Context, description string) (domain.WorkflowState, error) {
	runID := uuid.New().String()
	log := p.logger.WithField("run_id", runID)
	log.Info("Starting workflow run")
	started := time.Now()

	state := domain.NewWorkflowState(description)

	// Step 1: extract gene, variant and phenotypes from the description
	stepStart := time.Now()
	state = p.extractor.Process(ctx, state)
	p.observer.ObserveStage(StageExtract, time.Since(stepStart))
	log.WithFields(logrus.Fields{
		"gene":    state.Parsed.Gene,
		"variant": state.Parsed.Variant,
	}).Info("Extraction complete")

	// Step 2: resolve the variant to epilepsy syndromes
	stepStart = time.Now()
	resolved, err := p.resolver.Process(ctx, state)
	p.observer.ObserveStage(StageResolve, time.Since(stepStart))
	if err != nil {
		log.WithError(err).Error("Variant resolution failed")
		return state, fmt.Errorf("failed to resolve variant: %w", err)
	}
	state = resolved
	p.observer.ObserveSyndromes(len(state.ResolvedSyndromes))

	// Step 3: synthesize treatments for the resolved syndromes
	stepStart = time.Now()
	state = p.synthesizeCapped(ctx, state, description)
	p.observer.ObserveStage(StageSynthesize, time.Since(stepStart))

	log.WithFields(logrus.Fields{
		"records":   len(state.DoctorReports),
		"syndromes": len(state.ResolvedSyndromes),
		"duration":  time.Since(started).String(),
	}).Info("Workflow run complete")
	return state, nil
}

func (p *Pipeline) synthesizeCapped(ctx context.Context, state domain.WorkflowState, patientContext string) domain.WorkflowState {
	if p.maxSyndromes <= 0 || len(state.ResolvedSyndromes) <= p.maxSyndromes {
		return p.synthesizer.Process(ctx, state, patientContext)
	}
	capped := state
	capped.ResolvedSyndromes = state.ResolvedSyndromes[:p.maxSyndromes]
	out := p.synthesizer.Process(ctx, capped, patientContext)
	return out.WithResolution(state.VariantRecords, state.DoctorReports, state.ResolvedSyndromes)
}

// ParseDescription runs extraction only.
func (p *Pipeline) ParseDescription(ctx context.Context, description string) domain.ParsedRecord {
	start := time.Now()
	defer func() { p.observer.ObserveStage(StageExtract, time.Since(start)) }()
	return p.extractor.Extract(ctx, description)
}

// LookupVariant resolves a gene and variant supplied directly.
func (p *Pipeline) LookupVariant(ctx context.Context, gene, variant string) (Resolution, error) {
	log := p.logger.WithFields(logrus.Fields{
		"run_id":  uuid.New().String(),
		"gene":    gene,
		"variant": variant,
	})
	log.Info("Looking up variant")

	start := time.Now()
	res, err := p.resolver.Resolve(ctx, gene, variant)
	p.observer.ObserveStage(StageResolve, time.Since(start))
	if err != nil {
		log.WithError(err).Error("Variant lookup failed")
		return Resolution{}, err
	}
	p.observer.ObserveSyndromes(len(res.Syndromes))
	return res, nil
}

// RecommendTreatment synthesizes the treatment section for one syndrome.
func (p *Pipeline) RecommendTreatment(ctx context.Context, syndrome, patientContext string) string {
	p.logger.WithFields(logrus.Fields{
		"run_id":   uuid.New().String(),
		"syndrome": syndrome,
	}).Info("Recommending treatment")

	start := time.Now()
	defer func() { p.observer.ObserveStage(StageSynthesize, time.Since(start)) }()

	var syndromes []string
	if strings.TrimSpace(syndrome) != "" {
		syndromes = []string{strings.TrimSpace(syndrome)}
	}
	return p.synthesizer.Synthesize(ctx, syndromes, patientContext)
}
