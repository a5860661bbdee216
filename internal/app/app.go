// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/metrics"
	"github.com/genepilepsy-guide/internal/prompts"
	"github.com/genepilepsy-guide/internal/service"
	"github.com/genepilepsy-guide/internal/session"
	"github.com/genepilepsy-guide/pkg/external"
	"github.com/genepilepsy-guide/pkg/llm"
)

// App holds the wired components shared by the CLI, REST and MCP surfaces.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
	Pipeline *service.Pipeline
	Sessions domain.SessionStore

	closers []io.Closer
}

type options struct {
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	llmOptions []llm.Option
	index      domain.VectorIndex
}

// Option customizes New.
type Option func(*options)

// WithLogger uses logger instead of one built from the logging config.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics uses m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLLMOptions passes options to the language-model and embedding clients.
func WithLLMOptions(opts ...llm.Option) Option {
	return func(o *options) { o.llmOptions = append(o.llmOptions, opts...) }
}

// WithVectorIndex bypasses the configured vector backend.
func WithVectorIndex(index domain.VectorIndex) Option {
	return func(o *options) { o.index = index }
}

// NewLogger builds a logrus logger from the logging config. MCP stdio mode passes
// os.Stderr so stdout stays reserved for protocol frames.
func NewLogger(cfg domain.LoggingConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	if strings.ToLower(cfg.Format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// New wires every component named by cfg. Missing credentials fail here rather than on
// the first request.
func New(ctx context.Context, cfg *domain.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.Logging, nil)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	logger, m := o.logger, o.metrics

	a := &App{Config: cfg, Logger: logger, Metrics: m}

	// Step 1: Language model and embedder
	model, err := llm.NewLanguageModel(ctx, cfg.LLM, o.llmOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}
	embedder, err := llm.NewEmbedder(cfg.Embedding, o.llmOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	// Step 2: Guideline index
	index := o.index
	if index == nil {
		index, err = newVectorIndex(ctx, cfg.Vector, logger, m)
		if err != nil {
			return nil, err
		}
		if closer, ok := index.(io.Closer); ok {
			a.closers = append(a.closers, closer)
		}
	}

	// Step 3: ClinVar
	clinvar := external.NewClinVarClient(cfg.ClinVar,
		external.WithClinVarLogger(logger),
		external.WithClinVarObserver(m.ObserveExternal),
	)

	// Step 4: Stages
	catalog := prompts.Default()
	instrumented := m.LanguageModel(model)

	extractor, err := service.NewExtractor(instrumented, catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	resolver, err := service.NewResolver(clinvar, instrumented, catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	retriever := service.NewGuidelineRetriever(m.Embedder(embedder), index, cfg.Vector.Namespace, cfg.Vector.TopK)
	synthesizer, err := service.NewSynthesizer(retriever, instrumented, catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	a.Pipeline = service.NewPipeline(extractor, resolver, synthesizer,
		service.WithMaxSyndromes(cfg.Pipeline.MaxSyndromes),
		service.WithPipelineLogger(logger),
		service.WithStageObserver(m),
	)

	// Step 5: Lookup sessions
	sessions, err := session.New(cfg.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	a.Sessions = sessions
	if closer, ok := sessions.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	logger.WithFields(logrus.Fields{
		"llm_provider":   cfg.LLM.Provider,
		"llm_model":      model.Name(),
		"vector_backend": cfg.Vector.Backend,
		"session":        cfg.Session.Backend,
	}).Info("Pipeline initialized")

	return a, nil
}

func newVectorIndex(ctx context.Context, cfg domain.VectorConfig, logger *logrus.Logger, m *metrics.Metrics) (domain.VectorIndex, error) {
	switch strings.ToLower(cfg.Backend) {
	case "pinecone", "":
		index, err := external.NewPineconeIndex(ctx, cfg.Pinecone, cfg.IndexName,
			external.WithPineconeLogger(logger),
			external.WithPineconeObserver(m.ObserveExternal),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Pinecone index: %w", err)
		}
		return index, nil
	case "typesense":
		index := external.NewTypesenseIndex(cfg.Typesense,
			external.WithTypesenseLogger(logger),
			external.WithTypesenseObserver(m.ObserveExternal),
		)
		if !index.Health(ctx) {
			logger.WithField("url", cfg.Typesense.URL).Warn("Typesense is not healthy; treatment queries will fail until it is")
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unsupported vector backend %q", cfg.Backend)
	}
}

// Close releases the vector index and session store connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
