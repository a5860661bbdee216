// Package mcp exposes the epilepsy workflow as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/service"
)

// Tool names.
const (
	ToolLookupVariant      = "lookup_variant"
	ToolRecommendTreatment = "recommend_treatment"
	ToolParseDescription   = "parse_description"
	ToolRunWorkflow        = "run_workflow"
)

// Workflow is the pipeline surface the tools drive.
type Workflow interface {
	Run(ctx context.Context, description string) (domain.WorkflowState, error)
	ParseDescription(ctx context.Context, description string) domain.ParsedRecord
	LookupVariant(ctx context.Context, gene, variant string) (service.Resolution, error)
	RecommendTreatment(ctx context.Context, syndrome, patientContext string) string
}

// Server wraps an MCP SDK server with the workflow tools registered.
type Server struct {
	workflow  Workflow
	sessions  domain.SessionStore
	logger    *logrus.Logger
	mcpServer *mcp.Server
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithSessions lets lookup_variant keep its result so recommend_treatment can refer to it
// by lookup_id.
func WithSessions(store domain.SessionStore) ServerOption {
	return func(s *Server) error {
		s.sessions = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// NewServer creates an MCP server instance with all tools registered.
func NewServer(cfg domain.MCPConfig, workflow Workflow, opts ...ServerOption) (*Server, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow must not be nil")
	}

	server := &Server{
		workflow: workflow,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	name, version := cfg.ServerName, cfg.ServerVersion
	if name == "" {
		name = "genepilepsy-guide"
	}
	if version == "" {
		version = "v0.1.0"
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"server_name": name,
		"sessions":    server.sessions != nil,
	}).Info("MCP server initialized")
	return server, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolLookupVariant,
		Description: "Look up a gene and variant in ClinVar, write a clinician report for each " +
			"record and return the epilepsy syndromes associated with the variant.",
	}, s.handleLookupVariant)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolRecommendTreatment,
		Description: "Recommend treatment for one epilepsy syndrome from the guideline index. " +
			"Pass lookup_id from lookup_variant to reuse its gene and variant as patient context.",
	}, s.handleRecommendTreatment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolParseDescription,
		Description: "Extract gene, variant, variant type, demographics and phenotypes from a free-text case description.",
	}, s.handleParseDescription)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolRunWorkflow,
		Description: "Run extraction, variant resolution and treatment synthesis on a free-text case description.",
	}, s.handleRunWorkflow)

	s.logger.WithField("tool_count", 4).Debug("Registered MCP tools")
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Start serves the tools over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
