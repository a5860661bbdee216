package app

import (
	"context"
	"fmt"

	"github.com/genepilepsy-guide/internal/api"
	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/mcp"
)

// ServeHTTP runs the REST API until ctx is cancelled.
func (a *App) ServeHTTP(ctx context.Context, configManager domain.ConfigManager) error {
	server := api.NewServer(configManager, a.Pipeline, a.Sessions, a.Metrics, a.Logger)
	return server.Start(ctx)
}

// ServeMCP runs the MCP tools over stdio until ctx is cancelled or the client disconnects.
func (a *App) ServeMCP(ctx context.Context) error {
	server, err := mcp.NewServer(a.Config.MCP, a.Pipeline,
		mcp.WithSessions(a.Sessions),
		mcp.WithLogger(a.Logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Start(ctx)
}
