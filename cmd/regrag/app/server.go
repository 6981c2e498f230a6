// Package app provides the RegRAG server application.
package app

import (
	"context"
	"fmt"

	"github.com/gregorizeidler-cw/RegRAG/cmd/regrag/app/options"
	compliancesvc "github.com/gregorizeidler-cw/RegRAG/internal/compliance"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `RegRAG Compliance Service

Retrieval-augmented question answering over financial regulations from
multiple jurisdictions (US, EU, BR).

This server provides:
  - Ingestion of regulatory texts from local paths or s3:// prefixes
  - Jurisdiction-aware semantic retrieval with cited, structured answers
  - Cross-jurisdiction conflict detection, trends and requirement maps`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(compliancesvc.Name),
		app.WithShortDescription("RegRAG compliance API server"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}
