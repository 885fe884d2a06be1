// File: cmd/helpers.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
	"github.com/voidmaw/wayfarer/internal/inference"
	"github.com/voidmaw/wayfarer/internal/orchestrator"
	"github.com/voidmaw/wayfarer/internal/store"
)

// engineRunner is the slice of the orchestration engine the commands call.
type engineRunner interface {
	PerformWebGoal(ctx context.Context, goal string) (string, error)
	APISearch(ctx context.Context, query string) ([]schemas.MemoryRecord, error)
	GenerateCodeForTask(ctx context.Context, task string) (string, error)
	Close()
}

// newEngine builds the production engine: an Ollama client, the default
// browser session and all collaborators wired by the orchestrator. Tests
// substitute this to run commands against a stub engine.
var newEngine = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (engineRunner, error) {
	client, err := inference.NewClient(cfg.Ollama, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}

	if cfg.Database.Enabled() {
		if err := ensureSchema(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	return orchestrator.New(cfg, client, nil, logger)
}

// ensureSchema creates the persistence tables on first use so a fresh
// database works without an external migration step.
func ensureSchema(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	session, err := store.NewSessionFactory(cfg.Database, logger)(ctx)
	if err != nil {
		return fmt.Errorf("failed to open persistence session: %w", err)
	}
	defer session.Close()

	if err := session.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}
	return nil
}
