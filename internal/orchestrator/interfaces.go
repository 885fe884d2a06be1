// File: internal/orchestrator/interfaces.go
package orchestrator

import (
	"context"

	"github.com/voidmaw/wayfarer/api/schemas"
)

// The engine declares the slices of its collaborators it actually calls, so
// tests can substitute mocks without dragging in the concrete packages.

// Planner turns a goal and the current browsing state into a step plan.
type Planner interface {
	CreateDetailedPlan(ctx context.Context, goal, currentURL, pageContent string, history []schemas.APIInteraction) (string, error)
}

// Navigator executes plans against the browser and accumulates what it saw.
type Navigator interface {
	CurrentURL() string
	PageContent() string
	CapturedAPIs() []schemas.APIInteraction
	NavigateAndLearn(ctx context.Context, goal, plan string) error
	CloseBrowser() error
}

// CodeGenerator is the user-facing automation code surface.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, task string) (string, error)
}

// Memory is the searchable slice of the semantic index.
type Memory interface {
	Search(ctx context.Context, query string, topK int) ([]schemas.MemoryRecord, error)
}
