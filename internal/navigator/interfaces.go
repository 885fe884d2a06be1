// File: internal/navigator/interfaces.go
package navigator

import (
	"context"
	"time"

	"github.com/voidmaw/wayfarer/api/schemas"
)

// Browser is the slice of the browser session the engine drives.
type Browser interface {
	Start(ctx context.Context) error
	Close() error
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Submit(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, pixels int) error
	WaitNetworkIdle(ctx context.Context, quiet time.Duration) error
	Interactions() []schemas.APIInteraction
}

// Planner supplies a replacement plan after a step fails.
type Planner interface {
	CreateErrorRecoveryPlan(ctx context.Context, goal, failedStep, errMsg, pageContent string) (string, error)
}

// CodeAssistant renders replay snippets for captured calls.
type CodeAssistant interface {
	GenerateAPIReplayCode(ctx context.Context, interaction *schemas.APIInteraction) (string, error)
}

// Analyzer annotates captured traffic and describes pages.
type Analyzer interface {
	AnalyzeInteraction(ctx context.Context, interaction *schemas.APIInteraction) (string, error)
	DescribePage(ctx context.Context, pageURL, content string) (string, error)
}

// Memory is the slice of the semantic index the engine writes to.
type Memory interface {
	Add(ctx context.Context, id, text string, metadata map[string]any) error
}
