// File: internal/brain/planner.go
package brain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/inference"
)

// noPageLoaded is what the planner reports as the current URL before the
// browser has opened anything.
const noPageLoaded = "(no page loaded)"

// Planner turns a user goal plus the current browsing state into a numbered
// plan of navigator actions.
type Planner struct {
	client inference.Client
	logger *zap.Logger
}

// NewPlanner returns a planner speaking through the given inference client.
func NewPlanner(client inference.Client, logger *zap.Logger) *Planner {
	return &Planner{
		client: client,
		logger: logger.Named("planner"),
	}
}

// CreateDetailedPlan asks the planning model for a step-by-step plan toward
// goal, grounded in the current URL, a sample of the page text, and the most
// recently observed API calls. An empty model response falls back to a
// two-step plan that searches the web for the goal, so callers always get
// something executable.
func (p *Planner) CreateDetailedPlan(ctx context.Context, goal, currentURL, pageContent string, history []schemas.APIInteraction) (string, error) {
	if currentURL == "" {
		currentURL = noPageLoaded
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "GOAL: %s\n\n", goal)
	fmt.Fprintf(&sb, "CURRENT STATE:\n- URL: %s\n- Page content sample:\n%s\n\n", currentURL, truncate(pageContent, pageContentCap))

	if len(history) > 0 {
		recent := history
		if len(recent) > historyWindow {
			recent = recent[len(recent)-historyWindow:]
		}
		sb.WriteString("Previously observed API calls:\n")
		for i, call := range recent {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, call.RequestLine())
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Create a step-by-step plan that achieves the goal from the current state.")

	plan, err := p.client.Generate(ctx, inference.Request{
		Role:   inference.RolePlanning,
		System: p.systemPrompt(),
		Prompt: sb.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate plan: %w", err)
	}
	if strings.TrimSpace(plan) == "" {
		p.logger.Warn("Model returned an empty plan, falling back to a search plan.", zap.String("goal", goal))
		return p.searchFallbackPlan(goal), nil
	}
	return plan, nil
}

// CreateErrorRecoveryPlan asks the planning model for a fresh plan after a
// step failed. Unlike CreateDetailedPlan there is no canned fallback: an
// empty response is an error, because a recovery that recovers nothing should
// abort the run instead of looping.
func (p *Planner) CreateErrorRecoveryPlan(ctx context.Context, goal, failedStep, errMsg, pageContent string) (string, error) {
	prompt := fmt.Sprintf(`A web automation step failed and the run needs a new route to the goal.

GOAL: %s

FAILED STEP: %s

ERROR: %s

CURRENT PAGE CONTENT:
%s

Produce a fresh numbered plan that works around the failure. Do not repeat the failed step verbatim.`,
		goal, failedStep, errMsg, truncate(pageContent, pageContentCap))

	plan, err := p.client.Generate(ctx, inference.Request{
		Role:   inference.RolePlanning,
		System: p.systemPrompt(),
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate recovery plan: %w", err)
	}
	if strings.TrimSpace(plan) == "" {
		return "", errors.New("model returned an empty recovery plan")
	}
	return plan, nil
}

// searchFallbackPlan is the plan of last resort: search the goal on Google
// and analyze whatever comes back.
func (p *Planner) searchFallbackPlan(goal string) string {
	return fmt.Sprintf("1. NAVIGATE https://www.google.com/search?q=%s\n2. ANALYZE", url.QueryEscape(goal))
}

// systemPrompt pins the planner to the action grammar the navigator can
// execute. Free-form prose steps parse as ANALYZE, which wastes a step, so
// the instructions are strict about the output shape.
func (p *Planner) systemPrompt() string {
	return `You are the planning component of a web automation engine. Break the user's goal into short numbered steps. Every step must be exactly one of these actions:

NAVIGATE <url>            open a page
CLICK <selector>          click the element at a CSS selector
TYPE <selector> :: <text> type text into the element at a CSS selector
SUBMIT <selector>         submit the form at a CSS selector
SCROLL                    scroll down one viewport
WAIT <seconds>            pause for the given number of seconds
ANALYZE                   study the current page and its network traffic

Respond with the numbered steps only, one per line, no commentary.`
}
