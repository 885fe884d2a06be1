// File: internal/orchestrator/orchestrator.go

// Package orchestrator coordinates the planner, the navigation engine, the
// code assistant and the semantic memory around a single browser session to
// carry a natural-language web goal end to end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/brain"
	"github.com/voidmaw/wayfarer/internal/browser"
	"github.com/voidmaw/wayfarer/internal/config"
	"github.com/voidmaw/wayfarer/internal/inference"
	"github.com/voidmaw/wayfarer/internal/memory"
	"github.com/voidmaw/wayfarer/internal/navigator"
	"github.com/voidmaw/wayfarer/internal/store"
)

// ErrGoalInFlight is returned when PerformWebGoal is called while another
// goal is still running on the same engine. The browser session and the
// navigation state are shared, so goals must run one at a time.
var ErrGoalInFlight = errors.New("a web goal is already in flight")

const (
	// summaryMemoryTopK is how many memory records a summary draws from.
	summaryMemoryTopK = 10
	// apiSearchTopK is the fixed result count for APISearch.
	apiSearchTopK = 5
	// apiExcerptCap bounds each memory excerpt quoted in the summary prompt.
	apiExcerptCap = 200

	noSummaryFallback = "No summary available."
)

// Engine is the top-level coordinator. One engine owns one browser session,
// one memory index and one navigation engine; goals run through it strictly
// one at a time.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
	client inference.Client

	planner Planner
	nav     Navigator
	codegen CodeGenerator
	memory  Memory

	inflight   *semaphore.Weighted
	stopMemory func()
}

// New wires a full engine. The inference client is required; a nil session
// makes the engine build its own from the browser config, which is visible
// unless configured otherwise. An injected session is shared with the caller
// but still closed by the engine at the end of every goal.
func New(cfg *config.Config, client inference.Client, session *browser.Session, logger *zap.Logger) (*Engine, error) {
	if cfg == nil || client == nil || logger == nil {
		return nil, errors.New("cannot initialize orchestrator with nil dependencies")
	}

	if session == nil {
		session = browser.NewSession(cfg, logger)
	}

	planner := brain.NewPlanner(client, logger)
	codegen := brain.NewCodeAssistant(client, logger)
	analyzer := brain.NewAPIAnalyzer(client, logger)

	index := memory.New(cfg.Memory, client, logger)
	index.Start()

	factory := store.NewSessionFactory(cfg.Database, logger)
	nav := navigator.New(session, index, planner, codegen, analyzer, factory, cfg.Navigation, logger)

	return &Engine{
		cfg:        cfg,
		logger:     logger.Named("orchestrator"),
		client:     client,
		planner:    planner,
		nav:        nav,
		codegen:    codegen,
		memory:     index,
		inflight:   semaphore.NewWeighted(1),
		stopMemory: index.Stop,
	}, nil
}

// Close releases engine-owned background resources. The browser session is
// closed at the end of every goal, not here.
func (e *Engine) Close() {
	if e.stopMemory != nil {
		e.stopMemory()
	}
}

// PerformWebGoal runs the full pipeline for one goal: plan from the current
// browsing state, execute the plan, summarize what was learned. The browser
// session is closed before this returns, whichever stage failed, and the
// stage error still reaches the caller. Returns the summary on success.
func (e *Engine) PerformWebGoal(ctx context.Context, goal string) (string, error) {
	if !e.inflight.TryAcquire(1) {
		return "", ErrGoalInFlight
	}
	defer e.inflight.Release(1)

	e.logger.Info("Web goal received.", zap.String("goal", goal))

	defer func() {
		if cerr := e.nav.CloseBrowser(); cerr != nil {
			e.logger.Warn("Failed to close browser session.", zap.Error(cerr))
		}
	}()

	plan, err := e.planner.CreateDetailedPlan(ctx, goal, e.nav.CurrentURL(), e.nav.PageContent(), e.nav.CapturedAPIs())
	if err != nil {
		return "", fmt.Errorf("planning failed: %w", err)
	}
	e.logger.Info("Plan adopted.", zap.String("plan", plan))

	if err := e.nav.NavigateAndLearn(ctx, goal, plan); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	summary, err := e.SummarizeResults(ctx, goal)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	e.logger.Info("Web goal finished.", zap.String("goal", goal))
	return summary, nil
}

// SummarizeResults asks the general model what was learned about a goal,
// grounded on the api_request records the memory index holds for it. An empty
// result set is fine, and an empty model response degrades to a fixed line so
// callers always get text back.
func (e *Engine) SummarizeResults(ctx context.Context, goal string) (string, error) {
	records, err := e.memory.Search(ctx, goal, summaryMemoryTopK)
	if err != nil {
		return "", fmt.Errorf("failed to search memory: %w", err)
	}

	var apiInfo strings.Builder
	count := 0
	for _, rec := range records {
		if rec.Type() != schemas.MemoryTypeAPIRequest {
			continue
		}
		count++
		if count == 1 {
			apiInfo.WriteString("APIs discovered:\n")
		}
		fmt.Fprintf(&apiInfo, "%d. %s\n", count, excerpt(rec.Text, apiExcerptCap))
	}

	prompt := fmt.Sprintf(
		"Summarize what was learned while pursuing this web automation goal: %q.\n\n"+
			"Context:\n%s\n"+
			"Focus your summary on these key aspects:\n"+
			"1. What was the primary outcome or accomplishment related to the goal?\n"+
			"2. What specific API patterns, request structures, or key UI elements were discovered or interacted with?\n"+
			"3. What insights or learned patterns could be useful for future automation tasks related to this website or goal?\n"+
			"Keep the summary concise and informative.",
		goal, apiInfo.String(),
	)

	summary, err := e.client.Generate(ctx, inference.Request{
		Role:   inference.RoleGeneral,
		Prompt: prompt,
		System: "You are an expert assistant skilled at summarizing web automation sessions.",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return noSummaryFallback, nil
	}
	return summary, nil
}

// APISearch looks up stored API knowledge matching the query.
func (e *Engine) APISearch(ctx context.Context, query string) ([]schemas.MemoryRecord, error) {
	return e.memory.Search(ctx, query, apiSearchTopK)
}

// GenerateCodeForTask is direct access to the code generator.
func (e *Engine) GenerateCodeForTask(ctx context.Context, task string) (string, error) {
	return e.codegen.GenerateCode(ctx, task)
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
