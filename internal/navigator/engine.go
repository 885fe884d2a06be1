// File: internal/navigator/engine.go
package navigator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
	"github.com/voidmaw/wayfarer/internal/store"
)

// scrollStep is how far one SCROLL action moves the page, in pixels.
const scrollStep = 800

// networkSettleTimeout bounds the post-step wait for network idle so a
// busy-polling page cannot stall the run.
const networkSettleTimeout = 10 * time.Second

// Engine executes navigation plans against a browser session and turns what
// it observes into memory records and persisted knowledge.
type Engine struct {
	session  Browser
	memory   Memory
	planner  Planner
	codegen  CodeAssistant
	analyzer Analyzer
	factory  store.SessionFactory
	cfg      config.NavigationConfig
	logger   *zap.Logger

	mu          sync.Mutex
	currentURL  string
	pageContent string
	captured    []schemas.APIInteraction
	seen        map[string]struct{}
}

// New wires a navigation engine. A nil factory disables persistence; every
// other collaborator is required.
func New(session Browser, mem Memory, planner Planner, codegen CodeAssistant, analyzer Analyzer, factory store.SessionFactory, cfg config.NavigationConfig, logger *zap.Logger) *Engine {
	if factory == nil {
		factory = func(context.Context) (*store.Session, error) {
			return nil, store.ErrPersistenceDisabled
		}
	}
	return &Engine{
		session:  session,
		memory:   mem,
		planner:  planner,
		codegen:  codegen,
		analyzer: analyzer,
		factory:  factory,
		cfg:      cfg,
		logger:   logger.Named("navigator"),
		seen:     make(map[string]struct{}),
	}
}

// NavigateAndLearn executes a plan toward goal, observing the page and the
// network after every step. A failed step gets one recovery attempt: the
// planner produces a replacement plan that runs inside the remaining step
// budget, and a failure during recovery aborts the run with the original
// step error.
func (e *Engine) NavigateAndLearn(ctx context.Context, goal, plan string) error {
	if err := e.session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}

	e.rememberPlan(ctx, goal, plan)

	queue := e.parsePlan(goal, plan)
	budget := e.cfg.MaxSteps

	var (
		recovering  bool
		originalErr error
		failedStep  string
	)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if budget <= 0 {
			e.logger.Warn("Step budget exhausted with plan steps remaining.", zap.Int("remaining", len(queue)))
			return nil
		}

		action := queue[0]
		queue = queue[1:]
		budget--

		e.logger.Info("Executing step.", zap.String("action", string(action.Type)), zap.String("step", action.Raw))

		if err := e.executeStep(ctx, action); err != nil {
			if recovering {
				return fmt.Errorf("recovery failed at %q, original step %q: %w", action.Raw, failedStep, originalErr)
			}

			e.logger.Warn("Step failed, attempting recovery.", zap.String("step", action.Raw), zap.Error(err))
			recoveryQueue, rerr := e.recoverySteps(ctx, goal, action, err)
			if rerr != nil {
				e.logger.Error("Recovery unavailable.", zap.Error(rerr))
				return fmt.Errorf("step %q failed: %w", action.Raw, err)
			}

			recovering = true
			originalErr = err
			failedStep = action.Raw
			queue = recoveryQueue
			continue
		}

		e.observe(ctx)
		e.analyzePage(ctx)
		e.drainInteractions(ctx)
	}

	return nil
}

// CurrentURL returns the last observed page URL.
func (e *Engine) CurrentURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentURL
}

// PageContent returns the last observed page text snapshot.
func (e *Engine) PageContent() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pageContent
}

// CapturedAPIs returns a copy of every interaction processed so far, in
// processing order.
func (e *Engine) CapturedAPIs() []schemas.APIInteraction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schemas.APIInteraction, len(e.captured))
	copy(out, e.captured)
	return out
}

// CloseBrowser releases the underlying browser session. Safe to call more
// than once.
func (e *Engine) CloseBrowser() error {
	return e.session.Close()
}

// parsePlan turns a plan text into executable actions. Lines that do not
// match the grammar degrade to ANALYZE; a plan with no genuinely parseable
// step at all is replaced by a web search for the goal.
func (e *Engine) parsePlan(goal, plan string) []Action {
	var (
		actions []Action
		parsed  int
	)
	for _, line := range SplitPlan(plan) {
		action, ok := ParseStep(line)
		if !ok {
			e.logger.Warn("Unparseable plan step, treating as ANALYZE.", zap.String("step", line))
			action = Action{Type: ActionAnalyze, Raw: line}
		} else {
			parsed++
		}
		actions = append(actions, action)
	}

	if parsed == 0 {
		e.logger.Warn("Plan contained no parseable steps, falling back to a web search.", zap.String("goal", goal))
		return e.searchFallback(goal)
	}
	return actions
}

func (e *Engine) searchFallback(goal string) []Action {
	searchURL := "https://www.google.com/search?q=" + url.QueryEscape(goal)
	return []Action{
		{Type: ActionNavigate, Value: searchURL, Raw: "NAVIGATE " + searchURL},
		{Type: ActionAnalyze, Raw: "ANALYZE"},
	}
}

// recoverySteps asks the planner for a replacement plan after a failed step.
func (e *Engine) recoverySteps(ctx context.Context, goal string, failed Action, cause error) ([]Action, error) {
	plan, err := e.planner.CreateErrorRecoveryPlan(ctx, goal, failed.Raw, cause.Error(), e.PageContent())
	if err != nil {
		return nil, err
	}

	var actions []Action
	for _, line := range SplitPlan(plan) {
		action, ok := ParseStep(line)
		if !ok {
			e.logger.Warn("Unparseable recovery step, treating as ANALYZE.", zap.String("step", line))
			action = Action{Type: ActionAnalyze, Raw: line}
		}
		actions = append(actions, action)
	}
	if len(actions) == 0 {
		return nil, errors.New("recovery plan contained no steps")
	}
	return actions, nil
}

// executeStep runs one action under the configured step timeout.
func (e *Engine) executeStep(ctx context.Context, action Action) error {
	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()
	}
	return e.execute(ctx, action)
}

func (e *Engine) execute(ctx context.Context, action Action) error {
	switch action.Type {
	case ActionNavigate:
		return e.session.Navigate(ctx, action.Value)
	case ActionClick:
		return e.session.Click(ctx, action.Selector)
	case ActionTypeText:
		return e.session.Type(ctx, action.Selector, action.Value)
	case ActionSubmit:
		return e.session.Submit(ctx, action.Selector)
	case ActionScroll:
		return e.session.ScrollBy(ctx, scrollStep)
	case ActionWait:
		timer := time.NewTimer(time.Duration(action.Seconds) * time.Second)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	case ActionAnalyze:
		// Observation after the step does the actual work.
		return nil
	default:
		return fmt.Errorf("no handler for action type %q", action.Type)
	}
}

// observe waits for the network to settle, then refreshes the engine's view
// of where the browser is and what the page says. Observation failures are
// logged, never fatal.
func (e *Engine) observe(ctx context.Context) {
	idleCtx, cancel := context.WithTimeout(ctx, networkSettleTimeout)
	if err := e.session.WaitNetworkIdle(idleCtx, 0); err != nil {
		e.logger.Debug("Network did not settle.", zap.Error(err))
	}
	cancel()

	if loc, err := e.session.Location(ctx); err != nil {
		e.logger.Debug("Could not read browser location.", zap.Error(err))
	} else {
		e.mu.Lock()
		e.currentURL = loc
		e.mu.Unlock()
	}

	if text, err := e.session.PageText(ctx); err != nil {
		e.logger.Debug("Could not read page text.", zap.Error(err))
	} else {
		e.mu.Lock()
		e.pageContent = text
		e.mu.Unlock()
	}
}

// analyzePage runs the reasoning model over the current page and stores the
// description in memory and, when persistence is up, in learned_info.
func (e *Engine) analyzePage(ctx context.Context) {
	if !e.cfg.AnalyzeUI {
		return
	}

	pageURL := e.CurrentURL()
	content := e.PageContent()
	if strings.TrimSpace(content) == "" {
		return
	}

	analysis, err := e.analyzer.DescribePage(ctx, pageURL, content)
	if err != nil {
		e.logger.Warn("Page analysis failed.", zap.String("url", pageURL), zap.Error(err))
		return
	}
	if strings.TrimSpace(analysis) == "" {
		return
	}

	err = e.memory.Add(ctx, uuid.NewString(), analysis, map[string]any{
		"type": schemas.MemoryTypeUIAnalysis,
		"url":  pageURL,
	})
	if err != nil {
		e.logger.Warn("Failed to store page analysis in memory.", zap.Error(err))
	}

	e.persistLearnedInfo(ctx, pageURL, analysis)
}

// drainInteractions routes every not-yet-seen captured interaction through
// processInteraction. Completion order can differ from capture order, so
// draining tracks ids rather than offsets.
func (e *Engine) drainInteractions(ctx context.Context) {
	for _, interaction := range e.session.Interactions() {
		e.mu.Lock()
		_, dup := e.seen[interaction.ID]
		if !dup {
			e.seen[interaction.ID] = struct{}{}
		}
		e.mu.Unlock()
		if dup {
			continue
		}
		e.processInteraction(ctx, interaction)
	}
}

// processInteraction enriches one captured call with analyzer notes, indexes
// it in memory, persists it, and stores a replay snippet. Each stage is
// independent: a failure is logged and the rest still run.
func (e *Engine) processInteraction(ctx context.Context, interaction schemas.APIInteraction) {
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}

	e.logger.Info("Processing captured interaction.", zap.String("method", interaction.Method), zap.String("url", interaction.URL))

	notes, err := e.analyzer.AnalyzeInteraction(ctx, &interaction)
	if err != nil {
		e.logger.Warn("Interaction analysis failed.", zap.String("url", interaction.URL), zap.Error(err))
	} else {
		interaction.Notes = notes
	}

	e.mu.Lock()
	e.captured = append(e.captured, interaction)
	e.mu.Unlock()

	text := strings.TrimSpace(fmt.Sprintf("%s -> %d\n%s", interaction.RequestLine(), interaction.StatusCode, interaction.Notes))
	err = e.memory.Add(ctx, interaction.ID, text, map[string]any{
		"type":   schemas.MemoryTypeAPIRequest,
		"method": interaction.Method,
		"url":    interaction.URL,
		"status": interaction.StatusCode,
	})
	if err != nil {
		e.logger.Warn("Failed to store interaction in memory.", zap.String("url", interaction.URL), zap.Error(err))
	}

	e.persistInteraction(ctx, &interaction)
	e.rememberReplay(ctx, &interaction)
}

// persistInteraction writes one capture to long-term storage through a
// short-lived session. Disabled persistence is skipped silently.
func (e *Engine) persistInteraction(ctx context.Context, interaction *schemas.APIInteraction) {
	sess, err := e.factory(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrPersistenceDisabled) {
			e.logger.Warn("Could not open persistence session.", zap.Error(err))
		}
		return
	}
	defer sess.Close()

	if err := sess.InsertAPIRequest(ctx, interaction); err != nil {
		e.logger.Warn("Failed to persist interaction.", zap.String("url", interaction.URL), zap.Error(err))
	}
}

func (e *Engine) persistLearnedInfo(ctx context.Context, topic, content string) {
	sess, err := e.factory(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrPersistenceDisabled) {
			e.logger.Warn("Could not open persistence session.", zap.Error(err))
		}
		return
	}
	defer sess.Close()

	info := &schemas.LearnedInfo{
		Topic:   topic,
		Content: content,
		Source:  "ui_analysis",
	}
	if err := sess.InsertLearnedInfo(ctx, info); err != nil {
		e.logger.Warn("Failed to persist learned info.", zap.String("topic", topic), zap.Error(err))
	}
}

// rememberReplay generates a replay snippet for a capture and stores it in
// memory next to the interaction record.
func (e *Engine) rememberReplay(ctx context.Context, interaction *schemas.APIInteraction) {
	snippet, err := e.codegen.GenerateAPIReplayCode(ctx, interaction)
	if err != nil {
		e.logger.Warn("Replay code generation failed.", zap.String("url", interaction.URL), zap.Error(err))
		return
	}

	text := fmt.Sprintf("Replay code for %s:\n%s", interaction.RequestLine(), snippet)
	err = e.memory.Add(ctx, interaction.ID+"-replay", text, map[string]any{
		"type":   schemas.MemoryTypeReplayCode,
		"method": interaction.Method,
		"url":    interaction.URL,
	})
	if err != nil {
		e.logger.Warn("Failed to store replay code in memory.", zap.String("url", interaction.URL), zap.Error(err))
	}
}

// rememberPlan stores the adopted plan so later goals can retrieve it.
func (e *Engine) rememberPlan(ctx context.Context, goal, plan string) {
	if strings.TrimSpace(plan) == "" {
		return
	}
	text := fmt.Sprintf("Plan for goal: %s\n%s", goal, plan)
	err := e.memory.Add(ctx, uuid.NewString(), text, map[string]any{
		"type": schemas.MemoryTypePlan,
		"goal": goal,
	})
	if err != nil {
		e.logger.Debug("Failed to store plan in memory.", zap.Error(err))
	}
}
