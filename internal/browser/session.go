// File: internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
)

// ErrSessionClosed is returned for any operation attempted after Close.
var ErrSessionClosed = errors.New("browser session is closed")

const (
	actionTimeout     = 15 * time.Second
	defaultNavTimeout = 45 * time.Second
	defaultQuiet      = 2 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Session drives one Chrome instance over the DevTools protocol. It is
// constructed cold: the process launches on Start (or lazily on first use)
// and every navigation or input helper funnels through the same tab. A
// Session is safe for concurrent use and is closed exactly once by its owner.
type Session struct {
	cfg        config.BrowserConfig
	contentCap int
	logger     *zap.Logger

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once

	mu            sync.RWMutex
	closed        bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	harvester     *harvester
}

// NewSession builds an unstarted session from configuration. Nothing spawns a
// process or touches the network until Start.
func NewSession(cfg *config.Config, logger *zap.Logger) *Session {
	return &Session{
		cfg:        cfg.Browser,
		contentCap: cfg.Navigation.ContentCap,
		logger:     logger.Named("browser"),
	}
}

// Start launches the browser, enables CDP network events and attaches the
// harvester. Subsequent calls return the original launch result.
func (s *Session) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.startErr = s.launch(ctx)
	})
	return s.startErr
}

func (s *Session) launch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	// The allocator parents on Background: the browser's lifetime belongs to
	// the session, not to whichever context happened to start it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildExecOptions(s.cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	h := newHarvester(s.cfg, s.logger)
	h.attach(browserCtx)

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.harvester = h
	s.mu.Unlock()

	s.logger.Info("Launching browser.",
		zap.Bool("headless", s.cfg.Headless),
		zap.Int("window_width", s.cfg.WindowWidth),
		zap.Int("window_height", s.cfg.WindowHeight))

	// The first Run spawns the process.
	launchCtx, cancel := combineContext(browserCtx, ctx)
	defer cancel()
	timedCtx, timedCancel := context.WithTimeout(launchCtx, s.navigationTimeout())
	defer timedCancel()

	if err := chromedp.Run(timedCtx, network.Enable()); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	return nil
}

// Close shuts down the browser and releases its contexts. It is idempotent
// and safe on a session that never started; shutdown problems are logged, not
// returned.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		h := s.harvester
		browserCtx := s.browserCtx
		browserCancel := s.browserCancel
		allocCancel := s.allocCancel
		s.mu.Unlock()

		if browserCtx == nil {
			// Never started, nothing to tear down.
			return
		}

		s.logger.Info("Closing browser session.")

		if h != nil {
			h.stop()
		}

		// chromedp.Cancel blocks until the process exits, so bound it.
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(browserCtx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
			}
		case <-time.After(shutdownTimeout):
			s.logger.Warn("Browser shutdown timed out, cancelling contexts.",
				zap.Duration("timeout", shutdownTimeout))
		}

		browserCancel()
		allocCancel()
	})
	return nil
}

// Navigate loads url in the active tab and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))
	err := s.run(ctx, s.navigationTimeout(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Location reports the URL currently loaded in the tab.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, actionTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// PageText returns the visible text of the rendered document with script and
// style content removed, whitespace collapsed and length capped by
// configuration.
func (s *Session) PageText(ctx context.Context) (string, error) {
	var raw string
	if err := s.run(ctx, actionTimeout, chromedp.OuterHTML("html", &raw, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot page: %w", err)
	}
	return visibleText(raw, s.contentCap), nil
}

// Click waits for the element to become visible, then clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	err := s.run(ctx, actionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Type clears the target field and types text into it.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	err := s.run(ctx, actionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

// Submit submits the form owning the selected element.
func (s *Session) Submit(ctx context.Context, selector string) error {
	if err := s.run(ctx, actionTimeout, chromedp.Submit(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("submit %q: %w", selector, err)
	}
	return nil
}

// ScrollBy scrolls the viewport vertically by the given pixel delta.
func (s *Session) ScrollBy(ctx context.Context, pixels int) error {
	expr := fmt.Sprintf("window.scrollBy(0, %d)", pixels)
	if err := s.run(ctx, actionTimeout, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("scroll page: %w", err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, actionTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Interactions returns the request/response pairs captured since Start, in
// capture order. Before Start it returns an empty slice.
func (s *Session) Interactions() []schemas.APIInteraction {
	s.mu.RLock()
	h := s.harvester
	s.mu.RUnlock()

	if h == nil {
		return []schemas.APIInteraction{}
	}
	return h.Interactions()
}

// WaitNetworkIdle blocks until the page has made no requests for the quiet
// period. quiet <= 0 falls back to the configured default.
func (s *Session) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	if quiet <= 0 {
		quiet = s.cfg.QuietPeriod
		if quiet <= 0 {
			quiet = defaultQuiet
		}
	}

	s.mu.RLock()
	closed := s.closed
	h := s.harvester
	s.mu.RUnlock()

	if closed {
		return ErrSessionClosed
	}
	if h == nil {
		// Nothing started, nothing in flight.
		return nil
	}
	return h.WaitNetworkIdle(ctx, quiet)
}

// run executes chromedp actions against the live browser with a bounded
// timeout, starting the browser on first use.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	closed := s.closed
	browserCtx := s.browserCtx
	s.mu.RUnlock()

	if closed {
		return ErrSessionClosed
	}

	runCtx, cancel := combineContext(browserCtx, ctx)
	defer cancel()
	timedCtx, timedCancel := context.WithTimeout(runCtx, timeout)
	defer timedCancel()

	return chromedp.Run(timedCtx, actions...)
}

func (s *Session) navigationTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

// buildExecOptions translates browser configuration into chromedp allocator
// options.
func buildExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("enable-automation", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}

	for _, arg := range cfg.Args {
		key, value := splitArg(arg)
		opts = append(opts, chromedp.Flag(key, value))
	}
	return opts
}

// splitArg parses one extra browser argument. "key=value" arguments become
// string flags, bare arguments boolean ones. Leading dashes are stripped so
// "--disable-dev-shm-usage" and "disable-dev-shm-usage" are equivalent.
func splitArg(arg string) (string, any) {
	arg = strings.TrimLeft(arg, "-")
	if key, value, found := strings.Cut(arg, "="); found {
		return key, value
	}
	return arg, true
}

// combineContext derives a context from primary that also ends when secondary
// does. chromedp requires its own context chain as the parent, so the caller
// context has to be watched from the side.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
