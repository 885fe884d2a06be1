// File: internal/browser/harvester.go
package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
)

const (
	networkIdleCheckFrequency = 250 * time.Millisecond
	bodyFetchTimeout          = 30 * time.Second
)

// bodyFetcher retrieves a response body for a finished request. The production
// implementation issues Network.getResponseBody against the browser target;
// tests substitute a stub.
type bodyFetcher func(ctx context.Context, id network.RequestID) ([]byte, error)

// capture tracks one request through its lifecycle, from EventRequestWillBeSent
// to LoadingFinished. Only XHR, Fetch and Document traffic is tracked.
type capture struct {
	id              string
	method          string
	url             string
	requestHeaders  map[string]string
	requestBody     string
	status          int
	responseHeaders map[string]string
	mimeType        string
	encoding        string
	body            []byte
	capturedAt      time.Time
	responded       bool
	finished        bool
	failed          bool
}

// harvester listens to CDP network events on a browser target and assembles
// completed request/response pairs. It also tracks in-flight request counts so
// callers can wait for the network to settle.
type harvester struct {
	logger        *zap.Logger
	captureBodies bool
	maxBodySize   int64
	fetchBody     bodyFetcher

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	order    []network.RequestID
	requests map[network.RequestID]*capture
	inflight map[network.RequestID]struct{}
	active   int64

	wg sync.WaitGroup
}

// capturedType reports whether a resource type carries API traffic worth
// keeping. Everything else (images, fonts, stylesheets) only counts toward the
// idle calculation.
func capturedType(t network.ResourceType) bool {
	switch t {
	case network.ResourceTypeXHR, network.ResourceTypeFetch, network.ResourceTypeDocument:
		return true
	default:
		return false
	}
}

func newHarvester(cfg config.BrowserConfig, logger *zap.Logger) *harvester {
	h := &harvester{
		logger:        logger.Named("harvester"),
		captureBodies: cfg.CaptureResponseBodies,
		maxBodySize:   cfg.MaxBodySize,
		requests:      make(map[network.RequestID]*capture),
		inflight:      make(map[network.RequestID]struct{}),
	}
	// Placeholder lifecycle until attach rebinds it to the browser context.
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// attach registers the event listener on a chromedp context and wires the
// default body fetcher against its target. Must be called once, after the
// browser context exists but before navigation.
func (h *harvester) attach(browserCtx context.Context) {
	release := h.cancel
	h.ctx, h.cancel = context.WithCancel(browserCtx)
	release()

	if h.fetchBody == nil {
		h.fetchBody = func(ctx context.Context, id network.RequestID) ([]byte, error) {
			c := chromedp.FromContext(browserCtx)
			if c == nil || c.Target == nil {
				return nil, errors.New("browser target not attached")
			}
			return network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
		}
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			h.handleRequestWillBeSent(ev)
		case *network.EventResponseReceived:
			h.handleResponseReceived(ev)
		case *network.EventLoadingFinished:
			h.handleLoadingFinished(ev)
		case *network.EventLoadingFailed:
			h.handleLoadingFailed(ev)
		}
	})
}

// stop halts event processing and waits briefly for outstanding body fetches.
func (h *harvester) stop() {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.logger.Warn("Timed out waiting for response body fetches; some captures may lack bodies.")
	}
}

// WaitNetworkIdle blocks until no request has been in flight for quiet, or a
// context expires. The timer only runs while the network is actually idle; any
// new request stops it until activity settles again.
func (h *harvester) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	h.logger.Debug("Waiting for network to become idle.", zap.Duration("quiet_period", quiet))

	timer := time.NewTimer(quiet)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()
	isIdle := false

	ticker := time.NewTicker(networkIdleCheckFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ctx.Done():
			return h.ctx.Err()
		case <-ticker.C:
			h.mu.RLock()
			active := h.active
			h.mu.RUnlock()

			if active > 0 {
				if isIdle {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					isIdle = false
				}
			} else if !isIdle {
				timer.Reset(quiet)
				isIdle = true
			}
		case <-timer.C:
			h.logger.Debug("Network is idle.")
			return nil
		}
	}
}

// Interactions returns every completed request/response pair in capture
// order. Response bodies are decompressed according to their Content-Encoding
// header; bodies that failed to decode are returned raw.
func (h *harvester) Interactions() []schemas.APIInteraction {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]schemas.APIInteraction, 0, len(h.order))
	for _, id := range h.order {
		c, ok := h.requests[id]
		if !ok || !c.finished || c.failed || !c.responded {
			continue
		}
		out = append(out, schemas.APIInteraction{
			ID:              c.id,
			Method:          c.method,
			URL:             c.url,
			RequestHeaders:  c.requestHeaders,
			RequestBody:     c.requestBody,
			StatusCode:      c.status,
			ResponseHeaders: c.responseHeaders,
			ResponseBody:    string(c.body),
			MimeType:        c.mimeType,
			CapturedAt:      c.capturedAt,
		})
	}
	return out
}

// -- Event handlers --

func (h *harvester) handleRequestWillBeSent(ev *network.EventRequestWillBeSent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Redirects re-emit this event under the same request id; count each id
	// once or the idle counter never drains.
	if _, seen := h.inflight[ev.RequestID]; !seen {
		h.inflight[ev.RequestID] = struct{}{}
		h.active++
	}

	if !capturedType(ev.Type) {
		return
	}

	c, exists := h.requests[ev.RequestID]
	if !exists {
		c = &capture{id: uuid.NewString(), capturedAt: time.Now()}
		h.requests[ev.RequestID] = c
		h.order = append(h.order, ev.RequestID)
	}

	// On a redirect chain the final request wins.
	c.method = ev.Request.Method
	c.url = ev.Request.URL
	c.requestHeaders = headerMap(ev.Request.Headers)
	if ev.WallTime != nil {
		c.capturedAt = ev.WallTime.Time()
	}

	if ev.Request.HasPostData && c.requestBody == "" {
		c.requestBody = decodePostData(ev.Request.PostDataEntries, h.logger, ev.RequestID)
	}
}

func (h *harvester) handleResponseReceived(ev *network.EventResponseReceived) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.requests[ev.RequestID]
	if !ok || ev.Response == nil {
		return
	}
	c.responded = true
	c.status = int(ev.Response.Status)
	c.mimeType = ev.Response.MimeType
	c.responseHeaders = headerMap(ev.Response.Headers)
	c.encoding = headerValue(ev.Response.Headers, "Content-Encoding")
}

func (h *harvester) handleLoadingFinished(ev *network.EventLoadingFinished) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.settle(ev.RequestID)

	c, ok := h.requests[ev.RequestID]
	if !ok {
		return
	}
	c.finished = true

	if h.captureBodies && c.responded && c.body == nil {
		h.wg.Add(1)
		go h.collectBody(ev.RequestID)
	}
}

func (h *harvester) handleLoadingFailed(ev *network.EventLoadingFailed) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.settle(ev.RequestID)

	if c, ok := h.requests[ev.RequestID]; ok {
		c.finished = true
		c.failed = true
		h.logger.Debug("Request failed during capture.",
			zap.String("url", c.url), zap.String("error", ev.ErrorText))
	}
}

// settle removes a request id from the in-flight set. Callers hold the lock.
func (h *harvester) settle(id network.RequestID) {
	if _, seen := h.inflight[id]; seen {
		delete(h.inflight, id)
		if h.active > 0 {
			h.active--
		}
	}
}

// collectBody fetches, decodes and size-checks a response body in the
// background. Runs on its own goroutine tracked by the WaitGroup.
func (h *harvester) collectBody(id network.RequestID) {
	defer h.wg.Done()

	fetchCtx, cancel := context.WithTimeout(h.ctx, bodyFetchTimeout)
	defer cancel()

	body, err := h.fetchBody(fetchCtx, id)

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.requests[id]
	if !ok {
		return
	}
	if err != nil {
		if h.ctx.Err() == nil {
			h.logger.Debug("Failed to fetch response body.",
				zap.String("url", c.url), zap.Error(err))
		}
		return
	}

	if h.maxBodySize > 0 && int64(len(body)) > h.maxBodySize {
		h.logger.Debug("Dropping oversized response body.",
			zap.String("url", c.url), zap.Int("size", len(body)), zap.Int64("cap", h.maxBodySize))
		return
	}

	if c.encoding != "" {
		decoded, err := decodeBody(body, c.encoding)
		if err != nil {
			h.logger.Debug("Failed to decode response body, keeping raw bytes.",
				zap.String("url", c.url), zap.String("encoding", c.encoding), zap.Error(err))
		} else {
			body = decoded
		}
	}

	if h.maxBodySize > 0 && int64(len(body)) > h.maxBodySize {
		h.logger.Debug("Dropping oversized decoded body.",
			zap.String("url", c.url), zap.Int("size", len(body)), zap.Int64("cap", h.maxBodySize))
		return
	}

	c.body = body
}

// -- CDP helpers --

// decodePostData reassembles a request body from its base64-encoded entries.
// Entries that fail to decode are used verbatim; some browser builds send the
// raw text.
func decodePostData(entries []*network.PostDataEntry, logger *zap.Logger, id network.RequestID) string {
	if len(entries) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			logger.Debug("Post data entry is not base64, using raw bytes.", zap.String("request_id", string(id)))
			buf.WriteString(entry.Bytes)
			continue
		}
		buf.Write(decoded)
	}
	return buf.String()
}

// headerMap flattens CDP headers into plain strings. Non-string values are
// rare and carry no API-level signal, so they are dropped.
func headerMap(headers network.Headers) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// headerValue performs a case-insensitive header lookup.
func headerValue(headers network.Headers, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
