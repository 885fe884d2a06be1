// File: internal/inference/client.go
package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voidmaw/wayfarer/internal/config"
)

// ErrEmptyModel is returned when a role resolves to an empty model name.
// Configuration validation should prevent this, but the client still refuses
// to send a request the server would reject.
var ErrEmptyModel = errors.New("no model configured for role")

// Role selects which configured model serves a request. Callers pick the role
// that matches the shape of their task; the client maps it to a model name.
type Role string

const (
	RoleGeneral   Role = "general"
	RolePlanning  Role = "planning"
	RoleCoding    Role = "coding"
	RoleReasoning Role = "reasoning"
	RoleEmbedding Role = "embedding"
)

// Request is a single completion request. System may be empty.
type Request struct {
	Role   Role
	Prompt string
	System string
}

// Client is the inference surface the rest of the engine talks to. Generate
// returns the full completion text; Embed returns the embedding vector for
// the given text.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ollamaClient drives a local Ollama server through its API client. All
// requests pass through a shared rate limiter so parallel components cannot
// stampede the model server, and transient failures are retried with
// exponential backoff.
type ollamaClient struct {
	api     *api.Client
	cfg     config.OllamaConfig
	limiter *rate.Limiter
	logger  *zap.Logger

	// backoffFactory builds the retry policy per call. Tests swap this out
	// for a fast constant policy.
	backoffFactory func() backoff.BackOff
}

var _ Client = (*ollamaClient)(nil)

// NewClient builds a Client from configuration. The HTTP client is tuned for
// long-running model calls: no blanket timeout, only dial and handshake
// limits. Per-call deadlines come from cfg.RequestTimeout instead.
func NewClient(cfg config.OllamaConfig, logger *zap.Logger) (Client, error) {
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Model loads can hold the response open for minutes.
		ResponseHeaderTimeout: 0,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 0}

	return &ollamaClient{
		api:     api.NewClient(base, httpClient),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		logger:  logger.Named("Inference"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// modelFor resolves a role to its configured model name. Unknown roles fall
// back to the general model so ad hoc callers still get an answer.
func (c *ollamaClient) modelFor(role Role) (string, error) {
	var model string
	switch role {
	case RolePlanning:
		model = c.cfg.Models.Planning
	case RoleCoding:
		model = c.cfg.Models.Coding
	case RoleReasoning:
		model = c.cfg.Models.Reasoning
	case RoleEmbedding:
		model = c.cfg.Models.Embedding
	default:
		model = c.cfg.Models.General
	}
	if model == "" {
		return "", fmt.Errorf("role %q: %w", role, ErrEmptyModel)
	}
	return model, nil
}

// classifyError decides whether a failed call is worth retrying. Server
// overload and 5xx responses are transient; every other API status is
// permanent. Plain network errors stay retryable.
func (c *ollamaClient) classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	c.logger.Warn("Transient inference failure, retrying...", zap.Error(err))
	return err
}

func (c *ollamaClient) Generate(ctx context.Context, req Request) (string, error) {
	model, err := c.modelFor(req.Role)
	if err != nil {
		return "", err
	}

	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("Context cancelled while waiting for inference rate limiter", zap.Error(err))
		return "", err
	}

	stream := false
	apiReq := &api.GenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
	}

	start := time.Now()
	var out strings.Builder
	operation := func() error {
		out.Reset()
		if err := c.api.Generate(ctx, apiReq, func(resp api.GenerateResponse) error {
			out.WriteString(resp.Response)
			return nil
		}); err != nil {
			return c.classifyError(err)
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", fmt.Errorf("ollama generate (model %s): %w", model, err)
	}

	c.logger.Debug("Completion finished",
		zap.String("model", model),
		zap.String("role", string(req.Role)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_chars", out.Len()),
	)
	return strings.TrimSpace(out.String()), nil
}

func (c *ollamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	model, err := c.modelFor(RoleEmbedding)
	if err != nil {
		return nil, err
	}

	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("Context cancelled while waiting for inference rate limiter", zap.Error(err))
		return nil, err
	}

	var embedding []float64
	operation := func() error {
		resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{Model: model, Prompt: text})
		if err != nil {
			return c.classifyError(err)
		}
		embedding = resp.Embedding
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return nil, fmt.Errorf("ollama embeddings (model %s): %w", model, err)
	}
	return embedding, nil
}
