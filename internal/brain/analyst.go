// File: internal/brain/analyst.go
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/inference"
)

const (
	// analysisFallback is returned when the reasoning model yields nothing
	// for an interaction. Callers treat it as a note, not a failure.
	analysisFallback = "Failed to analyze API request."

	// schemaFallback is returned when there are no interactions to infer a
	// schema from, or the model yields nothing.
	schemaFallback = "Failed to infer API schema."

	// noRequestsFallback is returned for an empty input set.
	noRequestsFallback = "No requests provided for schema inference."
)

// APIAnalyzer reverse-engineers captured API traffic through the reasoning
// model role.
type APIAnalyzer struct {
	client inference.Client
	logger *zap.Logger
}

// NewAPIAnalyzer returns an analyzer speaking through the given inference
// client.
func NewAPIAnalyzer(client inference.Client, logger *zap.Logger) *APIAnalyzer {
	return &APIAnalyzer{
		client: client,
		logger: logger.Named("api-analyzer"),
	}
}

// AnalyzeInteraction explains a single captured request and response pair:
// what the endpoint is for, how it authenticates, and how it could be
// replayed. An empty model response degrades to a fixed note so a capture is
// never lost over a moody model.
func (a *APIAnalyzer) AnalyzeInteraction(ctx context.Context, interaction *schemas.APIInteraction) (string, error) {
	if interaction == nil {
		return "", errors.New("no interaction to analyze")
	}

	prompt := fmt.Sprintf(`Analyze this captured API request and its response.

REQUEST: %s
REQUEST BODY:
%s

RESPONSE STATUS: %d
RESPONSE BODY:
%s

Answer:
1. What is the purpose of this endpoint?
2. What authentication mechanism does it use, if any?
3. What are the key parameters and what do they mean?
4. How could the request be replayed or automated?
5. Any security concerns or optimizations?`,
		interaction.RequestLine(),
		orEmpty(truncate(interaction.RequestBody, bodyCap)),
		interaction.StatusCode,
		orEmpty(truncate(interaction.ResponseBody, bodyCap)))

	out, err := a.client.Generate(ctx, inference.Request{
		Role:   inference.RoleReasoning,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze interaction: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		a.logger.Warn("Model returned an empty analysis.", zap.String("url", interaction.URL))
		return analysisFallback, nil
	}
	return out, nil
}

// DescribePage produces a structured reading of the current page for the
// memory index: what the page is for, what can be interacted with, and what
// it asks of the user. An empty model response comes back empty; the caller
// decides whether that is worth storing.
func (a *APIAnalyzer) DescribePage(ctx context.Context, pageURL, content string) (string, error) {
	if pageURL == "" {
		pageURL = noPageLoaded
	}

	prompt := fmt.Sprintf(`Analyze this webpage and identify its key interactive elements.

URL: %s

PAGE CONTENT:
%s

Provide a structured analysis covering:
1. The main purpose of this page.
2. Key interactive elements (buttons, forms, links) and their likely functions.
3. Navigation options available.
4. Any authentication or input requirements.
5. Overall page structure.`, pageURL, truncate(content, uiContentCap))

	out, err := a.client.Generate(ctx, inference.Request{
		Role:   inference.RoleReasoning,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe page: %w", err)
	}
	return out, nil
}

// InferAPISchema looks across a set of captured calls and describes the
// API's overall shape: endpoint patterns, parameters, auth and conventions.
func (a *APIAnalyzer) InferAPISchema(ctx context.Context, interactions []schemas.APIInteraction) (string, error) {
	if len(interactions) == 0 {
		return noRequestsFallback, nil
	}

	var sb strings.Builder
	for i, call := range interactions {
		fmt.Fprintf(&sb, "%d. %s -> %d\n", i+1, call.RequestLine(), call.StatusCode)
		if call.RequestBody != "" {
			fmt.Fprintf(&sb, "   Request body: %s\n", truncate(call.RequestBody, bodyCap))
		}
	}

	prompt := fmt.Sprintf(`Given these captured API requests from one site, infer the general API schema and patterns:

%s
Provide:
1. Endpoint patterns and parameter structures.
2. Common headers or authentication patterns.
3. Required versus optional parameters.
4. Any pagination conventions.
5. Any REST, GraphQL or RPC conventions in use.`, sb.String())

	out, err := a.client.Generate(ctx, inference.Request{
		Role:   inference.RoleReasoning,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to infer API schema: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return schemaFallback, nil
	}
	return out, nil
}

// orEmpty substitutes a visible placeholder for blank prompt sections.
func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
