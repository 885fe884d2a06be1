// File: internal/brain/codeassist.go
package brain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/inference"
)

// codeBlockRegex extracts the body of the first fenced markdown block,
// whatever the language tag. \x60 is a backtick; Go raw strings cannot
// contain them.
var codeBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// CodeAssistant generates and repairs automation code through the coding
// model role.
type CodeAssistant struct {
	client inference.Client
	logger *zap.Logger
}

// NewCodeAssistant returns a code assistant speaking through the given
// inference client.
func NewCodeAssistant(client inference.Client, logger *zap.Logger) *CodeAssistant {
	return &CodeAssistant{
		client: client,
		logger: logger.Named("code-assistant"),
	}
}

// GenerateCode produces browser automation code for the described task. The
// model's answer is unwrapped from a markdown fence when it arrives in one.
func (c *CodeAssistant) GenerateCode(ctx context.Context, task string) (string, error) {
	prompt := fmt.Sprintf(`Write Go code using the chromedp library to accomplish the following browser automation task:

TASK: %s

Requirements:
1. Prefer stable selectors (IDs first, then CSS selectors).
2. Include sensible waits and error handling.
3. Return only the code, no explanations.`, task)

	out, err := c.client.Generate(ctx, inference.Request{
		Role:   inference.RoleCoding,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return stripCodeFence(out), nil
}

// FixCode regenerates code that failed at runtime, feeding the model the
// broken source and the error it produced.
func (c *CodeAssistant) FixCode(ctx context.Context, code, errMsg string) (string, error) {
	prompt := fmt.Sprintf(`The following automation code failed. Repair it.

CODE:
`+"```"+`
%s
`+"```"+`

ERROR: %s

Return only the corrected code, no explanations.`, code, errMsg)

	out, err := c.client.Generate(ctx, inference.Request{
		Role:   inference.RoleCoding,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fix code: %w", err)
	}
	return stripCodeFence(out), nil
}

// GenerateAPIReplayCode produces a standalone Go net/http program that
// replays a captured API call.
func (c *CodeAssistant) GenerateAPIReplayCode(ctx context.Context, interaction *schemas.APIInteraction) (string, error) {
	if interaction == nil {
		return "", errors.New("no interaction to replay")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "METHOD: %s\nURL: %s\n", interaction.Method, interaction.URL)
	if len(interaction.RequestHeaders) > 0 {
		sb.WriteString("HEADERS:\n")
		keys := make([]string, 0, len(interaction.RequestHeaders))
		for k := range interaction.RequestHeaders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, interaction.RequestHeaders[k])
		}
	}
	if interaction.RequestBody != "" {
		fmt.Fprintf(&sb, "BODY:\n%s\n", truncate(interaction.RequestBody, bodyCap))
	}

	prompt := fmt.Sprintf(`Write a standalone Go program that replays this captured HTTP request using only net/http from the standard library:

%s
The program must:
1. Send the method, URL, headers and body exactly as captured.
2. Print the response status and body to stdout.
3. Compile as a single main package.

Return only the Go code.`, sb.String())

	out, err := c.client.Generate(ctx, inference.Request{
		Role:   inference.RoleCoding,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate replay code: %w", err)
	}
	return stripCodeFence(out), nil
}

// stripCodeFence unwraps the first fenced markdown block when the model
// wrapped its answer in one, otherwise returns the text trimmed.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		matches := codeBlockRegex.FindStringSubmatch(content)
		if len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return content
}
