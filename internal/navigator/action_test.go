// File: internal/navigator/action_test.go
package navigator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPlan(t *testing.T) {
	plan := `Here is the plan:
1. NAVIGATE https://example.com
2) CLICK #login

- TYPE #user :: ada
* SCROLL
   3.   ANALYZE
`
	steps := SplitPlan(plan)
	require.Equal(t, []string{
		"Here is the plan:",
		"NAVIGATE https://example.com",
		"CLICK #login",
		"TYPE #user :: ada",
		"SCROLL",
		"ANALYZE",
	}, steps)
}

func TestSplitPlanEmpty(t *testing.T) {
	assert.Empty(t, SplitPlan(""))
	assert.Empty(t, SplitPlan("  \n\n  \n"))
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Action
		ok   bool
	}{
		{
			name: "navigate",
			line: "NAVIGATE https://example.com/a?b=c",
			want: Action{Type: ActionNavigate, Value: "https://example.com/a?b=c"},
			ok:   true,
		},
		{
			name: "navigate lowercase keyword",
			line: "navigate https://example.com",
			want: Action{Type: ActionNavigate, Value: "https://example.com"},
			ok:   true,
		},
		{
			name: "navigate without url",
			line: "NAVIGATE",
			ok:   false,
		},
		{
			name: "click",
			line: "CLICK button.submit",
			want: Action{Type: ActionClick, Selector: "button.submit"},
			ok:   true,
		},
		{
			name: "click without selector",
			line: "CLICK",
			ok:   false,
		},
		{
			name: "type with text",
			line: "TYPE #search :: best coffee",
			want: Action{Type: ActionTypeText, Selector: "#search", Value: "best coffee"},
			ok:   true,
		},
		{
			name: "type with empty text clears the field",
			line: "TYPE #search ::",
			want: Action{Type: ActionTypeText, Selector: "#search", Value: ""},
			ok:   true,
		},
		{
			name: "type without separator",
			line: "TYPE #search best coffee",
			ok:   false,
		},
		{
			name: "submit",
			line: "SUBMIT form#login",
			want: Action{Type: ActionSubmit, Selector: "form#login"},
			ok:   true,
		},
		{
			name: "scroll",
			line: "SCROLL",
			want: Action{Type: ActionScroll},
			ok:   true,
		},
		{
			name: "scroll with ignored direction",
			line: "SCROLL down",
			want: Action{Type: ActionScroll},
			ok:   true,
		},
		{
			name: "wait",
			line: "WAIT 3",
			want: Action{Type: ActionWait, Seconds: 3},
			ok:   true,
		},
		{
			name: "wait with non-numeric argument",
			line: "WAIT a while",
			ok:   false,
		},
		{
			name: "wait with negative seconds",
			line: "WAIT -1",
			ok:   false,
		},
		{
			name: "analyze",
			line: "ANALYZE",
			want: Action{Type: ActionAnalyze},
			ok:   true,
		},
		{
			name: "prose is not an action",
			line: "Look around the page and decide",
			ok:   false,
		},
		{
			name: "empty line",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseStep(tt.line)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			tt.want.Raw = tt.line
			assert.Equal(t, tt.want, got)
		})
	}
}
