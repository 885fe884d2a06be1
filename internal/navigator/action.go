// File: internal/navigator/action.go
package navigator

import (
	"regexp"
	"strconv"
	"strings"
)

// ActionType enumerates the operations a plan step can request.
type ActionType string

const (
	ActionNavigate ActionType = "NAVIGATE"
	ActionClick    ActionType = "CLICK"
	ActionTypeText ActionType = "TYPE"
	ActionSubmit   ActionType = "SUBMIT"
	ActionScroll   ActionType = "SCROLL"
	ActionWait     ActionType = "WAIT"
	ActionAnalyze  ActionType = "ANALYZE"
)

// Action is one executable plan step. Raw keeps the original line for logs
// and recovery prompts.
type Action struct {
	Type     ActionType
	Selector string
	Value    string
	Seconds  int
	Raw      string
}

// stepPrefixRegex strips the list decorations models put in front of steps:
// "1. ", "2)", "- ", "* ".
var stepPrefixRegex = regexp.MustCompile(`^(?:\d+[.)]\s*|[-*]\s+)`)

func trimStepPrefix(line string) string {
	for {
		trimmed := strings.TrimSpace(stepPrefixRegex.ReplaceAllString(line, ""))
		if trimmed == line {
			return trimmed
		}
		line = trimmed
	}
}

// SplitPlan breaks a model plan into candidate step lines: one per line,
// list prefixes trimmed, empties dropped.
func SplitPlan(plan string) []string {
	var steps []string
	for _, line := range strings.Split(plan, "\n") {
		line = trimStepPrefix(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		steps = append(steps, line)
	}
	return steps
}

// ParseStep interprets one step line against the action grammar:
//
//	NAVIGATE <url>
//	CLICK <selector>
//	TYPE <selector> :: <text>
//	SUBMIT <selector>
//	SCROLL
//	WAIT <seconds>
//	ANALYZE
//
// The boolean reports whether the line matched. Keywords are matched case
// insensitively because models drift.
func ParseStep(line string) (Action, bool) {
	keyword, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch ActionType(strings.ToUpper(keyword)) {
	case ActionNavigate:
		if rest == "" {
			return Action{}, false
		}
		return Action{Type: ActionNavigate, Value: rest, Raw: line}, true

	case ActionClick:
		if rest == "" {
			return Action{}, false
		}
		return Action{Type: ActionClick, Selector: rest, Raw: line}, true

	case ActionTypeText:
		selector, text, found := strings.Cut(rest, "::")
		selector = strings.TrimSpace(selector)
		if !found || selector == "" {
			return Action{}, false
		}
		return Action{Type: ActionTypeText, Selector: selector, Value: strings.TrimSpace(text), Raw: line}, true

	case ActionSubmit:
		if rest == "" {
			return Action{}, false
		}
		return Action{Type: ActionSubmit, Selector: rest, Raw: line}, true

	case ActionScroll:
		// Tolerate a direction argument; the engine only scrolls down.
		return Action{Type: ActionScroll, Raw: line}, true

	case ActionWait:
		secs, err := strconv.Atoi(rest)
		if err != nil || secs < 0 {
			return Action{}, false
		}
		return Action{Type: ActionWait, Seconds: secs, Raw: line}, true

	case ActionAnalyze:
		return Action{Type: ActionAnalyze, Raw: line}, true
	}

	return Action{}, false
}
