// File: internal/brain/brain.go

// Package brain holds the reasoning components that sit between the
// orchestrator and the inference client: a task planner, a code assistant,
// and an API analyzer. Each component owns its prompts and its model role;
// all of them share the single inference.Client handed in by the caller.
package brain

const (
	// pageContentCap bounds how much page text is embedded in planning
	// prompts before the model's context fills up with boilerplate HTML.
	pageContentCap = 1500

	// bodyCap bounds request and response bodies quoted in analysis prompts.
	bodyCap = 1000

	// uiContentCap bounds page text quoted in page-description prompts.
	// Wider than the planning cap; the describer's whole job is the page.
	uiContentCap = 3000

	// historyWindow is how many recent API calls the planner gets to see.
	historyWindow = 5
)

// truncate caps s at limit bytes and marks the cut with an ellipsis. Simple
// byte truncation; a clipped rune at the boundary is harmless in prompt text.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	return s[:limit] + "..."
}
