// File: api/schemas/schemas.go
package schemas

import (
	"fmt"
	"time"
)

// MemoryType values distinguish the kinds of records held by the semantic
// memory index. Unknown types are valid data; consumers filter, never fail.
const (
	MemoryTypeAPIRequest = "api_request"
	MemoryTypeUIAnalysis = "ui_analysis"
	MemoryTypeReplayCode = "replay_code"
	MemoryTypePlan       = "plan"
)

// MemoryRecord is one result of a similarity search against the memory index.
type MemoryRecord struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Type returns the record's metadata type tag, or "" when untagged.
func (r *MemoryRecord) Type() string {
	if r.Metadata == nil {
		return ""
	}
	t, _ := r.Metadata["type"].(string)
	return t
}

// APIInteraction is one captured request/response pair observed on the wire
// during navigation. Notes is filled in after capture by the API analyzer.
type APIInteraction struct {
	ID              string            `json:"id"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	StatusCode      int               `json:"status_code"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	MimeType        string            `json:"mime_type,omitempty"`
	CapturedAt      time.Time         `json:"captured_at"`
	Notes           string            `json:"notes,omitempty"`
}

// RequestLine renders the interaction as "METHOD URL", the form used in
// planner history blocks and memory record texts.
func (a *APIInteraction) RequestLine() string {
	return fmt.Sprintf("%s %s", a.Method, a.URL)
}

// LearnedInfo is a unit of page knowledge persisted to long-term storage.
type LearnedInfo struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
