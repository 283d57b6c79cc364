// Package llm provides LLM provider clients behind a single interface.
package llm

import (
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message roles. Every turn in a conversation carries exactly one of these.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single chat turn sent to or received from a model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result turns
	ToolName   string     `json:"tool_name,omitempty"`    // set on tool-result turns
}

// ToolCall is a tool invocation requested by the model. Fields are flat
// rather than nested under a "function" wrapper; wire formats that nest
// (or that omit IDs entirely, like Gemini) are converted at the provider
// boundary.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from any provider. Wire format
// conversion happens in gemini.go and ollama.go.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message

	// Token usage (provider-neutral; zero when the provider omits it)
	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the assistant message requests tool execution.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}
