// Package agent implements the conversational core: the turn
// synthesizer that prepares model input from stored history, and the
// control loop that alternates model calls with tool execution.
package agent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/astralabs/astra/internal/llm"
	"github.com/astralabs/astra/internal/memory"
	"github.com/astralabs/astra/internal/prompts"
	"github.com/astralabs/astra/internal/tools"
)

// greetingFallback is appended as a synthetic user turn when filtering
// leaves nothing but the system turn. Models reject single-turn
// requests with no user content.
const greetingFallback = "Hello"

// Synthesize converts stored conversation history into the message
// sequence sent to the model. It is a pure filter-and-rewrite pass:
// ordering is preserved, nothing is persisted, and calling it twice on
// the same history yields identical output.
//
// Rules applied, in order:
//   - a synthetic system turn (persona + current date/time + directives)
//     always leads;
//   - user turns with only whitespace are dropped;
//   - assistant turns are kept when they carry content or tool calls,
//     dropped when they carry neither;
//   - tool-result turns must resolve their tool_call_id against an
//     earlier assistant turn's tool calls or they are dropped; calendar
//     results are rewritten into a rendering-instruction prompt;
//   - if no real turn survives, a synthetic greeting turn is appended.
func Synthesize(turns []memory.Turn, now time.Time) []llm.Message {
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: prompts.SystemPrompt(now),
	}}

	callMap := buildToolCallMap(turns)

	for _, turn := range turns {
		switch turn.Role {
		case llm.RoleUser:
			content := strings.TrimSpace(turn.Content)
			if content == "" {
				continue
			}
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: content})

		case llm.RoleAssistant:
			if strings.TrimSpace(turn.Content) == "" && len(turn.ToolCalls) == 0 {
				// A synthesis artifact, not real history.
				continue
			}
			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   turn.Content,
				ToolCalls: turn.ToolCalls,
			})

		case llm.RoleTool:
			if turn.ToolCallID == "" {
				continue
			}
			toolName, ok := callMap[turn.ToolCallID]
			if !ok {
				continue
			}
			content := turn.Content
			if toolName == tools.CalendarToolName {
				content = rewriteCalendarPayload(content)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: turn.ToolCallID,
				ToolName:   toolName,
			})
		}
	}

	if len(messages) == 1 {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: greetingFallback})
	}

	return messages
}

// buildToolCallMap indexes every tool call issued by assistant turns,
// mapping call ID to tool name.
func buildToolCallMap(turns []memory.Turn) map[string]string {
	m := make(map[string]string)
	for _, turn := range turns {
		if turn.Role != llm.RoleAssistant {
			continue
		}
		for _, tc := range turn.ToolCalls {
			m[tc.ID] = tc.Name
		}
	}
	return m
}

// rewriteCalendarPayload replaces a raw calendar tool result with a
// rendering-instruction prompt. The model receives the event data plus
// explicit formatting directives instead of bare JSON, which produces
// far more consistent replies. Payloads that don't parse as event data
// pass through unchanged.
func rewriteCalendarPayload(payload string) string {
	var records []struct {
		Summary string `json:"summary"`
		Start   string `json:"start"`
		End     string `json:"end"`
		AllDay  bool   `json:"is_all_day"`
	}
	if err := json.Unmarshal([]byte(payload), &records); err == nil {
		events := make([]prompts.CalendarEvent, 0, len(records))
		for _, rec := range records {
			events = append(events, prompts.CalendarEvent{
				Summary: rec.Summary,
				Start:   rec.Start,
				End:     rec.End,
			})
		}
		return prompts.SummarizeCalendarEvents(events)
	}

	// An {"error": ...} payload means the lookup failed; tell the model
	// to inform the user rather than showing it raw JSON.
	var errObj map[string]any
	if err := json.Unmarshal([]byte(payload), &errObj); err == nil {
		if _, hasError := errObj["error"]; hasError {
			return prompts.CalendarErrorPrompt
		}
	}

	return payload
}
