package agent

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/astralabs/astra/internal/llm"
	"github.com/astralabs/astra/internal/memory"
)

var testNow = time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)

func TestSynthesizeEmptyConversation(t *testing.T) {
	messages := Synthesize(nil, testNow)

	if len(messages) != 2 {
		t.Fatalf("expected system + greeting, got %d messages", len(messages))
	}
	if messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "Your name is Astra.") {
		t.Error("system message missing persona")
	}
	if messages[1].Role != llm.RoleUser || messages[1].Content != "Hello" {
		t.Errorf("greeting message = %+v", messages[1])
	}
}

func TestSynthesizeFiltering(t *testing.T) {
	turns := []memory.Turn{
		{Role: llm.RoleUser, Content: "what's up today?"},
		{Role: llm.RoleUser, Content: "   \n\t "},          // whitespace-only: dropped
		{Role: llm.RoleAssistant, Content: ""},             // no content, no tool calls: dropped
		{Role: llm.RoleAssistant, Content: "Not much yet."},
	}

	messages := Synthesize(turns, testNow)

	if len(messages) != 3 {
		t.Fatalf("expected system + 2 surviving turns, got %d: %+v", len(messages), messages)
	}
	if messages[1].Content != "what's up today?" {
		t.Errorf("messages[1] = %+v", messages[1])
	}
	if messages[2].Content != "Not much yet." {
		t.Errorf("messages[2] = %+v", messages[2])
	}
}

func TestSynthesizeToolResultCorrelation(t *testing.T) {
	turns := []memory.Turn{
		{Role: llm.RoleUser, Content: "check my email"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "list_recent_emails", Arguments: map[string]any{}},
		}},
		{Role: llm.RoleTool, Content: "[]", ToolCallID: "c1"},
		{Role: llm.RoleTool, Content: "[]", ToolCallID: ""},        // missing id: dropped
		{Role: llm.RoleTool, Content: "[]", ToolCallID: "ghost"},   // unresolvable: dropped
	}

	messages := Synthesize(turns, testNow)

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(messages), messages)
	}

	toolMsg := messages[3]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "c1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if toolMsg.ToolName != "list_recent_emails" {
		t.Errorf("tool name not resolved from call map: %+v", toolMsg)
	}

	// Every retained tool result correlates to an earlier assistant
	// turn's tool call.
	callIDs := map[string]bool{}
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			callIDs[tc.ID] = true
		}
		if m.Role == llm.RoleTool && !callIDs[m.ToolCallID] {
			t.Errorf("tool result %q has no preceding tool call", m.ToolCallID)
		}
	}
}

func TestSynthesizeCalendarRewrite(t *testing.T) {
	payload := `[{"summary": "Team Sync", "start": "2025-06-17T14:00:00", "end": "2025-06-17T15:00:00", "is_all_day": false}]`
	turns := []memory.Turn{
		{Role: llm.RoleUser, Content: "What's on my calendar today?"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "list_calendar_events", Arguments: map[string]any{}},
		}},
		{Role: llm.RoleTool, Content: payload, ToolCallID: "c1"},
	}

	messages := Synthesize(turns, testNow)
	toolMsg := messages[len(messages)-1]

	if toolMsg.Content == payload {
		t.Fatal("calendar payload was not rewritten")
	}
	if !strings.Contains(toolMsg.Content, "- Team Sync (Starts: 2025-06-17T14:00:00, Ends: 2025-06-17T15:00:00)") {
		t.Errorf("rewritten prompt missing event data:\n%s", toolMsg.Content)
	}
	if !strings.Contains(toolMsg.Content, "human-readable format") {
		t.Errorf("rewritten prompt missing formatting directives:\n%s", toolMsg.Content)
	}
}

func TestSynthesizeCalendarErrorAndUnparseable(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantRewrite bool
		wantSame    bool
	}{
		{name: "error payload", payload: `{"error": "credentials expired"}`, wantRewrite: true},
		{name: "empty event list", payload: `[]`, wantRewrite: true},
		{name: "unparseable passes through", payload: `not json at all`, wantSame: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := []memory.Turn{
				{Role: llm.RoleUser, Content: "calendar?"},
				{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
					{ID: "c1", Name: "list_calendar_events"},
				}},
				{Role: llm.RoleTool, Content: tt.payload, ToolCallID: "c1"},
			}

			messages := Synthesize(turns, testNow)
			got := messages[len(messages)-1].Content

			if tt.wantSame && got != tt.payload {
				t.Errorf("payload should pass through unchanged, got %q", got)
			}
			if tt.wantRewrite && !strings.Contains(got, "error accessing the calendar") {
				t.Errorf("payload should be rewritten to the error prompt, got %q", got)
			}
		})
	}
}

func TestSynthesizeNonCalendarToolNotRewritten(t *testing.T) {
	payload := `[{"uid": 42, "subject": "lunch"}]`
	turns := []memory.Turn{
		{Role: llm.RoleUser, Content: "email?"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "list_recent_emails"},
		}},
		{Role: llm.RoleTool, Content: payload, ToolCallID: "c1"},
	}

	messages := Synthesize(turns, testNow)
	if got := messages[len(messages)-1].Content; got != payload {
		t.Errorf("email payload should pass through unchanged, got %q", got)
	}
}

func TestSynthesizeIdempotent(t *testing.T) {
	turns := []memory.Turn{
		{Role: llm.RoleUser, Content: "What's on my calendar today?"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "list_calendar_events"},
		}},
		{Role: llm.RoleTool, Content: `[{"summary": "Team Sync", "start": "a", "end": "b"}]`, ToolCallID: "c1"},
		{Role: llm.RoleAssistant, Content: "You have Team Sync."},
	}

	first := Synthesize(turns, testNow)
	second := Synthesize(turns, testNow)

	if !reflect.DeepEqual(first, second) {
		t.Error("synthesis is not idempotent over the same snapshot")
	}
}
