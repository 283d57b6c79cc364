package memory

import (
	"path/filepath"
	"testing"

	"github.com/astralabs/astra/internal/llm"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "astra.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndGetTurns(t *testing.T) {
	store := newTestStore(t)
	convID := "telegram:123"

	if err := store.AppendTurn(convID, NewUserTurn("hello")); err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}
	if err := store.AppendTurn(convID, Turn{Role: llm.RoleAssistant, Content: "hi there"}); err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}

	turns, err := store.GetTurns(convID)
	if err != nil {
		t.Fatalf("GetTurns() error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != llm.RoleUser || turns[0].Content != "hello" {
		t.Errorf("first turn = %+v", turns[0])
	}
	if turns[1].Role != llm.RoleAssistant || turns[1].Content != "hi there" {
		t.Errorf("second turn = %+v", turns[1])
	}
	if turns[0].ID == "" || turns[0].Timestamp.IsZero() {
		t.Error("store did not assign turn ID and timestamp")
	}
}

func TestTurnOrderingIsStable(t *testing.T) {
	store := newTestStore(t)
	convID := "telegram:123"

	// Tool results can land within the same clock tick; ordering must
	// still follow insertion order.
	contents := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, c := range contents {
		if err := store.AppendTurn(convID, NewUserTurn(c)); err != nil {
			t.Fatalf("AppendTurn(%q) error: %v", c, err)
		}
	}

	turns, err := store.GetTurns(convID)
	if err != nil {
		t.Fatalf("GetTurns() error: %v", err)
	}
	if len(turns) != len(contents) {
		t.Fatalf("expected %d turns, got %d", len(contents), len(turns))
	}
	for i, c := range contents {
		if turns[i].Content != c {
			t.Errorf("turn[%d] = %q, want %q", i, turns[i].Content, c)
		}
	}
}

func TestToolCallsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	convID := "telegram:123"

	turn := NewAssistantTurn(llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "list_calendar_events", Arguments: map[string]any{"time_min": "2026-08-28T00:00:00Z"}},
		},
	})
	if err := store.AppendTurn(convID, turn); err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}
	if err := store.AppendTurn(convID, NewToolTurn("call-1", "list_calendar_events", `{"events":[]}`)); err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}

	turns, err := store.GetTurns(convID)
	if err != nil {
		t.Fatalf("GetTurns() error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}

	if len(turns[0].ToolCalls) != 1 {
		t.Fatalf("assistant turn lost its tool calls: %+v", turns[0])
	}
	tc := turns[0].ToolCalls[0]
	if tc.ID != "call-1" || tc.Name != "list_calendar_events" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Arguments["time_min"] != "2026-08-28T00:00:00Z" {
		t.Errorf("tool call arguments = %v", tc.Arguments)
	}

	if turns[1].ToolCallID != "call-1" || turns[1].ToolName != "list_calendar_events" {
		t.Errorf("tool turn correlation = %+v", turns[1])
	}
}

func TestGetTurnsUnknownConversation(t *testing.T) {
	store := newTestStore(t)

	turns, err := store.GetTurns("telegram:999")
	if err != nil {
		t.Fatalf("GetTurns() error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty slice, got %d turns", len(turns))
	}
}

func TestGetConversation(t *testing.T) {
	store := newTestStore(t)
	convID := "telegram:123"

	conv, err := store.GetConversation(convID)
	if err != nil {
		t.Fatalf("GetConversation() error: %v", err)
	}
	if conv != nil {
		t.Fatal("expected nil for unknown conversation")
	}

	if err := store.AppendTurn(convID, NewUserTurn("hello")); err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}

	conv, err = store.GetConversation(convID)
	if err != nil {
		t.Fatalf("GetConversation() error: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation after append")
	}
	if conv.ID != convID || len(conv.Turns) != 1 {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestListConversations(t *testing.T) {
	store := newTestStore(t)

	if err := store.AppendTurn("telegram:1", NewUserTurn("first")); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn("telegram:2", NewUserTurn("second")); err != nil {
		t.Fatal(err)
	}

	convs, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations() error: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	for _, conv := range convs {
		if len(conv.Turns) != 0 {
			t.Errorf("ListConversations should not load transcripts, got %d turns", len(conv.Turns))
		}
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	convID := "telegram:123"

	if err := store.AppendTurn(convID, NewUserTurn("hello")); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(convID); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	conv, err := store.GetConversation(convID)
	if err != nil {
		t.Fatalf("GetConversation() error: %v", err)
	}
	if conv != nil {
		t.Error("conversation should be gone after Clear")
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)

	if err := store.AppendTurn("telegram:1", NewUserTurn("hello")); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn("telegram:1", Turn{Role: llm.RoleAssistant, Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	stats := store.Stats()
	if stats["conversations"] != 1 {
		t.Errorf("conversations = %v, want 1", stats["conversations"])
	}
	if stats["turns"] != 2 {
		t.Errorf("turns = %v, want 2", stats["turns"])
	}
}
