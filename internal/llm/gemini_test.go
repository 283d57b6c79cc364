package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConvertToGemini(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "You are a helpful secretary."},
		{Role: RoleUser, Content: "what's on my calendar today?"},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{
			{ID: "call-1", Name: "list_calendar_events", Arguments: map[string]any{"time_min": "x"}},
		}},
		{Role: RoleTool, Content: `{"events":[]}`, ToolCallID: "call-1", ToolName: "list_calendar_events"},
		{Role: RoleAssistant, Content: "Your calendar is empty."},
	}

	contents, system := convertToGemini(messages)

	if system != "You are a helpful secretary." {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 4 {
		t.Fatalf("expected 4 contents, got %d", len(contents))
	}

	if contents[0].Role != "user" || contents[0].Parts[0].Text != "what's on my calendar today?" {
		t.Errorf("first content wrong: %+v", contents[0])
	}

	// Assistant tool call turn becomes a model functionCall part.
	if contents[1].Role != "model" {
		t.Errorf("tool-call turn role = %q, want model", contents[1].Role)
	}
	fc := contents[1].Parts[0].FunctionCall
	if fc == nil || fc.Name != "list_calendar_events" {
		t.Fatalf("functionCall part missing or wrong: %+v", contents[1].Parts)
	}

	// Tool result turn becomes a user functionResponse keyed by name,
	// with the string payload wrapped in an object.
	if contents[2].Role != "user" {
		t.Errorf("tool-result turn role = %q, want user", contents[2].Role)
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "list_calendar_events" {
		t.Fatalf("functionResponse part missing or wrong: %+v", contents[2].Parts)
	}
	if fr.Response["result"] != `{"events":[]}` {
		t.Errorf("functionResponse payload = %v", fr.Response)
	}

	if contents[3].Role != "model" || contents[3].Parts[0].Text != "Your calendar is empty." {
		t.Errorf("final assistant content wrong: %+v", contents[3])
	}
}

func TestConvertToGemini_MultipleSystemTurns(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleSystem, Content: "directives"},
		{Role: RoleUser, Content: "hi"},
	}

	contents, system := convertToGemini(messages)
	if system != "persona\n\ndirectives" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 1 {
		t.Errorf("expected 1 content, got %d", len(contents))
	}
}

func TestConvertToolsToGemini(t *testing.T) {
	tools := []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "list_calendar_events",
				"description": "Fetch calendar events.",
				"parameters": map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
		{"broken": "entry"},
	}

	got := convertToolsToGemini(tools)
	if len(got) != 1 {
		t.Fatalf("expected 1 tool group, got %d", len(got))
	}
	if len(got[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(got[0].FunctionDeclarations))
	}
	if got[0].FunctionDeclarations[0].Name != "list_calendar_events" {
		t.Errorf("declaration name = %q", got[0].FunctionDeclarations[0].Name)
	}

	if convertToolsToGemini(nil) != nil {
		t.Error("nil tools should produce nil declarations")
	}
}

func TestGeminiChat_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-pro:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be brief" {
			t.Errorf("systemInstruction not forwarded: %+v", req.SystemInstruction)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "Hello there."}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     12,
				"candidatesTokenCount": 4,
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", server.URL, discardLogger())
	resp, err := client.Chat(context.Background(), "gemini-2.5-pro", []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if resp.Message.Content != "Hello there." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Message.Role != RoleAssistant {
		t.Errorf("role = %q", resp.Message.Role)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 4 {
		t.Errorf("tokens = %d/%d, want 12/4", resp.InputTokens, resp.OutputTokens)
	}
}

func TestGeminiChat_ToolCallResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role": "model",
					"parts": []map[string]any{{
						"functionCall": map[string]any{
							"name": "list_calendar_events",
							"args": map[string]any{"time_min": "2026-08-28T00:00:00Z"},
						},
					}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", server.URL, discardLogger())
	resp, err := client.Chat(context.Background(), "gemini-2.5-pro", []Message{
		{Role: RoleUser, Content: "what's on my calendar?"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	tc := resp.Message.ToolCalls[0]
	if tc.Name != "list_calendar_events" {
		t.Errorf("tool name = %q", tc.Name)
	}
	if tc.ID == "" {
		t.Error("tool call ID should be synthesized, got empty")
	}
	if tc.Arguments["time_min"] != "2026-08-28T00:00:00Z" {
		t.Errorf("arguments = %v", tc.Arguments)
	}
}

func TestGeminiChat_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", server.URL, discardLogger())
	_, err := client.Chat(context.Background(), "gemini-2.5-pro", []Message{
		{Role: RoleUser, Content: "hi"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGeminiChat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", server.URL, discardLogger())
	_, err := client.Chat(context.Background(), "gemini-2.5-pro", []Message{
		{Role: RoleUser, Content: "hi"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestMultiClientRouting(t *testing.T) {
	gemini := &fakeClient{name: "gemini"}
	ollama := &fakeClient{name: "ollama"}

	multi := NewMultiClient(ollama)
	multi.AddProvider("gemini", gemini)
	multi.AddProvider("ollama", ollama)
	multi.AddModel("gemini-2.5-pro", "gemini")
	multi.AddModel("qwen3:8b", "ollama")

	tests := []struct {
		model        string
		wantProvider string
	}{
		{"gemini-2.5-pro", "gemini"},
		{"qwen3:8b", "ollama"},
		{"unknown-model", "ollama"}, // falls back
	}

	for _, tt := range tests {
		resp, err := multi.Chat(context.Background(), tt.model, nil, nil)
		if err != nil {
			t.Fatalf("Chat(%q) error: %v", tt.model, err)
		}
		if resp.Model != tt.wantProvider {
			t.Errorf("Chat(%q) routed to %q, want %q", tt.model, resp.Model, tt.wantProvider)
		}
	}
}

// fakeClient records which provider served the request via the Model field.
type fakeClient struct {
	name string
}

func (f *fakeClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	return &ChatResponse{Model: f.name}, nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
