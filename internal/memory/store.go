// Package memory provides persistent conversation storage.
//
// Conversations are append-only transcripts keyed by chat identity
// (e.g. "telegram:123456789"). Every turn that reaches the model or
// comes back from it is recorded, including tool calls and tool
// results, so a conversation can be replayed to any provider after a
// restart.
package memory

import (
	"time"

	"github.com/astralabs/astra/internal/llm"
)

// Turn is a single stored conversation turn.
type Turn struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"` // system, user, assistant, tool
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Conversation holds the transcript of a single chat.
type Conversation struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the interface for conversation storage.
type Store interface {
	// AppendTurn appends a turn to a conversation, creating the
	// conversation if needed. The turn's ID and Timestamp are
	// assigned by the store.
	AppendTurn(conversationID string, turn Turn) error

	// GetTurns returns all turns of a conversation in insertion
	// order. Returns an empty slice for unknown conversations.
	GetTurns(conversationID string) ([]Turn, error)

	// GetConversation returns a conversation with its full
	// transcript, or nil if it does not exist.
	GetConversation(id string) (*Conversation, error)

	// ListConversations returns conversation metadata (no turns),
	// most recently updated first.
	ListConversations() ([]Conversation, error)

	// Clear removes a conversation and its turns.
	Clear(conversationID string) error

	// Stats returns storage statistics for the status endpoint.
	Stats() map[string]any
}

// NewUserTurn builds a user turn from message text.
func NewUserTurn(content string) Turn {
	return Turn{Role: llm.RoleUser, Content: content}
}

// NewAssistantTurn builds an assistant turn from a model response.
func NewAssistantTurn(msg llm.Message) Turn {
	return Turn{
		Role:      llm.RoleAssistant,
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
	}
}

// NewToolTurn builds a tool-result turn correlated to a tool call.
func NewToolTurn(callID, toolName, content string) Turn {
	return Turn{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: callID,
		ToolName:   toolName,
	}
}

// Message converts a stored turn to an LLM message.
func (t Turn) Message() llm.Message {
	return llm.Message{
		Role:       t.Role,
		Content:    t.Content,
		ToolCalls:  t.ToolCalls,
		ToolCallID: t.ToolCallID,
		ToolName:   t.ToolName,
	}
}
