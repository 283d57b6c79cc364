package llm

import "context"

// Client is the interface that all LLM providers implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// The tools slice uses OpenAI-style function definitions; providers
	// convert to their native schema.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable and credentials work.
	Ping(ctx context.Context) error
}
