// Package tools defines the capabilities the agent can invoke on the
// model's behalf: calendar lookup and email access.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknownTool is returned by Execute when the model requests a tool
// that is not registered. The control loop converts it into an error
// tool-result turn rather than failing the message.
var ErrUnknownTool = errors.New("unknown tool")

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`

	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds the available tools. It is populated at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// List returns the tool catalog in the OpenAI function format the LLM
// providers expect. Order is stable across calls.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name. Handler failures never propagate: they
// are converted into an {"error": ...} payload so the control loop
// always receives a well-formed tool result. Only an unregistered name
// reports an error, wrapping ErrUnknownTool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	r.logger.Debug("executing tool", "tool", name)

	result, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return errorPayload(err.Error()), nil
	}
	return result, nil
}

// errorPayload serializes a tool failure into the structured error
// shape the synthesizer and the model understand.
func errorPayload(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(data)
}

// intArg extracts an integer argument. JSON numbers decode as float64,
// but providers occasionally hand through ints from their own decoding.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// stringArg extracts a string argument with a default.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// boolArg extracts a boolean argument.
func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
