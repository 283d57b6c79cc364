package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/astralabs/astra/internal/llm"
	"github.com/astralabs/astra/internal/memory"
	"github.com/astralabs/astra/internal/tools"
)

// maxToolIterations bounds the model/tool cycle for a single inbound
// message. A confused model that keeps requesting tools is cut off
// rather than looped forever; the bridge then delivers the fallback.
const maxToolIterations = 8

// ErrIterationLimit is returned when a single message exceeds
// maxToolIterations model/tool cycles.
var ErrIterationLimit = errors.New("tool iteration limit exceeded")

// loopState is the control loop's state machine position.
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateExecutingTools
	stateDone
)

// Loop drives one conversation: it appends the inbound user turn,
// alternates model calls with tool execution until the model stops
// requesting tools, and returns the accumulated assistant content.
//
// The caller must serialize Run invocations per conversation ID (the
// telegram bridge holds a per-chat mutex); the store's append order is
// the conversation's causal order.
type Loop struct {
	logger   *slog.Logger
	store    memory.Store
	client   llm.Client
	registry *tools.Registry
	model    string
	nowFunc  func() time.Time
}

// NewLoop creates a control loop.
func NewLoop(logger *slog.Logger, store memory.Store, client llm.Client, registry *tools.Registry, model string) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger:   logger.With("component", "agent"),
		store:    store,
		client:   client,
		registry: registry,
		model:    model,
		nowFunc:  time.Now,
	}
}

// Run processes one inbound user message for a conversation and
// returns the reply content. An empty return with nil error means the
// model produced no user-visible content; the caller substitutes its
// fallback message.
//
// Error cases (model invocation failure, iteration cap) leave the
// conversation consistent: assistant turns are only appended after a
// successful model call, and every appended tool call gets its
// tool-result turn appended before the next model call is attempted.
func (l *Loop) Run(ctx context.Context, conversationID, text string) (string, error) {
	start := time.Now()
	l.logger.Info("message received", "conversation", conversationID, "chars", len(text))

	if err := l.store.AppendTurn(conversationID, memory.NewUserTurn(text)); err != nil {
		return "", fmt.Errorf("append user turn: %w", err)
	}

	var reply strings.Builder
	var lastResponse *llm.ChatResponse

	state := stateAwaitingModel
	iterations := 0

	for state != stateDone {
		switch state {
		case stateAwaitingModel:
			if iterations >= maxToolIterations {
				l.logger.Error("iteration limit reached", "conversation", conversationID, "limit", maxToolIterations)
				return "", fmt.Errorf("%w (%d)", ErrIterationLimit, maxToolIterations)
			}
			iterations++

			turns, err := l.store.GetTurns(conversationID)
			if err != nil {
				return "", fmt.Errorf("load conversation: %w", err)
			}
			messages := Synthesize(turns, l.nowFunc())

			l.logger.Debug("calling model",
				"conversation", conversationID,
				"model", l.model,
				"messages", len(messages),
				"iteration", iterations,
			)

			resp, err := l.client.Chat(ctx, l.model, messages, l.registry.List())
			if err != nil {
				return "", fmt.Errorf("model invocation: %w", err)
			}

			if err := l.store.AppendTurn(conversationID, memory.NewAssistantTurn(resp.Message)); err != nil {
				return "", fmt.Errorf("append assistant turn: %w", err)
			}

			if resp.Message.Content != "" {
				reply.WriteString(resp.Message.Content)
			}

			lastResponse = resp
			if resp.HasToolCalls() {
				state = stateExecutingTools
			} else {
				state = stateDone
			}

		case stateExecutingTools:
			for _, call := range lastResponse.Message.ToolCalls {
				payload := l.executeToolCall(ctx, call)
				if err := l.store.AppendTurn(conversationID, memory.NewToolTurn(call.ID, call.Name, payload)); err != nil {
					return "", fmt.Errorf("append tool turn: %w", err)
				}
			}
			state = stateAwaitingModel
		}
	}

	l.logger.Info("message handled",
		"conversation", conversationID,
		"iterations", iterations,
		"reply_chars", reply.Len(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return strings.TrimSpace(reply.String()), nil
}

// executeToolCall runs a single tool call and always returns a
// well-formed payload. An unregistered tool name becomes an error
// payload so the model can recover on its next turn.
func (l *Loop) executeToolCall(ctx context.Context, call llm.ToolCall) string {
	l.logger.Debug("tool call", "tool", call.Name, "call_id", call.ID)

	payload, err := l.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		l.logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
		data, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			return `{"error": "internal error"}`
		}
		return string(data)
	}
	return payload
}
