package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Fixed user-facing replies. These are deliberate constants, not
// templates: the unauthorized reply must not leak why access was
// denied, and the fallback must read the same whatever went wrong.
const (
	unauthorizedReply = "Unauthorized access."
	startReply        = "Hello! I am your secretary agent."
	fallbackReply     = "Sorry, I couldn't generate a response."
)

// handleTimeout bounds the processing of a single inbound message
// (agent loop plus reply delivery). A hung model or tool call releases
// the chat lock when this expires instead of holding it forever.
const handleTimeout = 3 * time.Minute

// Runner abstracts the agent loop for testability. The real
// implementation is *agent.Loop.
type Runner interface {
	Run(ctx context.Context, conversationID, text string) (string, error)
}

// Sender abstracts the Bot API client for testability.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Bridge routes webhook updates through the agent loop and delivers
// exactly one reply per inbound text message. Updates for the same
// chat are serialized with a per-chat lock so concurrent webhook
// deliveries cannot interleave turns in the store.
type Bridge struct {
	sender        Sender
	runner        Runner
	logger        *slog.Logger
	allowedChatID int64

	mu        sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// NewBridge creates a Telegram message bridge. Messages from any chat
// other than allowedChatID receive the fixed unauthorized reply and
// never reach the agent loop.
func NewBridge(sender Sender, runner Runner, allowedChatID int64, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		sender:        sender,
		runner:        runner,
		logger:        logger.With("component", "bridge"),
		allowedChatID: allowedChatID,
		chatLocks:     make(map[int64]*sync.Mutex),
	}
}

// HandleUpdate processes a single webhook update. The webhook handler
// calls this from a per-update goroutine after acknowledging Telegram,
// so blocking here never delays the HTTP 200.
func (b *Bridge) HandleUpdate(update *Update) {
	if update == nil || update.Message == nil {
		return
	}
	msg := update.Message
	if strings.TrimSpace(msg.Text) == "" {
		b.logger.Debug("ignoring non-text update", "update_id", update.UpdateID, "chat_id", msg.Chat.ID)
		return
	}
	if msg.From != nil && msg.From.IsBot {
		b.logger.Debug("ignoring bot message", "chat_id", msg.Chat.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	chatID := msg.Chat.ID

	if chatID != b.allowedChatID {
		b.logger.Warn("unauthorized chat",
			"chat_id", chatID,
			"update_id", update.UpdateID,
		)
		b.reply(ctx, chatID, unauthorizedReply)
		return
	}

	if strings.TrimSpace(msg.Text) == "/start" {
		b.reply(ctx, chatID, startReply)
		return
	}

	// Serialize per chat: a second message for the same chat waits for
	// the first to finish so the store sees a total turn order.
	lock := b.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	b.handleMessage(ctx, chatID, msg.Text)
}

// handleMessage runs one authorized text message through the agent
// loop and delivers the reply. Exactly one message goes out: the
// loop's content, or the fixed fallback when the loop failed or
// produced nothing.
func (b *Bridge) handleMessage(ctx context.Context, chatID int64, text string) {
	start := time.Now()
	convID := ConversationID(chatID)

	if err := b.sender.SendChatAction(ctx, chatID, "typing"); err != nil {
		b.logger.Debug("typing indicator failed", "chat_id", chatID, "error", err)
	}

	reply, err := b.runner.Run(ctx, convID, text)
	if err != nil {
		b.logger.Error("agent run failed",
			"conversation", convID,
			"error", err,
		)
		reply = ""
	}
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply
	}

	b.reply(ctx, chatID, reply)

	b.logger.Info("update handled",
		"conversation", convID,
		"reply_chars", len(reply),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// reply sends text to a chat, logging delivery failures. There is no
// retry beyond the HTTP client's own: a reply that cannot be delivered
// is dropped rather than duplicated.
func (b *Bridge) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Error("reply send failed", "chat_id", chatID, "error", err)
	}
}

// chatLock returns the mutex for a chat, creating it on first use.
func (b *Bridge) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		b.chatLocks[chatID] = lock
	}
	return lock
}
