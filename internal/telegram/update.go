// Package telegram implements the Bot API client and the message
// bridge: inbound webhook updates are authorized, serialized per chat,
// run through the agent loop, and answered with exactly one message.
package telegram

import "fmt"

// Update is an inbound Bot API update delivered to the webhook.
// Fields Astra does not act on (edits, callbacks, channel posts) are
// left undeclared; updates without a text message are ignored.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is a Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to. For a private chat
// the ID matches the peer's user ID.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"` // private, group, supergroup, channel
	Username string `json:"username,omitempty"`
}

// ConversationID returns the durable store key for a chat. The prefix
// keeps Telegram identities distinct from any future message source.
func ConversationID(chatID int64) string {
	return fmt.Sprintf("telegram:%d", chatID)
}
