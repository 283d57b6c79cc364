package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/astralabs/astra/internal/httpkit"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// maxMessageLength is the Bot API limit for a single sendMessage text.
// Longer replies are split on this boundary.
const maxMessageLength = 4096

// Client is a Telegram Bot API client. All methods go through the
// bot-token-scoped REST endpoint; responses share the apiResponse
// envelope with ok/description fields.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:   token,
		baseURL: defaultAPIBaseURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(2, 500*time.Millisecond),
			httpkit.WithLogger(logger),
		),
		logger: logger.With("component", "telegram"),
	}
}

// apiResponse is the Bot API response envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// apiError is a Bot API-level failure (ok=false in the envelope).
type apiError struct {
	Method      string
	Code        int
	Description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// sendMessageRequest is the wire format for sendMessage.
type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessage delivers text to a chat, rendering markdown as Telegram
// HTML. Replies over the API length limit are split into consecutive
// messages. If Telegram rejects the rendered HTML (an entity-parse
// error surfaces as a 400), the chunk is resent as plain text so the
// user still gets the content.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(RenderHTML(text), maxMessageLength) {
		err := c.sendChunk(ctx, chatID, chunk, "HTML")
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			c.logger.Warn("html send rejected, falling back to plain text",
				"chat_id", chatID,
				"description", apiErr.Description,
			)
			err = c.sendChunk(ctx, chatID, chunk, "")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, chatID int64, text, parseMode string) error {
	req := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: parseMode}
	return c.call(ctx, "sendMessage", req, nil)
}

// SendChatAction shows the "typing..." indicator while the agent loop
// runs. Best-effort; callers log and ignore failures.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  action,
	}, nil)
}

// setWebhookRequest is the wire format for setWebhook.
type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SetWebhook registers url as the bot's webhook endpoint. When secret
// is non-empty Telegram echoes it in the
// X-Telegram-Bot-Api-Secret-Token header on every delivery, which the
// webhook handler verifies. Only message updates are requested.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	req := setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message"},
	}
	if err := c.call(ctx, "setWebhook", req, nil); err != nil {
		return err
	}
	c.logger.Info("webhook registered", "url", url, "secret", secret != "")
	return nil
}

// DeleteWebhook removes the webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

// GetMe fetches the bot's own account. Used at startup as a token
// check and to build the t.me onboarding link.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// call invokes a Bot API method, decoding the envelope and optionally
// the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body *bytes.Reader
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", method, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !envelope.OK {
		return &apiError{
			Method:      method,
			Code:        envelope.ErrorCode,
			Description: envelope.Description,
		}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// splitMessage breaks text into chunks no longer than limit runes,
// preferring newline boundaries so formatting survives the split.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		if len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
