package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/astralabs/astra/internal/email"
)

// Email tool names.
const (
	ListEmailsToolName = "list_recent_emails"
	ReadEmailToolName  = "read_email"
)

// EmailReader is the slice of the email client the tools need.
type EmailReader interface {
	ListMessages(ctx context.Context, opts email.ListOptions) ([]email.Envelope, error)
	ReadMessage(ctx context.Context, folder string, uid uint32) (*email.Message, error)
}

// RegisterEmail registers the email tools backed by the given client.
func RegisterEmail(r *Registry, client EmailReader) {
	r.Register(&Tool{
		Name: ListEmailsToolName,
		Description: "Lists recent emails from the user's mailbox, newest first. " +
			"Use this when the user asks about their email, their inbox, new messages, " +
			"or anything they may have received.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"folder": map[string]any{
					"type":        "string",
					"description": "Mailbox folder to list (default: INBOX)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of emails to return (default: 10)",
				},
				"unseen_only": map[string]any{
					"type":        "boolean",
					"description": "Only return unread emails (default: false)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			envelopes, err := client.ListMessages(ctx, email.ListOptions{
				Folder: stringArg(args, "folder", ""),
				Limit:  intArg(args, "limit", 10),
				Unseen: boolArg(args, "unseen_only"),
			})
			if err != nil {
				return errorPayload(fmt.Sprintf("An error occurred while accessing your email: %v", err)), nil
			}
			if len(envelopes) == 0 {
				return "[]", nil
			}
			data, err := json.Marshal(envelopes)
			if err != nil {
				return "", fmt.Errorf("marshal envelopes: %w", err)
			}
			return string(data), nil
		},
	})

	r.Register(&Tool{
		Name: ReadEmailToolName,
		Description: "Reads the full content of a single email by its uid " +
			"(as returned by list_recent_emails).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uid": map[string]any{
					"type":        "integer",
					"description": "The uid of the email to read",
				},
				"folder": map[string]any{
					"type":        "string",
					"description": "Mailbox folder containing the email (default: INBOX)",
				},
			},
			"required": []string{"uid"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			uid := intArg(args, "uid", 0)
			if uid <= 0 {
				return errorPayload("uid is required"), nil
			}
			msg, err := client.ReadMessage(ctx, stringArg(args, "folder", ""), uint32(uid))
			if err != nil {
				return errorPayload(fmt.Sprintf("An error occurred while reading the email: %v", err)), nil
			}
			data, err := json.Marshal(msg)
			if err != nil {
				return "", fmt.Errorf("marshal message: %w", err)
			}
			return string(data), nil
		},
	})
}
