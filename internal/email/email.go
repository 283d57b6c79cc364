// Package email provides read-only IMAP access for the email tools.
// Astra only lists and reads mail on the user's behalf; composing and
// flag management stay with the user's own mail client.
package email

import (
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
)

// drainLiteral reads and discards the contents of an IMAP literal
// reader. Unconsumed literals block the IMAP stream.
func drainLiteral(r imap.LiteralReader) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}

// Envelope is the summary metadata for a message, suitable for the
// list_recent_emails tool payload.
type Envelope struct {
	// UID is the IMAP unique identifier within the folder.
	UID uint32 `json:"uid"`

	// Date is the message's Date header.
	Date time.Time `json:"date"`

	// From is the sender, formatted as "Name <addr>" or just the address.
	From string `json:"from"`

	// To is the list of recipients.
	To []string `json:"to,omitempty"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// Unseen reports whether the message lacks the \Seen flag.
	Unseen bool `json:"unseen"`
}

// Message is a fully-fetched email with body content extracted from
// the MIME structure.
type Message struct {
	Envelope

	// Cc is the list of CC recipients.
	Cc []string `json:"cc,omitempty"`

	// TextBody is the plain-text body. Preferred for model consumption.
	TextBody string `json:"text_body,omitempty"`

	// HTMLBody is the raw HTML body, kept only when no text/plain
	// part exists.
	HTMLBody string `json:"html_body,omitempty"`
}

// ListOptions controls ListMessages.
type ListOptions struct {
	// Folder is the mailbox to list from. Default: "INBOX".
	Folder string

	// Limit is the maximum number of messages to return. Default: 10.
	Limit int

	// Unseen restricts the listing to unseen messages only.
	Unseen bool
}
