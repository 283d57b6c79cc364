package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// maxBodySize caps the body text handed to the model. Larger bodies
// are truncated with a note.
const maxBodySize = 32 * 1024

// maxRawMessageSize caps the raw RFC822 message buffered from the IMAP
// literal. The remainder of oversized literals (huge attachments) is
// drained to keep the IMAP stream in sync.
const maxRawMessageSize = 5 * 1024 * 1024

// ReadMessage fetches and parses a single message by UID. The MIME
// structure is walked to extract text/plain and text/html bodies.
// The fetch uses BODY.PEEK: the assistant reading a message on the
// user's behalf must not mark it \Seen in their mailbox.
func (c *Client) ReadMessage(ctx context.Context, folder string, uid uint32) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	if folder == "" {
		folder = "INBOX"
	}

	if _, err := c.selectFolder(folder); err != nil {
		return nil, err
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	fetchOpts := &imap.FetchOptions{
		UID:      true,
		Envelope: true,
		Flags:    true,
		BodySection: []*imap.FetchItemBodySection{
			{Peek: true},
		},
	}

	fetchCmd := c.client.Fetch(uidSet, fetchOpts)

	msg := fetchCmd.Next()
	if msg == nil {
		_ = fetchCmd.Close()
		return nil, fmt.Errorf("message UID %d not found in %s", uid, folder)
	}

	result := &Message{Envelope: Envelope{Unseen: true}}
	var rawBody []byte

	for {
		item := msg.Next()
		if item == nil {
			break
		}

		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			result.UID = uint32(data.UID)
		case imapclient.FetchItemDataFlags:
			for _, f := range data.Flags {
				if f == imap.FlagSeen {
					result.Unseen = false
				}
			}
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				result.Date = data.Envelope.Date
				result.Subject = data.Envelope.Subject
				if len(data.Envelope.From) > 0 {
					result.From = formatAddress(data.Envelope.From[0])
				}
				for _, addr := range data.Envelope.To {
					result.To = append(result.To, formatAddress(addr))
				}
				for _, addr := range data.Envelope.Cc {
					result.Cc = append(result.Cc, formatAddress(addr))
				}
			}
		case imapclient.FetchItemDataBodySection:
			// The literal streams from the IMAP connection and must be
			// consumed before advancing to the next item.
			if data.Literal == nil {
				c.logger.Debug("nil body literal", "uid", uid)
				continue
			}
			var readErr error
			rawBody, readErr = io.ReadAll(io.LimitReader(data.Literal, maxRawMessageSize))
			drainLiteral(data.Literal)
			if readErr != nil {
				c.logger.Debug("error reading body literal", "uid", uid, "error", readErr)
				rawBody = nil
			}
		}
	}

	if rawBody != nil {
		if err := c.parseBody(result, bytes.NewReader(rawBody)); err != nil {
			c.logger.Debug("body parse error", "uid", uid, "error", err)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch message UID %d: %w", uid, err)
	}

	return result, nil
}

// parseBody walks the MIME structure and extracts text content.
//
// go-message's mail.CreateReader and NextPart may return both a valid
// reader/part AND an error when the message uses an unknown charset.
// Those are treated as non-fatal; slightly garbled content is still
// useful to the model.
func (c *Client) parseBody(msg *Message, r io.Reader) error {
	mailReader, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return fmt.Errorf("create mail reader: %w", err)
	}
	if mailReader == nil {
		if err != nil {
			return fmt.Errorf("create mail reader returned nil: %w", err)
		}
		return fmt.Errorf("create mail reader returned nil")
	}
	if err != nil {
		c.logger.Debug("mail reader created with charset warning", "error", err)
	}

	for {
		part, err := mailReader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("next part: %w", err)
		}
		if part == nil {
			continue
		}
		if err != nil {
			c.logger.Debug("part has charset warning", "error", err)
		}

		var contentType string
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			// Attachment bodies are never forwarded to the model.
			continue
		default:
			continue
		}

		switch {
		case contentType == "text/plain" && msg.TextBody == "":
			msg.TextBody = readPartBody(part.Body, c, "text/plain")
		case contentType == "text/html" && msg.HTMLBody == "":
			msg.HTMLBody = readPartBody(part.Body, c, "text/html")
		}
	}

	return nil
}

// readPartBody reads a MIME part body with the size cap applied.
func readPartBody(r io.Reader, c *Client, contentType string) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		c.logger.Debug("error reading part", "content_type", contentType, "error", err)
		return ""
	}
	text := string(body)
	if len(body) > maxBodySize {
		text = text[:maxBodySize] + "\n\n[truncated: message exceeds 32KB]"
	}
	return strings.TrimSpace(text)
}
