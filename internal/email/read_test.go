package email

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"
)

func testClient() *Client {
	return &Client{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestParseBodyPlainText(t *testing.T) {
	raw := "From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: lunch\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Want to grab lunch at noon?\r\n"

	msg := &Message{}
	if err := testClient().parseBody(msg, strings.NewReader(raw)); err != nil {
		t.Fatalf("parseBody() error: %v", err)
	}

	if msg.TextBody != "Want to grab lunch at noon?" {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("HTMLBody = %q, want empty", msg.HTMLBody)
	}
}

func TestParseBodyMultipart(t *testing.T) {
	raw := "From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: report\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain version.\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML version.</p>\r\n" +
		"--BOUNDARY--\r\n"

	msg := &Message{}
	if err := testClient().parseBody(msg, strings.NewReader(raw)); err != nil {
		t.Fatalf("parseBody() error: %v", err)
	}

	if msg.TextBody != "Plain version." {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.HTMLBody != "<p>HTML version.</p>" {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
}

func TestParseBodyTruncation(t *testing.T) {
	big := strings.Repeat("x", maxBodySize+100)
	raw := "From: a@example.com\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		big

	msg := &Message{}
	if err := testClient().parseBody(msg, strings.NewReader(raw)); err != nil {
		t.Fatalf("parseBody() error: %v", err)
	}

	if !strings.HasSuffix(msg.TextBody, "[truncated: message exceeds 32KB]") {
		t.Error("oversized body should be truncated with a note")
	}
	if len(msg.TextBody) > maxBodySize+100 {
		t.Errorf("TextBody length = %d, should be capped", len(msg.TextBody))
	}
}

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name string
		addr imap.Address
		want string
	}{
		{
			name: "with display name",
			addr: imap.Address{Name: "Alice", Mailbox: "alice", Host: "example.com"},
			want: "Alice <alice@example.com>",
		},
		{
			name: "address only",
			addr: imap.Address{Mailbox: "bob", Host: "example.com"},
			want: "bob@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatAddress(tt.addr); got != tt.want {
				t.Errorf("formatAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}
