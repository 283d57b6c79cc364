package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// defaultConfigYAML is written by "astra init" as a starting point.
// Every secret can also be supplied via environment variable expansion
// (${VAR}) at load time.
const defaultConfigYAML = `# Astra configuration

listen:
  address: ""          # bind address; empty = all interfaces
  port: 8000

telegram:
  bot_token: "${TELEGRAM_BOT_TOKEN}"
  # Public HTTPS base URL this server is reachable at. The /telegram
  # webhook path is appended automatically.
  webhook_url: ""
  # Optional shared secret echoed by Telegram on every delivery.
  webhook_secret: ""
  # The single chat allowed to talk to the agent. Find yours by
  # messaging the bot and checking the server logs.
  allowed_chat_id: 0

models:
  default: gemini-2.5-pro
  # ollama_url: http://localhost:11434
  available:
    - name: gemini-2.5-pro
      provider: gemini
    - name: gemini-2.5-flash
      provider: gemini

gemini:
  api_key: "${GEMINI_API_KEY}"

calendar:
  # provider: google | caldav | "" (disables the calendar tool)
  provider: ""
  google:
    client_id: ""
    client_secret: ""
    refresh_token: ""
    calendar_id: primary
  caldav:
    url: ""
    username: ""
    password: ""

email:
  imap:
    # host: imap.example.com   # leave unset to disable email tools
    port: 993
    tls: true
    username: ""
    password: ""

data_dir: .
log_level: info
log_format: text
`

// runInit initializes an Astra working directory. Existing files are
// never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Astra workspace in %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, []byte(defaultConfigYAML)); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml, then run: astra serve")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never clobbers user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}
