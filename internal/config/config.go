// Package config handles Astra configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/astra/config.yaml, /etc/astra/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "astra", "config.yaml"))
	}

	paths = append(paths, "/etc/astra/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Astra configuration.
type Config struct {
	Listen    ListenConfig   `yaml:"listen"`
	Telegram  TelegramConfig `yaml:"telegram"`
	Models    ModelsConfig   `yaml:"models"`
	Gemini    GeminiConfig   `yaml:"gemini"`
	Calendar  CalendarConfig `yaml:"calendar"`
	Email     EmailConfig    `yaml:"email"`
	DataDir   string         `yaml:"data_dir"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the HTTP server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// TelegramConfig defines the Telegram bot connection and authorization.
type TelegramConfig struct {
	// BotToken is the token issued by BotFather.
	BotToken string `yaml:"bot_token"`
	// WebhookURL is the public base URL the webhook is registered under.
	// The /telegram path is appended automatically.
	WebhookURL string `yaml:"webhook_url"`
	// WebhookSecret, when set, is sent by Telegram in the
	// X-Telegram-Bot-Api-Secret-Token header and verified on every update.
	WebhookSecret string `yaml:"webhook_secret"`
	// AllowedChatID is the single chat authorized to talk to the agent.
	// Messages from any other chat receive a fixed unauthorized reply.
	AllowedChatID int64 `yaml:"allowed_chat_id"`
}

// ModelsConfig defines model routing settings.
type ModelsConfig struct {
	Default   string        `yaml:"default"`
	OllamaURL string        `yaml:"ollama_url"`
	Available []ModelConfig `yaml:"available"`
}

// ModelConfig maps a model name to its provider.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // gemini, ollama
}

// GeminiConfig defines Google Gemini API settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `yaml:"base_url"`
}

// CalendarConfig selects and configures the calendar source.
type CalendarConfig struct {
	// Provider is "google", "caldav", or empty to disable the calendar tool.
	Provider string               `yaml:"provider"`
	Google   GoogleCalendarConfig `yaml:"google"`
	CalDAV   CalDAVConfig         `yaml:"caldav"`
}

// GoogleCalendarConfig holds credentials for the Google Calendar REST API.
// The refresh token is obtained out-of-band; Astra only refreshes access
// tokens with it.
type GoogleCalendarConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	CalendarID   string `yaml:"calendar_id"` // default: "primary"
}

// CalDAVConfig holds connection settings for a CalDAV calendar collection.
type CalDAVConfig struct {
	URL      string `yaml:"url"` // collection URL, e.g. https://host/dav/calendars/user/default/
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EmailConfig defines the optional IMAP account for email tools.
type EmailConfig struct {
	IMAP IMAPConfig `yaml:"imap"`
}

// IMAPConfig holds IMAP connection settings. The email tools are
// disabled when Host is empty.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // default: 993
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is required")
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8000},
		DataDir: ".",
		Models: ModelsConfig{
			Default: "gemini-2.5-pro",
			Available: []ModelConfig{
				{Name: "gemini-2.5-pro", Provider: "gemini"},
				{Name: "gemini-2.5-flash", Provider: "gemini"},
			},
		},
		Calendar: CalendarConfig{
			Google: GoogleCalendarConfig{CalendarID: "primary"},
		},
		Email: EmailConfig{
			IMAP: IMAPConfig{Port: 993, TLS: true},
		},
	}
}
