// Astra is a personal secretary agent reachable over Telegram.
//
// It receives messages through a Telegram webhook, runs them through an
// LLM control loop with access to the user's calendar and email, and
// replies in the same chat. Configuration is loaded from a single YAML
// file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	astra serve              Start the webhook server
//	astra init [dir]         Initialize a working directory with defaults
//	astra ask <question>     Ask a single question (for testing)
//	astra version            Print version and build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/astralabs/astra/internal/agent"
	"github.com/astralabs/astra/internal/api"
	"github.com/astralabs/astra/internal/buildinfo"
	"github.com/astralabs/astra/internal/calendar"
	"github.com/astralabs/astra/internal/config"
	"github.com/astralabs/astra/internal/email"
	"github.com/astralabs/astra/internal/httpkit"
	"github.com/astralabs/astra/internal/llm"
	"github.com/astralabs/astra/internal/memory"
	"github.com/astralabs/astra/internal/telegram"
	"github.com/astralabs/astra/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run], keeping
// os.Exit, os.Stdout, and os.Args out of the application logic so the
// full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible to
// call run() concurrently from tests, and the argument surface here is
// small enough that manual parsing is clearer than a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: astra ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Astra - Personal Secretary Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: astra [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the Telegram webhook server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/astra/config.yaml, /etc/astra/config.yaml")
	return nil
}

// loadConfig resolves and loads the YAML configuration.
func loadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

// buildLLMClient constructs the model-routing client from config:
// Gemini when an API key is present, Ollama when a URL is configured,
// with each available model mapped to its provider.
func buildLLMClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	var gemini *llm.GeminiClient
	if cfg.Gemini.APIKey != "" {
		gemini = llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, logger)
	}

	var ollama *llm.OllamaClient
	if cfg.Models.OllamaURL != "" {
		ollama = llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
	}

	if gemini == nil && ollama == nil {
		return nil, fmt.Errorf("no model provider configured (set gemini.api_key or models.ollama_url)")
	}

	// The fallback handles model names with no explicit mapping.
	var fallback llm.Client
	if gemini != nil {
		fallback = gemini
	} else {
		fallback = ollama
	}

	multi := llm.NewMultiClient(fallback)
	if gemini != nil {
		multi.AddProvider("gemini", gemini)
	}
	if ollama != nil {
		multi.AddProvider("ollama", ollama)
	}
	for _, m := range cfg.Models.Available {
		multi.AddModel(m.Name, m.Provider)
	}
	return multi, nil
}

// buildRegistry constructs the tool registry from config. Tools whose
// backing service is not configured are registered with a nil or absent
// source only when the tool itself degrades gracefully; otherwise they
// are left out of the catalog entirely.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*tools.Registry, *email.Client, error) {
	registry := tools.NewRegistry(logger)

	source, err := calendar.NewSource(cfg.Calendar, httpkit.NewClient(httpkit.WithLogger(logger)), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("configure calendar: %w", err)
	}
	tools.RegisterCalendar(registry, source)
	if source != nil {
		logger.Info("calendar source configured", "provider", cfg.Calendar.Provider)
	}

	var mail *email.Client
	if cfg.Email.IMAP.Host != "" {
		mail = email.NewClient(cfg.Email.IMAP, logger)
		tools.RegisterEmail(registry, mail)
		logger.Info("email tools configured", "host", cfg.Email.IMAP.Host)
	}

	return registry, mail, nil
}

// runAsk handles the "astra ask <question>" subcommand: one question
// through the full agent loop against the durable store, answer on
// stdout. Useful for smoke tests without Telegram in the path.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := config.NewLogger(stdout, slog.LevelWarn, "text")

	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	llmClient, err := buildLLMClient(cfg, logger)
	if err != nil {
		return err
	}

	registry, mail, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if mail != nil {
		defer mail.Close()
	}

	store, err := memory.NewSQLiteStore(filepath.Join(cfg.DataDir, "astra.db"))
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer store.Close()

	loop := agent.NewLoop(logger, store, llmClient, registry, cfg.Models.Default)

	reply, err := loop.Run(ctx, "cli", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, reply)
	return nil
}

// runServe handles the "astra serve" subcommand, the primary operating
// mode. The shutdown sequence:
//  1. SIGINT or SIGTERM cancels the context
//  2. The HTTP server drains in-flight webhook requests
//  3. The store and the IMAP connection close via defers
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := config.NewLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Astra", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure now that the desired level and format are known. The
	// initial Info-level text logger covers only the startup banner.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			level, err = config.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
		}
		logger = config.NewLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Models.Default,
	)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// --- Conversation store ---
	dbPath := filepath.Join(cfg.DataDir, "astra.db")
	store, err := memory.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open conversation store %s: %w", dbPath, err)
	}
	defer store.Close()
	logger.Info("conversation store opened", "path", dbPath)

	// --- Model providers ---
	llmClient, err := buildLLMClient(cfg, logger)
	if err != nil {
		return err
	}

	// --- Tools ---
	registry, mail, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if mail != nil {
		defer mail.Close()
	}
	logger.Info("tool registry ready", "tools", registry.Names())

	// --- Agent loop ---
	loop := agent.NewLoop(logger, store, llmClient, registry, cfg.Models.Default)

	// --- Telegram ---
	tgClient := telegram.NewClient(cfg.Telegram.BotToken, logger)

	// getMe doubles as a token check; refuse to start with a bad token.
	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	me, err := tgClient.GetMe(startupCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("telegram token check: %w", err)
	}
	logger.Info("telegram bot identified", "username", me.Username, "id", me.ID)

	if cfg.Telegram.WebhookURL != "" {
		webhookURL := strings.TrimSuffix(cfg.Telegram.WebhookURL, "/") + "/telegram"
		hookCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = tgClient.SetWebhook(hookCtx, webhookURL, cfg.Telegram.WebhookSecret)
		cancel()
		if err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
	} else {
		logger.Warn("telegram.webhook_url not set, skipping webhook registration")
	}

	bridge := telegram.NewBridge(tgClient, loop, cfg.Telegram.AllowedChatID, logger)

	// --- HTTP server ---
	server := api.NewServer(
		cfg.Listen.Address,
		cfg.Listen.Port,
		bridge,
		store,
		cfg.Telegram.WebhookSecret,
		me.Username,
		logger,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
