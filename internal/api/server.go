// Package api implements the HTTP server: the Telegram webhook
// endpoint plus health and debug routes.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/astralabs/astra/internal/buildinfo"
	"github.com/astralabs/astra/internal/memory"
	"github.com/astralabs/astra/internal/telegram"
)

// secretTokenHeader is the header Telegram echoes the configured
// webhook secret in on every delivery.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes webhook updates. The real implementation is
// *telegram.Bridge.
type UpdateHandler interface {
	HandleUpdate(update *telegram.Update)
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP server.
type Server struct {
	address       string
	port          int
	handler       UpdateHandler
	store         memory.Store
	webhookSecret string
	botUsername   string
	logger        *slog.Logger
	server        *http.Server
}

// NewServer creates the HTTP server. webhookSecret may be empty, in
// which case the secret-token check is skipped. botUsername feeds the
// /qr onboarding endpoint and may be empty.
func NewServer(address string, port int, handler UpdateHandler, store memory.Store, webhookSecret, botUsername string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:       address,
		port:          port,
		handler:       handler,
		store:         store,
		webhookSecret: webhookSecret,
		botUsername:   botUsername,
		logger:        logger.With("component", "api"),
	}
}

// routes builds the route table.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /telegram", s.handleWebhook)

	mux.HandleFunc("GET /healthcheck", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	// Debug surface
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /v1/conversations", s.handleConversationList)
	mux.HandleFunc("GET /v1/conversations/{id}", s.handleConversationGet)
	mux.HandleFunc("GET /qr", s.handleQR)

	return mux
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting HTTP server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// handleWebhook receives a Telegram update, acknowledges it
// immediately, and hands processing to a goroutine. Telegram retries
// deliveries that do not get a timely 200, so the agent loop must
// never run on this handler's clock.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" && r.Header.Get(secretTokenHeader) != s.webhookSecret {
		s.logger.Warn("webhook secret mismatch", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("malformed webhook body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	go s.handler.HandleUpdate(&update)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Astra",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "list conversations: "+err.Error())
		return
	}

	type convSummary struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	summaries := make([]convSummary, len(convs))
	for i, c := range convs {
		summaries[i] = convSummary{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"conversations": summaries,
		"count":         len(summaries),
	}, s.logger)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.store.GetConversation(id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "get conversation: "+err.Error())
		return
	}
	if conv == nil {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, conv, s.logger)
}

// handleQR renders the bot's t.me link as a PNG QR code so the user
// can onboard a phone by pointing the camera at a terminal or browser.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if s.botUsername == "" {
		s.errorResponse(w, http.StatusServiceUnavailable, "bot identity not resolved")
		return
	}

	link := "https://t.me/" + s.botUsername
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "encode qr: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write qr response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
