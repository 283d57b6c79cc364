// Package calendar provides read-only calendar sources for the
// list_calendar_events tool. Two backends are supported: the Google
// Calendar REST API and any CalDAV server.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/astralabs/astra/internal/config"
)

// Event is a single calendar entry. Start and End keep the upstream
// string representation: RFC 3339 for timed events, YYYY-MM-DD for
// all-day events. Humanizing them is the model's job.
type Event struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
	AllDay  bool   `json:"is_all_day"`
}

// Source lists upcoming events from a calendar backend.
type Source interface {
	// ListUpcoming returns up to max events starting from now,
	// ordered by start time.
	ListUpcoming(ctx context.Context, max int) ([]Event, error)
}

// NewSource builds the configured calendar source. Returns nil when no
// provider is configured; the caller then skips registering the
// calendar tool.
func NewSource(cfg config.CalendarConfig, httpClient *http.Client, logger *slog.Logger) (Source, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "google":
		return NewGoogleSource(cfg.Google, httpClient, logger), nil
	case "caldav":
		return NewCalDAVSource(cfg.CalDAV, httpClient, logger)
	default:
		return nil, fmt.Errorf("unknown calendar provider %q (valid: google, caldav)", cfg.Provider)
	}
}
