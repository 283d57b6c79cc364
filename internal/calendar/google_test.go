package calendar

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/astralabs/astra/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGoogleTestSource(t *testing.T, handler http.Handler) *GoogleSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src := NewGoogleSource(config.GoogleCalendarConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RefreshToken: "refresh",
	}, server.Client(), discardLogger())
	src.tokenURL = server.URL + "/token"
	src.apiURL = server.URL + "/calendar/v3"
	return src
}

func TestGoogleListUpcoming(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-123" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("singleEvents") != "true" || q.Get("orderBy") != "startTime" {
			t.Errorf("query = %v", q)
		}
		if q.Get("maxResults") != "5" {
			t.Errorf("maxResults = %q, want 5", q.Get("maxResults"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"summary": "Team Sync-Up",
					"start":   map[string]any{"dateTime": "2026-08-31T14:00:00Z"},
					"end":     map[string]any{"dateTime": "2026-08-31T15:00:00Z"},
				},
				{
					"start": map[string]any{"date": "2026-09-01"},
					"end":   map[string]any{"date": "2026-09-02"},
				},
			},
		})
	})

	src := newGoogleTestSource(t, mux)
	events, err := src.ListUpcoming(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListUpcoming() error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	if events[0].Summary != "Team Sync-Up" || events[0].AllDay {
		t.Errorf("first event = %+v", events[0])
	}
	if events[0].Start != "2026-08-31T14:00:00Z" || events[0].End != "2026-08-31T15:00:00Z" {
		t.Errorf("first event times = %+v", events[0])
	}

	// Untitled all-day event gets the placeholder title and date-only times.
	if events[1].Summary != "No Title" {
		t.Errorf("second event summary = %q, want No Title", events[1].Summary)
	}
	if !events[1].AllDay {
		t.Error("second event should be all-day")
	}
	if events[1].Start != "2026-09-01" || events[1].End != "2026-09-02" {
		t.Errorf("second event times = %+v", events[1])
	}

	// Second call reuses the cached access token.
	if _, err := src.ListUpcoming(context.Background(), 5); err != nil {
		t.Fatalf("second ListUpcoming() error: %v", err)
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestGoogleListUpcomingTokenFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_grant"}`, http.StatusBadRequest)
	})

	src := newGoogleTestSource(t, mux)
	_, err := src.ListUpcoming(context.Background(), 5)
	if err == nil {
		t.Fatal("expected error when token refresh fails")
	}
}

func TestGoogleListUpcomingAPIFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "expires_in": 3600})
	})
	mux.HandleFunc("GET /calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 403}}`, http.StatusForbidden)
	})

	src := newGoogleTestSource(t, mux)
	_, err := src.ListUpcoming(context.Background(), 5)
	if err == nil {
		t.Fatal("expected error when events request fails")
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CalendarConfig
		wantNil bool
		wantErr bool
	}{
		{
			name:    "unconfigured",
			cfg:     config.CalendarConfig{},
			wantNil: true,
		},
		{
			name: "google",
			cfg: config.CalendarConfig{
				Provider: "google",
				Google:   config.GoogleCalendarConfig{ClientID: "x"},
			},
		},
		{
			name: "caldav",
			cfg: config.CalendarConfig{
				Provider: "caldav",
				CalDAV:   config.CalDAVConfig{URL: "https://dav.example.com/calendars/user/default/"},
			},
		},
		{
			name:    "caldav missing url",
			cfg:     config.CalendarConfig{Provider: "caldav"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.CalendarConfig{Provider: "exchange"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(tt.cfg, nil, discardLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSource() error: %v", err)
			}
			if tt.wantNil != (src == nil) {
				t.Errorf("src = %v, wantNil = %v", src, tt.wantNil)
			}
		})
	}
}
