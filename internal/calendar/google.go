package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/astralabs/astra/internal/config"
	"github.com/astralabs/astra/internal/httpkit"
)

const (
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
	defaultGoogleAPIURL   = "https://www.googleapis.com/calendar/v3"
)

// GoogleSource reads events from the Google Calendar REST API. It holds
// a long-lived refresh token (obtained out-of-band) and mints access
// tokens on demand.
type GoogleSource struct {
	cfg        config.GoogleCalendarConfig
	httpClient *http.Client
	logger     *slog.Logger

	// Override points for tests.
	tokenURL string
	apiURL   string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGoogleSource creates a Google Calendar source.
func NewGoogleSource(cfg config.GoogleCalendarConfig, httpClient *http.Client, logger *slog.Logger) *GoogleSource {
	if httpClient == nil {
		httpClient = httpkit.NewClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	return &GoogleSource{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With("calendar", "google"),
		tokenURL:   defaultGoogleTokenURL,
		apiURL:     defaultGoogleAPIURL,
	}
}

// token returns a valid access token, refreshing if the cached one is
// expired or about to expire.
func (g *GoogleSource) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry.Add(-1*time.Minute)) {
		return g.accessToken, nil
	}

	form := url.Values{
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"refresh_token": {g.cfg.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		return "", fmt.Errorf("token refresh failed (%d): %s", resp.StatusCode, errBody)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	g.accessToken = tokenResp.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	g.logger.Debug("refreshed access token", "expires_in", tokenResp.ExpiresIn)

	return g.accessToken, nil
}

// googleEventTime is either a dateTime (timed event) or a date
// (all-day event).
type googleEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t googleEventTime) value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// ListUpcoming fetches upcoming events ordered by start time.
func (g *GoogleSource) ListUpcoming(ctx context.Context, max int) ([]Event, error) {
	if max <= 0 {
		max = 10
	}

	accessToken, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"timeMin":      {time.Now().UTC().Format(time.RFC3339)},
		"maxResults":   {strconv.Itoa(max)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s",
		g.apiURL, url.PathEscape(g.cfg.CalendarID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("events request failed (%d): %s", resp.StatusCode, errBody)
	}

	var eventsResp struct {
		Items []struct {
			Summary string          `json:"summary"`
			Start   googleEventTime `json:"start"`
			End     googleEventTime `json:"end"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eventsResp); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	events := make([]Event, 0, len(eventsResp.Items))
	for _, item := range eventsResp.Items {
		summary := item.Summary
		if summary == "" {
			summary = "No Title"
		}
		start := item.Start.value()
		events = append(events, Event{
			Summary: summary,
			Start:   start,
			End:     item.End.value(),
			AllDay:  !strings.Contains(start, "T"),
		})
	}

	g.logger.Debug("fetched events", "count", len(events))
	return events, nil
}
