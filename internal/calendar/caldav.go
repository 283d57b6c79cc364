package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/astralabs/astra/internal/config"
	"github.com/astralabs/astra/internal/httpkit"
)

// calDAVLookahead bounds the calendar-query time range. CalDAV has no
// "next N events" query, so a window is fetched and trimmed locally.
const calDAVLookahead = 90 * 24 * time.Hour

// CalDAVSource reads events from a CalDAV calendar collection.
type CalDAVSource struct {
	client  *caldav.Client
	path    string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewCalDAVSource creates a CalDAV source for the configured collection.
func NewCalDAVSource(cfg config.CalDAVConfig, httpClient *http.Client, logger *slog.Logger) (*CalDAVSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("caldav.url is required")
	}
	if httpClient == nil {
		httpClient = httpkit.NewClient()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var hc webdav.HTTPClient = httpClient
	if cfg.Username != "" {
		hc = webdav.HTTPClientWithBasicAuth(httpClient, cfg.Username, cfg.Password)
	}

	client, err := caldav.NewClient(hc, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}

	return &CalDAVSource{
		client:  client,
		path:    cfg.URL,
		logger:  logger.With("calendar", "caldav"),
		nowFunc: time.Now,
	}, nil
}

// ListUpcoming queries the collection for VEVENTs in the lookahead
// window and returns the first max, ordered by start time.
func (c *CalDAVSource) ListUpcoming(ctx context.Context, max int) ([]Event, error) {
	if max <= 0 {
		max = 10
	}

	now := c.nowFunc().UTC()
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: now,
				End:   now.Add(calDAVLookahead),
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, c.path, query)
	if err != nil {
		return nil, fmt.Errorf("calendar query: %w", err)
	}

	var events []struct {
		event Event
		start time.Time
	}
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			converted, start, err := convertICalEvent(ev)
			if err != nil {
				c.logger.Debug("skipping unparseable event", "path", obj.Path, "error", err)
				continue
			}
			if start.Before(now) {
				continue
			}
			events = append(events, struct {
				event Event
				start time.Time
			}{converted, start})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].start.Before(events[j].start)
	})
	if len(events) > max {
		events = events[:max]
	}

	result := make([]Event, 0, len(events))
	for _, e := range events {
		result = append(result, e.event)
	}

	c.logger.Debug("fetched events", "count", len(result))
	return result, nil
}

// convertICalEvent maps a VEVENT to the common Event shape. All-day
// events are detected by a DATE-typed DTSTART and rendered date-only,
// matching the Google source's representation.
func convertICalEvent(ev ical.Event) (Event, time.Time, error) {
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		return Event{}, time.Time{}, fmt.Errorf("event start: %w", err)
	}
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil {
		return Event{}, time.Time{}, fmt.Errorf("event end: %w", err)
	}

	summary := "No Title"
	if prop := ev.Props.Get(ical.PropSummary); prop != nil && prop.Value != "" {
		summary = prop.Value
	}

	allDay := false
	if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil {
		allDay = prop.ValueType() == ical.ValueDate
	}

	var startStr, endStr string
	if allDay {
		startStr = start.Format("2006-01-02")
		endStr = end.Format("2006-01-02")
	} else {
		startStr = start.Format(time.RFC3339)
		endStr = end.Format(time.RFC3339)
	}

	return Event{
		Summary: summary,
		Start:   startStr,
		End:     endStr,
		AllDay:  allDay,
	}, start, nil
}
