package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/astralabs/astra/internal/calendar"
)

// CalendarToolName identifies the calendar tool. The turn synthesizer
// keys its rendering rewrite on this name.
const CalendarToolName = "list_calendar_events"

// RegisterCalendar registers the calendar lookup tool backed by the
// given source.
func RegisterCalendar(r *Registry, source calendar.Source) {
	r.Register(&Tool{
		Name: CalendarToolName,
		Description: "Lists upcoming events from the user's calendar. " +
			"Use this tool when the user asks about their calendar, schedule, appointments, " +
			"what's happening today, tomorrow, or this week, upcoming meetings or events, " +
			"or their availability.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of events to return (default: 10)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return listCalendarEvents(ctx, source, intArg(args, "max_results", 10))
		},
	})
}

// listCalendarEvents produces the calendar tool payload: a JSON array
// of events, "[]" when the source is unconfigured or empty, and an
// error payload when the lookup fails. The error is embedded in the
// payload rather than returned so the model can relay it to the user.
func listCalendarEvents(ctx context.Context, source calendar.Source, max int) (string, error) {
	if source == nil {
		return "[]", nil
	}

	events, err := source.ListUpcoming(ctx, max)
	if err != nil {
		return errorPayload(fmt.Sprintf("An error occurred while accessing your calendar: %v", err)), nil
	}
	if len(events) == 0 {
		return "[]", nil
	}

	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}
