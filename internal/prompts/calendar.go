package prompts

import (
	"fmt"
	"strings"
)

// CalendarEvent is the minimal event shape the summarization prompt
// needs. Start and End carry the raw ISO timestamps from the calendar
// source; the model is instructed to humanize them.
type CalendarEvent struct {
	Summary string
	Start   string
	End     string
}

// CalendarErrorPrompt is substituted for the event list when the
// calendar lookup failed or returned nothing.
const CalendarErrorPrompt = "There was an error accessing the calendar, or there are no upcoming events. Please inform the user."

// SummarizeCalendarEvents builds the instruction prompt that replaces a
// raw calendar tool result before it is sent to the model. The model
// sees the event data along with explicit formatting guidance and a
// worked example, which keeps replies consistent across providers.
func SummarizeCalendarEvents(events []CalendarEvent) string {
	if len(events) == 0 {
		return CalendarErrorPrompt
	}

	var lines []string
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("- %s (Starts: %s, Ends: %s)", ev.Summary, ev.Start, ev.End))
	}

	return fmt.Sprintf(`You have retrieved the user's calendar events. Now, present them in a clear, friendly, and well-formatted way.

Here is the raw data for the upcoming events:
%s

Your Task:
- Summarize these events for the user.
- Use a friendly tone, addressing the user directly.
- Format the output nicely using markdown (e.g., bullet points).
- For each event, clearly state the summary (title), the start time, and the end time.
- Convert the ISO-formatted dates and times into a more human-readable format (e.g., "Monday, June 17th at 2:00 PM"). You are an expert at this.
- If an event is an all-day event, state that clearly.

Example of a good response:
"Of course! Here are your upcoming events:

*   **Team Sync-Up**
    *   Starts: Monday, June 17th at 2:00 PM
    *   Ends: Monday, June 17th at 3:00 PM
*   **Project Deadline**
    *   This is an all-day event on Tuesday, June 18th."`, strings.Join(lines, "\n"))
}
