package analyze

import (
	"fmt"
	"time"
)

const classifySystemPrompt = `You classify public transit announcements. ` +
	`You decide whether an announcement describes a change to scheduled ` +
	`service, such as suspended lines, closed or moved stops, or detours. ` +
	`Answer only with the JSON you are asked for, with no commentary.`

const extractSystemPrompt = `You extract structured disruption data from public ` +
	`transit announcements. Copy line and stop descriptions as they appear in ` +
	`the text; do not invent entries. Answer only with the JSON you are asked ` +
	`for, with no commentary.`

func classifyUserPrompt(article Article) string {
	return fmt.Sprintf(`Announcement title: %s

Announcement text:
%s

Reply with a single JSON object with exactly these keys:
- "title": a concise cleaned-up title for the announcement
- "is_necessary": "1" if the announcement describes a change to scheduled transit service, "0" otherwise`,
		article.Title, article.Body)
}

func extractUserPrompt(article Article, now time.Time) string {
	return fmt.Sprintf(`Today is %s.

Announcement title: %s

Announcement text:
%s

Reply with a single JSON object with exactly these keys:
- "affected_lines": array of the transit line names or codes affected
- "suspended_stops": array of the stop descriptions that are suspended or closed
- "replacement_stops": array of the stop descriptions added as replacements
- "time_intervals": array of objects with "start" and "end", one per disruption window, each bound copied from the text as a date expression (leave "end" empty when the announcement gives no end)

Use empty arrays when the announcement mentions nothing for a key.`,
		now.Format("Monday, 2 January 2006"), article.Title, article.Body)
}
