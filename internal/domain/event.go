package domain

import "time"

// EventTime is one boundary of a provider event: either a timed instant or
// a date-only (all-day) value. Connectors resolve provider wire formats to
// an absolute instant; a dateTime without an offset is assumed UTC.
type EventTime struct {
	DateTime *time.Time // absolute instant, nil for all-day boundaries
	Date     string     // YYYY-MM-DD, set only for all-day boundaries
	TimeZone string     // IANA zone name, informational on import
}

// Timed reports whether the boundary carries an instant rather than a
// date-only value.
func (t EventTime) Timed() bool { return t.DateTime != nil }

// Event is the provider-neutral calendar event shape shared by all
// connectors.
type Event struct {
	ExternalID  string
	Title       string
	Description string
	Start       EventTime
	End         EventTime
	Href        string
}

// CalendarInfo describes one calendar visible to a connected account.
type CalendarInfo struct {
	ID      string
	Name    string
	Primary bool
}

// ConnectionTest is the result of probing a provider with the stored
// credentials.
type ConnectionTest struct {
	Success   bool
	Message   string
	Calendars []CalendarInfo
}
