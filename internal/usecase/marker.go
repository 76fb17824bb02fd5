package usecase

import "strings"

// EventMarker is embedded at the start of every event description this
// engine writes to a provider. Inbound events whose body starts with the
// marker are skipped on import regardless of ledger state; that is what
// keeps bidirectional mode from reimporting its own exports.
const EventMarker = "[calsync]"

func stampDescription(notes string, tags []string) string {
	b := strings.Builder{}
	b.WriteString(EventMarker)
	if notes != "" {
		b.WriteString("\n")
		b.WriteString(notes)
	}
	if len(tags) > 0 {
		b.WriteString("\nTags: ")
		b.WriteString(strings.Join(tags, ", "))
	}
	return b.String()
}

func isSelfCreated(description string) bool {
	return strings.HasPrefix(description, EventMarker)
}
