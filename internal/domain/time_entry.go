package domain

import "time"

// Entry sources. Entries created by a sync import are tagged SourceAuto so
// the time-tracking side can tell them apart from hand-entered work.
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)

// TimeEntry is an internal record of worked time, consumed by the sync
// engine. Start and End are zone-naive wall-clock timestamps in the
// application time zone; End == nil means the entry is still running and is
// never exported.
type TimeEntry struct {
	ID        int64
	UserID    int64
	ProjectID *int64
	Start     time.Time
	End       *time.Time
	Notes     string
	Tags      []string
	Billable  bool
	Source    string
}

// Completed reports whether the entry has a recorded end time and is
// therefore eligible for export.
func (e TimeEntry) Completed() bool { return e.End != nil }
