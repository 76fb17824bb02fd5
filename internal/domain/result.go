package domain

// SyncStats are the per-pass counters kept by the result aggregator. The
// skip-reason keys are self_created, already_imported, invalid_time and
// other.
type SyncStats struct {
	Created     int            `json:"created"`
	Updated     int            `json:"updated"`
	Imported    int            `json:"imported"`
	Skipped     int            `json:"skipped"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
}

// SyncResult is the structured summary returned to whoever triggered the
// pass. Errors carries the full per-item error list; only a truncated view
// is persisted on the integration.
type SyncResult struct {
	Success     bool      `json:"success"`
	SyncedCount int       `json:"synced_count"`
	Errors      []string  `json:"errors,omitempty"`
	Stats       SyncStats `json:"stats"`
}
