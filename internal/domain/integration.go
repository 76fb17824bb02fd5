package domain

import "time"

// Provider identifies a supported external calendar provider.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// SyncDirection controls which halves of a pass run.
type SyncDirection string

const (
	DirectionExportOnly    SyncDirection = "export-only"
	DirectionImportOnly    SyncDirection = "import-only"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// SyncType selects the time window of a pass: a full pass looks back
// LookbackDays, an incremental pass resumes from last_sync_at.
type SyncType string

const (
	SyncFull        SyncType = "full"
	SyncIncremental SyncType = "incremental"
)

// SyncStatus is the integration-level outcome of the most recent pass.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusPartial SyncStatus = "partial"
	StatusError   SyncStatus = "error"
)

const (
	DefaultLookbackDays  = 90
	DefaultLookaheadDays = 30
	DefaultCalendarID    = "primary"
)

// IntegrationConfig is the per-integration sync configuration, stored as an
// opaque JSON blob on the integration row.
type IntegrationConfig struct {
	SyncDirection SyncDirection `json:"sync_direction"`
	CalendarID    string        `json:"calendar_id"`
	LookbackDays  int           `json:"lookback_days"`
	LookaheadDays int           `json:"lookahead_days"`
}

// WithDefaults fills unset fields with the engine defaults.
func (c IntegrationConfig) WithDefaults() IntegrationConfig {
	if c.SyncDirection == "" {
		c.SyncDirection = DirectionBidirectional
	}
	if c.CalendarID == "" {
		c.CalendarID = DefaultCalendarID
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = DefaultLookbackDays
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = DefaultLookaheadDays
	}
	return c
}

// Exports reports whether the configured direction includes the export half.
func (c IntegrationConfig) Exports() bool { return c.SyncDirection != DirectionImportOnly }

// Imports reports whether the configured direction includes the import half.
func (c IntegrationConfig) Imports() bool { return c.SyncDirection != DirectionExportOnly }

// Integration is one configured connection between a user and a calendar
// provider. The sync engine mutates only the status fields and, after a
// token refresh, the credential blob.
type Integration struct {
	ID             int64
	UserID         int64
	Provider       Provider
	Credentials    Credentials
	Config         IntegrationConfig
	LastSyncAt     *time.Time
	LastSyncStatus SyncStatus
	LastError      string
}
