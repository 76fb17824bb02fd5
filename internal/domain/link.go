package domain

// ExternalEventLink is the idempotency record mapping one internal time
// entry to one provider event, per integration. It is the sole source of
// truth for "already synced" in both directions: at most one link per
// time entry and at most one per external UID within an integration. Links
// are never deleted by a sync pass.
type ExternalEventLink struct {
	ID            int64
	IntegrationID int64
	TimeEntryID   int64
	ExternalUID   string
	ExternalHref  string
}
