package ports

import (
	"context"
	"time"

	"calsync/internal/domain"
)

// Connector is the uniform per-provider contract for authentication and the
// event API. Implementations refresh an expired access token themselves,
// once, before any network call; the possibly-refreshed token is surfaced
// through Credentials so the orchestrator can persist it.
type Connector interface {
	// AuthorizeURL builds the provider authorization URL for the OAuth
	// redirect flow (the flow itself lives outside this engine).
	AuthorizeURL(redirectURI, state string) string

	// ExchangeCode trades an authorization code for a token set.
	ExchangeCode(ctx context.Context, code, redirectURI string) (domain.Credentials, error)

	// RefreshToken forces a refresh of the access token. Fails with
	// *domain.AuthError when no refresh token is held.
	RefreshToken(ctx context.Context) (domain.Credentials, error)

	// TestConnection probes the provider and lists available calendars.
	TestConnection(ctx context.Context) (domain.ConnectionTest, error)

	ListEvents(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]domain.Event, error)
	CreateEvent(ctx context.Context, calendarID string, ev domain.Event) (string, error)
	UpdateEvent(ctx context.Context, calendarID, externalID string, ev domain.Event) error

	// Credentials returns the current token set and whether it changed
	// since the connector was built.
	Credentials() (domain.Credentials, bool)
}

// ConnectorFactory builds the connector matching an integration's provider
// tag. It fails with *domain.AuthError when the provider's client
// credentials are not configured or the integration holds no tokens.
type ConnectorFactory interface {
	Connector(integration domain.Integration) (Connector, error)
}

// IntegrationStore reads integrations and writes back the pass outcome.
type IntegrationStore interface {
	Integration(ctx context.Context, id int64) (domain.Integration, error)
	ListIntegrations(ctx context.Context) ([]domain.Integration, error)
	// SaveSyncOutcome writes status and last_error; syncedAt advances
	// last_sync_at when non-nil.
	SaveSyncOutcome(ctx context.Context, id int64, status domain.SyncStatus, lastError string, syncedAt *time.Time) error
	SaveCredentials(ctx context.Context, id int64, creds domain.Credentials) error
}

// TimeEntryStore exposes the internal time-entry records the engine
// consumes. Entries without an end time are never returned.
type TimeEntryStore interface {
	ListCompletedSince(ctx context.Context, userID int64, since time.Time) ([]domain.TimeEntry, error)
}

// LinkStore is the idempotency ledger. Lookups return nil when no link
// exists.
type LinkStore interface {
	LinkByEntry(ctx context.Context, integrationID, timeEntryID int64) (*domain.ExternalEventLink, error)
	LinkByUID(ctx context.Context, integrationID int64, externalUID string) (*domain.ExternalEventLink, error)
	CreateLink(ctx context.Context, link domain.ExternalEventLink) error
	// CreateImported persists an imported entry and its link in one
	// transaction so neither can exist without the other.
	CreateImported(ctx context.Context, entry domain.TimeEntry, link domain.ExternalEventLink) error
}

// ProjectStore provides the project names used for best-effort title
// matching on import.
type ProjectStore interface {
	ListProjects(ctx context.Context, userID int64) ([]domain.Project, error)
}
