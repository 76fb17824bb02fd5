package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calsync/internal/domain"
	"calsync/internal/ports"
)

// --- fakes -----------------------------------------------------------------

type savedOutcome struct {
	status    domain.SyncStatus
	lastError string
	syncedAt  *time.Time
}

type fakeStore struct {
	mu sync.Mutex

	integrations map[int64]domain.Integration
	entries      []domain.TimeEntry
	projects     []domain.Project
	links        []domain.ExternalEventLink
	imported     []domain.TimeEntry

	nextEntryID    int64
	outcomes       []savedOutcome
	savedCreds     *domain.Credentials
	createLinkErr  error
	importedErr    error
	listEntriesErr error
}

func newFakeStore(integ domain.Integration) *fakeStore {
	return &fakeStore{
		integrations: map[int64]domain.Integration{integ.ID: integ},
		nextEntryID:  1000,
	}
}

func (s *fakeStore) Integration(_ context.Context, id int64) (domain.Integration, error) {
	integ, ok := s.integrations[id]
	if !ok {
		return integ, fmt.Errorf("integration %d not found", id)
	}
	return integ, nil
}

func (s *fakeStore) ListIntegrations(context.Context) ([]domain.Integration, error) {
	var out []domain.Integration
	for _, integ := range s.integrations {
		out = append(out, integ)
	}
	return out, nil
}

func (s *fakeStore) SaveSyncOutcome(_ context.Context, _ int64, status domain.SyncStatus, lastError string, syncedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, savedOutcome{status: status, lastError: lastError, syncedAt: syncedAt})
	return nil
}

func (s *fakeStore) SaveCredentials(_ context.Context, _ int64, creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedCreds = &creds
	return nil
}

func (s *fakeStore) ListCompletedSince(_ context.Context, userID int64, since time.Time) ([]domain.TimeEntry, error) {
	if s.listEntriesErr != nil {
		return nil, s.listEntriesErr
	}
	var out []domain.TimeEntry
	for _, e := range s.entries {
		if e.UserID == userID && e.Completed() && !e.Start.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ListProjects(_ context.Context, userID int64) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) LinkByEntry(_ context.Context, integrationID, timeEntryID int64) (*domain.ExternalEventLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.links {
		if s.links[i].IntegrationID == integrationID && s.links[i].TimeEntryID == timeEntryID {
			l := s.links[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LinkByUID(_ context.Context, integrationID int64, externalUID string) (*domain.ExternalEventLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.links {
		if s.links[i].IntegrationID == integrationID && s.links[i].ExternalUID == externalUID {
			l := s.links[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateLink(_ context.Context, link domain.ExternalEventLink) error {
	if s.createLinkErr != nil {
		return s.createLinkErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, link)
	return nil
}

func (s *fakeStore) CreateImported(_ context.Context, entry domain.TimeEntry, link domain.ExternalEventLink) error {
	if s.importedErr != nil {
		return s.importedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntryID++
	entry.ID = s.nextEntryID
	link.TimeEntryID = entry.ID
	s.imported = append(s.imported, entry)
	s.links = append(s.links, link)
	return nil
}

type fakeConnector struct {
	mu sync.Mutex

	events      []domain.Event
	listErr     error
	listTimeMin time.Time
	listGate    chan struct{} // when set, ListEvents blocks until closed

	created   []domain.Event
	updated   map[string]domain.Event
	createErr map[string]error // keyed by event title
	nextID    int

	creds domain.Credentials
	dirty bool
}

func newFakeConnector(events ...domain.Event) *fakeConnector {
	return &fakeConnector{events: events, updated: make(map[string]domain.Event)}
}

func (c *fakeConnector) AuthorizeURL(string, string) string { return "https://example.test/auth" }

func (c *fakeConnector) ExchangeCode(context.Context, string, string) (domain.Credentials, error) {
	return c.creds, nil
}

func (c *fakeConnector) RefreshToken(context.Context) (domain.Credentials, error) {
	return c.creds, nil
}

func (c *fakeConnector) TestConnection(context.Context) (domain.ConnectionTest, error) {
	return domain.ConnectionTest{Success: true}, nil
}

func (c *fakeConnector) ListEvents(_ context.Context, _ string, timeMin time.Time, _ int64) ([]domain.Event, error) {
	if c.listGate != nil {
		<-c.listGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listTimeMin = timeMin
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.events, nil
}

func (c *fakeConnector) CreateEvent(_ context.Context, _ string, ev domain.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.createErr[ev.Title]; err != nil {
		return "", err
	}
	c.nextID++
	ev.ExternalID = fmt.Sprintf("ev-%d", c.nextID)
	c.created = append(c.created, ev)
	return ev.ExternalID, nil
}

func (c *fakeConnector) UpdateEvent(_ context.Context, _ string, externalID string, ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated[externalID] = ev
	return nil
}

func (c *fakeConnector) Credentials() (domain.Credentials, bool) { return c.creds, c.dirty }

type fakeFactory struct {
	conn ports.Connector
	err  error
}

func (f fakeFactory) Connector(domain.Integration) (ports.Connector, error) {
	return f.conn, f.err
}

// --- helpers ---------------------------------------------------------------

var testNow = time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

func naive(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func instant(y int, m time.Month, d, hh, mm int) *time.Time {
	t := time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
	return &t
}

func testIntegration(direction domain.SyncDirection) domain.Integration {
	return domain.Integration{
		ID:       1,
		UserID:   7,
		Provider: domain.ProviderGoogle,
		Credentials: domain.Credentials{
			AccessToken:  "tok",
			RefreshToken: "refresh",
		},
		Config: domain.IntegrationConfig{SyncDirection: direction},
	}
}

func newUC(store *fakeStore, factory ports.ConnectorFactory) *SyncUseCase {
	return &SyncUseCase{
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Integrations: store,
		Entries:      store,
		Links:        store,
		Projects:     store,
		Connectors:   factory,
		Timezone:     time.UTC,
		Now:          func() time.Time { return testNow },
	}
}

func completedEntry(id int64, start time.Time, dur time.Duration, notes string) domain.TimeEntry {
	end := start.Add(dur)
	return domain.TimeEntry{ID: id, UserID: 7, Start: start, End: &end, Notes: notes, Source: domain.SourceManual}
}

func timedEvent(uid, title, description string, start, end *time.Time) domain.Event {
	return domain.Event{
		ExternalID:  uid,
		Title:       title,
		Description: description,
		Start:       domain.EventTime{DateTime: start, TimeZone: "UTC"},
		End:         domain.EventTime{DateTime: end, TimeZone: "UTC"},
	}
}

// --- export ----------------------------------------------------------------

func TestRun_ExportOnly_SyncsCompletedEntriesOnly(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), 90*time.Minute, "Dev work"),
		completedEntry(2, naive(2026, time.June, 9, 13, 0), time.Hour, "Meeting"),
		{ID: 3, UserID: 7, Start: naive(2026, time.June, 10, 9, 0), Notes: "Still running"},
	}
	conn := newFakeConnector()
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Stats.Created)
	assert.Len(t, conn.created, 2)
	assert.Len(t, store.links, 2)

	// The in-progress entry never reached the connector.
	for _, ev := range conn.created {
		assert.NotEqual(t, "Still running", ev.Title)
	}
}

func TestRun_ExportIsIdempotent(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), time.Hour, "Dev work"),
		completedEntry(2, naive(2026, time.June, 9, 13, 0), time.Hour, "Meeting"),
	}
	conn := newFakeConnector()
	uc := newUC(store, fakeFactory{conn: conn})

	_, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)
	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	// Second run updates in place: one link per entry, no new provider
	// events.
	assert.Len(t, store.links, 2)
	assert.Len(t, conn.created, 2)
	assert.Len(t, conn.updated, 2)
	assert.Equal(t, 2, result.Stats.Updated)
	assert.Equal(t, 0, result.Stats.Created)
}

func TestRun_ExportedEventsCarryMarkerAndZone(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), time.Hour, "Dev work"),
	}
	conn := newFakeConnector()
	uc := newUC(store, fakeFactory{conn: conn})
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	uc.Timezone = berlin

	_, err = uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	require.Len(t, conn.created, 1)
	ev := conn.created[0]
	assert.True(t, isSelfCreated(ev.Description))
	assert.Equal(t, "Europe/Berlin", ev.Start.TimeZone)
	// 09:00 Berlin summer wall clock is 07:00 UTC.
	assert.Equal(t, time.Date(2026, time.June, 9, 7, 0, 0, 0, time.UTC), ev.Start.DateTime.UTC())
}

func TestRun_ExportPartialFailureContinues(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), time.Hour, "Dev work"),
		completedEntry(2, naive(2026, time.June, 9, 13, 0), time.Hour, "Meeting"),
	}
	conn := newFakeConnector()
	conn.createErr = map[string]error{
		"Dev work": &domain.ProviderError{Status: 500, Message: "backend error"},
	}
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "entry 1")

	require.NotEmpty(t, store.outcomes)
	final := store.outcomes[len(store.outcomes)-1]
	assert.Equal(t, domain.StatusPartial, final.status)
	require.NotNil(t, final.syncedAt)
	assert.True(t, final.syncedAt.Equal(testNow))
}

func TestRun_AllItemsFailingIsError(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	for i := int64(1); i <= 5; i++ {
		store.entries = append(store.entries,
			completedEntry(i, naive(2026, time.June, 9, int(i), 0), time.Hour, fmt.Sprintf("task %d", i)))
	}
	conn := newFakeConnector()
	conn.createErr = map[string]error{}
	for i := 1; i <= 5; i++ {
		conn.createErr[fmt.Sprintf("task %d", i)] = &domain.ProviderError{Status: 503, Message: "down"}
	}
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.SyncedCount)
	assert.Len(t, result.Errors, 5, "caller sees the full list")

	final := store.outcomes[len(store.outcomes)-1]
	assert.Equal(t, domain.StatusError, final.status)
	// Persisted view is truncated to the first three messages.
	assert.Contains(t, final.lastError, "entry 1")
	assert.Contains(t, final.lastError, "entry 3")
	assert.NotContains(t, final.lastError, "entry 4")
}

func TestRun_IncrementalWindowStartsAtLastSync(t *testing.T) {
	integ := testIntegration(domain.DirectionExportOnly)
	lastSync := time.Date(2026, time.June, 8, 0, 0, 0, 0, time.UTC)
	integ.LastSyncAt = &lastSync
	store := newFakeStore(integ)
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 1, 9, 0), time.Hour, "Old work"),
		completedEntry(2, naive(2026, time.June, 9, 9, 0), time.Hour, "New work"),
	}
	conn := newFakeConnector()
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SyncedCount)
	require.Len(t, conn.created, 1)
	assert.Equal(t, "New work", conn.created[0].Title)
}

// --- import ----------------------------------------------------------------

func TestRun_ImportSkipsSelfCreatedEvents(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionBidirectional))
	conn := newFakeConnector(
		timedEvent("ext-1", "Exported earlier", EventMarker+"\nDev work",
			instant(2026, time.June, 9, 9, 0), instant(2026, time.June, 9, 10, 0)),
		timedEvent("ext-2", "Customer call", "",
			instant(2026, time.June, 9, 11, 0), instant(2026, time.June, 9, 12, 0)),
	)
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.Imported)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.Equal(t, 1, result.Stats.SkipReasons[SkipSelfCreated])
	require.Len(t, store.imported, 1)
	assert.Equal(t, "Customer call", store.imported[0].Notes)
}

func TestRun_ImportDedupsByExternalUID(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionImportOnly))
	store.links = []domain.ExternalEventLink{
		{IntegrationID: 1, TimeEntryID: 42, ExternalUID: "ext-1"},
	}
	conn := newFakeConnector(
		timedEvent("ext-1", "Seen before", "",
			instant(2026, time.June, 9, 9, 0), instant(2026, time.June, 9, 10, 0)),
	)
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Imported)
	assert.Equal(t, 1, result.Stats.SkipReasons[SkipAlreadyImported])
	assert.Empty(t, store.imported)
	assert.Len(t, store.links, 1, "no second link for the same uid")
}

func TestRun_ImportRejectsInvalidTimes(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionImportOnly))
	conn := newFakeConnector(
		// end before start
		timedEvent("ext-1", "Inverted", "",
			instant(2026, time.June, 9, 10, 0), instant(2026, time.June, 9, 9, 0)),
		// zero duration
		timedEvent("ext-2", "Empty", "",
			instant(2026, time.June, 9, 9, 0), instant(2026, time.June, 9, 9, 0)),
		// all-day events carry date-only boundaries
		domain.Event{
			ExternalID: "ext-3",
			Title:      "Conference",
			Start:      domain.EventTime{Date: "2026-06-09"},
			End:        domain.EventTime{Date: "2026-06-10"},
		},
		// missing end
		domain.Event{
			ExternalID: "ext-4",
			Title:      "No end",
			Start:      domain.EventTime{DateTime: instant(2026, time.June, 9, 9, 0)},
		},
	)
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Imported)
	assert.Equal(t, 4, result.Stats.SkipReasons[SkipInvalidTime])
	assert.Empty(t, store.links, "invalid events never reach the ledger")
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors, "validation skips are not errors")
}

func TestRun_ImportMatchesProjectBySubstring(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionImportOnly))
	store.projects = []domain.Project{
		{ID: 11, UserID: 7, Name: "Acme"},
		{ID: 12, UserID: 7, Name: "Internal"},
	}
	conn := newFakeConnector(
		timedEvent("ext-1", "Acme weekly sync", "",
			instant(2026, time.June, 9, 9, 0), instant(2026, time.June, 9, 10, 0)),
		timedEvent("ext-2", "acme retro", "", // case-sensitive: no match
			instant(2026, time.June, 9, 11, 0), instant(2026, time.June, 9, 12, 0)),
	)
	uc := newUC(store, fakeFactory{conn: conn})

	_, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	require.Len(t, store.imported, 2)
	require.NotNil(t, store.imported[0].ProjectID)
	assert.Equal(t, int64(11), *store.imported[0].ProjectID)
	assert.Nil(t, store.imported[1].ProjectID)

	for _, entry := range store.imported {
		assert.Equal(t, domain.SourceAuto, entry.Source)
		assert.False(t, entry.Billable)
	}
}

func TestRun_ImportSkipsEventsBeyondLookahead(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionImportOnly))
	conn := newFakeConnector(
		timedEvent("ext-1", "Far future", "",
			instant(2026, time.December, 1, 9, 0), instant(2026, time.December, 1, 10, 0)),
	)
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Imported)
	assert.Equal(t, 1, result.Stats.SkipReasons[SkipOther])
}

func TestRun_ImportListFailureLeavesExportStanding(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionBidirectional))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), time.Hour, "Dev work"),
	}
	conn := newFakeConnector()
	conn.listErr = &domain.ProviderError{Status: 502, Message: "bad gateway"}
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.StatusPartial, store.outcomes[len(store.outcomes)-1].status)
}

// --- round trip ------------------------------------------------------------

func TestRoundTrip_ExportedTimesSurviveReimport(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	origStart := naive(2026, time.June, 9, 9, 30)
	exportStore := newFakeStore(testIntegration(domain.DirectionExportOnly))
	exportStore.entries = []domain.TimeEntry{
		completedEntry(1, origStart, time.Hour, "Dev work"),
	}
	exportConn := newFakeConnector()
	uc := newUC(exportStore, fakeFactory{conn: exportConn})
	uc.Timezone = berlin

	_, err = uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)
	require.Len(t, exportConn.created, 1)

	// Feed the exported event back in, marker stripped, as if a user had
	// created the same event by hand.
	exported := exportConn.created[0]
	exported.Description = ""
	importStore := newFakeStore(testIntegration(domain.DirectionImportOnly))
	uc2 := newUC(importStore, fakeFactory{conn: newFakeConnector(exported)})
	uc2.Timezone = berlin

	_, err = uc2.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	require.Len(t, importStore.imported, 1)
	assert.Equal(t, origStart, importStore.imported[0].Start)
	assert.Equal(t, origStart.Add(time.Hour), *importStore.imported[0].End)
}

// --- failure modes ---------------------------------------------------------

func TestRun_AuthFailureIsHardError(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionBidirectional))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), time.Hour, "Dev work"),
	}
	uc := newUC(store, fakeFactory{err: &domain.AuthError{Reason: "no refresh token held"}})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.SyncedCount)
	require.Len(t, result.Errors, 1)

	final := store.outcomes[len(store.outcomes)-1]
	assert.Equal(t, domain.StatusError, final.status)
	assert.Nil(t, final.syncedAt, "last_sync_at must not advance on hard failure")
}

func TestRun_LedgerWriteFailureAbortsPass(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	store.entries = []domain.TimeEntry{
		completedEntry(1, naive(2026, time.June, 9, 9, 0), time.Hour, "Dev work"),
	}
	store.createLinkErr = fmt.Errorf("commit failed")
	conn := newFakeConnector()
	uc := newUC(store, fakeFactory{conn: conn})

	result, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.Error(t, err)
	assert.False(t, result.Success)

	final := store.outcomes[len(store.outcomes)-1]
	assert.Equal(t, domain.StatusError, final.status)
	assert.Nil(t, final.syncedAt)
}

func TestRun_RefreshedCredentialsArePersisted(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	conn := newFakeConnector()
	conn.creds = domain.Credentials{AccessToken: "fresh", RefreshToken: "refresh"}
	conn.dirty = true
	uc := newUC(store, fakeFactory{conn: conn})

	_, err := uc.Run(context.Background(), 1, domain.SyncFull)
	require.NoError(t, err)

	require.NotNil(t, store.savedCreds)
	assert.Equal(t, "fresh", store.savedCreds.AccessToken)
}

func TestRun_OverlappingPassIsRejected(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionImportOnly))
	conn := newFakeConnector()
	conn.listGate = make(chan struct{})
	uc := newUC(store, fakeFactory{conn: conn})

	firstDone := make(chan error, 1)
	go func() {
		_, err := uc.Run(context.Background(), 1, domain.SyncFull)
		firstDone <- err
	}()

	// Wait until the first pass is inside the connector call.
	require.Eventually(t, func() bool {
		_, busy := uc.inflight.Load(int64(1))
		return busy
	}, time.Second, time.Millisecond)

	_, err := uc.Run(context.Background(), 1, domain.SyncFull)
	assert.ErrorIs(t, err, ErrSyncRunning)

	close(conn.listGate)
	require.NoError(t, <-firstDone)
}

func TestRun_UnknownSyncTypeIsRejected(t *testing.T) {
	store := newFakeStore(testIntegration(domain.DirectionExportOnly))
	uc := newUC(store, fakeFactory{conn: newFakeConnector()})

	_, err := uc.Run(context.Background(), 1, domain.SyncType("weekly"))
	require.Error(t, err)
}
