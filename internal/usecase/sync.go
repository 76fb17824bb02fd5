package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calsync/internal/domain"
	"calsync/internal/normalize"
	"calsync/internal/ports"
)

// ErrSyncRunning is returned when a pass for the same integration is
// already in flight. The HTTP layer maps it to 409.
var ErrSyncRunning = errors.New("sync already running")

// maxListResults bounds one ListEvents page; the use case targets recent
// timed events, not full-history mirroring.
const maxListResults = 250

// SyncUseCase drives one sync pass for one integration: it resolves
// direction and window from the integration config, pushes eligible time
// entries and pulls provider events through the connector, consults the
// link ledger and the self-created-event filter, and writes the outcome
// back onto the integration.
type SyncUseCase struct {
	Log          *slog.Logger
	Integrations ports.IntegrationStore
	Entries      ports.TimeEntryStore
	Links        ports.LinkStore
	Projects     ports.ProjectStore
	Connectors   ports.ConnectorFactory
	Timezone     *time.Location // application time zone, UTC when nil
	Now          func() time.Time

	inflight sync.Map // integration id -> struct{}
}

// Run executes one pass and returns the structured summary. The error
// return is reserved for infrastructure failures (unknown integration,
// persistence aborts, overlapping pass); auth failures against the provider
// are reported through the summary after being persisted as status error.
func (uc *SyncUseCase) Run(ctx context.Context, integrationID int64, syncType domain.SyncType) (domain.SyncResult, error) {
	if uc.Integrations == nil || uc.Entries == nil || uc.Links == nil || uc.Projects == nil || uc.Connectors == nil {
		return domain.SyncResult{}, errors.New("usecase not initialized: missing dependencies")
	}
	if syncType != domain.SyncFull && syncType != domain.SyncIncremental {
		return domain.SyncResult{}, fmt.Errorf("unknown sync type %q", syncType)
	}

	// Single-flight per integration: overlapping passes would race the
	// ledger against the provider and duplicate provider-side events.
	if _, busy := uc.inflight.LoadOrStore(integrationID, struct{}{}); busy {
		return domain.SyncResult{}, ErrSyncRunning
	}
	defer uc.inflight.Delete(integrationID)

	integ, err := uc.Integrations.Integration(ctx, integrationID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	cfg := integ.Config.WithDefaults()

	log := uc.Log.With(
		slog.Int64("integration", integrationID),
		slog.String("provider", string(integ.Provider)),
		slog.String("type", string(syncType)),
		slog.String("pass", uuid.NewString()),
	)

	pass := newReport()
	now := uc.clock()
	loc := uc.location()

	conn, err := uc.Connectors.Connector(integ)
	if err != nil {
		// No provider session: the pass fails before any item is touched
		// and last_sync_at stays where it was.
		log.Error("sync aborted, no provider session", slog.String("error", err.Error()))
		if serr := uc.Integrations.SaveSyncOutcome(ctx, integrationID, domain.StatusError, err.Error(), nil); serr != nil {
			return domain.SyncResult{}, serr
		}
		return domain.SyncResult{Success: false, Errors: []string{err.Error()}}, nil
	}

	projects, err := uc.Projects.ListProjects(ctx, integ.UserID)
	if err != nil {
		return uc.abort(ctx, log, integrationID, pass, fmt.Errorf("listing projects: %w", err))
	}

	windowStart := passWindow(integ, cfg, syncType, now)
	log.Info("sync pass started",
		slog.String("direction", string(cfg.SyncDirection)),
		slog.Time("window_start", windowStart),
	)

	if cfg.Exports() {
		if err := uc.exportEntries(ctx, log, integ, cfg, conn, projects, loc, windowStart, pass); err != nil {
			return uc.abort(ctx, log, integrationID, pass, err)
		}
	}
	if cfg.Imports() {
		if err := uc.importEvents(ctx, log, integ, cfg, conn, projects, loc, windowStart, now, pass); err != nil {
			return uc.abort(ctx, log, integrationID, pass, err)
		}
	}

	// Finalizing: persist a refreshed token set if the connector produced
	// one, then the pass outcome. last_sync_at advances only here.
	if creds, dirty := conn.Credentials(); dirty {
		if err := uc.Integrations.SaveCredentials(ctx, integrationID, creds); err != nil {
			return uc.abort(ctx, log, integrationID, pass, fmt.Errorf("persisting refreshed credentials: %w", err))
		}
		log.Debug("refreshed credentials persisted")
	}
	status := pass.status()
	if err := uc.Integrations.SaveSyncOutcome(ctx, integrationID, status, pass.lastError(), &now); err != nil {
		return uc.abort(ctx, log, integrationID, pass, fmt.Errorf("persisting sync outcome: %w", err))
	}

	result := pass.result()
	log.Info("sync pass finished",
		slog.String("status", string(status)),
		slog.Int("created", pass.created),
		slog.Int("updated", pass.updated),
		slog.Int("imported", pass.imported),
		slog.Int("skipped", pass.skipped),
		slog.Int("errors", len(pass.errs)),
	)
	return result, nil
}

// abort handles persistence failures: the pass stops, the integration is
// marked errored best-effort, and the caller sees a single aggregate error.
func (uc *SyncUseCase) abort(ctx context.Context, log *slog.Logger, integrationID int64, pass *report, err error) (domain.SyncResult, error) {
	log.Error("sync pass aborted", slog.String("error", err.Error()))
	if serr := uc.Integrations.SaveSyncOutcome(ctx, integrationID, domain.StatusError, err.Error(), nil); serr != nil {
		log.Error("recording aborted status failed", slog.String("error", serr.Error()))
	}
	result := pass.result()
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	return result, err
}

// exportEntries pushes completed time entries into the provider calendar.
// Linked entries get an update against the existing external uid, unlinked
// ones a create plus a new ledger record. Provider failures are recorded
// per entry; only ledger failures abort.
func (uc *SyncUseCase) exportEntries(
	ctx context.Context,
	log *slog.Logger,
	integ domain.Integration,
	cfg domain.IntegrationConfig,
	conn ports.Connector,
	projects []domain.Project,
	loc *time.Location,
	windowStart time.Time,
	pass *report,
) error {
	entries, err := uc.Entries.ListCompletedSince(ctx, integ.UserID, normalize.ToNaive(windowStart, loc))
	if err != nil {
		return fmt.Errorf("listing time entries: %w", err)
	}
	log.Debug("export candidates fetched", slog.Int("count", len(entries)))

	names := make(map[int64]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	for _, entry := range entries {
		ev := exportEvent(entry, names, loc)

		link, err := uc.Links.LinkByEntry(ctx, integ.ID, entry.ID)
		if err != nil {
			return fmt.Errorf("ledger lookup for entry %d: %w", entry.ID, err)
		}
		if link != nil {
			if err := conn.UpdateEvent(ctx, cfg.CalendarID, link.ExternalUID, ev); err != nil {
				pass.fail(fmt.Sprintf("entry %d", entry.ID), err)
				continue
			}
			pass.update()
			log.Debug("event updated", slog.Int64("entry", entry.ID), slog.String("uid", link.ExternalUID))
			continue
		}

		uid, err := conn.CreateEvent(ctx, cfg.CalendarID, ev)
		if err != nil {
			pass.fail(fmt.Sprintf("entry %d", entry.ID), err)
			continue
		}
		if err := uc.Links.CreateLink(ctx, domain.ExternalEventLink{
			IntegrationID: integ.ID,
			TimeEntryID:   entry.ID,
			ExternalUID:   uid,
		}); err != nil {
			return fmt.Errorf("recording link for entry %d: %w", entry.ID, err)
		}
		pass.create()
		log.Debug("event created", slog.Int64("entry", entry.ID), slog.String("uid", uid))
	}
	return nil
}

// importEvents pulls provider events and turns unseen timed ones into
// auto-sourced time entries. Each event runs the marker filter, the ledger
// dedup and the time validation before anything is written.
func (uc *SyncUseCase) importEvents(
	ctx context.Context,
	log *slog.Logger,
	integ domain.Integration,
	cfg domain.IntegrationConfig,
	conn ports.Connector,
	projects []domain.Project,
	loc *time.Location,
	timeMin time.Time,
	now time.Time,
	pass *report,
) error {
	events, err := conn.ListEvents(ctx, cfg.CalendarID, timeMin, maxListResults)
	if err != nil {
		// The whole import half failed; record it and let export results
		// stand.
		pass.fail("listing events", err)
		return nil
	}
	log.Debug("import candidates fetched", slog.Int("count", len(events)))

	horizon := now.AddDate(0, 0, cfg.LookaheadDays)

	for _, ev := range events {
		if isSelfCreated(ev.Description) {
			pass.skip(SkipSelfCreated)
			continue
		}
		link, err := uc.Links.LinkByUID(ctx, integ.ID, ev.ExternalID)
		if err != nil {
			return fmt.Errorf("ledger lookup for event %s: %w", ev.ExternalID, err)
		}
		if link != nil {
			pass.skip(SkipAlreadyImported)
			continue
		}
		// Date-only (all-day) boundaries carry no instant and fail here.
		if !ev.Start.Timed() || !ev.End.Timed() || !ev.End.DateTime.After(*ev.Start.DateTime) {
			pass.skip(SkipInvalidTime)
			continue
		}
		if ev.Start.DateTime.After(horizon) {
			pass.skip(SkipOther)
			continue
		}

		end := normalize.ToNaive(*ev.End.DateTime, loc)
		entry := domain.TimeEntry{
			UserID:    integ.UserID,
			ProjectID: matchProject(projects, ev.Title),
			Start:     normalize.ToNaive(*ev.Start.DateTime, loc),
			End:       &end,
			Notes:     ev.Title,
			Billable:  false,
			Source:    domain.SourceAuto,
		}
		if err := uc.Links.CreateImported(ctx, entry, domain.ExternalEventLink{
			IntegrationID: integ.ID,
			ExternalUID:   ev.ExternalID,
			ExternalHref:  ev.Href,
		}); err != nil {
			return fmt.Errorf("persisting imported event %s: %w", ev.ExternalID, err)
		}
		pass.importOne()
		log.Debug("event imported", slog.String("uid", ev.ExternalID))
	}
	return nil
}

// passWindow resolves the window start: incremental passes resume from the
// last successful finalize, full passes look back the configured number of
// days.
func passWindow(integ domain.Integration, cfg domain.IntegrationConfig, syncType domain.SyncType, now time.Time) time.Time {
	if syncType == domain.SyncIncremental && integ.LastSyncAt != nil {
		return *integ.LastSyncAt
	}
	return now.AddDate(0, 0, -cfg.LookbackDays)
}

// exportEvent renders a completed time entry as a provider event: the
// notes (or project name) become the title, and the description starts
// with the self-created marker.
func exportEvent(entry domain.TimeEntry, projectNames map[int64]string, loc *time.Location) domain.Event {
	title := strings.TrimSpace(entry.Notes)
	if title == "" && entry.ProjectID != nil {
		title = projectNames[*entry.ProjectID]
	}
	if title == "" {
		title = "Tracked time"
	}

	start := normalize.ToUTC(entry.Start, loc)
	end := normalize.ToUTC(*entry.End, loc)
	tz := loc.String()
	return domain.Event{
		Title:       title,
		Description: stampDescription(entry.Notes, entry.Tags),
		Start:       domain.EventTime{DateTime: &start, TimeZone: tz},
		End:         domain.EventTime{DateTime: &end, TimeZone: tz},
	}
}

// matchProject finds the first project whose name appears, case-sensitive,
// inside the event title. No match leaves the entry unassigned.
func matchProject(projects []domain.Project, title string) *int64 {
	for _, p := range projects {
		if p.Name != "" && strings.Contains(title, p.Name) {
			id := p.ID
			return &id
		}
	}
	return nil
}

func (uc *SyncUseCase) clock() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc *SyncUseCase) location() *time.Location {
	if uc.Timezone != nil {
		return uc.Timezone
	}
	return time.UTC
}
