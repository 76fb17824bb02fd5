package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"calsync/internal/domain"
)

// Store implements the engine's persistence ports on MySQL: integrations,
// time entries, projects and the external-event-link ledger.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStore opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewStore(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	// Conservative pool defaults; can be adjusted via env later.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

const integrationCols = "id, user_id, provider, credentials, config, last_sync_at, last_sync_status, last_error"

// Integration loads one integration by id.
func (s *Store) Integration(ctx context.Context, id int64) (domain.Integration, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+integrationCols+" FROM integrations WHERE id = ?", id)
	integ, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return integ, fmt.Errorf("mysql: integration %d not found", id)
	}
	return integ, err
}

// ListIntegrations returns all integrations, for scheduled all-integration
// passes.
func (s *Store) ListIntegrations(ctx context.Context) ([]domain.Integration, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+integrationCols+" FROM integrations ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Integration
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, integ)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (domain.Integration, error) {
	var (
		integ       domain.Integration
		credentials []byte
		config      []byte
		lastSyncAt  sql.NullTime
		status      string
	)
	if err := row.Scan(&integ.ID, &integ.UserID, &integ.Provider, &credentials, &config, &lastSyncAt, &status, &integ.LastError); err != nil {
		return integ, err
	}
	if len(credentials) > 0 {
		if err := json.Unmarshal(credentials, &integ.Credentials); err != nil {
			return integ, fmt.Errorf("mysql: decoding credentials for integration %d: %w", integ.ID, err)
		}
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &integ.Config); err != nil {
			return integ, fmt.Errorf("mysql: decoding config for integration %d: %w", integ.ID, err)
		}
	}
	if lastSyncAt.Valid {
		t := lastSyncAt.Time.UTC()
		integ.LastSyncAt = &t
	}
	integ.LastSyncStatus = domain.SyncStatus(status)
	return integ, nil
}

// SaveSyncOutcome writes the pass outcome onto the integration row. The
// last_sync_at column advances only when syncedAt is non-nil.
func (s *Store) SaveSyncOutcome(ctx context.Context, id int64, status domain.SyncStatus, lastError string, syncedAt *time.Time) error {
	if syncedAt != nil {
		_, err := s.db.ExecContext(ctx,
			"UPDATE integrations SET last_sync_status = ?, last_error = ?, last_sync_at = ? WHERE id = ?",
			string(status), lastError, syncedAt.UTC(), id)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE integrations SET last_sync_status = ?, last_error = ? WHERE id = ?",
		string(status), lastError, id)
	return err
}

// SaveCredentials replaces the credential blob after a token refresh.
func (s *Store) SaveCredentials(ctx context.Context, id int64, creds domain.Credentials) error {
	blob, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "UPDATE integrations SET credentials = ? WHERE id = ?", blob, id)
	return err
}

// ListCompletedSince returns the user's time entries with an end time and a
// start at or after since. Running entries never leave the store.
func (s *Store) ListCompletedSince(ctx context.Context, userID int64, since time.Time) ([]domain.TimeEntry, error) {
	const q = `
SELECT id, user_id, project_id, start_time, end_time, notes, tags, billable, source
FROM time_entries
WHERE user_id = ? AND end_time IS NOT NULL AND start_time >= ?
ORDER BY start_time`
	rows, err := s.db.QueryContext(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TimeEntry
	for rows.Next() {
		var (
			e        domain.TimeEntry
			project  sql.NullInt64
			end      sql.NullTime
			tagsJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &project, &e.Start, &end, &e.Notes, &tagsJSON, &e.Billable, &e.Source); err != nil {
			return nil, err
		}
		if project.Valid {
			p := project.Int64
			e.ProjectID = &p
		}
		if end.Valid {
			t := end.Time
			e.End = &t
		}
		if len(tagsJSON) > 0 {
			if err := json.Unmarshal(tagsJSON, &e.Tags); err != nil {
				return nil, fmt.Errorf("mysql: decoding tags for entry %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListProjects returns the user's projects for title matching.
func (s *Store) ListProjects(ctx context.Context, userID int64) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, color, archived FROM projects WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Color, &p.Archived); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LinkByEntry looks up the ledger by (integration, time entry). Returns nil
// when no link exists.
func (s *Store) LinkByEntry(ctx context.Context, integrationID, timeEntryID int64) (*domain.ExternalEventLink, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, integration_id, time_entry_id, external_uid, external_href FROM external_event_links WHERE integration_id = ? AND time_entry_id = ?",
		integrationID, timeEntryID)
	return scanLink(row)
}

// LinkByUID looks up the ledger by (integration, external uid). Returns nil
// when no link exists.
func (s *Store) LinkByUID(ctx context.Context, integrationID int64, externalUID string) (*domain.ExternalEventLink, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, integration_id, time_entry_id, external_uid, external_href FROM external_event_links WHERE integration_id = ? AND external_uid = ?",
		integrationID, externalUID)
	return scanLink(row)
}

func scanLink(row *sql.Row) (*domain.ExternalEventLink, error) {
	var l domain.ExternalEventLink
	err := row.Scan(&l.ID, &l.IntegrationID, &l.TimeEntryID, &l.ExternalUID, &l.ExternalHref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLink inserts a new ledger record. The unique keys on
// (integration_id, time_entry_id) and (integration_id, external_uid) back
// the at-most-one invariants.
func (s *Store) CreateLink(ctx context.Context, link domain.ExternalEventLink) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO external_event_links (integration_id, time_entry_id, external_uid, external_href, created_at) VALUES (?, ?, ?, ?, ?)",
		link.IntegrationID, link.TimeEntryID, link.ExternalUID, link.ExternalHref, time.Now().UTC())
	return err
}

// CreateImported inserts an imported time entry and its ledger record in one
// transaction; a failed commit leaves neither behind.
func (s *Store) CreateImported(ctx context.Context, entry domain.TimeEntry, link domain.ExternalEventLink) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	tagsJSON, _ := json.Marshal(entry.Tags)
	var project any
	if entry.ProjectID != nil {
		project = *entry.ProjectID
	}
	var end any
	if entry.End != nil {
		end = *entry.End
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO time_entries (user_id, project_id, start_time, end_time, notes, tags, billable, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		entry.UserID, project, entry.Start, end, entry.Notes, string(tagsJSON), entry.Billable, entry.Source)
	if err != nil {
		tx.Rollback()
		return err
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO external_event_links (integration_id, time_entry_id, external_uid, external_href, created_at) VALUES (?, ?, ?, ?, ?)",
		link.IntegrationID, entryID, link.ExternalUID, link.ExternalHref, time.Now().UTC()); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("imported entry persisted",
		slog.Int64("integration", link.IntegrationID),
		slog.Int64("entry", entryID),
		slog.String("uid", link.ExternalUID),
	)
	return nil
}

// Close closes the underlying DB. Not wired via interface to keep ports minimal.
func (s *Store) Close() error { return s.db.Close() }
