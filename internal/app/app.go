package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calsync/internal/adapter"
	"calsync/internal/adapter/mysql"
	"calsync/internal/config"
	"calsync/internal/domain"
	"calsync/internal/migrate"
	"calsync/internal/usecase"
)

// App wires the store, the connector factory and the sync use case.
type App struct {
	log   *slog.Logger
	store *mysql.Store
	uc    *usecase.SyncUseCase
}

func New(log *slog.Logger, cfg config.Config) (*App, error) {
	loc, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TZ %q: %w", cfg.Sync.Timezone, err)
	}
	// Run migrations before opening the store for use.
	if err := migrate.Run(context.Background(), cfg.MySQL.DSN, log); err != nil {
		return nil, err
	}
	store, err := mysql.NewStore(context.Background(), cfg.MySQL.DSN, log)
	if err != nil {
		return nil, err
	}

	uc := &usecase.SyncUseCase{
		Log:          log,
		Integrations: store,
		Entries:      store,
		Links:        store,
		Projects:     store,
		Connectors:   adapter.NewFactory(cfg, log),
		Timezone:     loc,
	}

	return &App{log: log, store: store, uc: uc}, nil
}

// Sync runs one pass for one integration.
func (a *App) Sync(ctx context.Context, integrationID int64, syncType domain.SyncType) (domain.SyncResult, error) {
	return a.uc.Run(ctx, integrationID, syncType)
}

// SyncAll runs one pass per configured integration, in sequence. Failures
// are logged and do not stop the remaining integrations.
func (a *App) SyncAll(ctx context.Context, syncType domain.SyncType) error {
	integrations, err := a.store.ListIntegrations(ctx)
	if err != nil {
		return err
	}
	for _, integ := range integrations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result, err := a.uc.Run(ctx, integ.ID, syncType)
		if err != nil {
			a.log.Error("integration sync failed",
				slog.Int64("integration", integ.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.log.Info("integration synced",
			slog.Int64("integration", integ.ID),
			slog.Bool("success", result.Success),
			slog.Int("synced", result.SyncedCount),
		)
	}
	return nil
}

// Integrations lists all configured integrations with their status fields.
func (a *App) Integrations(ctx context.Context) ([]domain.Integration, error) {
	return a.store.ListIntegrations(ctx)
}

// TestIntegration probes the provider behind one integration.
func (a *App) TestIntegration(ctx context.Context, integrationID int64) (domain.ConnectionTest, error) {
	integ, err := a.store.Integration(ctx, integrationID)
	if err != nil {
		return domain.ConnectionTest{}, err
	}
	conn, err := a.uc.Connectors.Connector(integ)
	if err != nil {
		return domain.ConnectionTest{}, err
	}
	return conn.TestConnection(ctx)
}

// Close releases the store connection pool.
func (a *App) Close() error { return a.store.Close() }
