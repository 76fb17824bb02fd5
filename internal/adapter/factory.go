package adapter

import (
	"fmt"
	"log/slog"

	"calsync/internal/adapter/google"
	"calsync/internal/adapter/outlook"
	"calsync/internal/config"
	"calsync/internal/domain"
	"calsync/internal/ports"
)

// Factory builds the connector matching an integration's provider tag.
type Factory struct {
	cfg config.Config
	log *slog.Logger
}

func NewFactory(cfg config.Config, log *slog.Logger) *Factory {
	return &Factory{cfg: cfg, log: log}
}

// Connector selects and configures the provider implementation. Missing
// client credentials or an integration without tokens fail with an auth
// error before any network call is made.
func (f *Factory) Connector(integration domain.Integration) (ports.Connector, error) {
	switch integration.Provider {
	case domain.ProviderGoogle:
		if f.cfg.Google.ClientID == "" || f.cfg.Google.ClientSecret == "" {
			return nil, &domain.AuthError{Reason: "google client credentials not configured"}
		}
		if integration.Credentials.Empty() {
			return nil, &domain.AuthError{Reason: fmt.Sprintf("integration %d holds no google tokens", integration.ID)}
		}
		return google.New(
			f.cfg.Google.ClientID,
			f.cfg.Google.ClientSecret,
			f.cfg.Google.RedirectURL,
			integration.Credentials,
			f.log,
		), nil

	case domain.ProviderOutlook:
		if f.cfg.Outlook.ClientID == "" || f.cfg.Outlook.ClientSecret == "" {
			return nil, &domain.AuthError{Reason: "outlook client credentials not configured"}
		}
		if integration.Credentials.Empty() {
			return nil, &domain.AuthError{Reason: fmt.Sprintf("integration %d holds no outlook tokens", integration.ID)}
		}
		return outlook.New(
			f.cfg.Outlook.ClientID,
			f.cfg.Outlook.ClientSecret,
			f.cfg.Outlook.RedirectURL,
			f.cfg.Outlook.Tenant,
			integration.Credentials,
			f.log,
		), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", integration.Provider)
	}
}
