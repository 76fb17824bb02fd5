package config

import (
	"errors"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds service configuration. Values come from an optional TOML
// file (CALSYNC_CONFIG, default ./calsync.toml) with environment variables
// taking precedence.
type Config struct {
	MySQL struct {
		DSN string `toml:"dsn"` // e.g., user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
	} `toml:"mysql"`
	Sync struct {
		Timezone string `toml:"timezone"` // application time zone, e.g. UTC (default), Europe/Berlin
	} `toml:"sync"`
	HTTP struct {
		Addr string `toml:"addr"` // trigger server listen address, empty disables it
	} `toml:"http"`
	Google struct {
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		RedirectURL  string `toml:"redirect_url"`
	} `toml:"google"`
	Outlook struct {
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		RedirectURL  string `toml:"redirect_url"`
		Tenant       string `toml:"tenant"` // defaults to "common"
	} `toml:"outlook"`
}

// Load reads the optional config file, applies environment overrides and
// validates required settings. Provider client credentials may stay empty;
// syncing an integration of that provider then fails with an auth error.
func Load() (Config, error) {
	var cfg Config

	path := os.Getenv("CALSYNC_CONFIG")
	if path == "" {
		path = "calsync.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if os.Getenv("CALSYNC_CONFIG") != "" {
		// An explicitly named file must exist.
		return cfg, err
	}

	override(&cfg.MySQL.DSN, "MYSQL_DSN")
	override(&cfg.Sync.Timezone, "SYNC_TZ")
	override(&cfg.HTTP.Addr, "HTTP_ADDR")
	override(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	override(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	override(&cfg.Google.RedirectURL, "GOOGLE_REDIRECT_URL")
	override(&cfg.Outlook.ClientID, "OUTLOOK_CLIENT_ID")
	override(&cfg.Outlook.ClientSecret, "OUTLOOK_CLIENT_SECRET")
	override(&cfg.Outlook.RedirectURL, "OUTLOOK_REDIRECT_URL")
	override(&cfg.Outlook.Tenant, "OUTLOOK_TENANT")

	if cfg.MySQL.DSN == "" {
		return cfg, errors.New("MYSQL_DSN is required")
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "UTC"
	}
	if cfg.Outlook.Tenant == "" {
		cfg.Outlook.Tenant = "common"
	}

	return cfg, nil
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
