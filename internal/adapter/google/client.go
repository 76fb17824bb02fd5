// Package google implements the calendar connector contract for Google
// Calendar through the official API client.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calsync/internal/domain"
)

// Client talks to Google Calendar on behalf of one integration. It holds
// the integration's token set and refreshes it lazily, once, before a call
// when expired; the refreshed set is surfaced through Credentials for the
// orchestrator to persist.
type Client struct {
	oauth     *oauth2.Config
	creds     domain.Credentials
	refreshed bool
	svc       *calendar.Service
	endpoint  string // test override for the API base URL
	now       func() time.Time
	log       *slog.Logger
}

func New(clientID, clientSecret, redirectURL string, creds domain.Credentials, log *slog.Logger) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleauth.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarScope},
		},
		creds: creds,
		now:   time.Now,
		log:   log,
	}
}

// AuthorizeURL builds the consent URL. AccessTypeOffline requests a refresh
// token.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	cfg := *c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode trades an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (domain.Credentials, error) {
	cfg := *c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return domain.Credentials{}, oauthErr(err)
	}
	c.creds = fromToken(tok, domain.Credentials{})
	c.refreshed = true
	c.svc = nil
	return c.creds, nil
}

// RefreshToken forces a refresh of the access token.
func (c *Client) RefreshToken(ctx context.Context) (domain.Credentials, error) {
	if err := c.refresh(ctx); err != nil {
		return domain.Credentials{}, err
	}
	return c.creds, nil
}

// TestConnection lists the account's calendars as a connectivity probe.
func (c *Client) TestConnection(ctx context.Context) (domain.ConnectionTest, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return domain.ConnectionTest{}, err
	}
	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return domain.ConnectionTest{Message: "google calendar unreachable"}, apiErr(err)
	}
	out := domain.ConnectionTest{Success: true, Message: "connected to google calendar"}
	for _, item := range list.Items {
		out.Calendars = append(out.Calendars, domain.CalendarInfo{
			ID:      item.Id,
			Name:    item.Summary,
			Primary: item.Primary,
		})
	}
	return out, nil
}

// ListEvents fetches single events ordered by start time from timeMin on.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]domain.Event, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	res, err := svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiErr(err)
	}

	out := make([]domain.Event, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, domain.Event{
			ExternalID:  item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Start:       eventTime(item.Start),
			End:         eventTime(item.End),
			Href:        item.HtmlLink,
		})
	}
	return out, nil
}

// CreateEvent inserts a timed event and returns its external id.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, ev domain.Event) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID, wireEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", apiErr(err)
	}
	return created.Id, nil
}

// UpdateEvent overwrites an existing event in place.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, externalID string, ev domain.Event) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Update(calendarID, externalID, wireEvent(ev)).Context(ctx).Do(); err != nil {
		return apiErr(err)
	}
	return nil
}

// Credentials returns the current token set and whether it changed.
func (c *Client) Credentials() (domain.Credentials, bool) {
	return c.creds, c.refreshed
}

func (c *Client) service(ctx context.Context) (*calendar.Service, error) {
	if c.creds.Empty() {
		return nil, &domain.AuthError{Reason: "google: no stored credentials"}
	}
	if c.creds.Expired(c.now()) {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
	}
	if c.svc != nil {
		return c.svc, nil
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(toToken(c.creds)))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: creating calendar service: %w", err)
	}
	c.svc = svc
	return svc, nil
}

func (c *Client) refresh(ctx context.Context) error {
	if c.creds.RefreshToken == "" {
		return &domain.AuthError{Reason: "google: no refresh token held"}
	}
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.creds.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return oauthErr(err)
	}
	c.creds = fromToken(tok, c.creds)
	c.refreshed = true
	c.svc = nil
	c.log.Debug("google token refreshed", slog.Time("expiry", c.creds.Expiry))
	return nil
}

func eventTime(t *calendar.EventDateTime) domain.EventTime {
	if t == nil {
		return domain.EventTime{}
	}
	out := domain.EventTime{Date: t.Date, TimeZone: t.TimeZone}
	if t.DateTime != "" {
		// RFC3339 carries the offset; without one the value is taken as UTC.
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			utc := parsed.UTC()
			out.DateTime = &utc
		} else if parsed, err := time.ParseInLocation("2006-01-02T15:04:05", t.DateTime, time.UTC); err == nil {
			out.DateTime = &parsed
		}
	}
	return out
}

func wireEvent(ev domain.Event) *calendar.Event {
	out := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
	}
	if ev.Start.Timed() {
		out.Start = &calendar.EventDateTime{DateTime: ev.Start.DateTime.Format(time.RFC3339), TimeZone: ev.Start.TimeZone}
	}
	if ev.End.Timed() {
		out.End = &calendar.EventDateTime{DateTime: ev.End.DateTime.Format(time.RFC3339), TimeZone: ev.End.TimeZone}
	}
	return out
}

// apiErr maps a googleapi error to the connector error taxonomy.
func apiErr(err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return &domain.ProviderError{Status: ge.Code, Message: ge.Message}
	}
	return err
}

// oauthErr maps token-endpoint failures: rejected grants are auth errors,
// anything else surfaces with the provider status.
func oauthErr(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && (re.Response.StatusCode == 400 || re.Response.StatusCode == 401) {
			return &domain.AuthError{Reason: "google: " + string(re.Body)}
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &domain.ProviderError{Status: status, Message: string(re.Body)}
	}
	return err
}

func toToken(c domain.Credentials) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

func fromToken(tok *oauth2.Token, prev domain.Credentials) domain.Credentials {
	out := domain.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scope:        prev.Scope,
		Extra:        prev.Extra,
	}
	// Providers may omit the refresh token on refresh responses.
	if out.RefreshToken == "" {
		out.RefreshToken = prev.RefreshToken
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		out.Scope = scope
	}
	return out
}
