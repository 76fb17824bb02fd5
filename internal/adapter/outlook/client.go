// Package outlook implements the calendar connector contract for
// Microsoft 365 calendars through the Graph REST API.
package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"calsync/internal/domain"
)

const (
	graphBaseURL   = "https://graph.microsoft.com/v1.0"
	wireTimeFormat = "2006-01-02T15:04:05"
	// Graph emits seven fractional digits; the fraction is optional on parse.
	parseTimeFormat = "2006-01-02T15:04:05.9999999"
)

var graphScopes = []string{"offline_access", "https://graph.microsoft.com/Calendars.ReadWrite"}

// Client talks to Microsoft Graph on behalf of one integration. Token
// handling mirrors the Google connector: refresh happens lazily before a
// call and the refreshed set is reported through Credentials.
type Client struct {
	oauth     *oauth2.Config
	creds     domain.Credentials
	refreshed bool
	baseURL   string
	http      *http.Client
	now       func() time.Time
	log       *slog.Logger
}

func New(clientID, clientSecret, redirectURL, tenant string, creds domain.Credentials, log *slog.Logger) *Client {
	if tenant == "" {
		tenant = "common"
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			RedirectURL:  redirectURL,
			Scopes:       graphScopes,
		},
		creds:   creds,
		baseURL: graphBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
		log: log,
	}
}

func (c *Client) AuthorizeURL(redirectURI, state string) string {
	cfg := *c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

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
	return c.creds, nil
}

func (c *Client) RefreshToken(ctx context.Context) (domain.Credentials, error) {
	if err := c.refresh(ctx); err != nil {
		return domain.Credentials{}, err
	}
	return c.creds, nil
}

// TestConnection lists the account's calendars as a connectivity probe.
func (c *Client) TestConnection(ctx context.Context) (domain.ConnectionTest, error) {
	var res struct {
		Value []struct {
			ID                string `json:"id"`
			Name              string `json:"name"`
			IsDefaultCalendar bool   `json:"isDefaultCalendar"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/me/calendars", nil, nil, &res); err != nil {
		return domain.ConnectionTest{Message: "microsoft graph unreachable"}, err
	}
	out := domain.ConnectionTest{Success: true, Message: "connected to microsoft graph"}
	for _, cal := range res.Value {
		out.Calendars = append(out.Calendars, domain.CalendarInfo{
			ID:      cal.ID,
			Name:    cal.Name,
			Primary: cal.IsDefaultCalendar,
		})
	}
	return out, nil
}

// ListEvents fetches events starting at or after timeMin, ordered by start.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]domain.Event, error) {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("start/dateTime ge '%s'", timeMin.UTC().Format(time.RFC3339)))
	q.Set("$orderby", "start/dateTime")
	q.Set("$top", fmt.Sprintf("%d", maxResults))

	var res struct {
		Value []rawEvent `json:"value"`
	}
	if err := c.doJSON(ctx, http.MethodGet, eventsPath(calendarID), q, nil, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(res.Value))
	for _, raw := range res.Value {
		out = append(out, raw.event())
	}
	return out, nil
}

// CreateEvent inserts a timed event and returns its external id.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, ev domain.Event) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, eventsPath(calendarID), nil, wireEvent(ev), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateEvent patches an existing event in place.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, externalID string, ev domain.Event) error {
	return c.doJSON(ctx, http.MethodPatch, eventsPath(calendarID)+"/"+url.PathEscape(externalID), nil, wireEvent(ev), nil)
}

// Credentials returns the current token set and whether it changed.
func (c *Client) Credentials() (domain.Credentials, bool) {
	return c.creds, c.refreshed
}

// eventsPath routes "primary" (and empty) to the default calendar.
func eventsPath(calendarID string) string {
	if calendarID == "" || calendarID == "primary" {
		return "/me/calendar/events"
	}
	return "/me/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.creds.Empty() {
		return &domain.AuthError{Reason: "outlook: no stored credentials"}
	}
	if c.creds.Expired(c.now()) {
		if err := c.refresh(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.ProviderError{Status: resp.StatusCode, Message: string(msg)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) refresh(ctx context.Context) error {
	if c.creds.RefreshToken == "" {
		return &domain.AuthError{Reason: "outlook: no refresh token held"}
	}
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.creds.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return oauthErr(err)
	}
	c.creds = fromToken(tok, c.creds)
	c.refreshed = true
	c.log.Debug("outlook token refreshed", slog.Time("expiry", c.creds.Expiry))
	return nil
}

// rawEvent mirrors the Graph event JSON.
type rawEvent struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	IsAllDay bool     `json:"isAllDay"`
	Start    wireTime `json:"start"`
	End      wireTime `json:"end"`
	WebLink  string   `json:"webLink"`
}

type wireTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func (r rawEvent) event() domain.Event {
	return domain.Event{
		ExternalID:  r.ID,
		Title:       r.Subject,
		Description: r.Body.Content,
		Start:       r.Start.eventTime(r.IsAllDay),
		End:         r.End.eventTime(r.IsAllDay),
		Href:        r.WebLink,
	}
}

func (t wireTime) eventTime(allDay bool) domain.EventTime {
	out := domain.EventTime{TimeZone: t.TimeZone}
	if t.DateTime == "" {
		return out
	}
	if allDay {
		if len(t.DateTime) >= 10 {
			out.Date = t.DateTime[:10]
		}
		return out
	}
	// Graph values carry no offset; the zone comes as a separate field and
	// is UTC under the Prefer header. Unknown zones fall back to UTC.
	loc := time.UTC
	if t.TimeZone != "" {
		if parsed, err := time.LoadLocation(t.TimeZone); err == nil {
			loc = parsed
		}
	}
	if parsed, err := time.ParseInLocation(parseTimeFormat, t.DateTime, loc); err == nil {
		utc := parsed.UTC()
		out.DateTime = &utc
	}
	return out
}

func wireEvent(ev domain.Event) map[string]any {
	body := map[string]any{
		"subject": ev.Title,
		"body": map[string]any{
			"contentType": "text",
			"content":     ev.Description,
		},
	}
	if ev.Start.Timed() {
		body["start"] = wireBoundary(ev.Start)
	}
	if ev.End.Timed() {
		body["end"] = wireBoundary(ev.End)
	}
	return body
}

// wireBoundary renders the instant as wall-clock time in the boundary's
// zone, the shape Graph expects.
func wireBoundary(t domain.EventTime) map[string]string {
	loc := time.UTC
	tz := t.TimeZone
	if tz == "" {
		tz = "UTC"
	} else if parsed, err := time.LoadLocation(tz); err == nil {
		loc = parsed
	}
	return map[string]string{
		"dateTime": t.DateTime.In(loc).Format(wireTimeFormat),
		"timeZone": tz,
	}
}

// oauthErr maps token-endpoint failures: rejected grants are auth errors,
// anything else surfaces with the provider status.
func oauthErr(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && (re.Response.StatusCode == 400 || re.Response.StatusCode == 401) {
			return &domain.AuthError{Reason: "outlook: " + string(re.Body)}
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &domain.ProviderError{Status: status, Message: string(re.Body)}
	}
	return err
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
	if out.RefreshToken == "" {
		out.RefreshToken = prev.RefreshToken
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		out.Scope = scope
	}
	return out
}
