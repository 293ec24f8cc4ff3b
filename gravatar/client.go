package gravatar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "gravmcp/1.0"

// APIError carries the HTTP status of a failed REST call plus a message a
// tool caller can show as-is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Client talks to the Gravatar v3 REST API. An API key raises rate limits
// and unlocks the search endpoint; without one, public profile reads still
// work. A user access token, when present on a call, takes precedence over
// the key.
type Client struct {
	restBase   string
	avatarBase string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the server API key used when no user token is supplied.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithRateLimit caps outbound request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient builds a client against the given REST and avatar base URLs.
func NewClient(restBase, avatarBase string, opts ...Option) *Client {
	c := &Client{
		restBase:   restBase,
		avatarBase: avatarBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifiedAccount is a third-party account linked to a profile.
type VerifiedAccount struct {
	ServiceType  string `json:"service_type"`
	ServiceLabel string `json:"service_label"`
	ServiceIcon  string `json:"service_icon,omitempty"`
	URL          string `json:"url"`
}

// Link is a profile link entry.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Profile is a Gravatar v3 profile.
type Profile struct {
	Hash             string            `json:"hash"`
	DisplayName      string            `json:"display_name"`
	ProfileURL       string            `json:"profile_url"`
	AvatarURL        string            `json:"avatar_url"`
	AvatarAltText    string            `json:"avatar_alt_text,omitempty"`
	Location         string            `json:"location,omitempty"`
	Description      string            `json:"description,omitempty"`
	JobTitle         string            `json:"job_title,omitempty"`
	Company          string            `json:"company,omitempty"`
	Pronunciation    string            `json:"pronunciation,omitempty"`
	Pronouns         string            `json:"pronouns,omitempty"`
	VerifiedAccounts []VerifiedAccount `json:"verified_accounts,omitempty"`
	Links            []Link            `json:"links,omitempty"`
	Interests        []Interest        `json:"interests,omitempty"`
}

// Interest is a profile interest, explicit or inferred.
type Interest struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// ProfileByID fetches a profile by SHA-256 email hash or profile id.
func (c *Client) ProfileByID(ctx context.Context, identifier string) (*Profile, error) {
	if identifier == "" {
		return nil, ErrEmptyInput
	}
	var profile Profile
	if err := c.getJSON(ctx, "/profiles/"+url.PathEscape(identifier), nil, "", identifier, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// MyProfile fetches the profile of the user behind an OAuth access token.
func (c *Client) MyProfile(ctx context.Context, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token required")
	}
	var profile Profile
	if err := c.getJSON(ctx, "/me/profile", nil, accessToken, "me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// InferredInterestsByID fetches machine-inferred interests for a profile.
func (c *Client) InferredInterestsByID(ctx context.Context, identifier string) ([]Interest, error) {
	if identifier == "" {
		return nil, ErrEmptyInput
	}
	var interests []Interest
	path := "/profiles/" + url.PathEscape(identifier) + "/inferred-interests"
	if err := c.getJSON(ctx, path, nil, "", identifier, &interests); err != nil {
		return nil, err
	}
	return interests, nil
}

// SearchProfilesByVerifiedAccount finds profiles holding a verified account
// with the given username, optionally narrowed to one service. Requires an
// API key.
func (c *Client) SearchProfilesByVerifiedAccount(ctx context.Context, username, service string, page, perPage int) ([]Profile, error) {
	if username == "" {
		return nil, ErrEmptyInput
	}
	q := url.Values{}
	q.Set("username", username)
	if service != "" {
		q.Set("service", service)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}

	var profiles []Profile
	if err := c.getJSON(ctx, "/profiles", q, "", username, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, accessToken, identifier string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.restBase + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	switch {
	case accessToken != "":
		req.Header.Set("Authorization", "Bearer "+accessToken)
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gravatar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapHTTPError(resp.StatusCode, resp.Status, identifier)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gravatar response: %w", err)
	}
	return nil
}

// mapHTTPError translates REST status codes into messages a tool result can
// surface directly.
func mapHTTPError(status int, statusText, identifier string) *APIError {
	var msg string
	switch status {
	case http.StatusNotFound:
		msg = fmt.Sprintf("No profile found for identifier: %s", identifier)
	case http.StatusBadRequest:
		msg = fmt.Sprintf("Invalid identifier format: %s", identifier)
	case http.StatusForbidden:
		msg = "Profile is private or access denied"
	case http.StatusTooManyRequests:
		msg = "Rate limit exceeded. Please try again later"
	case http.StatusInternalServerError:
		msg = "Gravatar service is temporarily unavailable"
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		msg = "Gravatar service is experiencing issues. Please try again later"
	default:
		msg = fmt.Sprintf("Gravatar API error (%d): %s", status, statusText)
	}
	return &APIError{Status: status, Message: msg}
}
