package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoRefreshToken is returned before any network call when a grant holds no
// upstream refresh token.
var ErrNoRefreshToken = errors.New("no upstream refresh token available")

// UpstreamError carries the OAuth error code reported by the upstream
// provider's token endpoint so handlers can relay it downstream verbatim.
type UpstreamError struct {
	Code        string
	Description string
}

func (e *UpstreamError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("upstream oauth error %q: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("upstream oauth error %q", e.Code)
}

// UpstreamProvider drives the authorization-code and refresh legs against the
// upstream identity provider. The provider is WordPress.com-shaped, not OIDC:
// no discovery, no id_token, and a userinfo payload with its own field names.
// All of that stays inside this file.
type UpstreamProvider struct {
	oauth       *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
	exchangeTTL time.Duration
	userinfoTTL time.Duration
}

// NewUpstreamProvider builds a provider from config. The token endpoint
// expects client credentials in the POST body, not basic auth.
func NewUpstreamProvider(cfg Config) *UpstreamProvider {
	return &UpstreamProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.Upstream.ClientID,
			ClientSecret: cfg.Upstream.ClientSecret,
			RedirectURL:  cfg.RedirectURI(),
			Scopes:       strings.Fields(cfg.Upstream.Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.Upstream.AuthorizationEndpoint,
				TokenURL:  cfg.Upstream.TokenEndpoint,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userinfoURL: cfg.Upstream.UserinfoEndpoint,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		exchangeTTL: 15 * time.Second,
		userinfoTTL: 10 * time.Second,
	}
}

// AuthCodeURL builds the upstream authorization URL. The state parameter is
// the transaction id; the downstream client's own state never leaves the
// transaction record.
func (p *UpstreamProvider) AuthCodeURL(txn Transaction) string {
	return p.oauth.AuthCodeURL(txn.ID,
		oauth2.SetAuthURLParam("nonce", txn.Nonce),
		oauth2.S256ChallengeOption(txn.Verifier),
	)
}

// Exchange redeems an upstream authorization code using the transaction's
// PKCE verifier.
func (p *UpstreamProvider) Exchange(ctx context.Context, code, verifier string) (TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, p.exchangeTTL)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return TokenSet{}, wrapOAuthError(err)
	}
	return tokenSetFrom(tok), nil
}

// Refresh redeems an upstream refresh token for a fresh token set. When the
// upstream does not rotate the refresh token the caller keeps the old one.
func (p *UpstreamProvider) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	if refreshToken == "" {
		return TokenSet{}, ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, p.exchangeTTL)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	src := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenSet{}, wrapOAuthError(err)
	}
	set := tokenSetFrom(tok)
	if set.RefreshToken == "" {
		set.RefreshToken = refreshToken
	}
	return set, nil
}

// wordpressUserinfo is the upstream /me payload. The field names are the
// provider's, not OIDC claims.
type wordpressUserinfo struct {
	ID          json.Number `json:"ID"`
	Login       string      `json:"login"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
}

// FetchIdentity resolves the authenticated user behind an upstream access
// token and translates the provider's payload into the internal Identity
// shape. This is the only place the upstream field names appear.
func (p *UpstreamProvider) FetchIdentity(ctx context.Context, accessToken string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.userinfoTTL)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info wordpressUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.ID.String() == "" || info.ID.String() == "0" {
		return Identity{}, errors.New("userinfo response missing user id")
	}

	label := info.DisplayName
	if label == "" {
		label = info.Email
	}
	if label == "" {
		label = info.Login
	}

	return Identity{
		Subject: info.ID.String(),
		Label:   label,
		Email:   info.Email,
		Claims: map[string]any{
			"sub":   info.ID.String(),
			"name":  info.DisplayName,
			"email": info.Email,
			"login": info.Login,
		},
	}, nil
}

// tokenSetFrom preserves the provider's expires_in untouched. The raw
// response value is authoritative; the computed expiry is only a fallback
// since it loses sub-second precision.
func tokenSetFrom(tok *oauth2.Token) TokenSet {
	set := TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if set.TokenType == "" {
		set.TokenType = "Bearer"
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		set.ExpiresIn = int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			set.ExpiresIn = n
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			set.ExpiresIn = n
		}
	}
	if set.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		if ttl := time.Until(tok.Expiry).Round(time.Second); ttl > 0 {
			set.ExpiresIn = int64(ttl.Seconds())
		}
	}
	return set
}

func wrapOAuthError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.ErrorCode != "" {
		return &UpstreamError{Code: rerr.ErrorCode, Description: rerr.ErrorDescription}
	}
	return err
}
