package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidGrant covers bad, expired, or replayed codes and refresh
	// tokens on the downstream /token endpoint.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrInvalidToken is returned for access tokens that fail signature,
	// expiry, or grant-lookup checks.
	ErrInvalidToken = errors.New("invalid access token")
)

// TokenService mints and validates downstream tokens. Access tokens are
// HS256 JWTs whose lifetime mirrors the upstream access token's; refresh
// tokens are opaque ids that rotate on every use.
type TokenService struct {
	issuer     string
	secret     []byte
	store      *InMemoryStore
	upstream   *UpstreamProvider
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewTokenService constructs a token service bound to the given store and
// upstream provider.
func NewTokenService(cfg Config, store *InMemoryStore, upstream *UpstreamProvider, logger *slog.Logger) *TokenService {
	return &TokenService{
		issuer:     cfg.Issuer(),
		secret:     []byte(cfg.Server.SigningSecret),
		store:      store,
		upstream:   upstream,
		accessTTL:  cfg.Server.AccessTTL,
		refreshTTL: cfg.Server.RefreshTTL,
		logger:     logger,
	}
}

// MintForAuthorizationCode redeems a downstream authorization code. The code
// is consumed before any other check so a replay can never succeed, and the
// downstream PKCE verifier is checked against the challenge captured at
// /authorize.
func (t *TokenService) MintForAuthorizationCode(code, clientID, redirectURI, verifier string) (TokenResponse, error) {
	c, err := t.store.ConsumeCode(code)
	if err != nil {
		return TokenResponse{}, ErrInvalidGrant
	}
	if c.ClientID != clientID {
		return TokenResponse{}, ErrInvalidGrant
	}
	if c.RedirectURI != "" && c.RedirectURI != redirectURI {
		return TokenResponse{}, ErrInvalidGrant
	}
	if c.CodeChallenge != "" && !verifyPKCE(c.CodeChallenge, c.CodeChallengeMethod, verifier) {
		return TokenResponse{}, ErrInvalidGrant
	}

	grant, err := t.store.GetGrant(c.GrantID)
	if err != nil {
		return TokenResponse{}, ErrInvalidGrant
	}
	return t.issueTokens(grant)
}

// MintForRefreshToken redeems a downstream refresh token. The stored upstream
// refresh token is exchanged for a fresh upstream token set and the grant's
// identity is re-fetched opportunistically; a failed identity fetch keeps the
// previous identity rather than failing the refresh.
func (t *TokenService) MintForRefreshToken(ctx context.Context, refreshToken, clientID string) (TokenResponse, error) {
	rt, err := t.store.ConsumeRefreshToken(refreshToken)
	if err != nil {
		return TokenResponse{}, ErrInvalidGrant
	}
	if rt.ClientID != clientID {
		return TokenResponse{}, ErrInvalidGrant
	}
	grant, err := t.store.GetGrant(rt.GrantID)
	if err != nil {
		return TokenResponse{}, ErrInvalidGrant
	}

	if grant.TokenSet.RefreshToken == "" {
		t.store.PutRefreshToken(rt)
		return TokenResponse{}, ErrNoRefreshToken
	}

	set, err := t.upstream.Refresh(ctx, grant.TokenSet.RefreshToken)
	if err != nil {
		// A failed upstream refresh writes nothing back. The downstream
		// token is restored so the client can retry once the upstream
		// recovers; rotation happens only on success.
		t.store.PutRefreshToken(rt)
		return TokenResponse{}, err
	}

	identity, err := t.upstream.FetchIdentity(ctx, set.AccessToken)
	if err != nil {
		t.logger.Warn("identity refetch failed, keeping cached identity",
			"grant_id", grant.ID, "error", err)
		identity = grant.Identity
	}

	grant.TokenSet = set
	grant.Identity = identity
	t.store.PutGrant(grant)

	return t.issueTokens(grant)
}

// issueTokens mints an access token plus a rotated refresh token for a grant.
// The access-token TTL equals the upstream expires_in exactly when present.
func (t *TokenService) issueTokens(grant Grant) (TokenResponse, error) {
	ttl := t.accessTTL
	if grant.TokenSet.ExpiresIn > 0 {
		ttl = time.Duration(grant.TokenSet.ExpiresIn) * time.Second
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   t.issuer,
		"sub":   grant.Subject,
		"aud":   grant.ClientID,
		"gid":   grant.ID,
		"scope": grant.Scope,
		"jti":   NewID(),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := RefreshToken{
		ID:        NewID(),
		GrantID:   grant.ID,
		ClientID:  grant.ClientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.refreshTTL),
	}
	t.store.PutRefreshToken(refresh)

	return TokenResponse{
		AccessToken:  signed,
		TokenType:    "Bearer",
		ExpiresIn:    int64(ttl.Seconds()),
		RefreshToken: refresh.ID,
		Scope:        grant.Scope,
	}, nil
}

// ValidateAccessToken verifies a bearer token and resolves its grant.
func (t *TokenService) ValidateAccessToken(raw string) (Grant, error) {
	token, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Grant{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Grant{}, ErrInvalidToken
	}
	gid, _ := claims["gid"].(string)
	if gid == "" {
		return Grant{}, ErrInvalidToken
	}

	grant, err := t.store.GetGrant(gid)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	return grant, nil
}

// verifyPKCE checks a code_verifier against the challenge recorded with the
// authorization request. Only S256 and plain are recognized.
func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch strings.ToUpper(method) {
	case "", "S256":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case "PLAIN":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
