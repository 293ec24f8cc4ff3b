package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var (
	// ErrGrantNotFound is returned when a grant id resolves to nothing,
	// either because it never existed or because it was revoked.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrCodeNotFound is returned for unknown, expired, or already
	// consumed authorization codes.
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrRefreshNotFound is returned for unknown or revoked downstream
	// refresh tokens.
	ErrRefreshNotFound = errors.New("refresh token not found")
)

// InMemoryStore holds grants, downstream authorization codes, and downstream
// refresh tokens. Everything is lost on restart, which suits a single
// instance fronting a remembered upstream session.
type InMemoryStore struct {
	mu            sync.RWMutex
	grants        map[string]Grant
	codes         map[string]AuthorizationCode
	refreshTokens map[string]RefreshToken
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants:        make(map[string]Grant),
		codes:         make(map[string]AuthorizationCode),
		refreshTokens: make(map[string]RefreshToken),
	}
}

// NewID returns a random 32-character hex identifier.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// PutGrant stores or replaces a grant.
func (s *InMemoryStore) PutGrant(g Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.ID] = g
}

// GetGrant looks up a grant by id.
func (s *InMemoryStore) GetGrant(id string) (Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	return g, nil
}

// DeleteGrant removes a grant and every refresh token pointing at it.
func (s *InMemoryStore) DeleteGrant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, id)
	for tid, rt := range s.refreshTokens {
		if rt.GrantID == id {
			delete(s.refreshTokens, tid)
		}
	}
}

// PutCode stores a downstream authorization code.
func (s *InMemoryStore) PutCode(c AuthorizationCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.Code] = c
}

// ConsumeCode removes and returns a code. Codes are single use; a second
// consume of the same code fails.
func (s *InMemoryStore) ConsumeCode(code string) (AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return AuthorizationCode{}, ErrCodeNotFound
	}
	delete(s.codes, code)
	if time.Now().After(c.ExpiresAt) {
		return AuthorizationCode{}, ErrCodeNotFound
	}
	return c, nil
}

// PutRefreshToken stores a downstream refresh token.
func (s *InMemoryStore) PutRefreshToken(rt RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[rt.ID] = rt
}

// ConsumeRefreshToken removes and returns a refresh token. Tokens rotate on
// every use; replays of a consumed token fail.
func (s *InMemoryStore) ConsumeRefreshToken(id string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refreshTokens[id]
	if !ok || rt.Revoked {
		return RefreshToken{}, ErrRefreshNotFound
	}
	delete(s.refreshTokens, id)
	if time.Now().After(rt.ExpiresAt) {
		return RefreshToken{}, ErrRefreshNotFound
	}
	return rt, nil
}

// Sweep removes expired codes and refresh tokens.
func (s *InMemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, c := range s.codes {
		if now.After(c.ExpiresAt) {
			delete(s.codes, code)
		}
	}
	for id, rt := range s.refreshTokens {
		if now.After(rt.ExpiresAt) {
			delete(s.refreshTokens, id)
		}
	}
}

// Janitor sweeps expired entries until ctx is cancelled.
func (s *InMemoryStore) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
