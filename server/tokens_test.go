package server

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newUnitTokenService(secret string) (*TokenService, *InMemoryStore) {
	cfg := DefaultConfig()
	cfg.Server.PublicURL = "http://gravmcp.test"
	cfg.Server.SigningSecret = secret
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewInMemoryStore()
	return NewTokenService(cfg, store, NewUpstreamProvider(cfg), logger), store
}

func TestVerifyPKCE(t *testing.T) {
	verifier := oauth2.GenerateVerifier()
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	if !verifyPKCE(challenge, "S256", verifier) {
		t.Fatalf("valid S256 verifier rejected")
	}
	if !verifyPKCE(challenge, "", verifier) {
		t.Fatalf("empty method should default to S256")
	}
	if verifyPKCE(challenge, "S256", oauth2.GenerateVerifier()) {
		t.Fatalf("wrong verifier accepted")
	}
	if verifyPKCE(challenge, "S256", "") {
		t.Fatalf("empty verifier accepted")
	}
	if !verifyPKCE("plainvalue", "plain", "plainvalue") {
		t.Fatalf("plain method rejected")
	}
	if verifyPKCE(challenge, "S128", verifier) {
		t.Fatalf("unknown method accepted")
	}
}

func TestValidateAccessTokenRejectsForgeries(t *testing.T) {
	ts, store := newUnitTokenService("secret-a")

	grant := Grant{
		ID:       NewID(),
		ClientID: "client",
		Subject:  "42",
		TokenSet: TokenSet{AccessToken: "up", ExpiresIn: 60},
	}
	store.PutGrant(grant)

	resp, err := ts.issueTokens(grant)
	if err != nil {
		t.Fatalf("issueTokens: %v", err)
	}

	got, err := ts.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if got.ID != grant.ID {
		t.Fatalf("grant id = %q, want %q", got.ID, grant.ID)
	}

	if _, err := ts.ValidateAccessToken("not-a-jwt"); err == nil {
		t.Fatalf("garbage token accepted")
	}

	forged, _ := newUnitTokenService("secret-b")
	if _, err := forged.ValidateAccessToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}

	// A valid token over a revoked grant is useless.
	store.DeleteGrant(grant.ID)
	if _, err := ts.ValidateAccessToken(resp.AccessToken); err == nil {
		t.Fatalf("token for deleted grant accepted")
	}
}

func TestIssueTokensTTLFallback(t *testing.T) {
	ts, store := newUnitTokenService("secret")

	grant := Grant{ID: NewID(), ClientID: "client", Subject: "1"}
	store.PutGrant(grant)

	resp, err := ts.issueTokens(grant)
	if err != nil {
		t.Fatalf("issueTokens: %v", err)
	}
	if resp.ExpiresIn != int64(DefaultAccessTTL.Seconds()) {
		t.Fatalf("expires_in = %d, want default TTL", resp.ExpiresIn)
	}

	grant.TokenSet.ExpiresIn = 777
	resp, err = ts.issueTokens(grant)
	if err != nil {
		t.Fatalf("issueTokens: %v", err)
	}
	if resp.ExpiresIn != 777 {
		t.Fatalf("expires_in = %d, want 777", resp.ExpiresIn)
	}
}

func TestStoreConsumeSemantics(t *testing.T) {
	store := NewInMemoryStore()

	code := AuthorizationCode{
		Code:      "c1",
		GrantID:   "g1",
		ClientID:  "client",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}
	store.PutCode(code)

	if _, err := store.ConsumeCode("c1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := store.ConsumeCode("c1"); err != ErrCodeNotFound {
		t.Fatalf("second consume should fail, got %v", err)
	}

	expired := AuthorizationCode{Code: "c2", ExpiresAt: time.Now().Add(-time.Second)}
	store.PutCode(expired)
	if _, err := store.ConsumeCode("c2"); err != ErrCodeNotFound {
		t.Fatalf("expired code accepted")
	}

	rt := RefreshToken{ID: "r1", GrantID: "g1", ExpiresAt: time.Now().Add(time.Minute)}
	store.PutRefreshToken(rt)
	if _, err := store.ConsumeRefreshToken("r1"); err != nil {
		t.Fatalf("consume refresh: %v", err)
	}
	if _, err := store.ConsumeRefreshToken("r1"); err != ErrRefreshNotFound {
		t.Fatalf("refresh token replay accepted")
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	store.PutCode(AuthorizationCode{Code: "live", ExpiresAt: now.Add(time.Minute)})
	store.PutCode(AuthorizationCode{Code: "dead", ExpiresAt: now.Add(-time.Minute)})
	store.PutRefreshToken(RefreshToken{ID: "live", ExpiresAt: now.Add(time.Minute)})
	store.PutRefreshToken(RefreshToken{ID: "dead", ExpiresAt: now.Add(-time.Minute)})

	store.Sweep(now)

	if _, err := store.ConsumeCode("live"); err != nil {
		t.Fatalf("live code swept")
	}
	if _, err := store.ConsumeCode("dead"); err != ErrCodeNotFound {
		t.Fatalf("dead code survived sweep")
	}
	if _, err := store.ConsumeRefreshToken("live"); err != nil {
		t.Fatalf("live refresh token swept")
	}
	if _, err := store.ConsumeRefreshToken("dead"); err != ErrRefreshNotFound {
		t.Fatalf("dead refresh token survived sweep")
	}
}

func TestDeleteGrantCascadesRefreshTokens(t *testing.T) {
	store := NewInMemoryStore()
	store.PutGrant(Grant{ID: "g1"})
	store.PutRefreshToken(RefreshToken{ID: "r1", GrantID: "g1", ExpiresAt: time.Now().Add(time.Hour)})
	store.PutRefreshToken(RefreshToken{ID: "r2", GrantID: "g2", ExpiresAt: time.Now().Add(time.Hour)})

	store.DeleteGrant("g1")

	if _, err := store.GetGrant("g1"); err != ErrGrantNotFound {
		t.Fatalf("grant survived delete")
	}
	if _, err := store.ConsumeRefreshToken("r1"); err != ErrRefreshNotFound {
		t.Fatalf("refresh token survived grant delete")
	}
	if _, err := store.ConsumeRefreshToken("r2"); err != nil {
		t.Fatalf("unrelated refresh token deleted")
	}
}
