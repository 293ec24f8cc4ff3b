package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const txnCookiePrefix = "grav_txn_"

// ErrTransactionNotFound covers every way a transaction can be unusable:
// cookie absent, expired, tampered with, or never issued. The distinction is
// deliberately lost; none of these are recoverable.
var ErrTransactionNotFound = errors.New("transaction not found or expired")

// TransactionStore creates, persists, and invalidates per-login-attempt
// state. Records travel in a client-held cookie signed with the cookie
// secret; nothing is stored server-side.
type TransactionStore struct {
	secret       []byte
	ttl          time.Duration
	secure       bool
	sameSite     http.SameSite
	cookieDomain string
}

// NewTransactionStore constructs a store honouring config.
func NewTransactionStore(cfg Config) *TransactionStore {
	sameSite := http.SameSiteNoneMode
	if cfg.Server.DevMode {
		sameSite = http.SameSiteLaxMode
	}
	return &TransactionStore{
		secret:       []byte(cfg.Server.CookieSecret),
		ttl:          TransactionTTL,
		secure:       !cfg.Server.DevMode,
		sameSite:     sameSite,
		cookieDomain: cfg.Server.CookieDomain,
	}
}

// Create generates a new transaction for the given downstream request and
// sets its cookie. The PKCE pair is for the upstream leg; the consent token
// is the CSRF defense on the consent form.
func (ts *TransactionStore) Create(w http.ResponseWriter, req AuthorizeRequest) (Transaction, error) {
	verifier := oauth2.GenerateVerifier()
	txn := Transaction{
		ID:           randomToken(),
		Request:      req,
		Verifier:     verifier,
		Challenge:    oauth2.S256ChallengeFromVerifier(verifier),
		Nonce:        randomToken(),
		ConsentToken: randomToken(),
		CreatedAt:    time.Now(),
	}

	value, err := ts.encode(txn)
	if err != nil {
		return Transaction{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     txnCookiePrefix + txn.ID,
		Value:    value,
		Path:     "/",
		Domain:   ts.cookieDomain,
		HttpOnly: true,
		Secure:   ts.secure,
		SameSite: ts.sameSite,
		MaxAge:   int(ts.ttl.Seconds()),
	})

	return txn, nil
}

// Load recovers the transaction identified by id from the request cookie.
func (ts *TransactionStore) Load(r *http.Request, id string) (Transaction, error) {
	if id == "" {
		return Transaction{}, ErrTransactionNotFound
	}
	cookie, err := r.Cookie(txnCookiePrefix + id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}

	txn, err := ts.decode(cookie.Value)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	if txn.ID != id {
		return Transaction{}, ErrTransactionNotFound
	}
	if time.Since(txn.CreatedAt) > ts.ttl {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, nil
}

// Invalidate clears the transaction cookie. Called exactly once per
// transaction: at consent denial or at callback receipt, never at approval.
func (ts *TransactionStore) Invalidate(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     txnCookiePrefix + id,
		Value:    "",
		Path:     "/",
		Domain:   ts.cookieDomain,
		HttpOnly: true,
		Secure:   ts.secure,
		SameSite: ts.sameSite,
		MaxAge:   -1,
	})
}

func (ts *TransactionStore) encode(txn Transaction) (string, error) {
	payload, err := json.Marshal(txn)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + ts.sign(encoded), nil
}

func (ts *TransactionStore) decode(value string) (Transaction, error) {
	encoded, sig, ok := strings.Cut(value, ".")
	if !ok {
		return Transaction{}, errors.New("malformed cookie value")
	}
	if !hmac.Equal([]byte(ts.sign(encoded)), []byte(sig)) {
		return Transaction{}, errors.New("cookie signature mismatch")
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Transaction{}, err
	}
	var txn Transaction
	if err := json.Unmarshal(payload, &txn); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (ts *TransactionStore) sign(payload string) string {
	mac := hmac.New(sha256.New, ts.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// randomToken returns a URL-safe random string suitable for transaction ids,
// nonces, and consent tokens.
func randomToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
