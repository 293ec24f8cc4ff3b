package server

import "time"

// AuthorizeRequest captures the downstream (MCP client) authorization request
// being serviced. It travels inside the transaction cookie so the callback can
// rebuild the final redirect without server-side state.
type AuthorizeRequest struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope"`
	State               string `json:"state,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

// Transaction is one in-flight login attempt. It lives entirely in a signed,
// time-boxed cookie named after its ID and is redeemable at most once.
type Transaction struct {
	ID           string           `json:"id"`
	Request      AuthorizeRequest `json:"request"`
	Verifier     string           `json:"verifier"`
	Challenge    string           `json:"challenge"`
	Nonce        string           `json:"nonce"`
	ConsentToken string           `json:"consent_token"`
	CreatedAt    time.Time        `json:"created_at"`
}

// TokenSet is the credential material obtained from the upstream provider.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type"`
}

// Identity holds the resource owner's profile claims from the upstream
// userinfo endpoint. Only Subject and Label are interpreted; the raw claim
// map is carried opaquely for tools that want it.
type Identity struct {
	Subject string         `json:"subject"`
	Label   string         `json:"label"`
	Email   string         `json:"email,omitempty"`
	Claims  map[string]any `json:"claims,omitempty"`
}

// Grant is the record minted after a successful upstream login. It owns the
// upstream token set and identity for one downstream client session.
type Grant struct {
	ID        string
	ClientID  string
	Subject   string
	Scope     string
	Identity  Identity
	TokenSet  TokenSet
	CreatedAt time.Time
}

// AuthorizationCode is a short-lived, single-use code issued to the
// downstream client after the callback completes.
type AuthorizationCode struct {
	Code                string
	GrantID             string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// RefreshToken is an opaque downstream refresh token bound to a grant.
type RefreshToken struct {
	ID        string
	GrantID   string
	ClientID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Client records downstream OAuth client metadata.
type Client struct {
	ClientID     string
	ClientName   string
	ClientURI    string
	LogoURI      string
	RedirectURIs []string
	Public       bool
}

// TokenResponse matches OAuth token endpoint payloads.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
