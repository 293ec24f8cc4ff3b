package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
)

// App bundles runtime dependencies for the HTTP service.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Store    *InMemoryStore
	Txns     *TransactionStore
	Upstream *UpstreamProvider
	Tokens   *TokenService
	Clients  *ClientRegistry

	// MCP is mounted at /mcp when set. The server package stays unaware
	// of the tool surface behind it.
	MCP http.Handler
}

// NewApp wires together the application state from configuration.
func NewApp(cfg Config, logger *slog.Logger) (*App, error) {
	store := NewInMemoryStore()
	upstream := NewUpstreamProvider(cfg)
	clients, err := NewClientRegistry(cfg.Clients)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Txns:     NewTransactionStore(cfg),
		Upstream: upstream,
		Tokens:   NewTokenService(cfg, store, upstream, logger),
		Clients:  clients,
	}, nil
}

// handleToken serves the downstream token endpoint for both supported grant
// types. Client authentication is PKCE-only; every client here is public.
func (a *App) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, http.StatusBadRequest, "invalid_request", "invalid form")
		return
	}

	clientID := r.FormValue("client_id")
	if _, ok := a.Clients.Get(clientID); !ok {
		tokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}

	switch r.FormValue("grant_type") {
	case "authorization_code":
		resp, err := a.Tokens.MintForAuthorizationCode(
			r.FormValue("code"), clientID,
			r.FormValue("redirect_uri"), r.FormValue("code_verifier"))
		if err != nil {
			a.Logger.Warn("code exchange rejected", "client_id", clientID, "error", err)
			tokenError(w, http.StatusBadRequest, "invalid_grant", "invalid authorization code")
			return
		}
		writeJSON(w, resp)

	case "refresh_token":
		resp, err := a.Tokens.MintForRefreshToken(r.Context(), r.FormValue("refresh_token"), clientID)
		if err != nil {
			a.tokenRefreshError(w, clientID, err)
			return
		}
		writeJSON(w, resp)

	default:
		tokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (a *App) tokenRefreshError(w http.ResponseWriter, clientID string, err error) {
	var uerr *UpstreamError
	switch {
	case errors.Is(err, ErrNoRefreshToken):
		a.Logger.Warn("refresh without upstream refresh token", "client_id", clientID)
		tokenError(w, http.StatusBadRequest, "invalid_grant", "no refresh token available")
	case errors.As(err, &uerr):
		a.Logger.Warn("upstream refresh rejected", "client_id", clientID, "error", uerr.Code)
		tokenError(w, http.StatusBadRequest, uerr.Code, uerr.Description)
	case errors.Is(err, ErrInvalidGrant):
		tokenError(w, http.StatusBadRequest, "invalid_grant", "invalid refresh token")
	default:
		a.Logger.Error("refresh failed", "client_id", clientID, "error", err)
		tokenError(w, http.StatusInternalServerError, "server_error", "refresh failed")
	}
}

type registrationRequest struct {
	ClientName   string   `json:"client_name"`
	ClientURI    string   `json:"client_uri"`
	LogoURI      string   `json:"logo_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// handleRegister implements minimal dynamic client registration. Every
// registered client is public; no secret is issued and no credentials are
// checked later beyond the client id.
func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
		return
	}

	for _, uri := range req.RedirectURIs {
		if !isSafeRedirectURI(uri) {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
			return
		}
	}

	client := a.Clients.Register(req.ClientName, req.ClientURI, req.LogoURI, req.RedirectURIs)
	a.Logger.Info("client registered", "client_id", client.ClientID, "client_name", client.ClientName)

	writeJSONStatus(w, http.StatusCreated, registrationResponse{
		ClientID:                client.ClientID,
		ClientName:              client.ClientName,
		ClientURI:               client.ClientURI,
		LogoURI:                 client.LogoURI,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: "none",
	})
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": desc,
	})
}

func oauthError(w http.ResponseWriter, redirectURI, state, code, desc string) {
	// Never redirect to unsafe URIs, return the error as JSON instead
	if redirectURI == "" || !isSafeRedirectURI(redirectURI) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": desc})
		return
	}

	uri, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, desc, http.StatusBadRequest)
		return
	}
	q := uri.Query()
	q.Set("error", code)
	if desc != "" {
		q.Set("error_description", desc)
	}
	if state != "" {
		q.Set("state", state)
	}
	uri.RawQuery = q.Encode()
	w.Header().Set("Location", uri.String())
	w.WriteHeader(http.StatusFound)
}
