package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes constructs the HTTP router with the OAuth endpoints and the MCP
// mount point.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	r.Use(CORSMiddleware(a.Clients.AllowedOrigins))
	if !a.Config.Server.DevMode {
		r.Use(SecurityHeadersMiddleware(a.Config.Server.TLS.HSTSMaxAge))
	}

	r.Get("/.well-known/oauth-authorization-server", a.handleDiscovery)
	r.Get("/healthz", a.handleHealthz)

	if a.Config.OAuthEnabled() {
		r.Get("/authorize", a.handleAuthorize)
		r.Post("/authorize/consent", a.handleConsent)
		r.Get("/callback", a.handleCallback)
		r.Post("/token", a.handleToken)
		r.Post("/register", a.handleRegister)
	}

	if a.MCP != nil {
		r.Mount("/mcp", a.MCP)
	}

	return r
}

func (a *App) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, BuildDiscoveryDocument(a.Config))
}
