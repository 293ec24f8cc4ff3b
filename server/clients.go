package server

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ClientRegistry holds registered OAuth clients. Statically configured
// clients come from config; dynamically registered ones are added at runtime
// through the registration endpoint.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry builds the registry from configuration.
func NewClientRegistry(cfgs []ClientConfig) (*ClientRegistry, error) {
	clients := make(map[string]*Client, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.ClientID == "" {
			return nil, errors.New("client_id required")
		}
		clients[cfg.ClientID] = &Client{
			ClientID:     cfg.ClientID,
			ClientName:   cfg.ClientName,
			RedirectURIs: cfg.RedirectURIs,
			Public:       true,
		}
	}
	return &ClientRegistry{clients: clients}, nil
}

// Get retrieves a client definition.
func (cr *ClientRegistry) Get(id string) (*Client, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	client, ok := cr.clients[id]
	return client, ok
}

// Register creates a public client from a registration request. All
// registered clients are public and authenticate with PKCE only.
func (cr *ClientRegistry) Register(name, clientURI, logoURI string, redirectURIs []string) *Client {
	client := &Client{
		ClientID:     "mcp_" + uuid.NewString(),
		ClientName:   name,
		ClientURI:    clientURI,
		LogoURI:      logoURI,
		RedirectURIs: redirectURIs,
		Public:       true,
	}
	cr.mu.Lock()
	cr.clients[client.ClientID] = client
	cr.mu.Unlock()
	return client
}

// AllowedOrigins collects the origins of every registered redirect URI,
// static and dynamic. Evaluated per request so clients registered at runtime
// can pass CORS immediately.
func (cr *ClientRegistry) AllowedOrigins() []string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	seen := make(map[string]bool)
	origins := []string{}
	for _, client := range cr.clients {
		for _, redirectURI := range client.RedirectURIs {
			if origin := extractOrigin(redirectURI); origin != "" && !seen[origin] {
				seen[origin] = true
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

// ValidRedirect ensures the redirect URI is registered and safe. Clients
// registered without redirect URIs accept any safe URI, matching the loose
// contract of dynamic registration.
func (c *Client) ValidRedirect(uri string) bool {
	if !isSafeRedirectURI(uri) {
		return false
	}
	if len(c.RedirectURIs) == 0 {
		return true
	}
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// isSafeRedirectURI validates that a redirect URI is safe to use.
// Prevents open redirect vulnerabilities by blocking dangerous schemes and malformed URIs.
func isSafeRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}

	// Block dangerous URI schemes
	lower := strings.ToLower(uri)
	dangerousSchemes := []string{
		"javascript:",
		"data:",
		"file:",
		"vbscript:",
		"about:",
	}
	for _, scheme := range dangerousSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}

	// Block protocol-relative URLs that could redirect anywhere
	if strings.HasPrefix(uri, "//") {
		return false
	}

	idx := strings.Index(uri, "://")
	if idx == -1 {
		return false
	}

	scheme := uri[:idx]
	rest := uri[idx+3:]

	if scheme != "http" && scheme != "https" {
		return false
	}

	// Blocks user:pass@host and path@domain attacks
	if strings.Contains(rest, "@") {
		return false
	}

	// Block URLs with # in the host part (fragment identifier tricks)
	if slashIdx := strings.Index(rest, "/"); slashIdx != -1 {
		if strings.Contains(rest[:slashIdx], "#") {
			return false
		}
	} else if strings.Contains(rest, "#") {
		return false
	}

	return true
}
