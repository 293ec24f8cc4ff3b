package server

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Token and code defaults. The downstream access-token TTL only applies when
// the upstream omits expires_in; otherwise the upstream value wins.
const (
	DefaultAccessTTL  = 10 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
	DefaultCodeTTL    = 5 * time.Minute
	TransactionTTL    = time.Hour
)

// Config captures the full application configuration loaded from YAML and
// environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Gravatar GravatarConfig `yaml:"gravatar"`
	Clients  []ClientConfig `yaml:"oauth2_clients"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL     string        `yaml:"public_url"`
	ListenAddr    string        `yaml:"listen_addr"`
	DevMode       bool          `yaml:"dev_mode"`
	CookieDomain  string        `yaml:"cookie_domain"`
	CookieSecret  string        `yaml:"cookie_secret"`
	SigningSecret string        `yaml:"signing_secret"`
	ConsentScopes []string      `yaml:"consent_scopes"`
	TLS           TLSConfig     `yaml:"tls"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
}

// TLSConfig defines autocert behaviour.
type TLSConfig struct {
	Domains    []string `yaml:"domains"`
	Email      string   `yaml:"email"`
	HSTSMaxAge int      `yaml:"hsts_max_age"`
}

// UpstreamConfig holds the identity provider endpoints and credentials. The
// provider speaks plain OAuth2 with client_secret_post and a non-OIDC
// userinfo endpoint.
type UpstreamConfig struct {
	ClientID              string `yaml:"client_id"`
	ClientSecret          string `yaml:"client_secret"`
	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	TokenEndpoint         string `yaml:"token_endpoint"`
	UserinfoEndpoint      string `yaml:"userinfo_endpoint"`
	Scopes                string `yaml:"scopes"`
}

// GravatarConfig controls the Gravatar REST/avatar client.
type GravatarConfig struct {
	APIKey     string        `yaml:"api_key"`
	RestBase   string        `yaml:"rest_base"`
	AvatarBase string        `yaml:"avatar_base"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ClientConfig describes a statically registered downstream client.
type ClientConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientName   string   `yaml:"client_name"`
	ClientURI    string   `yaml:"client_uri"`
	LogoURI      string   `yaml:"logo_uri"`
	RedirectURIs []string `yaml:"redirect_uris"`
}

// LoadConfig reads the YAML config file and merges environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:     "http://127.0.0.1:8787",
			ListenAddr:    "127.0.0.1:8787",
			DevMode:       true,
			ConsentScopes: []string{"auth"},
			AccessTTL:     DefaultAccessTTL,
			RefreshTTL:    DefaultRefreshTTL,
			TLS:           TLSConfig{HSTSMaxAge: 31536000},
		},
		Upstream: UpstreamConfig{
			Scopes: "auth",
		},
		Gravatar: GravatarConfig{
			RestBase:   "https://api.gravatar.com/v3",
			AvatarBase: "https://gravatar.com/avatar",
			Timeout:    30 * time.Second,
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"GRAVMCP_PUBLIC_URL":             func(v string) { cfg.Server.PublicURL = v },
		"GRAVMCP_LISTEN_ADDR":            func(v string) { cfg.Server.ListenAddr = v },
		"GRAVMCP_DEV_MODE":               func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"GRAVMCP_COOKIE_SECRET":          func(v string) { cfg.Server.CookieSecret = v },
		"GRAVMCP_SIGNING_SECRET":         func(v string) { cfg.Server.SigningSecret = v },
		"GRAVMCP_TLS_DOMAINS":            func(v string) { cfg.Server.TLS.Domains = splitAndTrim(v) },
		"GRAVMCP_TLS_EMAIL":              func(v string) { cfg.Server.TLS.Email = v },
		"GRAVMCP_UPSTREAM_CLIENT_ID":     func(v string) { cfg.Upstream.ClientID = v },
		"GRAVMCP_UPSTREAM_CLIENT_SECRET": func(v string) { cfg.Upstream.ClientSecret = v },
		"GRAVMCP_UPSTREAM_AUTHORIZE_URL": func(v string) { cfg.Upstream.AuthorizationEndpoint = v },
		"GRAVMCP_UPSTREAM_TOKEN_URL":     func(v string) { cfg.Upstream.TokenEndpoint = v },
		"GRAVMCP_UPSTREAM_USERINFO_URL":  func(v string) { cfg.Upstream.UserinfoEndpoint = v },
		"GRAVMCP_UPSTREAM_SCOPES":        func(v string) { cfg.Upstream.Scopes = v },
		"GRAVMCP_GRAVATAR_API_KEY":       func(v string) { cfg.Gravatar.APIKey = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate performs sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.PublicURL == "" {
		return errors.New("server.public_url is required")
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		return fmt.Errorf("server.public_url must start with http:// or https://, got: %s", c.Server.PublicURL)
	}

	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		return errors.New("server.tls.domains must be provided in production")
	}

	if c.OAuthEnabled() {
		if c.Server.CookieSecret == "" {
			return errors.New("server.cookie_secret is required when the upstream provider is configured")
		}
		if c.Server.SigningSecret == "" {
			return errors.New("server.signing_secret is required when the upstream provider is configured")
		}
		if c.Upstream.ClientSecret == "" {
			return errors.New("upstream.client_secret is required")
		}
		if c.Upstream.TokenEndpoint == "" {
			return errors.New("upstream.token_endpoint is required")
		}
		if c.Upstream.UserinfoEndpoint == "" {
			return errors.New("upstream.userinfo_endpoint is required")
		}
	}

	for i, client := range c.Clients {
		if client.ClientID == "" {
			return fmt.Errorf("oauth2_clients[%d]: client_id is required", i)
		}
		if len(client.RedirectURIs) == 0 {
			return fmt.Errorf("oauth2_clients[%d] (%s): at least one redirect_uri is required", i, client.ClientID)
		}
		for j, uri := range client.RedirectURIs {
			if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
				return fmt.Errorf("oauth2_clients[%d] (%s): redirect_uris[%d] must start with http:// or https://, got: %s", i, client.ClientID, j, uri)
			}
		}
	}

	return nil
}

// OAuthEnabled reports whether the upstream provider is configured. Without
// it the daemon still serves the unauthenticated MCP tools.
func (c Config) OAuthEnabled() bool {
	return c.Upstream.ClientID != "" && c.Upstream.AuthorizationEndpoint != ""
}

// RedirectURI is where the upstream provider sends the user back.
func (c Config) RedirectURI() string {
	return strings.TrimSuffix(c.Server.PublicURL, "/") + "/callback"
}

// Issuer is the public base URL without a trailing slash.
func (c Config) Issuer() string {
	return strings.TrimSuffix(c.Server.PublicURL, "/")
}

// extractOrigin reduces a redirect URI to its scheme://host origin.
func extractOrigin(urlStr string) string {
	idx := strings.Index(urlStr, "://")
	if idx == -1 {
		return ""
	}
	scheme := urlStr[:idx]
	rest := urlStr[idx+3:]
	if slash := strings.Index(rest, "/"); slash != -1 {
		rest = rest[:slash]
	}
	if scheme == "" || rest == "" {
		return ""
	}
	return scheme + "://" + rest
}
