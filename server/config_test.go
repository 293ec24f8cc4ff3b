package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:8787" {
		t.Fatalf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Gravatar.RestBase != "https://api.gravatar.com/v3" {
		t.Fatalf("rest_base = %q", cfg.Gravatar.RestBase)
	}
	if cfg.Server.AccessTTL != DefaultAccessTTL {
		t.Fatalf("access_ttl = %v", cfg.Server.AccessTTL)
	}
	if cfg.OAuthEnabled() {
		t.Fatalf("OAuth should be disabled without upstream credentials")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://mcp.example.com
  listen_addr: ":9090"
  dev_mode: true
  cookie_secret: abc
  signing_secret: def
  access_ttl: 5m
upstream:
  client_id: up-client
  client_secret: up-secret
  authorization_endpoint: https://idp.example.com/authorize
  token_endpoint: https://idp.example.com/token
  userinfo_endpoint: https://idp.example.com/me
gravatar:
  api_key: gk_test
  timeout: 10s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.PublicURL != "https://mcp.example.com" {
		t.Fatalf("public_url = %q", cfg.Server.PublicURL)
	}
	if cfg.Server.AccessTTL != 5*time.Minute {
		t.Fatalf("access_ttl = %v", cfg.Server.AccessTTL)
	}
	if cfg.Gravatar.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v", cfg.Gravatar.Timeout)
	}
	if !cfg.OAuthEnabled() {
		t.Fatalf("OAuth should be enabled")
	}
	if cfg.RedirectURI() != "https://mcp.example.com/callback" {
		t.Fatalf("redirect uri = %q", cfg.RedirectURI())
	}
	if cfg.Issuer() != "https://mcp.example.com" {
		t.Fatalf("issuer = %q", cfg.Issuer())
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://mcp.example.com
  dev_mode: true
  not_a_real_key: true
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected strict decoding to reject unknown key")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GRAVMCP_PUBLIC_URL", "https://env.example.com")
	t.Setenv("GRAVMCP_GRAVATAR_API_KEY", "gk_env")
	t.Setenv("GRAVMCP_DEV_MODE", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.PublicURL != "https://env.example.com" {
		t.Fatalf("public_url = %q", cfg.Server.PublicURL)
	}
	if cfg.Gravatar.APIKey != "gk_env" {
		t.Fatalf("api_key = %q", cfg.Gravatar.APIKey)
	}
}

func TestValidateRequiresSecretsWhenOAuthEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DevMode = true
	cfg.Upstream = UpstreamConfig{
		ClientID:              "up",
		AuthorizationEndpoint: "https://idp.example.com/authorize",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure without secrets and endpoints")
	}

	cfg.Server.CookieSecret = "c"
	cfg.Server.SigningSecret = "s"
	cfg.Upstream.ClientSecret = "sec"
	cfg.Upstream.TokenEndpoint = "https://idp.example.com/token"
	cfg.Upstream.UserinfoEndpoint = "https://idp.example.com/me"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresTLSDomainsInProd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DevMode = false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure without TLS domains in prod")
	}
}
