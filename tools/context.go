package tools

import (
	"context"
	"net/http"
	"strings"
)

// AuthInfo identifies the user behind an authenticated MCP request.
type AuthInfo struct {
	// Subject is the upstream user id.
	Subject string
	// Label is a human-readable name for the user.
	Label string
	// AccessToken is the upstream access token, used for calls that act
	// on the user's own profile.
	AccessToken string
}

// TokenValidator resolves a downstream bearer token to the user it was
// minted for.
type TokenValidator func(token string) (AuthInfo, error)

type authKey struct{}

// AuthFromContext returns the authenticated user, if any.
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	info, ok := ctx.Value(authKey{}).(AuthInfo)
	return info, ok
}

// withAuth stores the authenticated user on the context.
func withAuth(ctx context.Context, info AuthInfo) context.Context {
	return context.WithValue(ctx, authKey{}, info)
}

// authContextFunc bridges HTTP bearer auth into tool handler contexts.
// Requests without a valid token still pass through; only tools that need a
// user reject them.
func authContextFunc(validate TokenValidator) func(ctx context.Context, r *http.Request) context.Context {
	return func(ctx context.Context, r *http.Request) context.Context {
		if validate == nil {
			return ctx
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			return ctx
		}
		info, err := validate(token)
		if err != nil {
			return ctx
		}
		return withAuth(ctx, info)
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
