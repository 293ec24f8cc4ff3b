package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gravmcp/gravatar"
)

// userHash is the SHA-256 of "user@example.com".
const userHash = "b4c9a289323b21a01c3e940f150eb9b8c542587f1abfd8f0e1cc1ffc5e475514"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeGravatar(t *testing.T, handler http.HandlerFunc) *gravatar.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gravatar.NewClient(srv.URL, srv.URL+"/avatar")
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleGetProfileByEmailHashesAndFetches(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/"+userHash, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gravatar.Profile{Hash: userHash, DisplayName: "Test User"})
	})

	handler := handleGetProfileByEmail(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{
		"email": "  USER@example.com ",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "Test User")
}

func TestHandleGetProfileByEmailMissingParam(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	handler := handleGetProfileByEmail(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetProfileByIDSurfacesAPIErrors(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	handler := handleGetProfileByID(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{
		"profile_identifier": "ghost",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "No profile found for identifier: ghost")
}

func TestHandleGetMyProfileRequiresAuth(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without auth")
	})

	handler := handleGetMyProfile(client, testLogger())
	result, err := handler(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "authentication required")
}

func TestHandleGetMyProfileUsesUpstreamToken(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/profile", r.URL.Path)
		assert.Equal(t, "Bearer upstream-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gravatar.Profile{Hash: "me", DisplayName: "Authed User"})
	})

	ctx := withAuth(context.Background(), AuthInfo{
		Subject:     "42",
		Label:       "Authed User",
		AccessToken: "upstream-token",
	})

	handler := handleGetMyProfile(client, testLogger())
	result, err := handler(ctx, callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "Authed User")
}

func TestHandleGetAvatarByEmailReturnsImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/avatar/"+userHash, r.URL.Path)
		assert.Equal(t, "128", r.URL.Query().Get("s"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})

	handler := handleGetAvatarByEmail(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{
		"email": "user@example.com",
		"size":  128,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var image *mcp.ImageContent
	for _, content := range result.Content {
		if img, ok := mcp.AsImageContent(content); ok {
			image = img
			break
		}
	}
	require.NotNil(t, image, "expected image content")
	assert.Equal(t, "image/png", image.MIMEType)
	decoded, err := base64.StdEncoding.DecodeString(image.Data)
	require.NoError(t, err)
	assert.Equal(t, png, decoded)
}

func TestHandleGetAvatarByIDForwardsParams(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "identicon", q.Get("d"))
		assert.Equal(t, "y", q.Get("f"))
		assert.Equal(t, "pg", q.Get("r"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8})
	})

	handler := handleGetAvatarByID(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{
		"avatar_identifier": "abc123",
		"default_option":    "identicon",
		"force_default":     true,
		"rating":            "pg",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestHandleGetInferredInterests(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/abc123/inferred-interests", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]gravatar.Interest{{Name: "golang"}})
	})

	handler := handleGetInferredInterestsByID(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{
		"profile_identifier": "abc123",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "golang")
}

func TestHandleSearchProfiles(t *testing.T) {
	client := newFakeGravatar(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "octocat", q.Get("username"))
		assert.Equal(t, "github", q.Get("service"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]gravatar.Profile{{Hash: "h1", DisplayName: "Octo Cat"}})
	})

	handler := handleSearchProfilesByVerifiedAccount(client, testLogger())
	result, err := handler(context.Background(), callRequest(map[string]any{
		"username": "octocat",
		"service":  "github",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	assert.Contains(t, text, "Octo Cat")
	assert.Contains(t, text, `"count": 1`)
}
