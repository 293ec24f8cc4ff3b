package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// integrationGuide is the developer-facing API guide served by the
// api-integration-prompt. It documents the same surface the tools wrap.
const integrationGuide = `# Gravatar API Integration Guide

Gravatar associates avatars and public profiles with email addresses. All
lookups are keyed by an email identifier hash, so the address itself never
appears in a URL.

## Identifiers

1. Trim leading and trailing whitespace from the email address.
2. Lowercase it.
3. Compute the SHA-256 digest and hex-encode it (64 characters).

Example: ` + "`user@example.com`" + ` becomes
` + "`b4c9a289323b21a01c3e940f150eb9b8c542587f1abfd8f0e1cc1ffc5e475514`" + `.

## Avatar images

` + "`GET https://gravatar.com/avatar/{identifier}`" + ` returns the image bytes.

Query parameters:

- ` + "`s`" + ` - size in pixels, 1 to 2048 (default 80)
- ` + "`d`" + ` - fallback style when no avatar exists: 404, mp, identicon,
  monsterid, wavatar, retro, robohash, blank, or an image URL
- ` + "`f=y`" + ` - always serve the fallback image
- ` + "`r`" + ` - maximum content rating: g, pg, r, x

## Profiles (REST v3)

Base URL: ` + "`https://api.gravatar.com/v3`" + `

- ` + "`GET /profiles/{identifier}`" + ` - public profile by hash or username
- ` + "`GET /profiles/{identifier}/inferred-interests`" + ` - AI-inferred interests
- ` + "`GET /profiles?username={name}&service={service}`" + ` - search profiles by
  verified third-party account; supports ` + "`page`" + ` and ` + "`per_page`" + `
- ` + "`GET /me/profile`" + ` - the authenticated user's own profile, including
  private fields

## Authentication

Send an API key as a bearer token: ` + "`Authorization: Bearer {api_key}`" + `.
A key raises rate limits, unlocks the search endpoint, and returns additional
profile fields. ` + "`/me/profile`" + ` requires a user OAuth access token instead
of an API key.

## Error handling

- 404 - no profile or avatar for the identifier
- 400 - malformed identifier or request parameters
- 403 - the profile is private or the credential lacks access
- 429 - rate limited; back off before retrying
- 5xx - transient service issues; safe to retry with backoff

Unauthenticated clients share a low rate limit per IP. Cache responses where
possible; profiles change rarely.
`

// createAPIIntegrationPrompt returns the api-integration-prompt definition
func createAPIIntegrationPrompt() mcp.Prompt {
	return mcp.Prompt{
		Name: "api-integration-prompt",
		Description: "Comprehensive API guide for Gravatar v3.0.0, detailing how developers can " +
			"integrate avatar and profile services using email hash-based identification, " +
			"API key authentication, and various endpoints across web, Android, and iOS platforms.",
	}
}

// handleAPIIntegrationPrompt serves the integration guide as a user message.
func handleAPIIntegrationPrompt() mcpserver.PromptHandlerFunc {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: "Gravatar API Integration Guide",
			Messages: []mcp.PromptMessage{
				{
					Role:    mcp.RoleUser,
					Content: mcp.TextContent{Type: "text", Text: integrationGuide},
				},
			},
		}, nil
	}
}
