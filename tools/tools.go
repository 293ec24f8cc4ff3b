// Package tools exposes the Gravatar API as MCP tools.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetProfileByEmailTool returns the get_profile_by_email tool definition
func createGetProfileByEmailTool() mcp.Tool {
	return mcp.NewTool("get_profile_by_email",
		mcp.WithDescription("Retrieve comprehensive Gravatar profile information using an email address. Returns detailed profile data including personal information, social accounts, and avatar details."),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("The email address associated with the Gravatar profile"),
		),
	)
}

// createGetProfileByIDTool returns the get_profile_by_id tool definition
func createGetProfileByIDTool() mcp.Tool {
	return mcp.NewTool("get_profile_by_id",
		mcp.WithDescription("Retrieve comprehensive Gravatar profile information using a profile identifier: a 64-character SHA-256 email hash or a Gravatar username."),
		mcp.WithString("profile_identifier",
			mcp.Required(),
			mcp.Description("SHA-256 hash of the email address or the profile username"),
		),
	)
}

// createGetMyProfileTool returns the get_my_profile tool definition
func createGetMyProfileTool() mcp.Tool {
	return mcp.NewTool("get_my_profile",
		mcp.WithDescription("Retrieve the Gravatar profile of the authenticated user. Requires an OAuth session; unauthenticated requests are rejected."),
	)
}

// createGetAvatarByEmailTool returns the get_avatar_by_email tool definition
func createGetAvatarByEmailTool() mcp.Tool {
	return mcp.NewTool("get_avatar_by_email",
		mcp.WithDescription("Fetch the avatar image for an email address. Returns the image itself, not a URL."),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("The email address associated with the avatar"),
		),
		mcp.WithNumber("size",
			mcp.Description("Image size in pixels, 1 to 2048"),
		),
		mcp.WithString("default_option",
			mcp.Description("Fallback style when no avatar exists: 404, mp, identicon, monsterid, wavatar, retro, robohash, blank"),
		),
		mcp.WithBoolean("force_default",
			mcp.Description("Always serve the fallback image"),
		),
		mcp.WithString("rating",
			mcp.Description("Maximum content rating: g, pg, r, x"),
		),
	)
}

// createGetAvatarByIDTool returns the get_avatar_by_id tool definition
func createGetAvatarByIDTool() mcp.Tool {
	return mcp.NewTool("get_avatar_by_id",
		mcp.WithDescription("Fetch the avatar image for an avatar identifier. Returns the image itself, not a URL."),
		mcp.WithString("avatar_identifier",
			mcp.Required(),
			mcp.Description("SHA-256 hash of the email address or an avatar id"),
		),
		mcp.WithNumber("size",
			mcp.Description("Image size in pixels, 1 to 2048"),
		),
		mcp.WithString("default_option",
			mcp.Description("Fallback style when no avatar exists: 404, mp, identicon, monsterid, wavatar, retro, robohash, blank"),
		),
		mcp.WithBoolean("force_default",
			mcp.Description("Always serve the fallback image"),
		),
		mcp.WithString("rating",
			mcp.Description("Maximum content rating: g, pg, r, x"),
		),
	)
}

// createGetInferredInterestsByEmailTool returns the get_inferred_interests_by_email tool definition
func createGetInferredInterestsByEmailTool() mcp.Tool {
	return mcp.NewTool("get_inferred_interests_by_email",
		mcp.WithDescription("Retrieve AI-inferred interests for a Gravatar profile using an email address. Prefer the interests listed on the profile itself; those are stated by the profile owner."),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("The email address associated with the Gravatar profile"),
		),
	)
}

// createGetInferredInterestsByIDTool returns the get_inferred_interests_by_id tool definition
func createGetInferredInterestsByIDTool() mcp.Tool {
	return mcp.NewTool("get_inferred_interests_by_id",
		mcp.WithDescription("Retrieve AI-inferred interests for a Gravatar profile using a profile identifier. Prefer the interests listed on the profile itself; those are stated by the profile owner."),
		mcp.WithString("profile_identifier",
			mcp.Required(),
			mcp.Description("SHA-256 hash of the email address or the profile username"),
		),
	)
}

// createSearchProfilesByVerifiedAccountTool returns the search_profiles_by_verified_account tool definition
func createSearchProfilesByVerifiedAccountTool() mcp.Tool {
	return mcp.NewTool("search_profiles_by_verified_account",
		mcp.WithDescription("Search for Gravatar profiles that have a verified account with the given username, optionally narrowed to one service such as 'github' or 'twitter'. Requires a configured API key."),
		mcp.WithString("username",
			mcp.Required(),
			mcp.Description("Username on the verified service"),
		),
		mcp.WithString("service",
			mcp.Description("Service to match, e.g. 'github', 'twitter', 'mastodon'"),
		),
		mcp.WithNumber("page",
			mcp.Description("Result page, starting at 1"),
		),
		mcp.WithNumber("per_page",
			mcp.Description("Results per page (default: 10, max: 100)"),
		),
	)
}
