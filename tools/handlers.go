package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"gravmcp/gravatar"
)

// handleGetProfileByEmail implements the get_profile_by_email tool
func handleGetProfileByEmail(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := request.RequireString("email")
		if err != nil || email == "" {
			return errorResult("Error: email parameter is required"), nil
		}

		identifier, err := gravatar.Identifier(email)
		if err != nil {
			return errorResult(fmt.Sprintf("Invalid email %q: %v", email, err)), nil
		}

		profile, err := client.ProfileByID(ctx, identifier)
		if err != nil {
			logger.Warn("profile fetch failed", "identifier", identifier, "error", err)
			return errorResult(fmt.Sprintf("Failed to get profile for email %q: %v", email, err)), nil
		}
		return jsonResult(profile), nil
	}
}

// handleGetProfileByID implements the get_profile_by_id tool
func handleGetProfileByID(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identifier, err := request.RequireString("profile_identifier")
		if err != nil || identifier == "" {
			return errorResult("Error: profile_identifier parameter is required"), nil
		}

		profile, err := client.ProfileByID(ctx, identifier)
		if err != nil {
			logger.Warn("profile fetch failed", "identifier", identifier, "error", err)
			return errorResult(fmt.Sprintf("Failed to get profile for ID %q: %v", identifier, err)), nil
		}
		return jsonResult(profile), nil
	}
}

// handleGetMyProfile implements the get_my_profile tool
func handleGetMyProfile(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		auth, ok := AuthFromContext(ctx)
		if !ok {
			return errorResult("Error: authentication required. Connect through the OAuth flow to use this tool."), nil
		}

		profile, err := client.MyProfile(ctx, auth.AccessToken)
		if err != nil {
			logger.Warn("my profile fetch failed", "subject", auth.Subject, "error", err)
			return errorResult(fmt.Sprintf("Failed to get your profile: %v", err)), nil
		}
		return jsonResult(profile), nil
	}
}

// handleGetAvatarByEmail implements the get_avatar_by_email tool
func handleGetAvatarByEmail(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := request.RequireString("email")
		if err != nil || email == "" {
			return errorResult("Error: email parameter is required"), nil
		}

		identifier, err := gravatar.Identifier(email)
		if err != nil {
			return errorResult(fmt.Sprintf("Invalid email %q: %v", email, err)), nil
		}
		return fetchAvatarResult(ctx, client, logger, identifier, request)
	}
}

// handleGetAvatarByID implements the get_avatar_by_id tool
func handleGetAvatarByID(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identifier, err := request.RequireString("avatar_identifier")
		if err != nil || identifier == "" {
			return errorResult("Error: avatar_identifier parameter is required"), nil
		}
		return fetchAvatarResult(ctx, client, logger, identifier, request)
	}
}

func fetchAvatarResult(ctx context.Context, client *gravatar.Client, logger *slog.Logger, identifier string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := gravatar.AvatarParams{
		Size:         request.GetInt("size", 0),
		Default:      request.GetString("default_option", ""),
		ForceDefault: request.GetBool("force_default", false),
		Rating:       request.GetString("rating", ""),
	}

	avatar, err := client.FetchAvatar(ctx, identifier, params)
	if err != nil {
		logger.Warn("avatar fetch failed", "identifier", identifier, "error", err)
		return errorResult(fmt.Sprintf("Failed to fetch avatar for %q: %v", identifier, err)), nil
	}

	encoded := base64.StdEncoding.EncodeToString(avatar.Data)
	return mcp.NewToolResultImage("Avatar for "+identifier, encoded, avatar.MIMEType), nil
}

// handleGetInferredInterestsByEmail implements the get_inferred_interests_by_email tool
func handleGetInferredInterestsByEmail(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := request.RequireString("email")
		if err != nil || email == "" {
			return errorResult("Error: email parameter is required"), nil
		}

		identifier, err := gravatar.Identifier(email)
		if err != nil {
			return errorResult(fmt.Sprintf("Invalid email %q: %v", email, err)), nil
		}

		interests, err := client.InferredInterestsByID(ctx, identifier)
		if err != nil {
			logger.Warn("interests fetch failed", "identifier", identifier, "error", err)
			return errorResult(fmt.Sprintf("Failed to get interests for email %q: %v", email, err)), nil
		}
		return jsonResult(map[string]any{"interests": interests}), nil
	}
}

// handleGetInferredInterestsByID implements the get_inferred_interests_by_id tool
func handleGetInferredInterestsByID(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identifier, err := request.RequireString("profile_identifier")
		if err != nil || identifier == "" {
			return errorResult("Error: profile_identifier parameter is required"), nil
		}

		interests, err := client.InferredInterestsByID(ctx, identifier)
		if err != nil {
			logger.Warn("interests fetch failed", "identifier", identifier, "error", err)
			return errorResult(fmt.Sprintf("Failed to get interests for ID %q: %v", identifier, err)), nil
		}
		return jsonResult(map[string]any{"interests": interests}), nil
	}
}

// handleSearchProfilesByVerifiedAccount implements the search_profiles_by_verified_account tool
func handleSearchProfilesByVerifiedAccount(client *gravatar.Client, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := request.RequireString("username")
		if err != nil || username == "" {
			return errorResult("Error: username parameter is required"), nil
		}

		service := request.GetString("service", "")
		page := request.GetInt("page", 0)
		perPage := request.GetInt("per_page", 10)
		if perPage > 100 {
			perPage = 100
		}

		profiles, err := client.SearchProfilesByVerifiedAccount(ctx, username, service, page, perPage)
		if err != nil {
			logger.Warn("profile search failed", "username", username, "service", service, "error", err)
			return errorResult(fmt.Sprintf("Failed to search profiles for username %q: %v", username, err)), nil
		}
		return jsonResult(map[string]any{"profiles": profiles, "count": len(profiles)}), nil
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

func errorResult(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}
