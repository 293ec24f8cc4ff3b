package tools

import (
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"gravmcp/gravatar"
)

// Options wires the tool surface to its collaborators.
type Options struct {
	Name     string
	Version  string
	Gravatar *gravatar.Client
	// Validate resolves downstream bearer tokens; nil disables the
	// authenticated tools.
	Validate TokenValidator
	Logger   *slog.Logger
}

// NewServer builds the MCP server with every tool and prompt registered.
func NewServer(opts Options) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		opts.Name,
		opts.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	client := opts.Gravatar
	logger := opts.Logger

	s.AddTool(createGetProfileByEmailTool(), handleGetProfileByEmail(client, logger))
	s.AddTool(createGetProfileByIDTool(), handleGetProfileByID(client, logger))
	s.AddTool(createGetMyProfileTool(), handleGetMyProfile(client, logger))
	s.AddTool(createGetAvatarByEmailTool(), handleGetAvatarByEmail(client, logger))
	s.AddTool(createGetAvatarByIDTool(), handleGetAvatarByID(client, logger))
	s.AddTool(createGetInferredInterestsByEmailTool(), handleGetInferredInterestsByEmail(client, logger))
	s.AddTool(createGetInferredInterestsByIDTool(), handleGetInferredInterestsByID(client, logger))
	s.AddTool(createSearchProfilesByVerifiedAccountTool(), handleSearchProfilesByVerifiedAccount(client, logger))

	s.AddPrompt(createAPIIntegrationPrompt(), handleAPIIntegrationPrompt())

	return s
}

// NewHTTPHandler exposes the MCP server over stateless Streamable HTTP,
// bridging bearer auth into handler contexts.
func NewHTTPHandler(s *mcpserver.MCPServer, validate TokenValidator) http.Handler {
	return mcpserver.NewStreamableHTTPServer(s,
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(authContextFunc(validate)),
	)
}

// ServeStdio runs the MCP server over stdin/stdout. Stdio sessions have no
// bearer token, so the authenticated tools are unavailable.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}
