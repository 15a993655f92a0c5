package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Recommender Recommender
	Catalog     Catalog
}

// NewMCPServer creates an MCP server exposing the recommendation pipeline and
// the candidate catalog as tools, so agent clients can use the service
// without going through the REST surface.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"nextplay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("nextplay — video game recommendations from a curated candidate catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend_games",
			mcp.WithDescription("Recommend games based on a list of favorite game names."),
			mcp.WithArray("favorites", mcp.Description("Names of games the user already likes"), mcp.Required()),
		),
		mcpRecommendGames(deps),
	)

	s.AddTool(
		mcp.NewTool("list_games",
			mcp.WithDescription("List the candidate game catalog."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of games to return (default 50)")),
		),
		mcpListGames(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://games",
			"Game Catalog",
			mcp.WithResourceDescription("Full candidate game catalog as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpRecommendGames(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		favorites := req.GetStringSlice("favorites", nil)
		if len(favorites) == 0 {
			return mcpError("favorites must be a non-empty array"), nil
		}

		result, err := deps.Recommender.Recommend(ctx, favorites)
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListGames(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 50)
		if limit <= 0 {
			limit = 50
		}

		games, err := deps.Catalog.Games(false)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load catalog: %v", err)), nil
		}
		if len(games) > limit {
			games = games[:limit]
		}

		b, err := json.Marshal(games)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal games: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceCatalog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		games, err := deps.Catalog.Games(false)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}

		b, err := json.Marshal(games)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
