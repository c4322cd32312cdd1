package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"searchmcp/internal/upstream"
)

// Client is the slice of the upstream API the tool handlers need.
// *upstream.Client satisfies it; tests substitute fakes.
type Client interface {
	ListCollections(ctx context.Context) ([]upstream.Collection, error)
	Search(ctx context.Context, collectionID, query string, limit int, responseType string) (json.RawMessage, error)
	BaseURL() string
}

// Meta describes the resolved session configuration reported by the
// introspection tool. It never contains key material.
type Meta struct {
	BaseURL           string
	DefaultCollection string
	KeyPresent        bool
}

// ConfigReport is the introspection tool's response payload.
type ConfigReport struct {
	BaseURL           string   `json:"base_url"`
	DefaultCollection string   `json:"default_collection"`
	APIKeyConfigured  bool     `json:"api_key_configured"`
	Tools             []string `json:"tools"`
}

const defaultSearchLimit = 100

// Register adds one MCP tool per capability to srv. Search handlers call the
// upstream API through client; the introspection handler reports meta plus
// the full tool name list.
func Register(srv *server.MCPServer, caps []Capability, client Client, meta Meta) {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.ToolName())
	}

	for _, c := range caps {
		switch c.Kind {
		case KindSearch:
			srv.AddTool(searchTool(c.Collection), searchHandler(client, c.Collection.ID))
		case KindIntrospection:
			srv.AddTool(introspectionTool(), introspectionHandler(meta, names))
		}
	}
}

func searchTool(col upstream.Collection) mcp.Tool {
	display := col.Name
	if display == "" {
		display = col.ID
	}
	return mcp.NewTool("search-"+col.ID,
		mcp.WithDescription(fmt.Sprintf(
			"Search the %q collection (last sync status: %s).", display, col.Status)),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return"),
		),
		mcp.WithString("response_type",
			mcp.Description("'raw' returns matched documents, 'completion' returns a synthesized answer"),
			mcp.Enum("raw", "completion"),
		),
	)
}

func searchHandler(client Client, collectionID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := req.GetInt("limit", defaultSearchLimit)
		responseType := req.GetString("response_type", "raw")

		raw, err := client.Search(ctx, collectionID, query, limit, responseType)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("search failed", err), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

func introspectionTool() mcp.Tool {
	return mcp.NewTool("get-config",
		mcp.WithDescription("Report the resolved server configuration and the list of registered search tools."),
	)
}

func introspectionHandler(meta Meta, toolNames []string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report := ConfigReport{
			BaseURL:           meta.BaseURL,
			DefaultCollection: meta.DefaultCollection,
			APIKeyConfigured:  meta.KeyPresent,
			Tools:             toolNames,
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return mcp.NewToolResultErrorFromErr("failed to encode config report", err), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
