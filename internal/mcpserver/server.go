// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Laguz search tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/query"
	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/storage"
)

// Server wraps the MCP server with Laguz tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *search.Service
	provider storage.Provider
}

// New creates a new MCP server with all Laguz tools registered.
func New(svc *search.Service, provider storage.Provider) *Server {
	s := &Server{svc: svc, provider: provider}

	s.mcp = server.NewMCPServer(
		"Laguz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_vault",
		mcp.WithDescription("Search the vault with ranked full-text matching. "+
			"Quote a keyword for an exact phrase. Optional folder and property "+
			"filters are ANDed with the keywords."),
		mcp.WithString("keywords", mcp.Description("Space-independent keyword list, comma-separated")),
		mcp.WithString("folders", mcp.Description("Comma-separated folder name patterns")),
		mcp.WithString("filenames", mcp.Description("Comma-separated filename patterns (^exact$, ^prefix, substring)")),
		mcp.WithString("properties", mcp.Description(`JSON array of {"name","value","operator"} property filters`)),
		mcp.WithNumber("limit", mcp.Description("Max results (default 10)")),
	), s.searchVault)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full content of a vault document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. folder/note.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report how many documents are indexed and the index schema version."),
	), s.indexStats)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Server) searchVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op := search.Operation{
		Keywords:  splitList(req.GetString("keywords", "")),
		Folders:   splitList(req.GetString("folders", "")),
		Filenames: splitList(req.GetString("filenames", "")),
	}
	if raw := req.GetString("properties", ""); raw != "" {
		var filters []query.PropertyFilter
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid properties JSON: %v", err)), nil
		}
		op.Properties = filters
	}
	if op.Keywords == nil && op.Folders == nil && op.Filenames == nil && op.Properties == nil {
		return mcp.NewToolResultError("at least one of keywords, folders, filenames, properties is required"), nil
	}

	limit := req.GetInt("limit", 10)
	results, err := s.svc.Query([]search.Operation{op})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page := search.Paginate(results, 1, limit)
	out, _ := json.MarshalIndent(page, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.provider.Read(path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) indexStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
