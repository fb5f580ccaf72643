package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/tagger/internal/models"
	"github.com/joescharf/tagger/internal/store"
	"github.com/joescharf/tagger/internal/tagfield"
)

// Server wraps the tagger data layer and exposes it as MCP tools.
type Server struct {
	store  store.Store
	logger *slog.Logger
}

// NewServer creates the MCP server wrapper. A nil logger uses slog.Default().
func NewServer(s store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, logger: logger}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("tagger", version, server.WithToolCapabilities(true))

	srv.AddTool(s.listTagsTool())
	srv.AddTool(s.saveEntryTagsTool())
	srv.AddTool(s.entryTagsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, version string) error {
	stdioServer := server.NewStdioServer(s.MCPServer(version))
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

type tagOut struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
}

func toTagOut(tags []*models.Tag) []tagOut {
	out := make([]tagOut, len(tags))
	for i, t := range tags {
		out[i] = tagOut{ID: t.ID, GroupID: t.GroupID, Name: t.Name}
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// tagger_list_tags
func (s *Server) listTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tagger_list_tags",
		mcp.WithDescription("List the tags in a tag group. Returns a JSON array of tags with id, group_id, and name."),
		mcp.WithNumber("group_id", mcp.Required(), mcp.Description("Tag group ID")),
	)
	return tool, s.handleListTags
}

func (s *Server) handleListTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID, err := request.RequireInt("group_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: group_id"), nil
	}
	if _, err := s.store.GetTagGroup(ctx, int64(groupID)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tag group not found: %d", groupID)), nil
	}
	tags, err := s.store.ListTags(ctx, int64(groupID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tags: %v", err)), nil
	}
	return jsonResult(toTagOut(tags)), nil
}

// tagger_save_entry_tags
func (s *Server) saveEntryTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tagger_save_entry_tags",
		mcp.WithDescription(`Replace the tags of an entry's tag field. Each value is either an existing tag ID ("12") or "new:<name>" to use the tag with that name, creating it if missing. Returns the saved tags as JSON.`),
		mcp.WithNumber("entry_id", mcp.Required(), mcp.Description("Entry ID")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field handle or ID")),
		mcp.WithArray("tags", mcp.Required(), mcp.Description("Tag IDs or new:<name> values"), mcp.WithStringItems()),
	)
	return tool, s.handleSaveEntryTags
}

func (s *Server) handleSaveEntryTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entryID, err := request.RequireInt("entry_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: entry_id"), nil
	}
	fieldRef, err := request.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: field"), nil
	}
	raw, err := request.RequireStringSlice("tags")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tags"), nil
	}
	if raw == nil {
		raw = []string{}
	}

	if _, err := s.store.GetEntry(ctx, int64(entryID)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entry not found: %d", entryID)), nil
	}
	f, err := s.findField(ctx, fieldRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("field not found: %s", fieldRef)), nil
	}

	res, err := tagfield.NewFieldType(f, s.store, s.logger).AfterEntrySave(ctx, int64(entryID), raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save tags: %v", err)), nil
	}
	if !res.Skipped {
		if err := s.store.TouchEntry(ctx, int64(entryID)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update entry: %v", err)), nil
		}
	}

	tags, err := s.store.GetRelatedTags(ctx, f.ID, int64(entryID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load tags: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"entry_id": entryID,
		"field":    f.Handle,
		"skipped":  res.Skipped,
		"tags":     toTagOut(tags),
	}), nil
}

// tagger_entry_tags
func (s *Server) entryTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tagger_entry_tags",
		mcp.WithDescription("Show the tags attached to an entry through a tag field, in saved order."),
		mcp.WithNumber("entry_id", mcp.Required(), mcp.Description("Entry ID")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field handle or ID")),
	)
	return tool, s.handleEntryTags
}

func (s *Server) handleEntryTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entryID, err := request.RequireInt("entry_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: entry_id"), nil
	}
	fieldRef, err := request.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: field"), nil
	}

	f, err := s.findField(ctx, fieldRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("field not found: %s", fieldRef)), nil
	}
	tags, err := s.store.GetRelatedTags(ctx, f.ID, int64(entryID))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load tags: %v", err)), nil
	}
	return jsonResult(toTagOut(tags)), nil
}

func (s *Server) findField(ctx context.Context, ref string) (*models.Field, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.store.GetField(ctx, id)
	}
	return s.store.GetFieldByHandle(ctx, ref)
}
