// Package mcpserver provides an MCP (Model Context Protocol) server
// that lets the playground's AI assistant read saved snapshots via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/snapshotservice"
)

// FormatURI is the resource URI of the snapshot format contract.
const FormatURI = "pinboard://snapshot-format"

// Server wraps the MCP server with pinboard tools.
type Server struct {
	mcp *server.MCPServer
	svc *snapshotservice.Service
}

// New creates a new MCP server with all pinboard tools registered.
func New(svc *snapshotservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Pinboard",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List the newest saved playground snapshots with note, element and connection counts."),
		mcp.WithString("userId", mcp.Description("Only snapshots saved by this user")),
		mcp.WithString("viewId", mcp.Description("Only snapshots of this dashboard view")),
		mcp.WithString("sessionId", mcp.Description("Only snapshots from this session")),
	), s.listSnapshots)

	s.mcp.AddTool(mcp.NewTool("read_snapshot",
		mcp.WithDescription("Read one snapshot: its envelope and the decoded playground document. "+
			"See get_snapshot_contract or the "+FormatURI+" resource for the field meanings."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	), s.readSnapshot)

	s.mcp.AddTool(mcp.NewTool("describe_connections",
		mcp.WithDescription("List every connection and implicit note link of a snapshot, "+
			"with readable endpoint labels and the text of connected notes."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	), s.describeConnections)

	s.mcp.AddTool(mcp.NewTool("get_snapshot_contract",
		mcp.WithDescription("Returns the pinboard snapshot format contract. "+
			"Call this before interpreting read_snapshot output."),
	), s.getSnapshotContract)

	s.mcp.AddTool(mcp.NewTool("render_snapshot",
		mcp.WithDescription("Render a snapshot to a PNG file in the exports directory and return its path."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
		mcp.WithString("filename", mcp.Description("Optional file name (must end with .png)")),
		mcp.WithNumber("scale", mcp.Description("Pixels per canvas pixel, 0 < scale <= 4 (default 0.25)")),
	), s.renderSnapshot)

	// Resource: snapshot format contract.
	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Snapshot Format Contract",
			mcp.WithResourceDescription("Structure of a saved playground snapshot."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSnapshotFormatResource,
	)

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

func optionalString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func lookupError(id string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("snapshot not found: %s", id))
	case errors.Is(err, apperr.ErrInvalidSnapshot):
		return mcp.NewToolResultError(fmt.Sprintf("snapshot %s does not hold a playground document", id))
	}
	return mcp.NewToolResultError(err.Error())
}

type snapshotBrief struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"userId"`
	ViewID    string                  `json:"viewId"`
	Version   int                     `json:"version"`
	Timestamp time.Time               `json:"timestamp"`
	Summary   snapshotservice.Summary `json:"summary"`
}

func (s *Server) listSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List(ctx, snapshot.Filter{
		SessionID: optionalString(req, "sessionId"),
		UserID:    optionalString(req, "userId"),
		ViewID:    optionalString(req, "viewId"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no snapshots found"), nil
	}
	briefs := make([]snapshotBrief, len(items))
	for i, it := range items {
		briefs[i] = snapshotBrief{
			ID:        it.ID,
			UserID:    it.UserID,
			ViewID:    it.ViewID,
			Version:   it.Version,
			Timestamp: it.Timestamp,
			Summary:   it.Summary,
		}
	}
	return jsonResult(briefs), nil
}

type snapshotView struct {
	ID        string            `json:"id"`
	SessionID string            `json:"sessionId,omitempty"`
	UserID    string            `json:"userId"`
	ViewID    string            `json:"viewId"`
	Version   int               `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Document  snapshot.Document `json:"document"`
	Skipped   int               `json:"skippedRecords,omitempty"`
}

func (s *Server) readSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.Get(ctx, id)
	if err != nil {
		return lookupError(id, err), nil
	}
	doc, err := snapshot.DecodeDocument(snap.Payload)
	if err != nil {
		return lookupError(id, err), nil
	}
	return jsonResult(snapshotView{
		ID:        snap.ID,
		SessionID: snap.SessionID,
		UserID:    snap.UserID,
		ViewID:    snap.ViewID,
		Version:   snap.Version,
		Timestamp: snap.Timestamp,
		Document:  doc,
		Skipped:   doc.Skipped,
	}), nil
}

func (s *Server) describeConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conns, err := s.svc.Connections(ctx, id)
	if err != nil {
		return lookupError(id, err), nil
	}
	if len(conns) == 0 {
		return mcp.NewToolResultText("no connections"), nil
	}
	return jsonResult(conns), nil
}

func (s *Server) getSnapshotContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SnapshotFormatContract), nil
}

func (s *Server) readSnapshotFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     SnapshotFormatContract,
		},
	}, nil
}
