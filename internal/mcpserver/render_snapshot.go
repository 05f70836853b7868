package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/render"
)

const maxRenderScale = 4

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type renderResult struct {
	SavedPath string  `json:"savedPath"`
	AbsPath   string  `json:"absPath"`
	Scale     float64 `json:"scale"`
}

func (s *Server) renderSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := render.DefaultOptions()
	if scale := req.GetFloat("scale", 0); scale != 0 {
		if scale < 0 || scale > maxRenderScale {
			return mcp.NewToolResultError(fmt.Sprintf("scale must be in (0, %d]", maxRenderScale)), nil
		}
		opts.Scale = scale
	}

	filename := optionalString(req, "filename")
	if filename != "" {
		filename = sanitizeFilename(filename)
		if strings.ToLower(filepath.Ext(filename)) != ".png" {
			return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension: %s (only .png)", filepath.Ext(filename))), nil
		}
	}

	saved, err := s.svc.ExportPNG(ctx, id, filename, opts)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("export already exists, pass another filename: %v", err)), nil
		}
		return lookupError(id, err), nil
	}
	return jsonResult(renderResult{
		SavedPath: saved,
		AbsPath:   filepath.Join(s.svc.ExportRoot(), filepath.FromSlash(saved)),
		Scale:     opts.Scale,
	}), nil
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "." || name == "_" {
		return ""
	}
	return name
}
