package mcptools

import (
	"context"

	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// RefineTool handles the pid_refine MCP tool.
type RefineTool struct {
	session *tuning.Session
}

// NewRefineTool creates a RefineTool.
func NewRefineTool(session *tuning.Session) *RefineTool {
	return &RefineTool{session: session}
}

// Definition returns the MCP tool definition for registration.
func (t *RefineTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_refine",
		mcp.WithDescription(
			"Ask for improved gains using every previous suggestion, the gains of the "+
				"last telemetry sample and a chart of the run.",
		),
		mcp.WithString("snapshot",
			mcp.Required(),
			mcp.Description("Chart of the response as a data URL or an image file path."),
		),
		mcp.WithString("notes",
			mcp.Description("Observations about the run, e.g. overshoot or oscillation."),
		),
	)
}

// Handle processes the pid_refine tool call.
func (t *RefineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := loadImage(req.GetString("snapshot", ""))
	if err != nil {
		return toolError("Loading snapshot", err), nil
	}
	if _, err := t.session.RequestRefinement(context.WithoutCancel(ctx), snapshot, req.GetString("notes", "")); err != nil {
		return toolError("Refining", err), nil
	}
	return mcp.NewToolResultText(renderSnapshot(t.session.Snapshot())), nil
}
