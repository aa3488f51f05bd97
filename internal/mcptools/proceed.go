package mcptools

import (
	"context"

	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// ProceedTool handles the pid_proceed MCP tool.
type ProceedTool struct {
	session *tuning.Session
}

// NewProceedTool creates a ProceedTool.
func NewProceedTool(session *tuning.Session) *ProceedTool {
	return &ProceedTool{session: session}
}

// Definition returns the MCP tool definition for registration.
func (t *ProceedTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_proceed",
		mcp.WithDescription("Accept the latest suggestion and move on to entering telemetry from a run."),
	)
}

// Handle processes the pid_proceed tool call.
func (t *ProceedTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.session.ProceedToData(); err != nil {
		return toolError("Proceeding", err), nil
	}
	return mcp.NewToolResultText(renderSnapshot(t.session.Snapshot())), nil
}
