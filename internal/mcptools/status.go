package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the pid_status MCP tool.
type StatusTool struct {
	session *tuning.Session
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(session *tuning.Session) *StatusTool {
	return &StatusTool{session: session}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_status",
		mcp.WithDescription("Show the session stage, loaded telemetry and suggestions."),
		mcp.WithBoolean("history",
			mcp.Description("Include every previous suggestion, oldest first."),
		),
	)
}

// Handle processes the pid_status tool call.
func (t *StatusTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := renderSnapshot(t.session.Snapshot())

	if withHistory, _ := req.GetArguments()["history"].(bool); withHistory {
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\n## History\n")
		for _, e := range t.session.History() {
			fmt.Fprintf(&b, "\n### #%d (%s)\n\n%s\n", e.Seq, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Text)
		}
		text = b.String()
	}
	return mcp.NewToolResultText(text), nil
}
