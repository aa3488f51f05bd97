package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/pidtune/internal/telemetry"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// ExportTool handles the pid_export MCP tool.
type ExportTool struct {
	session *tuning.Session
}

// NewExportTool creates an ExportTool.
func NewExportTool(session *tuning.Session) *ExportTool {
	return &ExportTool{session: session}
}

// Definition returns the MCP tool definition for registration.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_export",
		mcp.WithDescription("Export the loaded telemetry and latest gains as JSON, or the telemetry as CSV."),
		mcp.WithString("format",
			mcp.Description("Output format."),
			mcp.Enum("json", "csv"),
		),
		mcp.WithString("view",
			mcp.Description("Chart the export refers to."),
			mcp.Enum("response", "variables"),
		),
	)
}

// Handle processes the pid_export tool call.
func (t *ExportTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch format := req.GetString("format", "json"); format {
	case "csv":
		records, _ := t.session.Telemetry()
		if len(records) == 0 {
			return toolError("Exporting", tuning.ErrNoTelemetry), nil
		}
		return mcp.NewToolResultText(telemetry.Format(records, telemetry.SchemaCanonical)), nil
	case "json":
		view, err := tuning.ParseView(req.GetString("view", ""))
		if err != nil {
			return toolError("Exporting", err), nil
		}
		out, err := json.MarshalIndent(t.session.Export(view), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding export: %w", err)
		}
		return mcp.NewToolResultText(string(out)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}
