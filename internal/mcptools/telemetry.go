package mcptools

import (
	"context"
	"fmt"

	"github.com/ashureev/pidtune/internal/telemetry"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// IngestTelemetryTool handles the pid_ingest_telemetry MCP tool.
type IngestTelemetryTool struct {
	session *tuning.Session
}

// NewIngestTelemetryTool creates an IngestTelemetryTool.
func NewIngestTelemetryTool(session *tuning.Session) *IngestTelemetryTool {
	return &IngestTelemetryTool{session: session}
}

// Definition returns the MCP tool definition for registration.
func (t *IngestTelemetryTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_ingest_telemetry",
		mcp.WithDescription(
			"Load comma separated telemetry from a run. Columns are "+
				"ms,input,output,setpoint,error,Kp,Ki,Kd or, for older firmware, "+
				"ms,input,output,setpoint,Kp,Ki,Kd. A header line is optional. "+
				"Replaces any previously loaded run.",
		),
		mcp.WithString("csv",
			mcp.Required(),
			mcp.Description("The logged samples, one per line."),
		),
		mcp.WithString("schema",
			mcp.Description("Column layout. Detected from the header when omitted."),
			mcp.Enum("auto", "canonical", "legacy"),
		),
	)
}

// Handle processes the pid_ingest_telemetry tool call.
func (t *IngestTelemetryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("csv", "")
	schema, err := telemetry.Select(req.GetString("schema", ""), raw)
	if err != nil {
		return toolError("Selecting schema", err), nil
	}

	res, err := t.session.IngestTelemetry(raw, schema)
	if err != nil {
		if res.Skipped > 0 {
			return mcp.NewToolResultError(fmt.Sprintf(
				"Loading telemetry failed: %v. Skipped lines: %v", err, res.SkippedLines)), nil
		}
		return toolError("Loading telemetry", err), nil
	}

	summary := fmt.Sprintf("Loaded %d records with the %s schema", len(res.Records), schema.Name())
	if res.Skipped > 0 {
		summary += fmt.Sprintf("; skipped lines %v", res.SkippedLines)
	}
	return mcp.NewToolResultText(summary + ".\n\n" + renderSnapshot(t.session.Snapshot())), nil
}
