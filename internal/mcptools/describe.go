package mcptools

import (
	"context"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// DescribeTool handles the pid_describe MCP tool. It sets the problem
// description and submits it in one call.
type DescribeTool struct {
	session *tuning.Session
}

// NewDescribeTool creates a DescribeTool.
func NewDescribeTool(session *tuning.Session) *DescribeTool {
	return &DescribeTool{session: session}
}

// Definition returns the MCP tool definition for registration.
func (t *DescribeTool) Definition() mcp.Tool {
	return mcp.NewTool("pid_describe",
		mcp.WithDescription(
			"Describe the system to tune and get initial PID gains. If all three of "+
				"kp, ki and kd are given, no advice is requested and the session moves "+
				"straight to telemetry entry.",
		),
		mcp.WithString("prompt",
			mcp.Description("What is being controlled, the actuator and sensor, and the goal."),
		),
		mcp.WithString("images",
			mcp.Description("Optional reference images, one data URL or file path per line."),
		),
		mcp.WithNumber("kp", mcp.Description("Proportional gain currently in use.")),
		mcp.WithNumber("ki", mcp.Description("Integral gain currently in use.")),
		mcp.WithNumber("kd", mcp.Description("Derivative gain currently in use.")),
	)
}

// Handle processes the pid_describe tool call.
func (t *DescribeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	images, err := loadImages(req.GetString("images", ""))
	if err != nil {
		return toolError("Loading images", err), nil
	}

	in := tuning.Input{Prompt: req.GetString("prompt", ""), Images: images}
	kp, okP := floatArg(req, "kp")
	ki, okI := floatArg(req, "ki")
	kd, okD := floatArg(req, "kd")
	if okP && okI && okD {
		in.Seed = &domain.GainTriple{Kp: kp, Ki: ki, Kd: kd}
	}

	if err := t.session.SubmitInput(context.WithoutCancel(ctx), in); err != nil {
		return toolError("Submitting", err), nil
	}
	return mcp.NewToolResultText(renderSnapshot(t.session.Snapshot())), nil
}
