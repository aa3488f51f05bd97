package mcptools

import (
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

const instructions = "Iteratively tune a PID controller. Start with pid_describe, " +
	"run the suggested gains, load the logged run with pid_ingest_telemetry and " +
	"ask for improved gains with pid_refine. pid_status shows where you are."

// NewServer registers every tool against one session.
func NewServer(session *tuning.Session, repo store.Repository, userID string, fallback domain.Credentials) *server.MCPServer {
	s := server.NewMCPServer(
		"pidtune",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	settings := NewSettingsTool(repo, userID, fallback)
	s.AddTool(settings.Definition(), settings.Handle)

	describe := NewDescribeTool(session)
	s.AddTool(describe.Definition(), describe.Handle)

	proceed := NewProceedTool(session)
	s.AddTool(proceed.Definition(), proceed.Handle)

	ingest := NewIngestTelemetryTool(session)
	s.AddTool(ingest.Definition(), ingest.Handle)

	refine := NewRefineTool(session)
	s.AddTool(refine.Definition(), refine.Handle)

	status := NewStatusTool(session)
	s.AddTool(status.Definition(), status.Handle)

	export := NewExportTool(session)
	s.AddTool(export.Definition(), export.Handle)

	return s
}
