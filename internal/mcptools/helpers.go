// Package mcptools exposes a tuning session as MCP tools so an assistant can
// drive the describe, run, refine loop from a chat client.
//
// Each tool is a struct holding its dependencies, with Definition returning
// the schema and Handle processing a call. Operation failures come back as
// tool error results so the assistant can correct and retry.
package mcptools

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

// loadImage accepts a base64 data URL or a path to an image file.
func loadImage(ref string) (domain.Image, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "data:") {
		return domain.ParseDataURL(ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return domain.Image{}, fmt.Errorf("reading image %s: %w", ref, err)
	}
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return domain.Image{}, fmt.Errorf("%w: %s is %s", domain.ErrInvalidDataURL, ref, mediaType)
	}
	return domain.Image{MediaType: mediaType, Data: data}, nil
}

// loadImages splits a newline separated list of image references.
func loadImages(refs string) ([]domain.Image, error) {
	var out []domain.Image
	for _, ref := range strings.Split(refs, "\n") {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		img, err := loadImage(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// floatArg returns a numeric argument and whether it was supplied.
func floatArg(req mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := req.GetArguments()[key].(float64)
	return v, ok
}

func toolError(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}

var nextStep = map[tuning.Stage]string{
	tuning.StageCollecting:        "Describe the system with `pid_describe`, or pass the gains in use to skip straight to data.",
	tuning.StageReviewing:         "Run the suggested gains, then call `pid_proceed` to enter telemetry.",
	tuning.StageAwaitingTelemetry: "Log a run and paste it with `pid_ingest_telemetry`.",
	tuning.StageVisualizing:       "Call `pid_refine` with a chart snapshot to get improved gains.",
}

// renderSnapshot formats a session snapshot as markdown.
func renderSnapshot(snap tuning.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tuning Session\n\n**Stage:** %s\n", snap.Stage)
	if snap.Busy {
		b.WriteString("**Busy:** an advisory request is in flight\n")
	}
	if snap.SeedGains != nil {
		fmt.Fprintf(&b, "**Seed gains:** %s\n", snap.SeedGains)
	}
	if snap.TelemetryRows > 0 {
		fmt.Fprintf(&b, "**Telemetry:** %d records (%s schema, %d lines skipped)\n",
			snap.TelemetryRows, snap.Schema, snap.TelemetrySkipped)
	}
	if snap.LatestGainsText != "" {
		fmt.Fprintf(&b, "**Latest gains:** %s\n", snap.LatestGainsText)
	}
	fmt.Fprintf(&b, "**Suggestions so far:** %d\n", snap.HistoryLen)
	if snap.LatestSuggestion != nil {
		fmt.Fprintf(&b, "\n## Latest suggestion (#%d)\n\n%s\n", snap.LatestSuggestion.Seq, snap.LatestSuggestion.Text)
	}
	if step, ok := nextStep[snap.Stage]; ok {
		fmt.Fprintf(&b, "\n**Next:** %s\n", step)
	}
	return b.String()
}
