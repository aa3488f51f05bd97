package advisory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/pidtune/internal/domain"
)

const initialSystemPrompt = "You are a PID tuning expert. Analyze the user's requirements and any provided images " +
	"to suggest initial PID parameters. Provide clear explanations for your suggestions that are clearly " +
	"connected to the equipment the user is tuning. Finish by specifying the Kp, Ki, and Kd values to try."

const refinementSystemPrompt = "You are a PID tuning expert. Analyze the system's response graph and current " +
	"parameters to suggest improved PID parameters. Consider the historical context of previous tuning attempts. " +
	"Finish by specifying the next Kp, Ki, and Kd values to try."

// initialText builds the user turn text for a first suggestion.
func initialText(req InitialRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.FreeText))
	if req.SeedGains != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Gains currently in use:\n")
		writeGains(&b, *req.SeedGains)
	}
	return b.String()
}

// refinementText builds the user turn text for a refinement. Previous
// suggestions are separated by blank lines, oldest first.
func refinementText(req RefinementRequest) string {
	var b strings.Builder
	b.WriteString("Previous interactions:\n")
	for i, e := range req.History {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(e.Text)
	}
	b.WriteString("\n\nCurrent PID Parameters:\n")
	writeGains(&b, req.CurrentGains)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		b.WriteString("\n\nNotes from the operator:\n")
		b.WriteString(notes)
	}
	return b.String()
}

func writeGains(b *strings.Builder, g domain.GainTriple) {
	fmt.Fprintf(b, "Kp: %s\nKi: %s\nKd: %s", formatGain(g.Kp), formatGain(g.Ki), formatGain(g.Kd))
}

func formatGain(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
