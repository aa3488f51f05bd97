package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeAdvisor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAdvisor) RequestInitial(ctx context.Context, _ advisory.InitialRequest) (string, error) {
	return f.answer(ctx)
}

func (f *fakeAdvisor) RequestRefinement(ctx context.Context, _ advisory.RefinementRequest) (string, error) {
	return f.answer(ctx)
}

func (f *fakeAdvisor) answer(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return "Kp = 2.5\nKi = 0.06\nKd = 8.0", nil
}

const sampleCSV = "ms,input,output,setpoint,error,Kp,Ki,Kd\n" +
	"0,10,0,20,10,2.5,0.06,8.0\n" +
	"100,12,5,20,8,2.2,0.08,7.5\n"

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func newTestSession(adv advisory.Client) *tuning.Session {
	return tuning.NewSession("mcp", adv, tuning.Options{})
}

func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func call(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestDescribeTool_Definition(t *testing.T) {
	tool := NewDescribeTool(newTestSession(&fakeAdvisor{}))
	def := tool.Definition()

	if def.Name != "pid_describe" {
		t.Errorf("tool name = %q, want %q", def.Name, "pid_describe")
	}
	for _, param := range []string{"prompt", "images", "kp", "ki", "kd"} {
		if _, ok := def.InputSchema.Properties[param]; !ok {
			t.Errorf("missing parameter %q", param)
		}
	}
}

func TestDescribeTool_RequestsInitialGains(t *testing.T) {
	adv := &fakeAdvisor{}
	session := newTestSession(adv)
	tool := NewDescribeTool(session)

	result := call(t, tool.Handle, map[string]interface{}{
		"prompt": "Heater on a 2 L water bath",
		"images": pngDataURL + "\n\n" + pngDataURL,
	})
	if isErrorResult(result) {
		t.Fatalf("unexpected error result: %s", getResultText(result))
	}
	if session.Stage() != tuning.StageReviewing {
		t.Errorf("stage = %s, want reviewing", session.Stage())
	}
	if got := session.Snapshot().ImageCount; got != 2 {
		t.Errorf("image count = %d, want 2", got)
	}
	text := getResultText(result)
	if !strings.Contains(text, "Kp = 2.5") || !strings.Contains(text, "pid_proceed") {
		t.Errorf("result should show the suggestion and next step, got:\n%s", text)
	}
}

func TestDescribeTool_FullSeedSkipsAdvice(t *testing.T) {
	adv := &fakeAdvisor{}
	session := newTestSession(adv)
	tool := NewDescribeTool(session)

	result := call(t, tool.Handle, map[string]interface{}{
		"prompt": "ignored",
		"kp":     1.0,
		"ki":     0.0,
		"kd":     0.5,
	})
	if isErrorResult(result) {
		t.Fatalf("unexpected error result: %s", getResultText(result))
	}
	if session.Stage() != tuning.StageAwaitingTelemetry {
		t.Errorf("stage = %s, want awaiting_telemetry", session.Stage())
	}
	if adv.calls != 0 {
		t.Errorf("advisor called %d times, want 0", adv.calls)
	}
}

func TestDescribeTool_PartialSeedNeedsPrompt(t *testing.T) {
	session := newTestSession(&fakeAdvisor{})
	tool := NewDescribeTool(session)

	result := call(t, tool.Handle, map[string]interface{}{"kp": 1.0, "ki": 0.1})
	if !isErrorResult(result) {
		t.Fatal("expected error result without a prompt or full seed")
	}
	if session.Stage() != tuning.StageCollecting {
		t.Errorf("stage = %s, want collecting", session.Stage())
	}
}

func TestDescribeTool_AdvisoryFailure(t *testing.T) {
	adv := &fakeAdvisor{err: &advisory.Error{Kind: advisory.KindUnauthenticated}}
	session := newTestSession(adv)
	tool := NewDescribeTool(session)

	result := call(t, tool.Handle, map[string]interface{}{"prompt": "motor speed"})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if session.Stage() != tuning.StageCollecting {
		t.Errorf("stage = %s, want collecting", session.Stage())
	}
}

func TestDescribeTool_BadImage(t *testing.T) {
	tool := NewDescribeTool(newTestSession(&fakeAdvisor{}))

	result := call(t, tool.Handle, map[string]interface{}{
		"prompt": "motor",
		"images": filepath.Join(t.TempDir(), "missing.png"),
	})
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing image file")
	}
}

func TestTuningLoop(t *testing.T) {
	adv := &fakeAdvisor{}
	session := newTestSession(adv)

	call(t, NewDescribeTool(session).Handle, map[string]interface{}{"prompt": "motor"})

	if r := call(t, NewProceedTool(session).Handle, nil); isErrorResult(r) {
		t.Fatalf("proceed: %s", getResultText(r))
	}

	ingest := call(t, NewIngestTelemetryTool(session).Handle, map[string]interface{}{"csv": sampleCSV})
	if isErrorResult(ingest) {
		t.Fatalf("ingest: %s", getResultText(ingest))
	}
	if !strings.Contains(getResultText(ingest), "Loaded 2 records with the canonical schema") {
		t.Errorf("ingest summary = %q", getResultText(ingest))
	}

	chart := filepath.Join(t.TempDir(), "chart.png")
	png := []byte("\x89PNG\r\n\x1a\n0000IHDR")
	if err := os.WriteFile(chart, png, 0o600); err != nil {
		t.Fatal(err)
	}
	refine := call(t, NewRefineTool(session).Handle, map[string]interface{}{
		"snapshot": chart,
		"notes":    "overshoot",
	})
	if isErrorResult(refine) {
		t.Fatalf("refine: %s", getResultText(refine))
	}
	if session.Stage() != tuning.StageReviewing {
		t.Errorf("stage = %s, want reviewing", session.Stage())
	}
	if got := len(session.History()); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}

	status := call(t, NewStatusTool(session).Handle, map[string]interface{}{"history": true})
	text := getResultText(status)
	if !strings.Contains(text, "### #0") || !strings.Contains(text, "### #1") {
		t.Errorf("status with history should list both entries, got:\n%s", text)
	}
}

func TestIngestTelemetryTool_Failures(t *testing.T) {
	session := newTestSession(&fakeAdvisor{})
	tool := NewIngestTelemetryTool(session)

	// Wrong stage.
	if r := call(t, tool.Handle, map[string]interface{}{"csv": sampleCSV}); !isErrorResult(r) {
		t.Fatal("expected error in collecting stage")
	}

	call(t, NewDescribeTool(session).Handle, map[string]interface{}{"kp": 1.0, "ki": 0.0, "kd": 0.0})

	if r := call(t, tool.Handle, map[string]interface{}{"csv": sampleCSV, "schema": "bogus"}); !isErrorResult(r) {
		t.Error("expected error for unknown schema")
	}

	r := call(t, tool.Handle, map[string]interface{}{"csv": "a,b\nc,d\n"})
	if !isErrorResult(r) {
		t.Fatal("expected error for rows that do not parse")
	}
	if !strings.Contains(getResultText(r), "Skipped lines") {
		t.Errorf("error should report skipped lines, got %q", getResultText(r))
	}
	if session.Stage() != tuning.StageAwaitingTelemetry {
		t.Errorf("stage = %s, want awaiting_telemetry", session.Stage())
	}
}

func TestRefineTool_RequiresSnapshot(t *testing.T) {
	tool := NewRefineTool(newTestSession(&fakeAdvisor{}))

	if r := call(t, tool.Handle, map[string]interface{}{"snapshot": "data:text/plain,hello"}); !isErrorResult(r) {
		t.Error("expected error for a non-base64 data URL")
	}
}

func TestLoadImage_RejectsNonImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadImage(path); !errors.Is(err, domain.ErrInvalidDataURL) {
		t.Errorf("loadImage(text file) error = %v, want ErrInvalidDataURL", err)
	}
}

func TestExportTool(t *testing.T) {
	session := newTestSession(&fakeAdvisor{})
	tool := NewExportTool(session)

	empty := call(t, tool.Handle, map[string]interface{}{})
	if isErrorResult(empty) {
		t.Fatalf("json export without telemetry: %s", getResultText(empty))
	}
	if r := call(t, tool.Handle, map[string]interface{}{"format": "csv"}); !isErrorResult(r) {
		t.Error("expected csv export to fail without telemetry")
	}

	call(t, NewDescribeTool(session).Handle, map[string]interface{}{"kp": 1.0, "ki": 0.0, "kd": 0.0})
	call(t, NewIngestTelemetryTool(session).Handle, map[string]interface{}{"csv": sampleCSV})

	r := call(t, tool.Handle, map[string]interface{}{"view": "variables"})
	var doc struct {
		CurrentView string             `json:"current_view"`
		LatestGains *domain.GainTriple `json:"latest_gains"`
	}
	if err := json.Unmarshal([]byte(getResultText(r)), &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc.CurrentView != "variables" {
		t.Errorf("current_view = %q, want variables", doc.CurrentView)
	}
	if doc.LatestGains == nil || doc.LatestGains.Kp != 2.2 {
		t.Errorf("latest_gains = %+v, want Kp 2.2", doc.LatestGains)
	}

	csv := getResultText(call(t, tool.Handle, map[string]interface{}{"format": "csv"}))
	if !strings.HasPrefix(csv, "ms,input,output,setpoint,error,Kp,Ki,Kd") {
		t.Errorf("csv export header wrong:\n%s", csv)
	}

	if r := call(t, tool.Handle, map[string]interface{}{"view": "bode"}); !isErrorResult(r) {
		t.Error("expected error for unknown view")
	}
}

func TestSettingsTool(t *testing.T) {
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "pidtune.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	tool := NewSettingsTool(repo, "local", domain.Credentials{})

	text := getResultText(call(t, tool.Handle, nil))
	if !strings.Contains(text, "not configured") || !strings.Contains(text, domain.DefaultModel) {
		t.Errorf("initial settings = %q", text)
	}

	text = getResultText(call(t, tool.Handle, map[string]interface{}{"api_key": "sk-secret", "model": "gpt-4o"}))
	if strings.Contains(text, "sk-secret") {
		t.Error("api key must not be echoed")
	}
	if !strings.Contains(text, "**API key:** configured") || !strings.Contains(text, "gpt-4o") {
		t.Errorf("updated settings = %q", text)
	}

	text = getResultText(call(t, tool.Handle, map[string]interface{}{"model": ""}))
	if !strings.Contains(text, domain.DefaultModel) {
		t.Errorf("model reset = %q", text)
	}

	if r := call(t, tool.Handle, map[string]interface{}{"api_key": "  "}); !isErrorResult(r) {
		t.Error("expected error for blank api key")
	}
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(newTestSession(&fakeAdvisor{}), nil, "local", domain.Credentials{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestAdvisoryCallsIgnoreClientCancel(t *testing.T) {
	session := newTestSession(&fakeAdvisor{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"prompt": "motor"}
	result, err := NewDescribeTool(session).Handle(ctx, req)
	if err != nil || isErrorResult(result) {
		t.Fatalf("describe with cancelled context: %v %s", err, getResultText(result))
	}

	call(t, NewProceedTool(session).Handle, nil)
	call(t, NewIngestTelemetryTool(session).Handle, map[string]interface{}{"csv": sampleCSV})

	req.Params.Arguments = map[string]interface{}{"snapshot": pngDataURL}
	result, err = NewRefineTool(session).Handle(ctx, req)
	if err != nil || isErrorResult(result) {
		t.Fatalf("refine with cancelled context: %v %s", err, getResultText(result))
	}
	if got := len(session.History()); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}
