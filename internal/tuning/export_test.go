package tuning

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseView(t *testing.T) {
	tests := []struct {
		in      string
		want    View
		wantErr bool
	}{
		{"", ViewResponse, false},
		{"response", ViewResponse, false},
		{" Variables ", ViewVariables, false},
		{"pie", "", true},
	}
	for _, tt := range tests {
		got, err := ParseView(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseView(%q) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownView) {
			t.Errorf("ParseView(%q) error = %v, want ErrUnknownView", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseView(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExport_EmptySession(t *testing.T) {
	s := newTestSession(&fakeAdvisor{})
	doc := s.Export("")

	if doc.CurrentView != ViewResponse {
		t.Errorf("view = %q", doc.CurrentView)
	}
	if doc.LatestGains != nil {
		t.Errorf("latest gains = %+v, want nil", doc.LatestGains)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tel, ok := decoded["telemetry"].([]any); !ok || len(tel) != 0 {
		t.Errorf("telemetry = %v, want empty array", decoded["telemetry"])
	}
	if _, ok := decoded["latest_gains"]; ok {
		t.Error("latest_gains should be omitted")
	}
}

func TestExport_WithTelemetry(t *testing.T) {
	s := newTestSession(&fakeAdvisor{})
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	s.now = func() time.Time { return fixed }
	toVisualizing(t, s)

	doc := s.Export(ViewVariables)
	if len(doc.Telemetry) != 2 {
		t.Fatalf("telemetry = %d records", len(doc.Telemetry))
	}
	if doc.LatestGains == nil || doc.LatestGains.Kp != 2.2 || doc.LatestGains.Ki != 0.08 || doc.LatestGains.Kd != 7.5 {
		t.Errorf("latest gains = %+v", doc.LatestGains)
	}
	if !doc.Timestamp.Equal(fixed) || doc.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v", doc.Timestamp)
	}
	if doc.CurrentView != ViewVariables {
		t.Errorf("view = %q", doc.CurrentView)
	}
}
