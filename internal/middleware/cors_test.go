package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  bool
		wantStatus int
	}{
		{"explicit origin", []string{"https://pid.example.com"}, "https://pid.example.com", http.MethodGet, "https://pid.example.com", true, http.StatusTeapot},
		{"unknown origin", []string{"https://pid.example.com"}, "https://evil.example.com", http.MethodGet, "", false, http.StatusTeapot},
		{"wildcard has no credentials", []string{"*"}, "https://any.example.com", http.MethodGet, "https://any.example.com", false, http.StatusTeapot},
		{"preflight short circuits", []string{"*"}, "https://any.example.com", http.MethodOptions, "https://any.example.com", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/session", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}
