package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  bool
		wantStatus int
	}{
		{"explicit origin", []string{"https://app.example"}, "https://app.example", http.MethodGet, "https://app.example", true, http.StatusTeapot},
		{"unknown origin", []string{"https://app.example"}, "https://evil.example", http.MethodGet, "", false, http.StatusTeapot},
		{"wildcard no credentials", []string{"*"}, "https://any.example", http.MethodPost, "https://any.example", false, http.StatusTeapot},
		{"preflight", []string{"https://app.example"}, "https://app.example", http.MethodOptions, "https://app.example", true, http.StatusNoContent},
		{"no origin header", []string{"*"}, "", http.MethodGet, "", false, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/session", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.origins)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("credentials = %v, want %v", got, tt.wantCreds)
			}
			if tt.wantOrigin != "" && !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-Cogcheck-Session-ID") {
				t.Error("session header not allowed")
			}
		})
	}
}
