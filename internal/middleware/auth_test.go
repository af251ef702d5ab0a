package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(t *testing.T, reached *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		header     string
		wantStatus int
		wantReach  bool
	}{
		{"valid token", "GET", "Bearer s3cret", http.StatusOK, true},
		{"missing token", "GET", "", http.StatusUnauthorized, false},
		{"wrong token", "PUT", "Bearer nope", http.StatusUnauthorized, false},
		{"preflight", "OPTIONS", "", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			h := RequireToken("s3cret")(okHandler(t, &reached))

			req := httptest.NewRequest(tt.method, "/fridge", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != tt.wantReach {
				t.Errorf("reached handler = %v, want %v", reached, tt.wantReach)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	var reached bool
	h := RequireToken("")(okHandler(t, &reached))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PUT", "/fridge", nil))
	if !reached || rec.Code != http.StatusOK {
		t.Errorf("status = %d reached = %v, want pass-through", rec.Code, reached)
	}
}
