package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireOperatorToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusOK},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"valid", "s3cret", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/access/confirm", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireOperatorToken(tt.token)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON error body, got %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequireOperatorToken_QueryParam(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RequireOperatorToken("s3cret")(ok)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"stream with token", http.MethodGet, "/api/v1/events/1/records/stream?token=s3cret", http.StatusOK},
		{"stream with wrong token", http.MethodGet, "/api/v1/events/1/records/stream?token=nope", http.StatusUnauthorized},
		{"stream without token", http.MethodGet, "/api/v1/events/1/records/stream", http.StatusUnauthorized},
		{"post ignores query token", http.MethodPost, "/api/v1/access/confirm?token=s3cret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
