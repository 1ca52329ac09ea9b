package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/apdupes/internal/config"
)

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		cfg      config.SecurityConfig
		method   string
		header   string
		query    string
		want     int
		wantCode string
	}{
		{"disabled", config.SecurityConfig{}, http.MethodGet, "", "", http.StatusOK, ""},
		{"missing", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, http.MethodGet, "", "", http.StatusUnauthorized, "AUTH001"},
		{"invalid", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, http.MethodGet, "k2", "", http.StatusForbidden, "AUTH002"},
		{"second key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, http.MethodGet, "k2", "", http.StatusOK, ""},
		{"query on GET", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, http.MethodGet, "", "k1", http.StatusOK, ""},
		{"query ignored on POST", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, http.MethodPost, "", "k1", http.StatusUnauthorized, "AUTH001"},
		{"no keys configured", config.SecurityConfig{RequireAPIKey: true}, http.MethodGet, "k1", "", http.StatusForbidden, "AUTH002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/analyses"
			if tt.query != "" {
				target += "?api_key=" + tt.query
			}
			req := httptest.NewRequest(tt.method, target, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}

			rr := httptest.NewRecorder()
			APIKeyAuth(&tt.cfg)(ok).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.wantCode == "" {
				return
			}

			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}
