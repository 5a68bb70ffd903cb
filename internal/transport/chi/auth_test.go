package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware_EmptyKeys_PassThrough(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := BearerAuthMiddleware(keys)(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/document-store/stores", http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want %d", keys, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"wrong token", "Bearer nope"},
		{"empty token", "Bearer "},
	}
	handler := BearerAuthMiddleware([]string{"secret"})(okHandler())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/document-store/stores", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("got %d, want 401", rr.Code)
			}
			resp := decodeBody[ErrorResponse](t, rr)
			if resp.Code != CodeUnauthorized {
				t.Errorf("code = %s, want %s", resp.Code, CodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"first", "second"})(okHandler())

	for _, key := range []string{"first", "second"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/document-store/stores", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+key)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("key %s: got %d, want 200", key, rr.Code)
		}
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(okHandler())

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("%s: got %d, want 200", path, rr.Code)
		}
	}
}
