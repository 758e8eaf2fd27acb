package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gramvault/gramvault/internal/auth"
	"github.com/gramvault/gramvault/internal/config"
)

// An empty session id must 404 before any repository lookup. The nil
// repository here would panic if a query were issued.
func TestEmptyIDShortCircuits(t *testing.T) {
	gate := auth.NewGate("pw")
	srv := New(&config.Config{Password: "pw"}, nil, nil, nil, gate)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	for _, path := range []string{"/download/status/", "/download/file/"} {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+gate.Token())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", path, resp.StatusCode)
		}
	}
}
