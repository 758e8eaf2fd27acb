package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGateTokens(t *testing.T) {
	gate := NewGate("++++froyo")
	if !gate.ValidatePassword("++++froyo") {
		t.Fatalf("expected password to validate")
	}
	if gate.ValidatePassword("wrong") {
		t.Fatalf("expected wrong password to be rejected")
	}
	want := base64.StdEncoding.EncodeToString([]byte("++++froyo"))
	if gate.Token() != want {
		t.Fatalf("token = %q, want %q", gate.Token(), want)
	}
	if !gate.ValidateToken(want) {
		t.Fatalf("expected token to validate")
	}
	if gate.ValidateToken("bogus") {
		t.Fatalf("expected bogus token to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	gate := NewGate("secret")
	called := false
	handler := gate.Middleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/download/status/abc", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d, want 401", rec.Code)
	}
	if called {
		t.Fatalf("handler ran without authorization")
	}

	req = httptest.NewRequest(http.MethodGet, "/download/status/abc", nil)
	req.Header.Set("Authorization", "Bearer "+gate.Token())
	rec = httptest.NewRecorder()
	handler(rec, req)
	if !called {
		t.Fatalf("handler did not run with valid token")
	}
}
