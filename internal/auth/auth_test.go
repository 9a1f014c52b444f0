package auth

import (
	"net/http/httptest"
	"testing"
)

func TestTokenAuthenticator(t *testing.T) {
	a := NewTokenAuthenticator(map[string]string{
		HashToken("cvt_alicetoken"): "alice",
		HashToken("cvt_bobtoken"):   "bob",
	})

	r := httptest.NewRequest("GET", "/v1/credentials", nil)
	r.Header.Set("Authorization", "Bearer cvt_alicetoken")
	owner, ok := a.Authenticate(r)
	if !ok || owner != "alice" {
		t.Errorf("expected alice, got %q ok=%v", owner, ok)
	}

	r.Header.Set("Authorization", "Bearer cvt_wrong")
	if _, ok := a.Authenticate(r); ok {
		t.Error("unknown token must not authenticate")
	}

	r.Header.Del("Authorization")
	if _, ok := a.Authenticate(r); ok {
		t.Error("missing header must not authenticate")
	}

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, ok := a.Authenticate(r); ok {
		t.Error("non-bearer schemes must not authenticate")
	}
}
