// Package auth is the shim between the surrounding product's session/auth
// system and the credential core, which only consumes "is this request
// authenticated" plus an opaque owner id.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/org/credvault/internal/crypto"
)

// Authenticator resolves a request to an owner identity. The credential core
// treats the result as opaque: a non-empty owner with ok=true means
// authenticated.
type Authenticator interface {
	Authenticate(r *http.Request) (ownerID string, ok bool)
}

// HashToken returns the hex SHA-256 of a plaintext bearer token. Config
// files store hashes, never tokens.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// TokenAuthenticator validates Authorization bearer tokens against a static
// hash → owner map from operator configuration.
type TokenAuthenticator struct {
	owners map[string]string // token hash (hex) → owner id
}

// NewTokenAuthenticator creates a TokenAuthenticator.
func NewTokenAuthenticator(owners map[string]string) *TokenAuthenticator {
	return &TokenAuthenticator{owners: owners}
}

// Authenticate extracts and verifies the bearer token. Comparison runs over
// the hash in constant time.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	hash := HashToken(token)
	for candidate, owner := range a.owners {
		if crypto.SecureCompare([]byte(hash), []byte(candidate)) {
			return owner, true
		}
	}
	return "", false
}
