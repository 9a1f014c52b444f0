// Package validate checks the structural shape of provider credentials
// before they are encrypted. Decrypted values are trusted once persisted and
// are never re-validated.
package validate

import (
	"fmt"
	"strings"
)

// rule is a per-provider structural check.
type rule struct {
	prefix string
	minLen int
	maxLen int
}

// Known provider key shapes. Unknown providers fall back to a minimum-length
// heuristic.
var rules = map[string]rule{
	"openai":    {prefix: "sk-", minLen: 20, maxLen: 200},
	"anthropic": {prefix: "sk-ant-", minLen: 24, maxLen: 200},
	"google":    {prefix: "AIza", minLen: 30, maxLen: 100},
	"mistral":   {minLen: 32, maxLen: 64},
	"cohere":    {minLen: 32, maxLen: 128},
}

const fallbackMinLen = 16

// Credential reports whether plaintext has a plausible shape for the given
// provider, with a human-readable reason on rejection. It is cheap by
// intent: callers run it before any derivation or encryption work.
func Credential(provider, plaintext string) (bool, string) {
	if plaintext == "" {
		return false, "credential must not be empty"
	}
	if strings.TrimSpace(plaintext) != plaintext {
		return false, "credential must not contain leading or trailing whitespace"
	}

	r, known := rules[strings.ToLower(provider)]
	if !known {
		if len(plaintext) < fallbackMinLen {
			return false, fmt.Sprintf("credential too short (minimum %d characters)", fallbackMinLen)
		}
		return true, ""
	}

	if r.prefix != "" && !strings.HasPrefix(plaintext, r.prefix) {
		return false, fmt.Sprintf("%s credentials must start with %q", provider, r.prefix)
	}
	if len(plaintext) < r.minLen {
		return false, fmt.Sprintf("credential too short for %s (minimum %d characters)", provider, r.minLen)
	}
	if r.maxLen > 0 && len(plaintext) > r.maxLen {
		return false, fmt.Sprintf("credential too long for %s (maximum %d characters)", provider, r.maxLen)
	}
	return true, ""
}

// KeyTemplate returns the prefix and total length to use when generating a
// credential for provider. Generated values always satisfy Credential.
func KeyTemplate(provider string) (prefix string, length int) {
	r, known := rules[strings.ToLower(provider)]
	if !known {
		return "", 40
	}
	length = r.minLen + 16
	if r.maxLen > 0 && length > r.maxLen {
		length = r.maxLen
	}
	return r.prefix, length
}
