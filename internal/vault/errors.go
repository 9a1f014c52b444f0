package vault

import (
	"errors"

	"github.com/org/credvault/internal/crypto"
)

// Error taxonomy for the credential subsystem. ErrInvalidInput and
// ErrAuthenticationFailed alias the crypto package sentinels so errors.Is
// works across the boundary.
var (
	// ErrInvalidInput: empty or malformed plaintext, or missing required
	// fields. Recoverable; the caller must resubmit.
	ErrInvalidInput = crypto.ErrInvalidInput

	// ErrValidationFailed: the format rule rejected the plaintext for the
	// given provider. Recoverable.
	ErrValidationFailed = errors.New("validation failed")

	// ErrAuthenticationFailed: AEAD tag mismatch or wrong passphrase. The
	// message deliberately does not say which.
	ErrAuthenticationFailed = crypto.ErrAuthenticationFailed

	// ErrNotFound: no credential exists for the requested operation.
	ErrNotFound = errors.New("credential not found")

	// ErrStorageFailure: the persistence collaborator failed. Retryable.
	ErrStorageFailure = errors.New("storage failure")

	// ErrConfigurationError: missing operator master secret. Fatal at
	// startup, never surfaced per-request.
	ErrConfigurationError = errors.New("configuration error")
)
