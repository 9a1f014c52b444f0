package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/org/credvault/pkg/models"
	"golang.org/x/crypto/pbkdf2"
)

// ErrInvalidInput is returned for empty plaintext or malformed inputs.
var ErrInvalidInput = errors.New("invalid input")

// ErrAuthenticationFailed is returned when a ciphertext fails to verify.
// Callers must surface it with a generic message: it deliberately carries no
// distinction between a wrong key, a wrong passphrase, mismatched associated
// data, or tampering.
var ErrAuthenticationFailed = errors.New("authentication failed")

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// SaltSize is the PBKDF2 salt length generated per credential.
	SaltSize = 16
	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 100_000

	gcmTagSize = 16

	maskPrefix    = 4
	maskSuffix    = 4
	maskThreshold = 12
	maskFiller    = '*'
)

// GenerateKey generates a 32-byte cryptographically secure random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// GenerateSalt generates a fresh random derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 256-bit key from a passphrase via PBKDF2-SHA256.
// Deterministic for a given (passphrase, salt, iterations) triple.
func DeriveKey(passphrase string, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext under key with AES-256-GCM, binding aad into the
// authentication tag. A fresh random IV is generated on every call.
func Encrypt(plaintext, key, aad []byte) (*models.EncryptedSecret, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrInvalidInput)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, aad)

	// GCM appends the tag to the ciphertext; store them separately.
	split := len(sealed) - gcmTagSize
	return &models.EncryptedSecret{
		Ciphertext: sealed[:split],
		IV:         iv,
		AuthTag:    sealed[split:],
		Algorithm:  models.AlgorithmAESGCM,
		Version:    models.SchemaVersion,
	}, nil
}

// Decrypt opens an EncryptedSecret. It fails closed: any tag mismatch,
// missing field, or aad mismatch yields ErrAuthenticationFailed and no
// plaintext.
func Decrypt(secret *models.EncryptedSecret, key, aad []byte) ([]byte, error) {
	if secret == nil {
		return nil, fmt.Errorf("%w: nil secret", ErrInvalidInput)
	}
	if secret.Algorithm != models.AlgorithmAESGCM {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidInput, secret.Algorithm)
	}
	if len(secret.AuthTag) != gcmTagSize {
		return nil, ErrAuthenticationFailed
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	if len(secret.IV) != gcm.NonceSize() {
		return nil, ErrAuthenticationFailed
	}
	sealed := make([]byte, 0, len(secret.Ciphertext)+gcmTagSize)
	sealed = append(sealed, secret.Ciphertext...)
	sealed = append(sealed, secret.AuthTag...)

	plaintext, err := gcm.Open(nil, secret.IV, sealed, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// SecureCompare compares two byte slices in constant time relative to their
// contents. A length mismatch returns false immediately; length is not
// treated as secret.
func SecureCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Mask produces the display form of a secret: first four and last four
// characters visible, the rest replaced with '*'. Values at or below the
// threshold length mask entirely.
func Mask(plaintext string) string {
	runes := []rune(plaintext)
	if len(runes) <= maskThreshold {
		return strings.Repeat(string(maskFiller), len(runes))
	}
	var b strings.Builder
	b.WriteString(string(runes[:maskPrefix]))
	b.WriteString(strings.Repeat(string(maskFiller), len(runes)-maskPrefix-maskSuffix))
	b.WriteString(string(runes[len(runes)-maskSuffix:]))
	return b.String()
}

// Zero overwrites b in place. Callers use it to scrub key material once a
// transient key is no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
