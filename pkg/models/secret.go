package models

import "time"

// AlgorithmAESGCM is the only construction currently in use.
const AlgorithmAESGCM = "AES-256-GCM"

// SchemaVersion tags the EncryptedSecret wire format.
const SchemaVersion = 1

// EncryptedSecret is the only persisted or transmitted representation of a
// credential. Byte fields serialize as standard base64 (encoding/json's
// []byte encoding); the struct carries no key material.
type EncryptedSecret struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"auth_tag"`
	// Salt is present only when the key was derived from a passphrase.
	Salt      []byte `json:"salt,omitempty"`
	Algorithm string `json:"algorithm"`
	Version   int    `json:"version"`
}

// Clone returns a deep copy, used where a snapshot must not be mutated
// underneath the holder (rotation backups).
func (s *EncryptedSecret) Clone() *EncryptedSecret {
	if s == nil {
		return nil
	}
	c := &EncryptedSecret{
		Ciphertext: append([]byte(nil), s.Ciphertext...),
		IV:         append([]byte(nil), s.IV...),
		AuthTag:    append([]byte(nil), s.AuthTag...),
		Algorithm:  s.Algorithm,
		Version:    s.Version,
	}
	if s.Salt != nil {
		c.Salt = append([]byte(nil), s.Salt...)
	}
	return c
}

// CredentialScope describes where and for how long a guest credential's key
// material lives.
type CredentialScope string

const (
	ScopeEphemeral  CredentialScope = "ephemeral"
	ScopeSession    CredentialScope = "session"
	ScopePersistent CredentialScope = "persistent"
)

// Valid reports whether s names one of the three guest tiers.
func (s CredentialScope) Valid() bool {
	switch s {
	case ScopeEphemeral, ScopeSession, ScopePersistent:
		return true
	}
	return false
}

// ProviderCredential is the logical credential record. Plaintext never
// appears here; MaskedDisplay is the only human-readable form.
type ProviderCredential struct {
	Provider      string           `json:"provider"`
	OwnerID       string           `json:"owner_id,omitempty"`
	Scope         CredentialScope  `json:"scope,omitempty"`
	Secret        *EncryptedSecret `json:"-"`
	MaskedDisplay string           `json:"masked_display"`
	// RecordVersion is the optimistic-concurrency counter bumped on every
	// stored write. Rotation aborts if it changed since fetch.
	RecordVersion int       `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	LastRotatedAt time.Time `json:"last_rotated_at"`
}
