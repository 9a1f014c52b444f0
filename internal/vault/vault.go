package vault

import (
	"context"

	"github.com/org/credvault/pkg/models"
)

// Options carries the per-call inputs that differ between vault variants.
// Server calls set Owner; the persistent guest tier sets Passphrase.
type Options struct {
	Owner      string
	Passphrase string
}

// Credentialer is the contract a resolved vault variant implements. Reveal
// returns plaintext for transient use against the provider API; it must
// never be echoed back through a caller-facing response — display surfaces
// get the masked form only.
type Credentialer interface {
	Save(ctx context.Context, provider, plaintext string, opts Options) (*models.ProviderCredential, error)
	Reveal(ctx context.Context, provider string, opts Options) (string, error)
	Delete(ctx context.Context, provider string, opts Options) error
}

// SecretStore is the client-side storage a guest tier round-trips ciphertext
// through. Implementations hold EncryptedSecret values only, never keys.
type SecretStore interface {
	Put(name string, secret *models.EncryptedSecret) error
	Get(name string) (*models.EncryptedSecret, error)
	Delete(name string) error
}

// AuditSink records credential lifecycle events. Rotation requires a
// successful write before mutating state, so the error is surfaced.
type AuditSink interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}
