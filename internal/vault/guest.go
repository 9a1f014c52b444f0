package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/org/credvault/internal/crypto"
	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/internal/validate"
	"github.com/org/credvault/pkg/models"
)

// KeyHolder owns the random key material for the ephemeral and session guest
// tiers. It is created at process or session start and passed explicitly to
// the vaults that need it; destroying it is the only clearing mechanism, so
// key lifetime is the holder's lifetime rather than global state.
type KeyHolder struct {
	key       []byte
	destroyed bool
}

// NewKeyHolder generates a fresh random key held only in memory.
func NewKeyHolder() (*KeyHolder, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &KeyHolder{key: key}, nil
}

// Destroy zeroes the key. Any vault using this holder can no longer decrypt.
func (h *KeyHolder) Destroy() {
	crypto.Zero(h.key)
	h.key = nil
	h.destroyed = true
}

func (h *KeyHolder) keyBytes() ([]byte, error) {
	if h == nil || h.destroyed || len(h.key) == 0 {
		return nil, fmt.Errorf("%w: key holder destroyed", ErrInvalidInput)
	}
	return h.key, nil
}

// Guest tiers are disjoint namespaces: the stored name and the associated
// data both carry the scope, so a secret saved under one tier can neither be
// looked up nor decrypted through another.
func tierName(scope models.CredentialScope, provider string) string {
	return string(scope) + "/" + provider
}

func tierAAD(scope models.CredentialScope, provider string) []byte {
	return []byte(string(scope) + ":" + provider)
}

func guestSave(store SecretStore, scope models.CredentialScope, provider, plaintext string, key []byte, salt []byte) (*models.ProviderCredential, error) {
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidInput)
	}
	if ok, reason := validate.Credential(provider, plaintext); !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, reason)
	}
	secret, err := crypto.Encrypt([]byte(plaintext), key, tierAAD(scope, provider))
	if err != nil {
		return nil, err
	}
	secret.Salt = salt
	if err := store.Put(tierName(scope, provider), secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	now := time.Now().UTC()
	return &models.ProviderCredential{
		Provider:      provider,
		Scope:         scope,
		Secret:        secret,
		MaskedDisplay: crypto.Mask(plaintext),
		CreatedAt:     now,
		LastRotatedAt: now,
	}, nil
}

func guestGet(store SecretStore, scope models.CredentialScope, provider string) (*models.EncryptedSecret, error) {
	secret, err := store.Get(tierName(scope, provider))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, provider)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return secret, nil
}

func guestDelete(store SecretStore, scope models.CredentialScope, provider string) error {
	if err := store.Delete(tierName(scope, provider)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, provider)
		}
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}

// EphemeralVault keeps both the key and the ciphertext in process memory.
// Losing the process loses the secret; that is the contract of the tier.
type EphemeralVault struct {
	holder *KeyHolder
	store  *storage.MemorySecretStore
}

// NewEphemeralVault creates an EphemeralVault over the given key holder.
func NewEphemeralVault(holder *KeyHolder) *EphemeralVault {
	return &EphemeralVault{holder: holder, store: storage.NewMemorySecretStore()}
}

func (v *EphemeralVault) Save(ctx context.Context, provider, plaintext string, opts Options) (*models.ProviderCredential, error) {
	key, err := v.holder.keyBytes()
	if err != nil {
		return nil, err
	}
	return guestSave(v.store, models.ScopeEphemeral, provider, plaintext, key, nil)
}

func (v *EphemeralVault) Reveal(ctx context.Context, provider string, opts Options) (string, error) {
	key, err := v.holder.keyBytes()
	if err != nil {
		return "", err
	}
	secret, err := guestGet(v.store, models.ScopeEphemeral, provider)
	if err != nil {
		return "", err
	}
	plaintext, err := crypto.Decrypt(secret, key, tierAAD(models.ScopeEphemeral, provider))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (v *EphemeralVault) Delete(ctx context.Context, provider string, opts Options) error {
	return guestDelete(v.store, models.ScopeEphemeral, provider)
}

// SessionVault writes the EncryptedSecret (never the key) to a
// session-scoped store, so the ciphertext survives navigation within one
// session. The key lives only in the holder; the store alone is useless
// without it, and vice versa.
type SessionVault struct {
	holder *KeyHolder
	store  SecretStore
}

// NewSessionVault creates a SessionVault over a session-scoped store.
func NewSessionVault(holder *KeyHolder, store SecretStore) *SessionVault {
	return &SessionVault{holder: holder, store: store}
}

func (v *SessionVault) Save(ctx context.Context, provider, plaintext string, opts Options) (*models.ProviderCredential, error) {
	key, err := v.holder.keyBytes()
	if err != nil {
		return nil, err
	}
	return guestSave(v.store, models.ScopeSession, provider, plaintext, key, nil)
}

func (v *SessionVault) Reveal(ctx context.Context, provider string, opts Options) (string, error) {
	key, err := v.holder.keyBytes()
	if err != nil {
		return "", err
	}
	secret, err := guestGet(v.store, models.ScopeSession, provider)
	if err != nil {
		return "", err
	}
	plaintext, err := crypto.Decrypt(secret, key, tierAAD(models.ScopeSession, provider))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (v *SessionVault) Delete(ctx context.Context, provider string, opts Options) error {
	return guestDelete(v.store, models.ScopeSession, provider)
}

// PersistentVault never holds a key. Every save derives a fresh key from the
// caller's passphrase and a new salt; the salt rides inside the stored
// EncryptedSecret and the key is re-derived at reveal time. The passphrase
// and the derived key are never stored anywhere.
type PersistentVault struct {
	store      SecretStore
	iterations int
}

// NewPersistentVault creates a PersistentVault over a durable client-side
// store.
func NewPersistentVault(store SecretStore) *PersistentVault {
	return &PersistentVault{store: store, iterations: crypto.DefaultIterations}
}

func (v *PersistentVault) Save(ctx context.Context, provider, plaintext string, opts Options) (*models.ProviderCredential, error) {
	if opts.Passphrase == "" {
		return nil, fmt.Errorf("%w: passphrase is required for the persistent tier", ErrInvalidInput)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key := crypto.DeriveKey(opts.Passphrase, salt, v.iterations)
	defer crypto.Zero(key)
	return guestSave(v.store, models.ScopePersistent, provider, plaintext, key, salt)
}

// Reveal re-derives the key from the stored salt and the passphrase supplied
// now. A wrong passphrase surfaces as ErrAuthenticationFailed, identical to
// tampering — there is no distinguishable "wrong passphrase" signal.
func (v *PersistentVault) Reveal(ctx context.Context, provider string, opts Options) (string, error) {
	if opts.Passphrase == "" {
		return "", fmt.Errorf("%w: passphrase is required for the persistent tier", ErrInvalidInput)
	}
	secret, err := guestGet(v.store, models.ScopePersistent, provider)
	if err != nil {
		return "", err
	}
	if len(secret.Salt) == 0 {
		return "", ErrAuthenticationFailed
	}
	key := crypto.DeriveKey(opts.Passphrase, secret.Salt, v.iterations)
	defer crypto.Zero(key)
	plaintext, err := crypto.Decrypt(secret, key, tierAAD(models.ScopePersistent, provider))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (v *PersistentVault) Delete(ctx context.Context, provider string, opts Options) error {
	return guestDelete(v.store, models.ScopePersistent, provider)
}
