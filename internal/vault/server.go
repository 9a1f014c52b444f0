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

// ServerVault encrypts credentials for authenticated users under a single
// master key derived once per process from operator configuration. The
// owner id is bound into every ciphertext as associated data, so a stored
// secret cannot be replayed under a different owner.
type ServerVault struct {
	key   []byte
	store storage.CredentialStore
}

// NewServerVault derives the master key from the operator secret and fixed
// operator salt. Both must be non-empty; absence is a startup error, not a
// runtime fallback.
func NewServerVault(masterSecret, masterSalt string, store storage.CredentialStore) (*ServerVault, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("%w: master secret is not set", ErrConfigurationError)
	}
	if masterSalt == "" {
		return nil, fmt.Errorf("%w: master salt is not set", ErrConfigurationError)
	}
	key := crypto.DeriveKey(masterSecret, []byte(masterSalt), crypto.DefaultIterations)
	return &ServerVault{key: key, store: store}, nil
}

// Save validates, encrypts, and persists a credential for owner. The
// returned record carries the masked display form; the plaintext is gone
// once this returns.
func (v *ServerVault) Save(ctx context.Context, provider, plaintext string, opts Options) (*models.ProviderCredential, error) {
	if provider == "" || opts.Owner == "" {
		return nil, fmt.Errorf("%w: provider and owner are required", ErrInvalidInput)
	}
	if ok, reason := validate.Credential(provider, plaintext); !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, reason)
	}

	secret, err := crypto.Encrypt([]byte(plaintext), v.key, []byte(opts.Owner))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &models.ProviderCredential{
		Provider:      provider,
		OwnerID:       opts.Owner,
		Secret:        secret,
		MaskedDisplay: crypto.Mask(plaintext),
		CreatedAt:     now,
		LastRotatedAt: now,
	}
	if err := v.store.PutCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return cred, nil
}

// Reveal implements Credentialer by delegating to DecryptForUse.
func (v *ServerVault) Reveal(ctx context.Context, provider string, opts Options) (string, error) {
	return v.DecryptForUse(ctx, provider, opts.Owner)
}

// DecryptForUse loads and decrypts a credential so it can be used against
// the provider API. The plaintext is consumed transiently by the caller and
// never crosses a caller-facing response.
func (v *ServerVault) DecryptForUse(ctx context.Context, provider, ownerID string) (string, error) {
	if provider == "" || ownerID == "" {
		return "", fmt.Errorf("%w: provider and owner are required", ErrInvalidInput)
	}
	cred, err := v.Get(ctx, provider, ownerID)
	if err != nil {
		return "", err
	}
	plaintext, err := crypto.Decrypt(cred.Secret, v.key, []byte(ownerID))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Encrypt seals plaintext under the master key for owner without touching
// storage. The rotation protocol uses it to build the replacement secret
// before the commit write.
func (v *ServerVault) Encrypt(plaintext, ownerID string) (*models.EncryptedSecret, error) {
	return crypto.Encrypt([]byte(plaintext), v.key, []byte(ownerID))
}

// Get returns the stored credential record for display or rotation.
func (v *ServerVault) Get(ctx context.Context, provider, ownerID string) (*models.ProviderCredential, error) {
	cred, err := v.store.GetCredential(ctx, ownerID, provider)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, provider)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return cred, nil
}

// List returns all credential records for an owner, masked forms only.
func (v *ServerVault) List(ctx context.Context, ownerID string) ([]*models.ProviderCredential, error) {
	creds, err := v.store.ListCredentials(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return creds, nil
}

// Delete removes a credential on explicit user action.
func (v *ServerVault) Delete(ctx context.Context, provider string, opts Options) error {
	if provider == "" || opts.Owner == "" {
		return fmt.Errorf("%w: provider and owner are required", ErrInvalidInput)
	}
	if err := v.store.DeleteCredential(ctx, opts.Owner, provider); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, provider)
		}
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}
