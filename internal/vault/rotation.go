package vault

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/org/credvault/internal/crypto"
	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/internal/validate"
	"github.com/org/credvault/pkg/models"
	"github.com/rs/zerolog/log"
)

// Rotator orchestrates per-credential key rotation for the server vault:
// decrypt-old is never needed — the old EncryptedSecret is backed up
// verbatim, the new plaintext is encrypted fresh, and the swap is a single
// optimistic-concurrency write. On any failure after backup the old secret
// stays in place; readers never observe a partial overwrite.
type Rotator struct {
	vault *ServerVault
	store storage.CredentialStore
	audit AuditSink
	now   func() time.Time
}

// NewRotator creates a Rotator. The audit sink must be durable: rotation
// without a recoverable backup is disallowed.
func NewRotator(v *ServerVault, store storage.CredentialStore, sink AuditSink) *Rotator {
	return &Rotator{vault: v, store: store, audit: sink, now: time.Now}
}

// RotationResult is what a completed rotation returns to the caller.
type RotationResult struct {
	Attempt        *models.RotationAttempt
	MaskedNewValue string
	// GeneratedSecret carries the new plaintext only when it was
	// system-generated — the one case where the caller has no other way to
	// learn it. It will not be shown again.
	GeneratedSecret string
}

// Rotate runs one rotation attempt for (provider, owner).
// State machine: Idle → Fetching → Validating → BackingUp → Updating →
// Committed, with Updating → RolledBack on failure.
func (r *Rotator) Rotate(ctx context.Context, provider, ownerID, newSecret string, autoGenerate bool) (*RotationResult, error) {
	att := &models.RotationAttempt{
		Provider:  provider,
		OwnerID:   ownerID,
		State:     models.RotationIdle,
		StartedAt: r.now().UTC(),
	}

	// Fetching: absence is terminal, not a rotation.
	att.State = models.RotationFetching
	current, err := r.vault.Get(ctx, provider, ownerID)
	if err != nil {
		return nil, err
	}
	att.PreviousSecret = current.Secret.Clone()

	// Validating: invalid input aborts before the old secret is touched.
	att.State = models.RotationValidating
	generated := false
	if autoGenerate {
		newSecret, err = generateSecret(provider)
		if err != nil {
			return nil, err
		}
		generated = true
	}
	if newSecret == "" {
		return nil, fmt.Errorf("%w: new secret or auto_generate is required", ErrInvalidInput)
	}
	if ok, reason := validate.Credential(provider, newSecret); !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, reason)
	}

	// BackingUp: the old ciphertext must be recoverable before mutation.
	att.State = models.RotationBackingUp
	backup := &models.AuditEntry{
		Event:    models.EventRotationBackup,
		OwnerID:  ownerID,
		Provider: provider,
		Detail: map[string]any{
			"secret":         att.PreviousSecret,
			"record_version": current.RecordVersion,
		},
	}
	if err := r.audit.Record(ctx, backup); err != nil {
		return nil, fmt.Errorf("%w: writing rotation backup: %v", ErrStorageFailure, err)
	}

	// Updating: encrypt the replacement and swap in one logical write,
	// aborting if the record moved since Fetching.
	att.State = models.RotationUpdating
	att.NewSecret, err = r.vault.Encrypt(newSecret, ownerID)
	if err != nil {
		return nil, err
	}
	masked := crypto.Mask(newSecret)
	rotatedAt := r.now().UTC()
	err = r.store.SwapCredentialSecret(ctx, ownerID, provider, att.NewSecret, masked, current.RecordVersion, rotatedAt)
	if err != nil {
		att.State = models.RotationRolledBack
		r.recordEvent(ctx, models.EventRotationFailed, ownerID, provider, map[string]any{
			"reason": "swap failed",
		})
		log.Warn().Str("provider", provider).Err(err).Msg("rotation rolled back")
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, provider)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	att.State = models.RotationCommitted
	r.recordEvent(ctx, models.EventKeyRotated, ownerID, provider, map[string]any{
		"masked_value": masked,
		"generated":    generated,
	})
	log.Info().Str("provider", provider).Msg("credential rotated")

	res := &RotationResult{Attempt: att, MaskedNewValue: masked}
	if generated {
		res.GeneratedSecret = newSecret
	}
	return res, nil
}

// recordEvent is fire-and-forget: outcome events must not mask the outcome
// itself. Only the pre-mutation backup write is allowed to abort rotation.
func (r *Rotator) recordEvent(ctx context.Context, event, ownerID, provider string, detail map[string]any) {
	entry := &models.AuditEntry{
		Event:    event,
		OwnerID:  ownerID,
		Provider: provider,
		Detail:   detail,
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		log.Error().Str("event", event).Err(err).Msg("failed to write audit event")
	}
}

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// generateSecret produces a fresh random credential shaped for the provider.
func generateSecret(provider string) (string, error) {
	prefix, length := validate.KeyTemplate(provider)
	n := length - len(prefix)
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generating credential: %w", err)
		}
		buf[i] = keyAlphabet[idx.Int64()]
	}
	return prefix + string(buf), nil
}
