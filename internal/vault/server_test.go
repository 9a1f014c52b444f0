package vault

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewServerVaultRequiresConfig(t *testing.T) {
	store := newMemStore()
	if _, err := NewServerVault("", "salt", store); !errors.Is(err, ErrConfigurationError) {
		t.Errorf("missing master secret: expected ErrConfigurationError, got %v", err)
	}
	if _, err := NewServerVault("secret", "", store); !errors.Is(err, ErrConfigurationError) {
		t.Errorf("missing master salt: expected ErrConfigurationError, got %v", err)
	}
}

func TestServerVaultSaveAndDecryptForUse(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)

	cred, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if cred.MaskedDisplay == validKey || !strings.Contains(cred.MaskedDisplay, "*") {
		t.Errorf("record must carry a masked form, got %q", cred.MaskedDisplay)
	}
	if cred.Secret == nil || len(cred.Secret.Ciphertext) == 0 {
		t.Fatal("record must carry ciphertext")
	}
	if strings.Contains(string(cred.Secret.Ciphertext), validKey) {
		t.Error("ciphertext must not contain the plaintext")
	}

	got, err := v.DecryptForUse(ctx, "openai", "u1")
	if err != nil {
		t.Fatalf("DecryptForUse failed: %v", err)
	}
	if got != validKey {
		t.Error("decrypt-for-use should return the original plaintext")
	}
}

func TestServerVaultOwnerBinding(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)

	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "alice"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Replay alice's ciphertext under bob's owner context.
	cred, _ := store.GetCredential(ctx, "alice", "openai")
	cred.OwnerID = "bob"
	if err := store.PutCredential(ctx, cred); err != nil {
		t.Fatalf("PutCredential failed: %v", err)
	}

	if _, err := v.DecryptForUse(ctx, "openai", "bob"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("ciphertext replayed under a different owner must fail, got %v", err)
	}
}

func TestServerVaultValidatesBeforeEncrypting(t *testing.T) {
	ctx := context.Background()
	v := newTestServerVault(t, newMemStore())
	if _, err := v.Save(ctx, "openai", "bad", Options{Owner: "u1"}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed, got %v", err)
	}
}

func TestServerVaultSaveStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failPut = true
	v := newTestServerVault(t, store)
	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); !errors.Is(err, ErrStorageFailure) {
		t.Errorf("expected ErrStorageFailure, got %v", err)
	}
}

func TestServerVaultDelete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)

	if err := v.Delete(ctx, "openai", Options{Owner: "u1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting a missing credential: expected ErrNotFound, got %v", err)
	}
	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := v.Delete(ctx, "openai", Options{Owner: "u1"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := v.DecryptForUse(ctx, "openai", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
