package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/pkg/models"
)

// --- In-memory CredentialStore for tests ---

type memStore struct {
	mu       sync.Mutex
	creds    map[string]*models.ProviderCredential // ownerID + "/" + provider
	audit    []*models.AuditEntry
	failSwap bool
	failPut  bool
	// beforeSwap runs before SwapCredentialSecret takes the lock; tests use
	// it to interleave a concurrent write.
	beforeSwap func()
}

func newMemStore() *memStore {
	return &memStore{creds: map[string]*models.ProviderCredential{}}
}

func credKey(ownerID, provider string) string { return ownerID + "/" + provider }

func (m *memStore) GetCredential(ctx context.Context, ownerID, provider string) (*models.ProviderCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credKey(ownerID, provider)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	cp.Secret = c.Secret.Clone()
	return &cp, nil
}

func (m *memStore) PutCredential(ctx context.Context, cred *models.ProviderCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return fmt.Errorf("simulated write failure")
	}
	k := credKey(cred.OwnerID, cred.Provider)
	if existing, ok := m.creds[k]; ok {
		cred.RecordVersion = existing.RecordVersion + 1
		cred.CreatedAt = existing.CreatedAt
	} else {
		cred.RecordVersion = 1
	}
	cp := *cred
	cp.Secret = cred.Secret.Clone()
	m.creds[k] = &cp
	return nil
}

func (m *memStore) SwapCredentialSecret(ctx context.Context, ownerID, provider string, secret *models.EncryptedSecret, masked string, expectedVersion int, rotatedAt time.Time) error {
	if m.beforeSwap != nil {
		m.beforeSwap()
		m.beforeSwap = nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSwap {
		return fmt.Errorf("simulated storage error")
	}
	c, ok := m.creds[credKey(ownerID, provider)]
	if !ok {
		return storage.ErrNotFound
	}
	if c.RecordVersion != expectedVersion {
		return storage.ErrVersionConflict
	}
	c.Secret = secret.Clone()
	c.MaskedDisplay = masked
	c.RecordVersion++
	c.LastRotatedAt = rotatedAt
	return nil
}

func (m *memStore) DeleteCredential(ctx context.Context, ownerID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := credKey(ownerID, provider)
	if _, ok := m.creds[k]; !ok {
		return storage.ErrNotFound
	}
	delete(m.creds, k)
	return nil
}

func (m *memStore) ListCredentials(ctx context.Context, ownerID string) ([]*models.ProviderCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ProviderCredential
	for k, c := range m.creds {
		if strings.HasPrefix(k, ownerID+"/") {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *memStore) QueryAuditLog(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range m.audit {
		if filter.Event != "" && e.Event != filter.Event {
			continue
		}
		if filter.Provider != "" && e.Provider != filter.Provider {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) CountCredentials(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.creds)), nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close()                         {}

func (m *memStore) auditEvents(event string) []*models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range m.audit {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// memAudit satisfies AuditSink over a memStore, with an optional failure.
type memAudit struct {
	store      *memStore
	failRecord bool
}

func (a *memAudit) Record(ctx context.Context, entry *models.AuditEntry) error {
	if a.failRecord {
		return fmt.Errorf("simulated audit sink failure")
	}
	entry.Timestamp = time.Now().UTC()
	return a.store.WriteAuditEntry(ctx, entry)
}

func newTestServerVault(t *testing.T, store storage.CredentialStore) *ServerVault {
	t.Helper()
	v, err := NewServerVault("operator-master-secret", "operator-fixed-salt", store)
	if err != nil {
		t.Fatalf("NewServerVault failed: %v", err)
	}
	return v
}

const validKey = "sk-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// --- Rotation tests ---

func TestRotateHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	original := "sk-" + strings.Repeat("a", 48)
	if _, err := v.Save(ctx, "openai", original, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	before, _ := store.GetCredential(ctx, "u1", "openai")

	newKey := "sk-" + strings.Repeat("b", 48)
	res, err := rot.Rotate(ctx, "openai", "u1", newKey, false)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if res.Attempt.State != models.RotationCommitted {
		t.Errorf("expected committed, got %s", res.Attempt.State)
	}
	if res.GeneratedSecret != "" {
		t.Error("plaintext must not be returned for a caller-supplied secret")
	}
	if !strings.HasPrefix(res.MaskedNewValue, "sk-b") || strings.Contains(res.MaskedNewValue, "bbbbbbbb") {
		t.Errorf("unexpected masked value %q", res.MaskedNewValue)
	}

	// Reveal after rotation returns the new plaintext.
	got, err := v.DecryptForUse(ctx, "openai", "u1")
	if err != nil {
		t.Fatalf("DecryptForUse failed: %v", err)
	}
	if got != newKey {
		t.Error("reveal after rotation should return the new plaintext")
	}

	// Exactly one backup referencing the original ciphertext.
	backups := store.auditEvents(models.EventRotationBackup)
	if len(backups) != 1 {
		t.Fatalf("expected exactly one backup event, got %d", len(backups))
	}
	backedUp, ok := backups[0].Detail["secret"].(*models.EncryptedSecret)
	if !ok {
		t.Fatalf("backup detail does not carry the secret: %#v", backups[0].Detail)
	}
	if string(backedUp.Ciphertext) != string(before.Secret.Ciphertext) {
		t.Error("backup should reference the original ciphertext verbatim")
	}
	if len(store.auditEvents(models.EventKeyRotated)) != 1 {
		t.Error("expected one key_rotated event")
	}
}

func TestRotateNotFound(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	_, err := rot.Rotate(ctx, "openai", "u1", validKey, false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRotateInvalidNewSecret(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := rot.Rotate(ctx, "openai", "u1", "garbage", false)
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed, got %v", err)
	}
	// Validation aborts before any backup is written.
	if len(store.auditEvents(models.EventRotationBackup)) != 0 {
		t.Error("no backup should be written for invalid input")
	}
}

func TestRotateAtomicityOnUpdateFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	before, _ := store.GetCredential(ctx, "u1", "openai")

	store.failSwap = true
	_, err := rot.Rotate(ctx, "openai", "u1", "sk-"+strings.Repeat("c", 48), false)
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}

	// The credential readable afterward is bit-identical to before.
	store.failSwap = false
	after, _ := store.GetCredential(ctx, "u1", "openai")
	if string(after.Secret.Ciphertext) != string(before.Secret.Ciphertext) ||
		string(after.Secret.IV) != string(before.Secret.IV) ||
		string(after.Secret.AuthTag) != string(before.Secret.AuthTag) {
		t.Error("failed rotation must leave the old secret bit-identical")
	}
	if len(store.auditEvents(models.EventRotationFailed)) != 1 {
		t.Error("expected one key_rotation_failed event")
	}
	if len(store.auditEvents(models.EventKeyRotated)) != 0 {
		t.Error("no key_rotated event should exist after a failed rotation")
	}

	// The old key still decrypts.
	got, err := v.DecryptForUse(ctx, "openai", "u1")
	if err != nil || got != validKey {
		t.Errorf("old secret should remain usable, got %q err %v", got, err)
	}
}

func TestRotateVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Concurrent writer bumps the record between Fetching and Updating.
	store.beforeSwap = func() {
		_, _ = v.Save(ctx, "openai", "sk-"+strings.Repeat("z", 48), Options{Owner: "u1"})
	}

	_, err := rot.Rotate(ctx, "openai", "u1", "sk-"+strings.Repeat("d", 48), false)
	if !errors.Is(err, ErrStorageFailure) {
		t.Errorf("expected ErrStorageFailure on version conflict, got %v", err)
	}
	// The sneaked-in secret is what remains readable.
	got, err := v.DecryptForUse(ctx, "openai", "u1")
	if err != nil || got != "sk-"+strings.Repeat("z", 48) {
		t.Errorf("conflicting writer's secret should win, got %q err %v", got, err)
	}
}

func TestRotateBackupFailureBlocksMutation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store, failRecord: true})

	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	before, _ := store.GetCredential(ctx, "u1", "openai")

	_, err := rot.Rotate(ctx, "openai", "u1", "sk-"+strings.Repeat("e", 48), false)
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure when backup cannot be written, got %v", err)
	}
	after, _ := store.GetCredential(ctx, "u1", "openai")
	if string(after.Secret.Ciphertext) != string(before.Secret.Ciphertext) {
		t.Error("credential must not change when the backup write fails")
	}
}

func TestRotateAutoGenerate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	if _, err := v.Save(ctx, "anthropic", "sk-ant-"+strings.Repeat("a", 40), Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	res, err := rot.Rotate(ctx, "anthropic", "u1", "", true)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if res.GeneratedSecret == "" {
		t.Fatal("auto-generated rotation must return the plaintext once")
	}
	if !strings.HasPrefix(res.GeneratedSecret, "sk-ant-") {
		t.Errorf("generated secret should match the provider shape, got %q", res.GeneratedSecret)
	}
	got, err := v.DecryptForUse(ctx, "anthropic", "u1")
	if err != nil || got != res.GeneratedSecret {
		t.Error("stored secret should equal the generated plaintext")
	}
}

func TestRotateMissingNewSecret(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	v := newTestServerVault(t, store)
	rot := NewRotator(v, store, &memAudit{store: store})

	if _, err := v.Save(ctx, "openai", validKey, Options{Owner: "u1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_, err := rot.Rotate(ctx, "openai", "u1", "", false)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
