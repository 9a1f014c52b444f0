package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/org/credvault/pkg/models"
)

func sampleSecret() *models.EncryptedSecret {
	return &models.EncryptedSecret{
		Ciphertext: []byte{1, 2, 3},
		IV:         []byte{4, 5, 6},
		AuthTag:    bytes.Repeat([]byte{7}, 16),
		Algorithm:  models.AlgorithmAESGCM,
		Version:    models.SchemaVersion,
	}
}

func TestMemorySecretStore(t *testing.T) {
	s := NewMemorySecretStore()
	if _, err := s.Get("persistent/openai"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put("persistent/openai", sampleSecret()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get("persistent/openai")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got.Ciphertext, []byte{1, 2, 3}) {
		t.Error("round-trip mismatch")
	}
	// Returned value is a copy; mutating it must not affect the store.
	got.Ciphertext[0] = 99
	again, _ := s.Get("persistent/openai")
	if again.Ciphertext[0] == 99 {
		t.Error("store should hand out copies")
	}
	if err := s.Delete("persistent/openai"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete("persistent/openai"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestFileSecretStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "credentials.json")
	s := NewFileSecretStore(path)

	if err := s.Put("persistent/openai", sampleSecret()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A second store over the same file sees the secret.
	s2 := NewFileSecretStore(path)
	got, err := s2.Get("persistent/openai")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Algorithm != models.AlgorithmAESGCM || !bytes.Equal(got.Ciphertext, []byte{1, 2, 3}) {
		t.Error("round-trip mismatch across store instances")
	}

	if err := s2.Delete("persistent/openai"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s2.Get("persistent/openai"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
