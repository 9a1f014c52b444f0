package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/org/credvault/pkg/models"
)

// MemorySecretStore holds encrypted secrets in process memory. Used as the
// session-scoped store for guest credentials: it round-trips the ciphertext
// within one session and vanishes with the process.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]*models.EncryptedSecret
}

// NewMemorySecretStore creates an empty MemorySecretStore.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]*models.EncryptedSecret)}
}

func (m *MemorySecretStore) Put(name string, secret *models.EncryptedSecret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[name] = secret.Clone()
	return nil
}

func (m *MemorySecretStore) Get(name string) (*models.EncryptedSecret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.secrets[name]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySecretStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[name]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, name)
	return nil
}

// FileSecretStore persists encrypted secrets to a single JSON file with 0600
// permissions. It is the durable client-side store for the persistent guest
// tier; only ciphertext ever touches the file.
type FileSecretStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSecretStore creates a FileSecretStore rooted at path. The parent
// directory is created on first write.
func NewFileSecretStore(path string) *FileSecretStore {
	return &FileSecretStore{path: path}
}

func (f *FileSecretStore) Put(name string, secret *models.EncryptedSecret) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return err
	}
	all[name] = secret
	return f.save(all)
}

func (f *FileSecretStore) Get(name string) (*models.EncryptedSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return nil, err
	}
	s, ok := all[name]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (f *FileSecretStore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := all[name]; !ok {
		return ErrNotFound
	}
	delete(all, name)
	return f.save(all)
}

func (f *FileSecretStore) load() (map[string]*models.EncryptedSecret, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*models.EncryptedSecret{}, nil
		}
		return nil, fmt.Errorf("reading secret store: %w", err)
	}
	all := map[string]*models.EncryptedSecret{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing secret store: %w", err)
	}
	return all, nil
}

func (f *FileSecretStore) save(all map[string]*models.EncryptedSecret) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("creating secret store dir: %w", err)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding secret store: %w", err)
	}
	return os.WriteFile(f.path, data, 0600)
}
