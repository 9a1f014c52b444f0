package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/credvault/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an optimistic-concurrency write finds
// the record changed since it was read.
var ErrVersionConflict = errors.New("record version conflict")

// CredentialStore defines the persistence interface for server-held
// credentials and the audit log.
type CredentialStore interface {
	// Credentials
	GetCredential(ctx context.Context, ownerID, provider string) (*models.ProviderCredential, error)
	// PutCredential upserts and bumps RecordVersion.
	PutCredential(ctx context.Context, cred *models.ProviderCredential) error
	// SwapCredentialSecret replaces the encrypted secret in a single logical
	// write, but only if the stored RecordVersion still equals
	// expectedVersion. Returns ErrVersionConflict otherwise.
	SwapCredentialSecret(ctx context.Context, ownerID, provider string, secret *models.EncryptedSecret, masked string, expectedVersion int, rotatedAt time.Time) error
	DeleteCredential(ctx context.Context, ownerID, provider string) error
	ListCredentials(ctx context.Context, ownerID string) ([]*models.ProviderCredential, error)

	// Audit
	WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)

	// Metrics helpers
	CountCredentials(ctx context.Context) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close()
}

// AuditFilter specifies query parameters for audit log retrieval.
type AuditFilter struct {
	OwnerID  string
	Provider string
	Event    string
	Since    *time.Time
	Limit    int
	Offset   int
}
