package models

import "time"

// Audit event names emitted by the credential workflows. Request-level
// entries written by the audit middleware use the HTTP method as the event.
const (
	EventCredentialSaved   = "credential_saved"
	EventCredentialDeleted = "credential_deleted"
	EventRotationBackup    = "key_rotation_backup"
	EventKeyRotated        = "key_rotated"
	EventRotationFailed    = "key_rotation_failed"
)

// AuditEntry is one row in the audit log.
// Secret plaintext must NEVER be placed in Detail — masked values and
// ciphertext (for rotation backups) only.
type AuditEntry struct {
	ID             int64          `json:"id,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Event          string         `json:"event"`
	OwnerID        string         `json:"owner_id,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Detail         map[string]any `json:"detail,omitempty"`
	ResponseCode   int            `json:"response_code,omitempty"`
	ResponseTimeMs int64          `json:"response_time_ms,omitempty"`
	ClientIP       string         `json:"client_ip,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
