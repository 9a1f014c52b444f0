package audit

import (
	"context"
	"time"

	"github.com/org/credvault/internal/storage"
	"github.com/org/credvault/pkg/models"
	"github.com/rs/zerolog/log"
)

// Logger writes structured audit entries.
type Logger struct {
	store storage.CredentialStore
}

// NewLogger creates an audit Logger.
func NewLogger(store storage.CredentialStore) *Logger {
	return &Logger{store: store}
}

// LogRequest records an API request to the audit log.
// Secret values must NEVER be passed here — only metadata.
// Fire and forget: request-level audit failures do not break request flow.
func (l *Logger) LogRequest(ctx context.Context, entry *models.AuditEntry) {
	entry.Timestamp = time.Now().UTC()
	if err := l.store.WriteAuditEntry(ctx, entry); err != nil {
		log.Warn().Str("event", entry.Event).Err(err).Msg("failed to write audit entry")
	}
}

// Record writes an audit entry and reports failure to the caller. Workflows
// that require a durable trail before mutating state (rotation backups) use
// this instead of LogRequest.
func (l *Logger) Record(ctx context.Context, entry *models.AuditEntry) error {
	entry.Timestamp = time.Now().UTC()
	return l.store.WriteAuditEntry(ctx, entry)
}

// Query retrieves paginated audit log entries.
func (l *Logger) Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error) {
	return l.store.QueryAuditLog(ctx, filter)
}
