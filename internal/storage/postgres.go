package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/credvault/pkg/models"
)

// PostgresStore is a CredentialStore backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pgxpool connection and returns a ready store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// --- Credentials ---

const credentialColumns = `owner_id, provider, ciphertext, iv, auth_tag, salt,
       algorithm, schema_version, masked_display, record_version, created_at, last_rotated_at`

func (p *PostgresStore) GetCredential(ctx context.Context, ownerID, provider string) (*models.ProviderCredential, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE owner_id = $1 AND provider = $2`,
		ownerID, provider,
	)
	return scanCredential(row)
}

func (p *PostgresStore) PutCredential(ctx context.Context, cred *models.ProviderCredential) error {
	s := cred.Secret
	_, err := p.pool.Exec(ctx,
		`INSERT INTO credentials
		   (owner_id, provider, ciphertext, iv, auth_tag, salt, algorithm, schema_version,
		    masked_display, record_version, created_at, last_rotated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
		 ON CONFLICT (owner_id, provider) DO UPDATE SET
		   ciphertext = EXCLUDED.ciphertext,
		   iv = EXCLUDED.iv,
		   auth_tag = EXCLUDED.auth_tag,
		   salt = EXCLUDED.salt,
		   algorithm = EXCLUDED.algorithm,
		   schema_version = EXCLUDED.schema_version,
		   masked_display = EXCLUDED.masked_display,
		   record_version = credentials.record_version + 1,
		   last_rotated_at = EXCLUDED.last_rotated_at`,
		cred.OwnerID, cred.Provider, s.Ciphertext, s.IV, s.AuthTag, s.Salt,
		s.Algorithm, s.Version, cred.MaskedDisplay, cred.CreatedAt, cred.LastRotatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}
	return nil
}

func (p *PostgresStore) SwapCredentialSecret(ctx context.Context, ownerID, provider string, secret *models.EncryptedSecret, masked string, expectedVersion int, rotatedAt time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE credentials SET
		   ciphertext = $1, iv = $2, auth_tag = $3, salt = $4,
		   algorithm = $5, schema_version = $6, masked_display = $7,
		   record_version = record_version + 1, last_rotated_at = $8
		 WHERE owner_id = $9 AND provider = $10 AND record_version = $11`,
		secret.Ciphertext, secret.IV, secret.AuthTag, secret.Salt,
		secret.Algorithm, secret.Version, masked, rotatedAt,
		ownerID, provider, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("swapping credential secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the record vanished or its version moved under us.
		var exists bool
		if err := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM credentials WHERE owner_id = $1 AND provider = $2)`,
			ownerID, provider,
		).Scan(&exists); err == nil && !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (p *PostgresStore) DeleteCredential(ctx context.Context, ownerID, provider string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM credentials WHERE owner_id = $1 AND provider = $2`,
		ownerID, provider,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListCredentials(ctx context.Context, ownerID string) ([]*models.ProviderCredential, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE owner_id = $1 ORDER BY provider`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.ProviderCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (p *PostgresStore) CountCredentials(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.ProviderCredential, error) {
	c := &models.ProviderCredential{Secret: &models.EncryptedSecret{}}
	err := row.Scan(
		&c.OwnerID, &c.Provider,
		&c.Secret.Ciphertext, &c.Secret.IV, &c.Secret.AuthTag, &c.Secret.Salt,
		&c.Secret.Algorithm, &c.Secret.Version,
		&c.MaskedDisplay, &c.RecordVersion, &c.CreatedAt, &c.LastRotatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// --- Audit ---

func (p *PostgresStore) WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshaling audit detail: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO audit_log
		   (request_id, event, owner_id, provider, detail, response_code, response_time_ms, client_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.RequestID, entry.Event, entry.OwnerID, entry.Provider, detail,
		entry.ResponseCode, entry.ResponseTimeMs, entry.ClientIP, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func (p *PostgresStore) QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	query := `SELECT id, request_id, event, owner_id, provider, detail,
	                 response_code, response_time_ms, client_ip, created_at
	          FROM audit_log WHERE 1=1`
	args := []any{}
	n := 0
	add := func(clause string, val any) {
		n++
		query += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, val)
	}
	if filter.OwnerID != "" {
		add("owner_id", filter.OwnerID)
	}
	if filter.Provider != "" {
		add("provider", filter.Provider)
	}
	if filter.Event != "" {
		add("event", filter.Event)
	}
	if filter.Since != nil {
		n++
		query += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, *filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, filter.Offset)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		var detail []byte
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Event, &e.OwnerID, &e.Provider,
			&detail, &e.ResponseCode, &e.ResponseTimeMs, &e.ClientIP, &e.Timestamp); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
