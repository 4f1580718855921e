package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitecms/api/internal/contentsync"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FetchDocument reads the single shared content row. It returns nil, nil when
// the row has never been written.
func (s *PostgresStore) FetchDocument(ctx context.Context) (*contentsync.StoredDocument, error) {
	var (
		body        []byte
		lastUpdated time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT body, last_updated FROM site_content WHERE id = 1`).Scan(&body, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read site content: %w", err)
	}
	return &contentsync.StoredDocument{Body: json.RawMessage(body), UpdatedAt: lastUpdated}, nil
}

func (s *PostgresStore) OverwriteDocument(ctx context.Context, body json.RawMessage, lastUpdated time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_content (id, body, last_updated)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, last_updated = EXCLUDED.last_updated
	`, string(body), lastUpdated)
	if err != nil {
		return fmt.Errorf("overwrite site content: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendVersion(ctx context.Context, body json.RawMessage, archivedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO content_versions (body, archived_at) VALUES ($1, $2)`, string(body), archivedAt)
	if err != nil {
		return fmt.Errorf("insert content version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, limit int) ([]ContentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body, archived_at
		FROM content_versions
		ORDER BY archived_at DESC, id DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list content versions: %w", err)
	}
	defer rows.Close()

	versions := make([]ContentVersion, 0)
	for rows.Next() {
		var (
			version ContentVersion
			body    []byte
		)
		if err := rows.Scan(&version.ID, &body, &version.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan content version: %w", err)
		}
		version.Body = json.RawMessage(body)
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func (s *PostgresStore) GetVersion(ctx context.Context, id int64) (ContentVersion, error) {
	var (
		version ContentVersion
		body    []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, body, archived_at FROM content_versions WHERE id = $1`, id).
		Scan(&version.ID, &body, &version.ArchivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentVersion{}, ErrNotFound
	}
	if err != nil {
		return ContentVersion{}, fmt.Errorf("read content version: %w", err)
	}
	version.Body = json.RawMessage(body)
	return version, nil
}

func (s *PostgresStore) AppendAuditEntry(ctx context.Context, action, actor string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO content_audit_log (action, actor, at) VALUES ($1, $2, $3)`, action, actor, at)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, actor, at
		FROM content_audit_log
		ORDER BY at DESC, id DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Actor, &entry.At); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const operatorColumns = `id, email, display_name, password_hash, role, deactivated_at, created_at, updated_at`

func scanOperator(row interface{ Scan(...any) error }) (Operator, error) {
	var (
		op          Operator
		deactivated sql.NullTime
	)
	if err := row.Scan(&op.ID, &op.Email, &op.DisplayName, &op.PasswordHash, &op.Role, &deactivated, &op.CreatedAt, &op.UpdatedAt); err != nil {
		return Operator{}, err
	}
	if deactivated.Valid {
		op.DeactivatedAt = &deactivated.Time
	}
	return op, nil
}

func (s *PostgresStore) GetOperatorByEmail(ctx context.Context, email string) (Operator, error) {
	op, err := scanOperator(s.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE email = $1`, normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return Operator{}, ErrNotFound
	}
	if err != nil {
		return Operator{}, fmt.Errorf("lookup operator by email: %w", err)
	}
	return op, nil
}

func (s *PostgresStore) GetOperatorByID(ctx context.Context, id string) (Operator, error) {
	op, err := scanOperator(s.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Operator{}, ErrNotFound
	}
	if err != nil {
		return Operator{}, fmt.Errorf("lookup operator: %w", err)
	}
	return op, nil
}

func (s *PostgresStore) CreateOperator(ctx context.Context, op Operator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (id, email, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, op.ID, normalizeEmail(op.Email), op.DisplayName, op.PasswordHash, op.Role)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateOperatorPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE operators SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update operator password: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
