// pgstore.go - Postgres implementation of FileStore.
//
// Concurrency contract: Mutate runs read-modify-write inside one
// transaction with SELECT ... FOR UPDATE, so two concurrent status updates
// on the same file id serialize; the loser re-evaluates against the
// winner's committed row.
package server

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	db *sql.DB
}

// NewPGStore wraps an open connection pool as a FileStore.
func NewPGStore(db *sql.DB) FileStore {
	return &pgStore{db: db}
}

const fileColumns = `id, uploader_id, owner_id, file_name, size_bytes, mime_type,
	sender_phone, object_key, iv_vector, auth_tag, encrypted_key,
	status, rejection_reason, is_printed, is_deleted,
	created_at, status_updated_at, printed_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var status string
	var rejection sql.NullString
	var printedAt, deletedAt sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.UploaderID, &rec.OwnerID, &rec.FileName, &rec.SizeBytes, &rec.MimeType,
		&rec.SenderPhone, &rec.ObjectKey, &rec.IVVector, &rec.AuthTag, &rec.EncryptedKey,
		&status, &rejection, &rec.IsPrinted, &rec.IsDeleted,
		&rec.CreatedAt, &rec.StatusUpdatedAt, &printedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.RejectionReason = rejection.String
	if printedAt.Valid {
		t := printedAt.Time
		rec.PrintedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		rec.DeletedAt = &t
	}
	return &rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *pgStore) Create(ctx context.Context, rec *FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rec.ID, rec.UploaderID, rec.OwnerID, rec.FileName, rec.SizeBytes, rec.MimeType,
		rec.SenderPhone, rec.ObjectKey, rec.IVVector, rec.AuthTag, rec.EncryptedKey,
		string(rec.Status), nullStr(rec.RejectionReason), rec.IsPrinted, rec.IsDeleted,
		rec.CreatedAt, rec.StatusUpdatedAt, nullTime(rec.PrintedAt), nullTime(rec.DeletedAt),
	)
	if err != nil {
		return StoreError{Op: "create", Err: err}
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, StoreError{Op: "get", Err: err}
	}
	return rec, nil
}

func (s *pgStore) Mutate(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, StoreError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 FOR UPDATE`, id)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, StoreError{Op: "mutate select", Err: err}
	}

	// Domain decision runs against the locked row; an error aborts the
	// transaction with the row untouched.
	if err := fn(rec); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE files SET
			status = $2, rejection_reason = $3, is_printed = $4, is_deleted = $5,
			status_updated_at = $6, printed_at = $7, deleted_at = $8
		WHERE id = $1`,
		rec.ID, string(rec.Status), nullStr(rec.RejectionReason), rec.IsPrinted, rec.IsDeleted,
		rec.StatusUpdatedAt, nullTime(rec.PrintedAt), nullTime(rec.DeletedAt),
	)
	if err != nil {
		return nil, StoreError{Op: "mutate update", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, StoreError{Op: "mutate commit", Err: err}
	}
	return rec, nil
}

func (s *pgStore) ListActive(ctx context.Context, principalID string, role Role, limit int) ([]*FileRecord, error) {
	var column string
	switch role {
	case RoleUploader:
		column = "uploader_id"
	case RoleOwner:
		column = "owner_id"
	default:
		return nil, ErrForbidden
	}

	// REJECTED files stay listed after deletion so both parties can still
	// see the rejection.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE (is_deleted = FALSE OR status = 'REJECTED') AND `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2`, principalID, limit)
	if err != nil {
		return nil, StoreError{Op: "list", Err: err}
	}
	defer rows.Close()
	return collectFiles(rows)
}

func (s *pgStore) History(ctx context.Context, ownerID string, limit int) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE is_deleted = TRUE AND owner_id = $1
		ORDER BY deleted_at DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, StoreError{Op: "history", Err: err}
	}
	defer rows.Close()
	return collectFiles(rows)
}

func (s *pgStore) Purge(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM files
		WHERE is_deleted = TRUE AND owner_id = $1
		RETURNING id`, ownerID)
	if err != nil {
		return nil, StoreError{Op: "purge", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, StoreError{Op: "purge scan", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, StoreError{Op: "purge rows", Err: err}
	}
	return ids, nil
}

func (s *pgStore) PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM files
		WHERE is_deleted = TRUE AND deleted_at < $1
		RETURNING id`, cutoff)
	if err != nil {
		return nil, StoreError{Op: "purge expired", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, StoreError{Op: "purge expired scan", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, StoreError{Op: "purge expired rows", Err: err}
	}
	return ids, nil
}

func (s *pgStore) ResolveOwner(ctx context.Context, ref string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM owners WHERE email = $1`, ref).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", StoreError{Op: "resolve owner", Err: err}
	}

	// Not an email alias; accept a canonical id.
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM owners WHERE id = $1`, ref).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", StoreError{Op: "resolve owner", Err: err}
	}
	return id, nil
}

func collectFiles(rows *sql.Rows) ([]*FileRecord, error) {
	var files []*FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, StoreError{Op: "scan", Err: err}
		}
		files = append(files, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, StoreError{Op: "rows", Err: err}
	}
	return files, nil
}
