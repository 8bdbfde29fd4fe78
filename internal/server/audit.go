// audit.go - Best-effort audit trail for lifecycle operations.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// AuditAction tags the operation recorded in the trail.
type AuditAction string

const (
	AuditActionUpload       AuditAction = "file_upload"
	AuditActionPrintFetch   AuditAction = "print_fetch"
	AuditActionStatusChange AuditAction = "status_change"
	AuditActionDelete       AuditAction = "file_delete"
	AuditActionPurge        AuditAction = "history_purge"
)

// Auditor writes one row per lifecycle operation. Recording is best
// effort: a failed insert is logged and never fails the operation itself.
// A nil Auditor is valid and records nothing (unit tests).
type Auditor struct {
	db  *sql.DB
	log *zap.Logger
}

func NewAuditor(db *sql.DB, log *zap.Logger) *Auditor {
	return &Auditor{db: db, log: log}
}

func (a *Auditor) Record(ctx context.Context, action AuditAction, p Principal, fileID string, detail map[string]any) {
	if a == nil || a.db == nil {
		return
	}

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		a.log.Warn("audit detail marshal failed", zap.Error(err))
		detailJSON = []byte("{}")
	}

	var fid sql.NullString
	if fileID != "" {
		fid = sql.NullString{String: fileID, Valid: true}
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO audit_log (at, action, principal_id, role, file_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		time.Now().UTC(), string(action), p.ID, string(p.Role), fid, detailJSON,
	)
	if err != nil {
		a.log.Warn("audit insert failed",
			zap.String("action", string(action)), zap.Error(err))
	}
}
