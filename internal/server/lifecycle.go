// lifecycle.go - File lifecycle orchestration: upload intake, listing,
// download-for-print, status updates, deletion and history. Ties the
// status state machine and the notification hub together over the store.
package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Events pushed over the notification stream.
const (
	eventNewFile           = "new_file"
	eventStatusUpdate      = "status_update"
	eventFileStatusChanged = "file_status_changed"
)

// allowedExtensions mirrors the mobile client's allow-list.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// sanitizeFileName replaces any character outside the allowed set with an
// underscore. Never empties the name: the extension check runs afterwards.
func sanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// Lifecycle orchestrates every file operation. All authorization checks run
// before any mutation; store failures abort the in-flight operation and the
// caller sees a generic failure.
type Lifecycle struct {
	store FileStore
	blobs BlobStore
	hub   *Hub
	audit *Auditor
	log   *zap.Logger

	maxUploadBytes int64
	pageSize       int
	now            func() time.Time
}

func NewLifecycle(store FileStore, blobs BlobStore, hub *Hub, audit *Auditor, log *zap.Logger, cfg *Config) *Lifecycle {
	return &Lifecycle{
		store:          store,
		blobs:          blobs,
		hub:            hub,
		audit:          audit,
		log:            log,
		maxUploadBytes: cfg.MaxUploadBytes,
		pageSize:       cfg.ListPageSize,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// UploadInput carries the already-decoded fields of one upload. The payload
// and its three companions are opaque: the service stores and relays them
// as a unit without inspection.
type UploadInput struct {
	FileName     string
	Payload      []byte
	MimeType     string
	IVVector     []byte
	AuthTag      []byte
	EncryptedKey []byte
	OwnerRef     string
}

// Upload validates and persists a new file in WAITING_FOR_APPROVAL, then
// notifies the owner's open streams. Create is all-or-nothing: a failed
// metadata insert removes the already-stored payload object.
func (l *Lifecycle) Upload(ctx context.Context, uploader Principal, in UploadInput) (*FileRecord, error) {
	if in.FileName == "" {
		return nil, ValidationError{Msg: "missing file name"}
	}
	if len(in.Payload) == 0 {
		return nil, ValidationError{Msg: "no file provided"}
	}
	if int64(len(in.Payload)) > l.maxUploadBytes {
		return nil, ErrTooLarge
	}
	if len(in.IVVector) == 0 || len(in.AuthTag) == 0 || len(in.EncryptedKey) == 0 {
		return nil, ValidationError{Msg: "missing encryption fields"}
	}
	if in.OwnerRef == "" {
		return nil, ValidationError{Msg: "missing owner_id"}
	}

	name := sanitizeFileName(in.FileName)
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return nil, ValidationError{Msg: "invalid file type, only PDF and DOCX allowed"}
	}

	// The mobile app may send the owner's email instead of the canonical
	// id. An unresolved reference is stored verbatim: losing the upload is
	// worse than degraded referential integrity.
	ownerID, err := l.store.ResolveOwner(ctx, in.OwnerRef)
	if err != nil {
		var se StoreError
		if errors.As(err, &se) {
			return nil, err
		}
		l.log.Warn("owner reference unresolved, storing verbatim",
			zap.String("owner_ref", in.OwnerRef))
		ownerID = in.OwnerRef
	}

	now := l.now()
	mime := in.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	rec := &FileRecord{
		ID:              uuid.NewString(),
		UploaderID:      uploader.ID,
		OwnerID:         ownerID,
		FileName:        name,
		SizeBytes:       int64(len(in.Payload)),
		MimeType:        mime,
		SenderPhone:     uploader.Phone,
		IVVector:        in.IVVector,
		AuthTag:         in.AuthTag,
		EncryptedKey:    in.EncryptedKey,
		Status:          StatusWaitingForApproval,
		CreatedAt:       now,
		StatusUpdatedAt: now,
	}
	// Stable, non-guessable object key.
	rec.ObjectKey = "uploads/" + rec.ID

	if err := l.blobs.Put(ctx, rec.ObjectKey, in.Payload, mime); err != nil {
		return nil, StoreError{Op: "payload put", Err: err}
	}
	if err := l.store.Create(ctx, rec); err != nil {
		_ = l.blobs.Remove(ctx, rec.ObjectKey)
		return nil, err
	}

	metricUploads.Inc()
	metricUploadBytes.Add(float64(rec.SizeBytes))
	l.audit.Record(ctx, AuditActionUpload, uploader, rec.ID, map[string]any{
		"file_name":  rec.FileName,
		"size_bytes": rec.SizeBytes,
	})

	l.hub.Publish(rec.OwnerID, eventNewFile, map[string]any{
		"file_id":         rec.ID,
		"file_name":       rec.FileName,
		"file_size_bytes": rec.SizeBytes,
		"uploaded_at":     rec.CreatedAt.Format(time.RFC3339),
	})

	return rec, nil
}

// List returns the caller's active view: own uploads for uploaders, the
// inbox for owners. Most recent first, bounded page.
func (l *Lifecycle) List(ctx context.Context, caller Principal) ([]*FileRecord, error) {
	switch caller.Role {
	case RoleUploader, RoleOwner:
		return l.store.ListActive(ctx, caller.ID, caller.Role, l.pageSize)
	default:
		return nil, ErrForbidden
	}
}

// FetchForPrint returns the full record including the encrypted payload.
// Owner only, and never for a soft-deleted file. A file belonging to a
// different owner reads as forbidden without leaking anything further.
func (l *Lifecycle) FetchForPrint(ctx context.Context, caller Principal, fileID string) (*FileRecord, []byte, error) {
	switch caller.Role {
	case RoleOwner:
	case RoleUploader:
		return nil, nil, ErrForbidden
	default:
		return nil, nil, ErrForbidden
	}

	rec, err := l.store.Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if rec.IsDeleted {
		return nil, nil, ErrNotFound
	}
	if rec.OwnerID != caller.ID {
		return nil, nil, ErrForbidden
	}

	payload, err := l.blobs.Get(ctx, rec.ObjectKey)
	if err != nil {
		return nil, nil, StoreError{Op: "payload get", Err: err}
	}

	l.audit.Record(ctx, AuditActionPrintFetch, caller, rec.ID, nil)
	return rec, payload, nil
}

// StatusChange is the result of one UpdateStatus call.
type StatusChange struct {
	Record    *FileRecord
	OldStatus Status
	NewStatus Status
	Changed   bool
}

// UpdateStatus applies the state machine to the file under the store's
// row-level atomicity. Requesting the current status is an idempotent
// no-op that leaves statusUpdatedAt untouched; an illegal transition fails
// without mutating, publishing or touching timestamps.
func (l *Lifecycle) UpdateStatus(ctx context.Context, caller Principal, fileID string, requested Status, rejectionReason string) (*StatusChange, error) {
	switch caller.Role {
	case RoleOwner:
	case RoleUploader:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}

	var change StatusChange
	rec, err := l.store.Mutate(ctx, fileID, func(rec *FileRecord) error {
		if rec.IsDeleted {
			return ErrNotFound
		}
		if rec.OwnerID != caller.ID {
			return ErrForbidden
		}
		change.OldStatus = rec.Status

		changed, err := Transition(rec.Status, requested)
		if err != nil {
			return err
		}
		change.Changed = changed
		if changed {
			applyStatus(rec, requested, rejectionReason, l.now())
		}
		change.NewStatus = rec.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	change.Record = rec

	if !change.Changed {
		return &change, nil
	}

	metricTransitions.WithLabelValues(string(change.OldStatus), string(change.NewStatus)).Inc()
	l.audit.Record(ctx, AuditActionStatusChange, caller, rec.ID, map[string]any{
		"old_status": change.OldStatus,
		"new_status": change.NewStatus,
	})

	payload := map[string]any{
		"file_id":          rec.ID,
		"file_name":        rec.FileName,
		"status":           rec.Status,
		"updated_at":       rec.StatusUpdatedAt.Format(time.RFC3339),
		"rejection_reason": rec.RejectionReason,
	}
	l.hub.Publish(rec.OwnerID, eventStatusUpdate, payload)
	// The uploader cares too, especially about rejections.
	l.hub.Publish(rec.UploaderID, eventFileStatusChanged, payload)

	return &change, nil
}

// Delete soft-deletes the file for either party. The record settles into a
// terminal status per the deletion policy; the owner is notified best
// effort, and a missed notification never rolls the deletion back.
func (l *Lifecycle) Delete(ctx context.Context, caller Principal, fileID string) (*FileRecord, error) {
	rec, err := l.store.Mutate(ctx, fileID, func(rec *FileRecord) error {
		switch caller.Role {
		case RoleOwner:
			if rec.OwnerID != caller.ID {
				return ErrForbidden
			}
		case RoleUploader:
			if rec.UploaderID != caller.ID {
				return ErrForbidden
			}
		default:
			return ErrForbidden
		}
		if rec.IsDeleted {
			return ErrAlreadyDeleted
		}
		applyDeletion(rec, l.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	metricDeletes.Inc()
	l.audit.Record(ctx, AuditActionDelete, caller, rec.ID, map[string]any{
		"final_status": rec.Status,
	})

	l.hub.Publish(rec.OwnerID, eventStatusUpdate, map[string]any{
		"file_id":    rec.ID,
		"file_name":  rec.FileName,
		"status":     rec.Status,
		"updated_at": rec.DeletedAt.Format(time.RFC3339),
		"message":    fmt.Sprintf("File deleted with status: %s", rec.Status),
	})

	return rec, nil
}

// History lists the owner's soft-deleted records, most recently deleted
// first, bounded page.
func (l *Lifecycle) History(ctx context.Context, caller Principal) ([]*FileRecord, error) {
	switch caller.Role {
	case RoleOwner:
		return l.store.History(ctx, caller.ID, l.pageSize)
	case RoleUploader:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}
}

// PurgeHistory permanently removes the owner's soft-deleted records and
// their payload objects. Irreversible; returns the count removed. Object
// removal is best effort once the rows are gone.
func (l *Lifecycle) PurgeHistory(ctx context.Context, caller Principal) (int, error) {
	switch caller.Role {
	case RoleOwner:
	case RoleUploader:
		return 0, ErrForbidden
	default:
		return 0, ErrForbidden
	}

	ids, err := l.store.Purge(ctx, caller.ID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := l.blobs.Remove(ctx, "uploads/"+id); err != nil {
			l.log.Warn("purged row but payload removal failed",
				zap.String("file_id", id), zap.Error(err))
		}
	}

	l.audit.Record(ctx, AuditActionPurge, caller, "", map[string]any{
		"deleted_count": len(ids),
	})
	return len(ids), nil
}

// StatusSnapshot returns the current status view of one file, scoped to
// its uploader or owner.
func (l *Lifecycle) StatusSnapshot(ctx context.Context, caller Principal, fileID string) (*FileRecord, error) {
	rec, err := l.store.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case RoleUploader:
		if rec.UploaderID != caller.ID {
			return nil, ErrForbidden
		}
	case RoleOwner:
		if rec.OwnerID != caller.ID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	return rec, nil
}
