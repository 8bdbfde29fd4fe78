// store.go - File record model and the store contract the lifecycle
// service depends on. The Postgres implementation lives in pgstore.go.
package server

import (
	"context"
	"time"
)

// FileRecord is the metadata row for one encrypted document. The payload
// itself is opaque ciphertext held in object storage under ObjectKey; the
// three companion byte-strings travel with the record and are never
// inspected, only stored and relayed as a unit.
type FileRecord struct {
	ID          string
	UploaderID  string
	OwnerID     string
	FileName    string
	SizeBytes   int64
	MimeType    string
	SenderPhone string

	ObjectKey    string
	IVVector     []byte
	AuthTag      []byte
	EncryptedKey []byte

	Status          Status
	RejectionReason string
	IsPrinted       bool
	IsDeleted       bool

	CreatedAt       time.Time
	StatusUpdatedAt time.Time
	PrintedAt       *time.Time
	DeletedAt       *time.Time
}

// FileStore is the durable record store the service orchestrates against.
// Implementations must make Mutate a single atomic unit so concurrent
// updates on the same file id serialize instead of interleaving.
type FileStore interface {
	// Create persists a new record. All-or-nothing: on error no partial
	// row is left behind.
	Create(ctx context.Context, rec *FileRecord) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*FileRecord, error)

	// Mutate loads the record, applies fn under the store's row-level
	// atomicity and persists the result. If fn returns an error the
	// record is left exactly as it was. Returns the committed record.
	Mutate(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error)

	// ListActive returns records visible to the principal in its role,
	// most recent first, bounded by limit. Soft-deleted records are
	// excluded unless their status is REJECTED, which must stay visible
	// to both parties for status confirmation.
	ListActive(ctx context.Context, principalID string, role Role, limit int) ([]*FileRecord, error)

	// History returns soft-deleted records for the owner, most recently
	// deleted first, bounded by limit.
	History(ctx context.Context, ownerID string, limit int) ([]*FileRecord, error)

	// Purge permanently removes every soft-deleted record for the owner
	// and returns the ids removed so payload objects can be cleaned up.
	// Irreversible.
	Purge(ctx context.Context, ownerID string) ([]string, error)

	// PurgeExpired permanently removes soft-deleted records whose
	// deletion predates the cutoff, across all owners, and returns the
	// ids removed. Used by the retention janitor.
	PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error)

	// ResolveOwner maps an owner reference (email alias or canonical id)
	// to a canonical owner id. ErrNotFound means unresolved; the caller
	// decides whether that is fatal.
	ResolveOwner(ctx context.Context, ref string) (string, error)
}

// BlobStore holds the opaque encrypted payloads, addressed by object key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}
