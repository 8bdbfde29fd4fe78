// Shared test fixtures: in-memory store doubles, a wired test server and
// token minting.
package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// memStore is an in-memory FileStore with the same visibility semantics as
// the Postgres implementation.
type memStore struct {
	mu     sync.Mutex
	files  map[string]*FileRecord
	owners map[string]string // email -> id
	ids    map[string]bool   // known canonical owner ids

	createErr error // injected failure for Create
}

func newMemStore() *memStore {
	return &memStore{
		files:  make(map[string]*FileRecord),
		owners: make(map[string]string),
		ids:    make(map[string]bool),
	}
}

func (m *memStore) addOwner(id, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = true
	if email != "" {
		m.owners[email] = id
	}
}

func cloneRecord(rec *FileRecord) *FileRecord {
	cp := *rec
	if rec.PrintedAt != nil {
		t := *rec.PrintedAt
		cp.PrintedAt = &t
	}
	if rec.DeletedAt != nil {
		t := *rec.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func (m *memStore) Create(_ context.Context, rec *FileRecord) error {
	if m.createErr != nil {
		return StoreError{Op: "create", Err: m.createErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[rec.ID]; ok {
		return StoreError{Op: "create", Err: fmt.Errorf("duplicate id %s", rec.ID)}
	}
	m.files[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *memStore) Mutate(_ context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	work := cloneRecord(rec)
	if err := fn(work); err != nil {
		return nil, err
	}
	m.files[id] = cloneRecord(work)
	return work, nil
}

func (m *memStore) ListActive(_ context.Context, principalID string, role Role, limit int) ([]*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*FileRecord
	for _, rec := range m.files {
		if rec.IsDeleted && rec.Status != StatusRejected {
			continue
		}
		switch role {
		case RoleUploader:
			if rec.UploaderID != principalID {
				continue
			}
		case RoleOwner:
			if rec.OwnerID != principalID {
				continue
			}
		default:
			return nil, ErrForbidden
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) History(_ context.Context, ownerID string, limit int) ([]*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*FileRecord
	for _, rec := range m.files {
		if rec.IsDeleted && rec.OwnerID == ownerID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeletedAt.After(*out[j].DeletedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Purge(_ context.Context, ownerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, rec := range m.files {
		if rec.IsDeleted && rec.OwnerID == ownerID {
			ids = append(ids, id)
			delete(m.files, id)
		}
	}
	return ids, nil
}

func (m *memStore) PurgeExpired(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, rec := range m.files {
		if rec.IsDeleted && rec.DeletedAt != nil && rec.DeletedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(m.files, id)
		}
	}
	return ids, nil
}

func (m *memStore) ResolveOwner(_ context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.owners[ref]; ok {
		return id, nil
	}
	if m.ids[ref] {
		return ref, nil
	}
	return "", ErrNotFound
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte

	putErr error // injected failure for Put
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.objects[key] = cp
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (b *memBlobs) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func testConfig() *Config {
	return &Config{
		Addr:              ":0",
		JWTSecret:         testSecret,
		MaxUploadBytes:    1 << 20,
		ListPageSize:      100,
		KeepaliveInterval: 50 * time.Millisecond,
		ShutdownTimeout:   time.Second,
		UploadRate:        1000,
		UploadRateWindow:  time.Minute,
	}
}

type testEnv struct {
	srv   *Server
	store *memStore
	blobs *memBlobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	blobs := newMemBlobs()
	srv := New(testConfig(), zap.NewNop(), nil, store, blobs)
	return &testEnv{srv: srv, store: store, blobs: blobs}
}

func newTestLifecycle(store FileStore, blobs BlobStore, hub *Hub) *Lifecycle {
	if hub == nil {
		hub = NewHub(zap.NewNop())
	}
	return NewLifecycle(store, blobs, hub, nil, zap.NewNop(), testConfig())
}

// mintToken signs a bearer token the auth middleware accepts.
func mintToken(t *testing.T, id string, role Role, phone string) string {
	t.Helper()
	claims := principalClaims{
		Role:  string(role),
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

var (
	testOwner    = Principal{ID: "owner-1", Role: RoleOwner}
	testUploader = Principal{ID: "uploader-1", Role: RoleUploader, Phone: "+15551234567"}
)

func validUpload() UploadInput {
	return UploadInput{
		FileName:     "document.pdf",
		Payload:      []byte("ciphertext"),
		MimeType:     "application/pdf",
		IVVector:     []byte("iv"),
		AuthTag:      []byte("tag"),
		EncryptedKey: []byte("key"),
		OwnerRef:     "owner-1",
	}
}
