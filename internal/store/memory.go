package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory PhotoStore for tests and database-free
// development. Records are deep-copied on the way in and out.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.PhotoRecord

	// DeleteCalls counts Delete invocations, for cleanup-policy tests.
	DeleteCalls int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]domain.PhotoRecord),
	}
}

// Create inserts a new record.
func (s *MemoryStore) Create(ctx context.Context, rec *domain.PhotoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return domain.Conflict("photo.create", "Photo already exists")
	}
	cp := rec.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.records[rec.ID] = cp
	return nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.NotFound("photo.get", "photo", id.String())
	}
	cp := rec.Clone()
	return &cp, nil
}

// List returns a user's records, newest first.
func (s *MemoryStore) List(ctx context.Context, userID string) ([]domain.PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PhotoRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SaveResult persists the evolving analysis state of a record.
func (s *MemoryStore) SaveResult(ctx context.Context, rec *domain.PhotoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return domain.NotFound("photo.save_result", "photo", rec.ID.String())
	}
	cp := rec.Clone()
	cp.UpdatedAt = time.Now()
	s.records[rec.ID] = cp
	return nil
}

// Delete removes a record. Idempotent.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls++
	delete(s.records, id)
	return nil
}

// Contains reports whether a record currently exists. Test helper.
func (s *MemoryStore) Contains(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}
