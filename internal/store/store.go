// Package store persists photo records. The Postgres implementation backs
// the service in production; the in-memory implementation backs tests and
// local development without a database.
package store

import (
	"context"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/google/uuid"
)

// PhotoStore is the persistence interface for photo records.
type PhotoStore interface {
	// Create inserts a new record.
	// Returns domain.ECONFLICT if the id already exists.
	Create(ctx context.Context, rec *domain.PhotoRecord) error

	// Get retrieves a record by id.
	// Returns domain.ENOTFOUND if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.PhotoRecord, error)

	// List returns a user's records, newest first.
	List(ctx context.Context, userID string) ([]domain.PhotoRecord, error)

	// SaveResult persists the evolving analysis state of a record:
	// provider identity, metrics, masks, thread, and status.
	SaveResult(ctx context.Context, rec *domain.PhotoRecord) error

	// Delete removes a record. Idempotent: deleting a missing record is
	// not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
