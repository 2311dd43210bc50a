package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// PostgresStore implements PhotoStore on a database/sql connection using
// the pgx stdlib driver. Metrics and mask artifacts are stored as JSONB;
// the mask name list is kept alongside as a text array for cheap indexing.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PhotoStore backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new record.
func (s *PostgresStore) Create(ctx context.Context, rec *domain.PhotoRecord) error {
	const q = `
		INSERT INTO photos (id, user_id, source_uri, storage_key, thumbnail_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.UserID, rec.SourceURI, rec.StorageKey, rec.ThumbnailKey, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return domain.Conflict("photo.create", "Photo already exists")
		}
		return domain.Internal(err, "photo.create", "Failed to create photo record")
	}
	return nil
}

// Get retrieves a record by id.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*domain.PhotoRecord, error) {
	const q = selectColumns + ` FROM photos WHERE id = $1`

	rec, err := scanPhoto(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("photo.get", "photo", id.String())
		}
		return nil, domain.Internal(err, "photo.get", "Failed to load photo record")
	}
	return rec, nil
}

// List returns a user's records, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string) ([]domain.PhotoRecord, error) {
	const q = selectColumns + ` FROM photos WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, domain.Internal(err, "photo.list", "Failed to list photo records")
	}
	defer rows.Close()

	var out []domain.PhotoRecord
	for rows.Next() {
		rec, err := scanPhoto(rows)
		if err != nil {
			return nil, domain.Internal(err, "photo.list", "Failed to scan photo record")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "photo.list", "Failed to list photo records")
	}
	return out, nil
}

// SaveResult persists the evolving analysis state of a record.
func (s *PostgresStore) SaveResult(ctx context.Context, rec *domain.PhotoRecord) error {
	const q = `
		UPDATE photos SET
			provider_batch_id = $2,
			provider_image_id = $3,
			remote_url = $4,
			metrics = $5,
			mask_results = $6,
			mask_images = $7,
			mask_names = $8,
			thread_id = $9,
			status_state = $10,
			status_message = $11,
			updated_at = now()
		WHERE id = $1`

	metricsJSON, err := marshalNullable(rec.Metrics, !rec.Metrics.Empty())
	if err != nil {
		return domain.Internal(err, "photo.save_result", "Failed to marshal metrics")
	}
	var maskResultsJSON, maskImagesJSON pqtype.NullRawMessage
	if rec.Masks != nil {
		maskResultsJSON, err = marshalNullable(rec.Masks.Results, len(rec.Masks.Results) > 0)
		if err != nil {
			return domain.Internal(err, "photo.save_result", "Failed to marshal mask results")
		}
		maskImagesJSON, err = marshalNullable(rec.Masks.Images, len(rec.Masks.Images) > 0)
		if err != nil {
			return domain.Internal(err, "photo.save_result", "Failed to marshal mask images")
		}
	}

	res, err := s.db.ExecContext(ctx, q,
		rec.ID,
		nullString(rec.ProviderBatchID),
		nullString(rec.ProviderImageID),
		nullString(rec.RemoteURL),
		metricsJSON,
		maskResultsJSON,
		maskImagesJSON,
		pq.StringArray(rec.Masks.Names()),
		nullString(rec.ThreadID),
		rec.Status.State.String(),
		rec.Status.Message,
	)
	if err != nil {
		return domain.Internal(err, "photo.save_result", "Failed to save analysis result")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound("photo.save_result", "photo", rec.ID.String())
	}
	return nil
}

// Delete removes a record. Idempotent.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "photo.delete", "Failed to delete photo record")
	}
	return nil
}

// =============================================================================
// Row Mapping
// =============================================================================

const selectColumns = `
	SELECT id, user_id, source_uri, storage_key, thumbnail_key,
	       provider_batch_id, provider_image_id, remote_url,
	       metrics, mask_results, mask_images, thread_id,
	       status_state, status_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*domain.PhotoRecord, error) {
	var (
		rec             domain.PhotoRecord
		batchID         sql.NullString
		imageID         sql.NullString
		remoteURL       sql.NullString
		threadID        sql.NullString
		statusState     string
		metricsJSON     pqtype.NullRawMessage
		maskResultsJSON pqtype.NullRawMessage
		maskImagesJSON  pqtype.NullRawMessage
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.SourceURI, &rec.StorageKey, &rec.ThumbnailKey,
		&batchID, &imageID, &remoteURL,
		&metricsJSON, &maskResultsJSON, &maskImagesJSON, &threadID,
		&statusState, &rec.Status.Message, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ProviderBatchID = batchID.String
	rec.ProviderImageID = imageID.String
	rec.RemoteURL = remoteURL.String
	rec.ThreadID = threadID.String
	rec.Status.State = domain.AnalysisState(statusState)

	if metricsJSON.Valid {
		var m domain.Metrics
		if err := json.Unmarshal(metricsJSON.RawMessage, &m); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
		rec.Metrics = &m
	}
	if maskResultsJSON.Valid || maskImagesJSON.Valid {
		masks := &domain.MaskArtifacts{}
		if maskResultsJSON.Valid {
			if err := json.Unmarshal(maskResultsJSON.RawMessage, &masks.Results); err != nil {
				return nil, fmt.Errorf("unmarshal mask results: %w", err)
			}
		}
		if maskImagesJSON.Valid {
			if err := json.Unmarshal(maskImagesJSON.RawMessage, &masks.Images); err != nil {
				return nil, fmt.Errorf("unmarshal mask images: %w", err)
			}
		}
		rec.Masks = masks
	}
	return &rec, nil
}

func marshalNullable(v any, present bool) (pqtype.NullRawMessage, error) {
	if !present {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
