package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/lifecycle"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/Ayush-autviz/skin-sub000/internal/storage"
	"github.com/Ayush-autviz/skin-sub000/internal/store"
	"github.com/google/uuid"
)

// PhotoService is the application surface for photo capture and analysis.
//
// Capture and Reopen create live lifecycle sessions; the gesture, retry and
// snapshot operations address the session for a photo id. Everything else
// works against the persisted record.
type PhotoService interface {
	// Capture validates and stores an uploaded photo, creates its record,
	// and opens a session that submits it for analysis.
	// Returns domain.EINVALID for validation errors.
	Capture(ctx context.Context, file multipart.File, header *multipart.FileHeader, userID, slot string) (lifecycle.Snapshot, error)

	// Reopen opens a session for a previously analyzed photo. The session
	// polls for current results without re-submitting the image.
	// Returns domain.ENOTFOUND if the photo doesn't exist or doesn't
	// belong to the user, domain.EINVALID if it was never submitted.
	Reopen(ctx context.Context, photoID uuid.UUID, userID string) (lifecycle.Snapshot, error)

	// Snapshot returns the current state of an active session.
	Snapshot(photoID uuid.UUID, userID string) (lifecycle.Snapshot, error)

	// Get returns a photo record.
	// Returns domain.ENOTFOUND if it doesn't exist or doesn't belong to
	// the user.
	Get(ctx context.Context, photoID uuid.UUID, userID string) (*domain.PhotoRecord, error)

	// List returns a user's photo records, newest first.
	List(ctx context.Context, userID string) ([]domain.PhotoRecord, error)

	// Retry restarts a failed analysis on an active session.
	Retry(photoID uuid.UUID, userID string) error

	// TogglePanel, EnterZoom and ExitZoom forward view gestures to an
	// active session and return the resulting view state.
	TogglePanel(photoID uuid.UUID, userID string) (domain.ViewState, error)
	EnterZoom(photoID uuid.UUID, userID string) (domain.ViewState, error)
	ExitZoom(photoID uuid.UUID, userID string) (domain.ViewState, error)

	// Delete removes a photo: its session (if active), stored objects,
	// and database record.
	Delete(ctx context.Context, photoID uuid.UUID, userID string) error

	// CloseSession dismisses an active session without deleting the
	// photo. Pending discards are cancelled along with it.
	CloseSession(photoID uuid.UUID, userID string) error

	// ThumbnailURL and OriginalURL return access URLs for stored objects.
	ThumbnailURL(ctx context.Context, photoID uuid.UUID, userID string) (string, error)
	OriginalURL(ctx context.Context, photoID uuid.UUID, userID string) (string, error)

	// Shutdown closes every active session.
	Shutdown()
}

type photoService struct {
	photos     store.PhotoStore
	objects    storage.Storage
	thumbnails ThumbnailProcessor
	registry   *lifecycle.Registry
	logger     *slog.Logger
}

// NewPhotoService creates a PhotoService. It owns the lifecycle registry:
// sessions it opens persist through the given photo store and delete their
// stored objects when the cleanup policy discards them.
func NewPhotoService(
	cfg lifecycle.Config,
	prov provider.Provider,
	photos store.PhotoStore,
	objects storage.Storage,
	thumbnails ThumbnailProcessor,
	clock lifecycle.Clock,
	logger *slog.Logger,
) PhotoService {
	rs := &recordStore{photos: photos, objects: objects, logger: logger}
	return &photoService{
		photos:     photos,
		objects:    objects,
		thumbnails: thumbnails,
		registry:   lifecycle.NewRegistry(cfg, prov, rs, clock, logger),
		logger:     logger,
	}
}

// Capture validates and stores an uploaded photo and opens its session.
func (s *photoService) Capture(ctx context.Context, file multipart.File, header *multipart.FileHeader, userID, slot string) (lifecycle.Snapshot, error) {
	const op = "photo.capture"

	if userID == "" {
		return lifecycle.Snapshot{}, domain.Invalid(op, "User id is required")
	}
	if err := domain.ValidateImageSize(header.Size); err != nil {
		return lifecycle.Snapshot{}, err
	}

	// Sniff the content type from the first 512 bytes rather than
	// trusting the client header.
	headerBytes := make([]byte, 512)
	n, err := file.Read(headerBytes)
	if err != nil && err != io.EOF {
		return lifecycle.Snapshot{}, domain.Internal(err, op, "Failed to read file header")
	}
	contentType := http.DetectContentType(headerBytes[:n])
	if !domain.IsValidImageContentType(contentType) {
		return lifecycle.Snapshot{}, domain.Invalid(op, "Unsupported image type: "+contentType)
	}

	if seeker, ok := file.(io.Seeker); ok {
		if _, err := seeker.Seek(0, 0); err != nil {
			return lifecycle.Snapshot{}, domain.Internal(err, op, "Failed to reset file pointer")
		}
	}

	fileData, err := io.ReadAll(file)
	if err != nil {
		return lifecycle.Snapshot{}, domain.Internal(err, op, "Failed to read file data")
	}

	thumbnailBytes, width, height, err := s.thumbnails.GenerateThumbnail(
		bytes.NewReader(fileData),
		domain.ThumbnailMaxWidth,
		domain.ThumbnailMaxHeight,
	)
	if err != nil {
		return lifecycle.Snapshot{}, domain.Internal(err, op, "Failed to generate thumbnail")
	}

	photoID := uuid.New()
	storageKey := storage.PhotoKey(photoID, contentType)
	thumbnailKey := storage.ThumbnailKey(photoID)

	if err := s.objects.Put(ctx, storageKey, bytes.NewReader(fileData), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxImageSize,
	}); err != nil {
		return lifecycle.Snapshot{}, domain.Internal(err, op, "Failed to store photo")
	}
	if err := s.objects.Put(ctx, thumbnailKey, bytes.NewReader(thumbnailBytes), storage.PutOptions{
		ContentType: "image/jpeg",
	}); err != nil {
		_ = s.objects.Delete(ctx, storageKey)
		return lifecycle.Snapshot{}, domain.Internal(err, op, "Failed to store thumbnail")
	}

	now := time.Now()
	rec := &domain.PhotoRecord{
		ID:           photoID,
		UserID:       userID,
		SourceURI:    header.Filename,
		StorageKey:   storageKey,
		ThumbnailKey: thumbnailKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.photos.Create(ctx, rec); err != nil {
		_ = s.objects.Delete(ctx, storageKey)
		_ = s.objects.Delete(ctx, thumbnailKey)
		return lifecycle.Snapshot{}, err
	}

	sess, err := s.registry.Open(lifecycle.Params{
		Record:      rec,
		Mode:        lifecycle.ModeCapture,
		ImageData:   fileData,
		ContentType: contentType,
		Slot:        slot,
	})
	if err != nil {
		_ = s.objects.Delete(ctx, storageKey)
		_ = s.objects.Delete(ctx, thumbnailKey)
		_ = s.photos.Delete(ctx, photoID)
		return lifecycle.Snapshot{}, err
	}

	s.logger.Info("photo captured",
		"photo_id", photoID,
		"user_id", userID,
		"size", header.Size,
		"dimensions", [2]int{width, height},
	)

	return sess.Snapshot(), nil
}

// Reopen opens a polling session for a saved photo.
func (s *photoService) Reopen(ctx context.Context, photoID uuid.UUID, userID string) (lifecycle.Snapshot, error) {
	const op = "photo.reopen"

	rec, err := s.photos.Get(ctx, photoID)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	if rec.UserID != userID {
		return lifecycle.Snapshot{}, domain.NotFound(op, "photo", photoID.String())
	}
	if rec.ProviderImageID == "" {
		return lifecycle.Snapshot{}, domain.Invalid(op, "Photo was never submitted for analysis")
	}

	sess, err := s.registry.Open(lifecycle.Params{
		Record: rec,
		Mode:   lifecycle.ModeResume,
	})
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Snapshot returns the current state of an active session.
func (s *photoService) Snapshot(photoID uuid.UUID, userID string) (lifecycle.Snapshot, error) {
	sess, err := s.sessionFor("photo.snapshot", photoID, userID)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Get returns a photo record with an ownership check.
func (s *photoService) Get(ctx context.Context, photoID uuid.UUID, userID string) (*domain.PhotoRecord, error) {
	rec, err := s.photos.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, domain.NotFound("photo.get", "photo", photoID.String())
	}
	return rec, nil
}

// List returns a user's photo records, newest first.
func (s *photoService) List(ctx context.Context, userID string) ([]domain.PhotoRecord, error) {
	return s.photos.List(ctx, userID)
}

// Retry restarts a failed analysis on an active session.
func (s *photoService) Retry(photoID uuid.UUID, userID string) error {
	sess, err := s.sessionFor("photo.retry", photoID, userID)
	if err != nil {
		return err
	}
	return sess.Retry()
}

func (s *photoService) TogglePanel(photoID uuid.UUID, userID string) (domain.ViewState, error) {
	sess, err := s.sessionFor("photo.toggle_panel", photoID, userID)
	if err != nil {
		return domain.ViewStateDefault, err
	}
	return sess.TogglePanel(), nil
}

func (s *photoService) EnterZoom(photoID uuid.UUID, userID string) (domain.ViewState, error) {
	sess, err := s.sessionFor("photo.enter_zoom", photoID, userID)
	if err != nil {
		return domain.ViewStateDefault, err
	}
	return sess.EnterZoom(), nil
}

func (s *photoService) ExitZoom(photoID uuid.UUID, userID string) (domain.ViewState, error) {
	sess, err := s.sessionFor("photo.exit_zoom", photoID, userID)
	if err != nil {
		return domain.ViewStateDefault, err
	}
	return sess.ExitZoom(), nil
}

// Delete removes a photo's session, stored objects and record.
func (s *photoService) Delete(ctx context.Context, photoID uuid.UUID, userID string) error {
	const op = "photo.delete"

	if sess, ok := s.registry.Get(photoID); ok {
		if sess.Snapshot().Record.UserID != userID {
			return domain.NotFound(op, "photo", photoID.String())
		}
		return sess.Delete(ctx)
	}

	rec, err := s.photos.Get(ctx, photoID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return domain.NotFound(op, "photo", photoID.String())
	}

	s.deleteObjects(ctx, rec)
	return s.photos.Delete(ctx, photoID)
}

// CloseSession dismisses a session without deleting the photo.
func (s *photoService) CloseSession(photoID uuid.UUID, userID string) error {
	if _, err := s.sessionFor("photo.close", photoID, userID); err != nil {
		return err
	}
	s.registry.Close(photoID)
	return nil
}

// ThumbnailURL returns an access URL for a photo's thumbnail.
func (s *photoService) ThumbnailURL(ctx context.Context, photoID uuid.UUID, userID string) (string, error) {
	return s.objectURL(ctx, "photo.thumbnail_url", photoID, userID, func(rec *domain.PhotoRecord) string {
		return rec.ThumbnailKey
	})
}

// OriginalURL returns an access URL for a photo's original image.
func (s *photoService) OriginalURL(ctx context.Context, photoID uuid.UUID, userID string) (string, error) {
	return s.objectURL(ctx, "photo.original_url", photoID, userID, func(rec *domain.PhotoRecord) string {
		return rec.StorageKey
	})
}

// Shutdown closes every active session.
func (s *photoService) Shutdown() {
	s.registry.CloseAll()
}

func (s *photoService) sessionFor(op string, photoID uuid.UUID, userID string) (*lifecycle.Session, error) {
	sess, ok := s.registry.Get(photoID)
	if !ok {
		return nil, domain.NotFound(op, "photo session", photoID.String())
	}
	if sess.Snapshot().Record.UserID != userID {
		return nil, domain.NotFound(op, "photo session", photoID.String())
	}
	return sess, nil
}

func (s *photoService) objectURL(ctx context.Context, op string, photoID uuid.UUID, userID string, key func(*domain.PhotoRecord) string) (string, error) {
	rec, err := s.photos.Get(ctx, photoID)
	if err != nil {
		return "", err
	}
	if rec.UserID != userID {
		return "", domain.NotFound(op, "photo", photoID.String())
	}
	k := key(rec)
	if k == "" {
		return "", domain.NotFound(op, "photo object", photoID.String())
	}

	url, err := s.objects.URL(ctx, k, 15*time.Minute)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to generate object URL")
	}
	return url, nil
}

// deleteObjects removes a record's stored objects. Failures are logged and
// otherwise ignored so record deletion still proceeds.
func (s *photoService) deleteObjects(ctx context.Context, rec *domain.PhotoRecord) {
	if rec.StorageKey != "" {
		if err := s.objects.Delete(ctx, rec.StorageKey); err != nil {
			s.logger.Error("failed to delete photo object", "error", err, "key", rec.StorageKey)
		}
	}
	if rec.ThumbnailKey != "" {
		if err := s.objects.Delete(ctx, rec.ThumbnailKey); err != nil {
			s.logger.Error("failed to delete thumbnail object", "error", err, "key", rec.ThumbnailKey)
		}
	}
}

// recordStore adapts the photo store and object storage to the persistence
// surface lifecycle sessions use. Session deletes drop stored objects along
// with the record.
type recordStore struct {
	photos  store.PhotoStore
	objects storage.Storage
	logger  *slog.Logger
}

func (rs *recordStore) SaveResult(ctx context.Context, rec *domain.PhotoRecord) error {
	return rs.photos.SaveResult(ctx, rec)
}

func (rs *recordStore) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := rs.photos.Get(ctx, id)
	if err == nil {
		if rec.StorageKey != "" {
			if err := rs.objects.Delete(ctx, rec.StorageKey); err != nil {
				rs.logger.Error("failed to delete photo object", "error", err, "key", rec.StorageKey)
			}
		}
		if rec.ThumbnailKey != "" {
			if err := rs.objects.Delete(ctx, rec.ThumbnailKey); err != nil {
				rs.logger.Error("failed to delete thumbnail object", "error", err, "key", rec.ThumbnailKey)
			}
		}
	} else if domain.ErrorCode(err) != domain.ENOTFOUND {
		return err
	}
	return rs.photos.Delete(ctx, id)
}
