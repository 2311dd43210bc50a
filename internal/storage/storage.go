// Package storage provides object storage for captured skin photos.
//
// A Storage implementation holds the original photo bytes and the derived
// thumbnail for each photo record. Two implementations are provided:
// LocalStorage for development and R2Storage (Cloudflare R2, S3-compatible)
// for production.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for object storage operations.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key is taken and overwrite is disabled.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close
	// the returned reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object. For public objects this
	// is a permanent URL; for private objects a presigned URL valid for
	// the specified duration.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it is detected from the key or content.
	ContentType string

	// MaxSize is the maximum allowed size in bytes. Writes beyond the
	// limit fail with ErrTooLarge. Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object publicly readable (R2 ACL; informational
	// for local storage).
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string // empty when the backend doesn't provide one
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the public URL for the bucket (custom domain).
	// If empty, presigned URLs are used for all access.
	PublicURL string

	// Region is required by the AWS SDK; R2 accepts "auto".
	Region string
}

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// PhotoKey generates the storage key for an original captured photo.
// Format: photos/{photoID}/original.{ext}
func PhotoKey(photoID uuid.UUID, contentType string) string {
	return fmt.Sprintf("photos/%s/original%s", photoID, ExtensionForContentType(contentType))
}

// ThumbnailKey generates the storage key for a photo's thumbnail.
// Thumbnails are always encoded as JPEG.
// Format: photos/{photoID}/thumbnail.jpg
func ThumbnailKey(photoID uuid.UUID) string {
	return fmt.Sprintf("photos/%s/thumbnail.jpg", photoID)
}

// PhotoPrefix returns the key prefix shared by all objects belonging to a
// photo. Useful for deleting everything a record owns.
func PhotoPrefix(photoID uuid.UUID) string {
	return fmt.Sprintf("photos/%s/", photoID)
}
