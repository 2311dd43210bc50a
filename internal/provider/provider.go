package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/google/uuid"
)

// Provider defines the interface for the external skin-analysis service.
//
// Submission and result polling are the primary operations. Mask results,
// mask images, and thread creation are side channels: callers must treat
// their failures as non-fatal.
type Provider interface {
	// Submit uploads a captured photo and returns the provider-assigned
	// identifiers required to poll for results.
	Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error)

	// GetResults queries the analysis outcome for a submitted photo.
	// An empty result list means the analysis is not ready yet. A typed
	// ErrNotReady is returned for transient 4xx responses; any other
	// error is fatal to the polling loop.
	GetResults(ctx context.Context, imageID string) (*ResultsPage, error)

	// GetMaskResults fetches the per-region mask scores (best-effort).
	GetMaskResults(ctx context.Context, imageID string) (map[string]json.RawMessage, error)

	// GetMaskImages fetches the rendered mask overlay URLs (best-effort).
	GetMaskImages(ctx context.Context, imageID string) (map[string]string, error)

	// CreateThread opens a conversational thread for a resolved photo.
	CreateThread(ctx context.Context, photoID uuid.UUID) (string, error)
}

// SubmitParams contains parameters for photo submission
type SubmitParams struct {
	ImageData   []byte    // Raw image bytes
	ContentType string    // MIME type (e.g., "image/jpeg")
	Slot        string    // Capture slot (e.g., "front")
	PhotoID     uuid.UUID // Local photo ID for correlation
	UserID      string    // User ID forwarded to the provider
}

// SubmitResult contains the provider-assigned identity of a submission
type SubmitResult struct {
	BatchID  string // Provider batch identifier
	ImageID  string // Provider image identifier, required to poll
	ImageURL string // Provider-hosted image URL, if already assigned
}

// ResultsPage is one polling response: the scored results so far plus the
// provider's own coarse state. An empty result list means "not ready".
type ResultsPage struct {
	Results []Result
	Status  domain.Status
}

// Ready returns true once the page carries at least one scored result.
func (p *ResultsPage) Ready() bool {
	return p != nil && len(p.Results) > 0
}

// Result is a single named score in a results page. The image-quality row
// additionally carries the nested sub-score set.
type Result struct {
	Name    string
	Value   float64
	Quality *domain.ImageQuality // Present on the image-quality row only
}

// MetricsFromResults transforms a provider result list into the domain
// metric set. Rows carrying a quality payload populate the nested
// sub-scores; every row contributes its named score.
func MetricsFromResults(results []Result) *domain.Metrics {
	if len(results) == 0 {
		return nil
	}
	m := &domain.Metrics{
		Scores: make(map[string]float64, len(results)),
	}
	for _, r := range results {
		m.Scores[r.Name] = r.Value
		if r.Quality != nil {
			q := *r.Quality
			m.Quality = &q
		}
	}
	return m
}

// Config contains common configuration for provider clients
type Config struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for provider operations
var (
	// ErrNotReady indicates the analysis has not produced results yet
	ErrNotReady = errors.New("analysis results not ready")

	// ErrRateLimit indicates the API rate limit has been exceeded
	ErrRateLimit = errors.New("provider rate limit exceeded")

	// ErrInvalidImage indicates the image format or content is invalid
	ErrInvalidImage = errors.New("invalid image format or content")

	// ErrTimeout indicates the request timed out
	ErrTimeout = errors.New("provider request timed out")

	// ErrUnavailable indicates the service is temporarily unavailable
	ErrUnavailable = errors.New("provider temporarily unavailable")

	// ErrUnauthorized indicates invalid API credentials
	ErrUnauthorized = errors.New("provider authentication failed")
)

// IsNotReady returns true if the error is the transient not-ready condition.
// Not-ready is never surfaced to the user; the poll loop retries on it.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with context about the provider operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("provider %s: %w", operation, err)
}
