// Package domain contains core business types and interfaces.
//
// This file defines the PhotoRecord domain type: the authoritative
// representation of one captured skin photo and its evolving analysis
// result, from submission through polling to resolution.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Provider-Reported Analysis State
// =============================================================================

// AnalysisState is the coarse completion state reported by the analysis
// provider. It is kept independent from the screen-facing UIState so that
// the provider's own view of the photo survives UI transitions.
type AnalysisState string

const (
	// AnalysisStatePending indicates the photo is queued at the provider.
	AnalysisStatePending AnalysisState = "pending"

	// AnalysisStateAnalyzing indicates provider analysis is in progress.
	AnalysisStateAnalyzing AnalysisState = "analyzing"

	// AnalysisStateCompleted indicates the provider finished successfully.
	AnalysisStateCompleted AnalysisState = "completed"

	// AnalysisStateError indicates the provider reported a hard failure.
	AnalysisStateError AnalysisState = "error"
)

// String returns the string representation of the state.
func (s AnalysisState) String() string {
	return string(s)
}

// IsValid returns true if the state is a recognized value.
func (s AnalysisState) IsValid() bool {
	switch s {
	case AnalysisStatePending, AnalysisStateAnalyzing,
		AnalysisStateCompleted, AnalysisStateError:
		return true
	}
	return false
}

// Active returns true while the provider still considers the photo in
// flight. The analysis deadline must not fire while the state is active.
func (s AnalysisState) Active() bool {
	return s == AnalysisStatePending || s == AnalysisStateAnalyzing
}

// Status pairs the provider-reported state with its human-readable message.
type Status struct {
	State   AnalysisState
	Message string
}

// =============================================================================
// Photo Constants
// =============================================================================

// SupportedImageTypes maps MIME types to their human-readable names.
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
}

const (
	// MaxImageSize is the maximum allowed size for captured photos (20MB).
	MaxImageSize = 20 * 1024 * 1024

	// ThumbnailMaxWidth is the maximum width for generated thumbnails.
	ThumbnailMaxWidth = 200

	// ThumbnailMaxHeight is the maximum height for generated thumbnails.
	ThumbnailMaxHeight = 200

	// ThumbnailJPEGQuality is the JPEG quality for thumbnail generation (0-100).
	ThumbnailJPEGQuality = 85
)

// Score range produced by the analysis provider.
const (
	MinScore = 0
	MaxScore = 100
)

// =============================================================================
// Metrics
// =============================================================================

// ImageQuality holds the nested quality sub-scores attached to a metric set.
// Overall drives the low-quality policy; Focus and Lighting are display-only.
type ImageQuality struct {
	Focus    float64 `json:"focus"`
	Lighting float64 `json:"lighting"`
	Overall  float64 `json:"overall"`
}

// Metrics is the scored analysis result for one photo: a mapping of named
// 0-100 scores plus the image-quality sub-score set. Absent until the
// provider resolves, and immutable once set non-empty within a session.
type Metrics struct {
	Scores  map[string]float64 `json:"scores"`
	Quality *ImageQuality      `json:"quality,omitempty"`
}

// Empty returns true if the metric set carries no scores.
func (m *Metrics) Empty() bool {
	return m == nil || len(m.Scores) == 0
}

// QualityOverall returns the overall image-quality sub-score and whether
// the provider reported one.
func (m *Metrics) QualityOverall() (float64, bool) {
	if m == nil || m.Quality == nil {
		return 0, false
	}
	return m.Quality.Overall, true
}

// MaskArtifacts holds the optional secondary artifacts fetched after metrics
// resolve. Both sets are best-effort; either may be absent.
type MaskArtifacts struct {
	Results map[string]json.RawMessage `json:"results,omitempty"`
	Images  map[string]string          `json:"images,omitempty"`
}

// Names returns the sorted-insensitive list of mask names present in the
// image set, for indexing alongside the raw artifacts.
func (a *MaskArtifacts) Names() []string {
	if a == nil || len(a.Images) == 0 {
		return nil
	}
	names := make([]string, 0, len(a.Images))
	for name := range a.Images {
		names = append(names, name)
	}
	return names
}

// =============================================================================
// PhotoRecord Domain Type
// =============================================================================

// PhotoRecord represents a captured skin photo tracked through submission,
// polling, and resolution. It is created the instant a session for the photo
// opens and mutated only by that session's polling and deadline checks.
type PhotoRecord struct {
	ID        uuid.UUID // Local correlation id, stable per session
	UserID    string    // Owner identifier forwarded to the provider
	SourceURI string    // Local or remote URI for immediate display
	CreatedAt time.Time // Capture or submission timestamp
	UpdatedAt time.Time // Last mutation

	// Object storage keys for the captured bytes
	StorageKey   string
	ThumbnailKey string

	// Provider-assigned identity, absent until submission succeeds
	ProviderBatchID string
	ProviderImageID string
	RemoteURL       string // Provider-hosted image URL

	Metrics  *Metrics       // Absent until analysis completes
	Masks    *MaskArtifacts // Optional secondary artifacts
	ThreadID string         // Lazy conversational thread, once metrics exist

	Status Status // Provider-reported state, independent of UIState
}

// HasRemote returns true once the provider has acknowledged the upload and
// assigned a hosted URL. The upload deadline is cleared at that point.
func (p *PhotoRecord) HasRemote() bool {
	return p.RemoteURL != ""
}

// HasMetrics returns true if a non-empty metric set has been attached.
func (p *PhotoRecord) HasMetrics() bool {
	return !p.Metrics.Empty()
}

// HasThread returns true if a conversational thread exists for the photo.
func (p *PhotoRecord) HasThread() bool {
	return p.ThreadID != ""
}

// Age returns the elapsed time since the record was created.
func (p *PhotoRecord) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// Clone returns a deep copy safe to hand to observers while the session
// keeps mutating the original.
func (p *PhotoRecord) Clone() PhotoRecord {
	out := *p
	if p.Metrics != nil {
		m := Metrics{}
		if p.Metrics.Scores != nil {
			m.Scores = make(map[string]float64, len(p.Metrics.Scores))
			for k, v := range p.Metrics.Scores {
				m.Scores[k] = v
			}
		}
		if p.Metrics.Quality != nil {
			q := *p.Metrics.Quality
			m.Quality = &q
		}
		out.Metrics = &m
	}
	if p.Masks != nil {
		a := MaskArtifacts{}
		if p.Masks.Results != nil {
			a.Results = make(map[string]json.RawMessage, len(p.Masks.Results))
			for k, v := range p.Masks.Results {
				a.Results[k] = v
			}
		}
		if p.Masks.Images != nil {
			a.Images = make(map[string]string, len(p.Masks.Images))
			for k, v := range p.Masks.Images {
				a.Images[k] = v
			}
		}
		out.Masks = &a
	}
	return out
}

// =============================================================================
// Validation Helpers
// =============================================================================

// IsValidImageContentType checks if the content type is supported.
func IsValidImageContentType(contentType string) bool {
	_, ok := SupportedImageTypes[contentType]
	return ok
}

// ValidateImageSize checks if the file size is within limits.
func ValidateImageSize(size int64) error {
	if size > MaxImageSize {
		return Errorf(ETOOLARGE, "photo.validate", "Photo size %d bytes exceeds maximum of %d bytes (%.1fMB)", size, MaxImageSize, float64(MaxImageSize)/(1024*1024))
	}
	if size == 0 {
		return Invalid("photo.validate", "Photo file is empty")
	}
	return nil
}
