package lifecycle

import (
	"fmt"
	"time"
)

// Config holds the timing and threshold parameters of a photo session.
type Config struct {
	// PollInterval is the fixed delay between result queries while the
	// provider reports "not ready".
	// Default: 3 seconds
	PollInterval time.Duration

	// UploadDeadline is the single-shot deadline for the provider to
	// acknowledge the upload with a hosted URL. If it fires first, the
	// session resolves to no_results.
	// Default: 15 seconds
	UploadDeadline time.Duration

	// AnalysisDeadline bounds how long a session waits for metrics. It is
	// an elapsed-time check evaluated on every incoming update, not an
	// independent timer.
	// Default: 40 seconds
	AnalysisDeadline time.Duration

	// SettleDelay is the short pause applied before the transition to
	// complete, so metrics arriving together with other fast updates do
	// not flicker the consumer UI.
	// Default: 1 second
	SettleDelay time.Duration

	// CleanupDelay defers the silent delete of a failed record so the
	// terminal state renders first.
	// Default: 800 milliseconds
	CleanupDelay time.Duration

	// QualityMinThreshold is the overall image-quality score below which
	// the session resolves to low_quality and the record is discarded.
	// Default: 10
	QualityMinThreshold float64

	// QualityWarnThreshold is the overall image-quality score below which
	// a non-blocking low-quality indicator is flagged for the consumer UI.
	// Default: 50
	QualityWarnThreshold float64
}

// DefaultConfig returns a Config with the standard timing values.
func DefaultConfig() Config {
	return Config{
		PollInterval:         3 * time.Second,
		UploadDeadline:       15 * time.Second,
		AnalysisDeadline:     40 * time.Second,
		SettleDelay:          1 * time.Second,
		CleanupDelay:         800 * time.Millisecond,
		QualityMinThreshold:  10,
		QualityWarnThreshold: 50,
	}
}

// Validate checks if the configuration is valid.
// Returns an error if any values are invalid.
func (c Config) Validate() error {
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll interval must be at least 100ms, got %v", c.PollInterval)
	}
	if c.UploadDeadline < c.PollInterval {
		return fmt.Errorf("upload deadline must be at least the poll interval, got %v", c.UploadDeadline)
	}
	if c.AnalysisDeadline <= c.UploadDeadline {
		return fmt.Errorf("analysis deadline must exceed the upload deadline, got %v", c.AnalysisDeadline)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative, got %v", c.SettleDelay)
	}
	if c.CleanupDelay < 0 {
		return fmt.Errorf("cleanup delay must not be negative, got %v", c.CleanupDelay)
	}
	if c.QualityMinThreshold < 0 || c.QualityMinThreshold > 100 {
		return fmt.Errorf("quality minimum threshold must be within 0-100, got %v", c.QualityMinThreshold)
	}
	if c.QualityWarnThreshold < c.QualityMinThreshold || c.QualityWarnThreshold > 100 {
		return fmt.Errorf("quality warning threshold must be within %v-100, got %v", c.QualityMinThreshold, c.QualityWarnThreshold)
	}
	return nil
}
