// Package httpapi implements the Provider interface against the vendor's
// REST API. Submission uploads the photo as base64 JSON; polling reads the
// scored results for a provider image id.
package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the base URL for the analysis API
	DefaultBaseURL = "https://api.skinanalysis.io/v1"

	// MaxImageSize is the maximum image size in bytes (20MB)
	MaxImageSize = 20 * 1024 * 1024
)

// Config contains configuration for the HTTP API client
type Config struct {
	BaseURL        string
	APIKey         string
	ProviderConfig provider.Config
}

// Client implements the Provider interface using the vendor's REST API
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new HTTP API client
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("provider API key is required")
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// =============================================================================
// Wire Types
// =============================================================================

type submitRequest struct {
	ImageData   string `json:"image_data"` // base64
	ContentType string `json:"content_type"`
	Slot        string `json:"slot,omitempty"`
	PhotoID     string `json:"photo_id"`
	UserID      string `json:"user_id"`
}

type submitResponse struct {
	BatchID  string `json:"batch_id"`
	ImageID  string `json:"image_id"`
	ImageURL string `json:"image_url"`
}

type resultsResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Results []resultItem `json:"results"`
}

type resultItem struct {
	TechName string       `json:"tech_name"`
	Value    float64      `json:"value"`
	Quality  *qualityItem `json:"image_quality,omitempty"`
}

type qualityItem struct {
	Focus    float64 `json:"focus"`
	Lighting float64 `json:"lighting"`
	Overall  float64 `json:"overall"`
}

type maskResultsResponse struct {
	Masks map[string]json.RawMessage `json:"masks"`
}

type maskImagesResponse struct {
	Images map[string]string `json:"images"`
}

type threadRequest struct {
	PhotoID string `json:"photo_id"`
}

type threadResponse struct {
	ThreadID string `json:"thread_id"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// Provider Implementation
// =============================================================================

// Submit uploads a captured photo for analysis
func (c *Client) Submit(ctx context.Context, params provider.SubmitParams) (*provider.SubmitResult, error) {
	if err := c.validateSubmitParams(params); err != nil {
		return nil, provider.WrapError("submit", err)
	}

	body, err := json.Marshal(submitRequest{
		ImageData:   base64.StdEncoding.EncodeToString(params.ImageData),
		ContentType: params.ContentType,
		Slot:        params.Slot,
		PhotoID:     params.PhotoID.String(),
		UserID:      params.UserID,
	})
	if err != nil {
		return nil, provider.WrapError("submit", fmt.Errorf("marshal request: %w", err))
	}

	respBody, err := c.doWithRetry(ctx, http.MethodPost, c.config.BaseURL+"/photos", body)
	if err != nil {
		return nil, provider.WrapError("submit", err)
	}

	var resp submitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, provider.WrapError("submit", fmt.Errorf("unmarshal response: %w", err))
	}
	if resp.ImageID == "" {
		return nil, provider.WrapError("submit", fmt.Errorf("response missing image id"))
	}

	return &provider.SubmitResult{
		BatchID:  resp.BatchID,
		ImageID:  resp.ImageID,
		ImageURL: resp.ImageURL,
	}, nil
}

// GetResults queries the analysis outcome for a provider image id.
// Transient 4xx responses surface as the typed not-ready condition; the
// poll loop owns the retry cadence, so no internal retry happens here.
func (c *Client) GetResults(ctx context.Context, imageID string) (*provider.ResultsPage, error) {
	url := fmt.Sprintf("%s/photos/%s/results", c.config.BaseURL, imageID)
	respBody, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, provider.WrapError("get results", err)
	}

	var resp resultsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, provider.WrapError("get results", fmt.Errorf("unmarshal response: %w", err))
	}

	page := &provider.ResultsPage{
		Results: make([]provider.Result, 0, len(resp.Results)),
		Status:  statusFromWire(resp.Status, resp.Message),
	}
	for _, item := range resp.Results {
		r := provider.Result{
			Name:  item.TechName,
			Value: item.Value,
		}
		if item.Quality != nil {
			r.Quality = &domain.ImageQuality{
				Focus:    item.Quality.Focus,
				Lighting: item.Quality.Lighting,
				Overall:  item.Quality.Overall,
			}
		}
		page.Results = append(page.Results, r)
	}
	return page, nil
}

// GetMaskResults fetches the per-region mask scores
func (c *Client) GetMaskResults(ctx context.Context, imageID string) (map[string]json.RawMessage, error) {
	url := fmt.Sprintf("%s/photos/%s/masks", c.config.BaseURL, imageID)
	respBody, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, provider.WrapError("get mask results", err)
	}

	var resp maskResultsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, provider.WrapError("get mask results", fmt.Errorf("unmarshal response: %w", err))
	}
	return resp.Masks, nil
}

// GetMaskImages fetches the rendered mask overlay URLs
func (c *Client) GetMaskImages(ctx context.Context, imageID string) (map[string]string, error) {
	url := fmt.Sprintf("%s/photos/%s/masks/images", c.config.BaseURL, imageID)
	respBody, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, provider.WrapError("get mask images", err)
	}

	var resp maskImagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, provider.WrapError("get mask images", fmt.Errorf("unmarshal response: %w", err))
	}
	return resp.Images, nil
}

// CreateThread opens a conversational thread for a resolved photo
func (c *Client) CreateThread(ctx context.Context, photoID uuid.UUID) (string, error) {
	body, err := json.Marshal(threadRequest{PhotoID: photoID.String()})
	if err != nil {
		return "", provider.WrapError("create thread", fmt.Errorf("marshal request: %w", err))
	}

	respBody, err := c.doWithRetry(ctx, http.MethodPost, c.config.BaseURL+"/threads", body)
	if err != nil {
		return "", provider.WrapError("create thread", err)
	}

	var resp threadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", provider.WrapError("create thread", fmt.Errorf("unmarshal response: %w", err))
	}
	if resp.ThreadID == "" {
		return "", provider.WrapError("create thread", fmt.Errorf("response missing thread id"))
	}
	return resp.ThreadID, nil
}

// =============================================================================
// Request Execution
// =============================================================================

// validateSubmitParams validates the submission parameters
func (c *Client) validateSubmitParams(params provider.SubmitParams) error {
	if len(params.ImageData) == 0 {
		return provider.ErrInvalidImage
	}
	if len(params.ImageData) > MaxImageSize {
		return fmt.Errorf("%w: image size %d exceeds maximum %d", provider.ErrInvalidImage, len(params.ImageData), MaxImageSize)
	}
	if params.ContentType == "" {
		return fmt.Errorf("%w: content type is required", provider.ErrInvalidImage)
	}
	return nil
}

// doWithRetry executes a request with exponential backoff on retryable errors.
// Used for submission and thread creation; polling requests are never
// retried internally.
func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.config.ProviderConfig.MaxRetries; attempt++ {
		respBody, err := c.do(ctx, method, url, body)
		if err == nil {
			return respBody, nil
		}

		lastErr = err

		if !provider.IsRetryable(err) {
			return nil, err
		}
		if attempt >= c.config.ProviderConfig.MaxRetries {
			break
		}

		// Exponential backoff: base * 2^(attempt-1)
		delay := c.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		c.logger.Info("Retrying provider request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// do executes a single HTTP request and maps failure status codes
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, provider.ErrUnavailable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.mapHTTPError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// mapHTTPError maps HTTP status codes to provider errors.
// Transient 4xx codes during polling become the typed not-ready condition.
func (c *Client) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusNotFound, http.StatusConflict, http.StatusTooEarly:
		return provider.ErrNotReady
	case http.StatusUnauthorized, http.StatusForbidden:
		return provider.ErrUnauthorized
	case http.StatusTooManyRequests:
		return provider.ErrRateLimit
	case http.StatusRequestTimeout:
		return provider.ErrTimeout
	case http.StatusBadRequest:
		if errResp.Error.Message != "" {
			return fmt.Errorf("%w: %s", provider.ErrInvalidImage, errResp.Error.Message)
		}
		return provider.ErrInvalidImage
	}
	if statusCode >= 500 {
		return provider.ErrUnavailable
	}
	if errResp.Error.Message != "" {
		return fmt.Errorf("provider error (status %d): %s", statusCode, errResp.Error.Message)
	}
	return fmt.Errorf("provider error (status %d)", statusCode)
}

// statusFromWire maps the provider's status string onto the domain state
func statusFromWire(state, message string) domain.Status {
	s := domain.Status{Message: message}
	switch state {
	case "pending":
		s.State = domain.AnalysisStatePending
	case "analyzing", "processing":
		s.State = domain.AnalysisStateAnalyzing
	case "completed", "done":
		s.State = domain.AnalysisStateCompleted
	case "error", "failed":
		s.State = domain.AnalysisStateError
	}
	return s
}
