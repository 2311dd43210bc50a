package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		ProviderConfig: provider.Config{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: 5 * time.Second,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestSubmit(t *testing.T) {
	photoID := uuid.New()
	image := []byte("raw image bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/photos", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req.ImageData)
		require.NoError(t, err)
		assert.Equal(t, image, decoded)
		assert.Equal(t, "image/jpeg", req.ContentType)
		assert.Equal(t, "front", req.Slot)
		assert.Equal(t, photoID.String(), req.PhotoID)
		assert.Equal(t, "user-1", req.UserID)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(submitResponse{
			BatchID:  "batch-9",
			ImageID:  "img-42",
			ImageURL: "https://cdn.example.com/img-42.jpg",
		})
	}))
	defer srv.Close()

	result, err := testClient(t, srv.URL).Submit(context.Background(), provider.SubmitParams{
		ImageData:   image,
		ContentType: "image/jpeg",
		Slot:        "front",
		PhotoID:     photoID,
		UserID:      "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "batch-9", result.BatchID)
	assert.Equal(t, "img-42", result.ImageID)
	assert.Equal(t, "https://cdn.example.com/img-42.jpg", result.ImageURL)
}

func TestSubmitValidation(t *testing.T) {
	c := testClient(t, "http://unused.invalid")

	_, err := c.Submit(context.Background(), provider.SubmitParams{
		ContentType: "image/jpeg",
	})
	assert.ErrorIs(t, err, provider.ErrInvalidImage)

	_, err = c.Submit(context.Background(), provider.SubmitParams{
		ImageData: []byte("data"),
	})
	assert.ErrorIs(t, err, provider.ErrInvalidImage)
}

func TestSubmitRetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(submitResponse{ImageID: "img-1"})
	}))
	defer srv.Close()

	result, err := testClient(t, srv.URL).Submit(context.Background(), provider.SubmitParams{
		ImageData:   []byte("data"),
		ContentType: "image/jpeg",
		PhotoID:     uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "img-1", result.ImageID)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSubmitDoesNotRetryFatalErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "invalid_image", "message": "face not detected"},
		})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Submit(context.Background(), provider.SubmitParams{
		ImageData:   []byte("data"),
		ContentType: "image/jpeg",
		PhotoID:     uuid.New(),
	})
	require.ErrorIs(t, err, provider.ErrInvalidImage)
	assert.Contains(t, err.Error(), "face not detected")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSubmitExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Submit(context.Background(), provider.SubmitParams{
		ImageData:   []byte("data"),
		ContentType: "image/jpeg",
		PhotoID:     uuid.New(),
	})
	require.ErrorIs(t, err, provider.ErrUnavailable)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGetResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/photos/img-42/results", r.URL.Path)

		json.NewEncoder(w).Encode(resultsResponse{
			Status: "completed",
			Results: []resultItem{
				{TechName: "hydration", Value: 72},
				{TechName: "redness", Value: 55},
				{TechName: "image_quality", Value: 81, Quality: &qualityItem{
					Focus: 90, Lighting: 75, Overall: 81,
				}},
			},
		})
	}))
	defer srv.Close()

	page, err := testClient(t, srv.URL).GetResults(context.Background(), "img-42")
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStateCompleted, page.Status.State)
	require.Len(t, page.Results, 3)
	assert.Equal(t, "hydration", page.Results[0].Name)
	assert.Equal(t, 72.0, page.Results[0].Value)
	require.NotNil(t, page.Results[2].Quality)
	assert.Equal(t, 81.0, page.Results[2].Quality.Overall)
	assert.Equal(t, 90.0, page.Results[2].Quality.Focus)
}

func TestGetResultsNotReadyDoesNotRetry(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).GetResults(context.Background(), "img-42")
	require.ErrorIs(t, err, provider.ErrNotReady)
	assert.True(t, provider.IsNotReady(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGetResultsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(resultsResponse{
			Status:  "failed",
			Message: "image rejected",
		})
	}))
	defer srv.Close()

	page, err := testClient(t, srv.URL).GetResults(context.Background(), "img-42")
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisStateError, page.Status.State)
	assert.Equal(t, "image rejected", page.Status.Message)
	assert.Empty(t, page.Results)
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found is not ready", http.StatusNotFound, provider.ErrNotReady},
		{"conflict is not ready", http.StatusConflict, provider.ErrNotReady},
		{"too early is not ready", http.StatusTooEarly, provider.ErrNotReady},
		{"unauthorized", http.StatusUnauthorized, provider.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, provider.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, provider.ErrRateLimit},
		{"request timeout", http.StatusRequestTimeout, provider.ErrTimeout},
		{"bad request", http.StatusBadRequest, provider.ErrInvalidImage},
		{"internal error", http.StatusInternalServerError, provider.ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, provider.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := testClient(t, srv.URL).GetResults(context.Background(), "img-1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapHTTPErrorUnhandledStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "short and stout"},
		})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).GetResults(context.Background(), "img-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 418")
	assert.Contains(t, err.Error(), "short and stout")
}

func TestGetMaskResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/photos/img-42/masks", r.URL.Path)
		json.NewEncoder(w).Encode(maskResultsResponse{
			Masks: map[string]json.RawMessage{
				"redness": json.RawMessage(`{"score":55}`),
				"pores":   json.RawMessage(`{"score":40}`),
			},
		})
	}))
	defer srv.Close()

	masks, err := testClient(t, srv.URL).GetMaskResults(context.Background(), "img-42")
	require.NoError(t, err)
	assert.Len(t, masks, 2)
	assert.JSONEq(t, `{"score":55}`, string(masks["redness"]))
}

func TestGetMaskImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/photos/img-42/masks/images", r.URL.Path)
		json.NewEncoder(w).Encode(maskImagesResponse{
			Images: map[string]string{"redness": "https://cdn.example.com/masks/redness.png"},
		})
	}))
	defer srv.Close()

	images, err := testClient(t, srv.URL).GetMaskImages(context.Background(), "img-42")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/masks/redness.png", images["redness"])
}

func TestCreateThread(t *testing.T) {
	photoID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads", r.URL.Path)
		var req threadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, photoID.String(), req.PhotoID)
		json.NewEncoder(w).Encode(threadResponse{ThreadID: "thread-7"})
	}))
	defer srv.Close()

	threadID, err := testClient(t, srv.URL).CreateThread(context.Background(), photoID)
	require.NoError(t, err)
	assert.Equal(t, "thread-7", threadID)
}

func TestCreateThreadMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(threadResponse{})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).CreateThread(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestStatusFromWire(t *testing.T) {
	tests := []struct {
		wire string
		want domain.AnalysisState
	}{
		{"pending", domain.AnalysisStatePending},
		{"analyzing", domain.AnalysisStateAnalyzing},
		{"processing", domain.AnalysisStateAnalyzing},
		{"completed", domain.AnalysisStateCompleted},
		{"done", domain.AnalysisStateCompleted},
		{"error", domain.AnalysisStateError},
		{"failed", domain.AnalysisStateError},
		{"", domain.AnalysisState("")},
	}
	for _, tt := range tests {
		got := statusFromWire(tt.wire, "")
		assert.Equal(t, tt.want, got.State, "wire status %q", tt.wire)
	}
}
