package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayush-autviz/skin-sub000/internal/auth"
	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/lifecycle"
)

// stubPhotoService records calls and returns canned values.
type stubPhotoService struct {
	snapshot    lifecycle.Snapshot
	snapshotErr error
	record      *domain.PhotoRecord
	recordErr   error
	records     []domain.PhotoRecord
	view        domain.ViewState
	viewErr     error
	err         error
	url         string

	gestures []string
	deleted  []uuid.UUID
	closed   []uuid.UUID
	retried  []uuid.UUID
}

func (s *stubPhotoService) Capture(ctx context.Context, file multipart.File, header *multipart.FileHeader, userID, slot string) (lifecycle.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubPhotoService) Reopen(ctx context.Context, photoID uuid.UUID, userID string) (lifecycle.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubPhotoService) Snapshot(photoID uuid.UUID, userID string) (lifecycle.Snapshot, error) {
	return s.snapshot, s.snapshotErr
}

func (s *stubPhotoService) Get(ctx context.Context, photoID uuid.UUID, userID string) (*domain.PhotoRecord, error) {
	return s.record, s.recordErr
}

func (s *stubPhotoService) List(ctx context.Context, userID string) ([]domain.PhotoRecord, error) {
	return s.records, s.err
}

func (s *stubPhotoService) Retry(photoID uuid.UUID, userID string) error {
	s.retried = append(s.retried, photoID)
	return s.err
}

func (s *stubPhotoService) TogglePanel(photoID uuid.UUID, userID string) (domain.ViewState, error) {
	s.gestures = append(s.gestures, "toggle_panel")
	return s.view, s.viewErr
}

func (s *stubPhotoService) EnterZoom(photoID uuid.UUID, userID string) (domain.ViewState, error) {
	s.gestures = append(s.gestures, "zoom_in")
	return s.view, s.viewErr
}

func (s *stubPhotoService) ExitZoom(photoID uuid.UUID, userID string) (domain.ViewState, error) {
	s.gestures = append(s.gestures, "zoom_out")
	return s.view, s.viewErr
}

func (s *stubPhotoService) Delete(ctx context.Context, photoID uuid.UUID, userID string) error {
	s.deleted = append(s.deleted, photoID)
	return s.err
}

func (s *stubPhotoService) CloseSession(photoID uuid.UUID, userID string) error {
	s.closed = append(s.closed, photoID)
	return s.err
}

func (s *stubPhotoService) ThumbnailURL(ctx context.Context, photoID uuid.UUID, userID string) (string, error) {
	return s.url, s.err
}

func (s *stubPhotoService) OriginalURL(ctx context.Context, photoID uuid.UUID, userID string) (string, error) {
	return s.url, s.err
}

func (s *stubPhotoService) Shutdown() {}

func testMux(svc *stubPhotoService) *http.ServeMux {
	mux := http.NewServeMux()
	NewPhotoHandler(svc, testErrLogger()).RegisterRoutes(mux)
	return mux
}

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(auth.UserIDHeader, "user-1")
	return req
}

func liveSnapshot(photoID uuid.UUID) lifecycle.Snapshot {
	return lifecycle.Snapshot{
		Record: domain.PhotoRecord{
			ID:     photoID,
			UserID: "user-1",
			Status: domain.Status{State: domain.AnalysisStateAnalyzing},
		},
		UIState:   domain.UIStateAnalyzing,
		ViewState: domain.ViewStateDefault,
		Display:   domain.DisplayNeutral,
	}
}

func TestCaptureReturnsSnapshot(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{snapshot: liveSnapshot(photoID)}
	mux := testMux(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "front.jpg")
	require.NoError(t, err)
	part.Write([]byte("not-really-a-jpeg"))
	require.NoError(t, mw.WriteField("slot", "front"))
	require.NoError(t, mw.Close())

	req := authedRequest("POST", "/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp photoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, photoID, resp.ID)
	assert.Equal(t, domain.UIStateAnalyzing, resp.UIState)
	assert.Equal(t, domain.DisplayNeutral, resp.Display)
	assert.True(t, resp.Live)
}

func TestCaptureWithoutIdentity(t *testing.T) {
	mux := testMux(&stubPhotoService{})

	req := httptest.NewRequest("POST", "/photos", strings.NewReader(""))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureWithoutFile(t *testing.T) {
	mux := testMux(&stubPhotoService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("slot", "front"))
	require.NoError(t, mw.Close())

	req := authedRequest("POST", "/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrefersLiveSession(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{snapshot: liveSnapshot(photoID)}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/photos/"+photoID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp photoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Live)
	assert.Equal(t, domain.UIStateAnalyzing, resp.UIState)
}

func TestGetFallsBackToRecord(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{
		snapshotErr: domain.NotFound("photo.snapshot", "session", photoID.String()),
		record: &domain.PhotoRecord{
			ID:     photoID,
			UserID: "user-1",
			Status: domain.Status{State: domain.AnalysisStateCompleted},
			Metrics: &domain.Metrics{
				Scores: map[string]float64{"hydration": 72},
			},
		},
	}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/photos/"+photoID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp photoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Live)
	assert.Equal(t, domain.AnalysisStateCompleted, resp.StatusState)
	require.NotNil(t, resp.Metrics)
	assert.Equal(t, 72.0, resp.Metrics.Scores["hydration"])
}

func TestGetNotFound(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{
		snapshotErr: domain.NotFound("photo.snapshot", "session", photoID.String()),
		recordErr:   domain.NotFound("photo.get", "photo", photoID.String()),
	}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/photos/"+photoID.String(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetInvalidID(t *testing.T) {
	mux := testMux(&stubPhotoService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/photos/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReturnsRecords(t *testing.T) {
	svc := &stubPhotoService{
		records: []domain.PhotoRecord{
			{ID: uuid.New(), UserID: "user-1"},
			{ID: uuid.New(), UserID: "user-1"},
		},
	}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/photos", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Photos []photoResponse `json:"photos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Photos, 2)
}

func TestGestureDispatch(t *testing.T) {
	tests := []struct {
		gesture string
		view    domain.ViewState
	}{
		{"toggle_panel", domain.ViewStateMetrics},
		{"zoom_in", domain.ViewStateZooming},
		{"zoom_out", domain.ViewStateDefault},
	}

	for _, tc := range tests {
		t.Run(tc.gesture, func(t *testing.T) {
			photoID := uuid.New()
			svc := &stubPhotoService{view: tc.view}
			mux := testMux(svc)

			body := bytes.NewBufferString(`{"gesture":"` + tc.gesture + `"}`)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, authedRequest("POST", "/photos/"+photoID.String()+"/gestures", body))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, []string{tc.gesture}, svc.gestures)

			var resp struct {
				ViewState domain.ViewState `json:"view_state"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.view, resp.ViewState)
		})
	}
}

func TestGestureUnknown(t *testing.T) {
	svc := &stubPhotoService{}
	mux := testMux(svc)

	body := bytes.NewBufferString(`{"gesture":"shake"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/photos/"+uuid.NewString()+"/gestures", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gestures)
}

func TestRetryReturnsFreshSnapshot(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{snapshot: liveSnapshot(photoID)}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/photos/"+photoID.String()+"/retry", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{photoID}, svc.retried)
}

func TestRetryGoneAfterCleanup(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{err: domain.Gone("photo.retry", "photo", photoID.String())}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/photos/"+photoID.String()+"/retry", nil))

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestCloseReturnsNoContent(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("POST", "/photos/"+photoID.String()+"/close", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{photoID}, svc.closed)
}

func TestDeleteReturnsNoContent(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("DELETE", "/photos/"+photoID.String(), nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{photoID}, svc.deleted)
}

func TestThumbnailRedirects(t *testing.T) {
	photoID := uuid.New()
	svc := &stubPhotoService{url: "https://cdn.example.com/photos/thumb.jpg"}
	mux := testMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/photos/"+photoID.String()+"/thumbnail", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://cdn.example.com/photos/thumb.jpg", rec.Header().Get("Location"))
}
