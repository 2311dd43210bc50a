// Package handler contains HTTP handlers for the photo analysis API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal/auth"
	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/lifecycle"
	"github.com/Ayush-autviz/skin-sub000/internal/service"
	"github.com/google/uuid"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing.
const maxUploadMemory = 32 << 20 // 32 MB

// PhotoHandler handles photo-related HTTP requests.
type PhotoHandler struct {
	photos service.PhotoService
	logger *slog.Logger
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(photos service.PhotoService, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{
		photos: photos,
		logger: logger,
	}
}

// RegisterRoutes registers all photo routes with the provided mux.
//
// Routes:
//   - POST   /photos                    -> Capture
//   - GET    /photos                    -> List
//   - GET    /photos/{id}               -> Get
//   - POST   /photos/{id}/reopen        -> Reopen
//   - POST   /photos/{id}/gestures      -> Gesture
//   - POST   /photos/{id}/retry         -> Retry
//   - POST   /photos/{id}/close         -> Close
//   - DELETE /photos/{id}               -> Delete
//   - GET    /photos/{id}/thumbnail     -> Thumbnail
//   - GET    /photos/{id}/original      -> Original
func (h *PhotoHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /photos", h.Capture)
	mux.HandleFunc("GET /photos", h.List)
	mux.HandleFunc("GET /photos/{id}", h.Get)
	mux.HandleFunc("POST /photos/{id}/reopen", h.Reopen)
	mux.HandleFunc("POST /photos/{id}/gestures", h.Gesture)
	mux.HandleFunc("POST /photos/{id}/retry", h.Retry)
	mux.HandleFunc("POST /photos/{id}/close", h.Close)
	mux.HandleFunc("DELETE /photos/{id}", h.Delete)
	mux.HandleFunc("GET /photos/{id}/thumbnail", h.Thumbnail)
	mux.HandleFunc("GET /photos/{id}/original", h.Original)
}

// photoResponse is the JSON view of a photo and its analysis state.
type photoResponse struct {
	ID             uuid.UUID            `json:"id"`
	UserID         string               `json:"user_id"`
	UIState        domain.UIState       `json:"ui_state,omitempty"`
	ViewState      domain.ViewState     `json:"view_state,omitempty"`
	Display        domain.DisplayMode   `json:"display,omitempty"`
	StatusState    domain.AnalysisState `json:"status_state,omitempty"`
	StatusMessage  string               `json:"status_message,omitempty"`
	QualityWarning bool                 `json:"quality_warning,omitempty"`
	Retryable      bool                 `json:"retryable,omitempty"`
	Metrics        *domain.Metrics      `json:"metrics,omitempty"`
	MaskNames      []string             `json:"mask_names,omitempty"`
	RemoteURL      string               `json:"remote_url,omitempty"`
	ThreadID       string               `json:"thread_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	Live           bool                 `json:"live"`
}

// snapshotResponse builds the JSON view of a live session.
func snapshotResponse(snap lifecycle.Snapshot) photoResponse {
	resp := recordResponse(&snap.Record)
	resp.UIState = snap.UIState
	resp.ViewState = snap.ViewState
	resp.Display = snap.Display
	resp.QualityWarning = snap.QualityWarning
	resp.Retryable = snap.Retryable
	if snap.StatusMessage != "" {
		resp.StatusMessage = snap.StatusMessage
	}
	resp.Live = true
	return resp
}

// recordResponse builds the JSON view of a persisted record.
func recordResponse(rec *domain.PhotoRecord) photoResponse {
	return photoResponse{
		ID:            rec.ID,
		UserID:        rec.UserID,
		StatusState:   rec.Status.State,
		StatusMessage: rec.Status.Message,
		Metrics:       rec.Metrics,
		MaskNames:     rec.Masks.Names(),
		RemoteURL:     rec.RemoteURL,
		ThreadID:      rec.ThreadID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// Capture handles photo upload and starts analysis.
func (h *PhotoHandler) Capture(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("photo.capture", "Invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("photo.capture", "Missing photo file"))
		return
	}
	defer file.Close()

	slot := r.FormValue("slot")

	snap, err := h.photos.Capture(r.Context(), file, header, userID, slot)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, snapshotResponse(snap))
}

// List returns the caller's photos, newest first.
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	records, err := h.photos.List(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]photoResponse, 0, len(records))
	for i := range records {
		resp = append(resp, recordResponse(&records[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"photos": resp})
}

// Get returns the live session state for a photo, falling back to the
// persisted record when no session is active.
func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	if snap, err := h.photos.Snapshot(photoID, userID); err == nil {
		writeJSON(w, http.StatusOK, snapshotResponse(snap))
		return
	}

	rec, err := h.photos.Get(r.Context(), photoID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, recordResponse(rec))
}

// Reopen starts a polling session for a saved photo.
func (h *PhotoHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	snap, err := h.photos.Reopen(r.Context(), photoID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

// gestureRequest is the body of POST /photos/{id}/gestures.
type gestureRequest struct {
	Gesture string `json:"gesture"`
}

// Gesture applies a view gesture to an active session.
func (h *PhotoHandler) Gesture(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("photo.gesture", "Invalid request body"))
		return
	}

	var (
		view domain.ViewState
		err  error
	)
	switch req.Gesture {
	case "toggle_panel":
		view, err = h.photos.TogglePanel(photoID, userID)
	case "zoom_in":
		view, err = h.photos.EnterZoom(photoID, userID)
	case "zoom_out":
		view, err = h.photos.ExitZoom(photoID, userID)
	default:
		ErrorResponse(w, r, h.logger, domain.Invalid("photo.gesture", "Unknown gesture: "+req.Gesture))
		return
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"view_state": view})
}

// Retry restarts a failed analysis.
func (h *PhotoHandler) Retry(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	if err := h.photos.Retry(photoID, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	snap, err := h.photos.Snapshot(photoID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

// Close dismisses a session without deleting the photo.
func (h *PhotoHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	if err := h.photos.CloseSession(photoID, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a photo and its stored objects.
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	if err := h.photos.Delete(r.Context(), photoID, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Thumbnail redirects to the photo's thumbnail object.
func (h *PhotoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	url, err := h.photos.ThumbnailURL(r.Context(), photoID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Original redirects to the photo's original object.
func (h *PhotoHandler) Original(w http.ResponseWriter, r *http.Request) {
	userID, photoID, ok := h.requirePhoto(w, r)
	if !ok {
		return
	}

	url, err := h.photos.OriginalURL(r.Context(), photoID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// requireUser extracts the caller identity established by the identity
// middleware, falling back to the gateway header.
func (h *PhotoHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromRequest(r)
	if userID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("photo", "Missing caller identity"))
		return "", false
	}
	return userID, true
}

// requirePhoto extracts the caller identity and the photo id path value.
func (h *PhotoHandler) requirePhoto(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return "", uuid.Nil, false
	}

	photoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("photo", "Invalid photo id"))
		return "", uuid.Nil, false
	}

	return userID, photoID, true
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
