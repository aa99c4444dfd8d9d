package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/snipx/snipx-api/internal/video"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *video.Service
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes caps the accepted upload size in bytes.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *video.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 500 << 20, // Default 500 MiB
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /videos requests with a multipart "video" field.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated", "MISSING_AUTH")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file too large, maximum size is %d bytes", h.maxUploadBytes), "UPLOAD_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no video file provided", "MISSING_FILE")
		return
	}
	defer func() { _ = file.Close() }()

	v, err := h.service.Save(r.Context(), ownerID, header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, video.ErrNoFile), errors.Is(err, video.ErrInvalidVideo):
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_VIDEO")
		default:
			h.logger.Error("upload failed",
				slog.String("owner_id", ownerID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to save upload", "UPLOAD_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		ID:     v.ID,
		Status: string(v.Status),
	})
}

// Process handles POST /videos/{id}/process requests.
// Processing is synchronous; the response carries the final record.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video ID is required", "MISSING_VIDEO_ID")
		return
	}

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req.Options); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	v, err := h.service.Process(r.Context(), videoID, req.Options.toOptions())
	if err != nil {
		switch {
		case errors.Is(err, video.ErrNotFound):
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		case errors.Is(err, video.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "video is already being processed", "ALREADY_PROCESSING")
			return
		}
		h.logger.Error("processing failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		// A fatal step failure still yields the persisted failed record.
		if v != nil {
			writeJSON(w, http.StatusUnprocessableEntity, newVideoResponse(v))
			return
		}
		writeError(w, http.StatusInternalServerError, "processing failed", "PROCESSING_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newVideoResponse(v))
}

// Get handles GET /videos/{id} requests.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video ID is required", "MISSING_VIDEO_ID")
		return
	}

	v, err := h.service.Get(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get video",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get video", "VIDEO_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newVideoResponse(v))
}

// List handles GET /videos requests, returning the caller's records.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated", "MISSING_AUTH")
		return
	}

	videos, err := h.service.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}

	resp := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, newVideoResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /videos/{id} requests.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated", "MISSING_AUTH")
		return
	}

	videoID := r.PathValue("id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video ID is required", "MISSING_VIDEO_ID")
		return
	}

	if err := h.service.Delete(r.Context(), videoID, ownerID); err != nil {
		switch {
		case errors.Is(err, video.ErrNotFound):
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		case errors.Is(err, video.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "not the owner of this video", "NOT_OWNER")
		default:
			h.logger.Error("failed to delete video",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to delete video", "VIDEO_DELETE_FAILED")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /videos/{id}/download requests, serving the
// processed video when present and the source otherwise.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated", "MISSING_AUTH")
		return
	}

	videoID := r.PathValue("id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video ID is required", "MISSING_VIDEO_ID")
		return
	}

	v, err := h.service.Get(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get video", "VIDEO_FETCH_FAILED")
		return
	}

	if !v.OwnedBy(ownerID) {
		writeError(w, http.StatusForbidden, "not the owner of this video", "NOT_OWNER")
		return
	}

	path := v.Path
	if processed, ok := v.Output(video.OutputProcessedVideo); ok {
		path = processed
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "processed video not found", "FILE_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "enhanced_"+v.Filename))
	http.ServeFile(w, r, path)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
