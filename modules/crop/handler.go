package crop

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fitting-room-server/modules/common/utils"
)

// Handler - stateless crop helpers used by the page
type Handler struct {
	limits Limits
	log    *zap.Logger
}

func NewHandler(limits Limits, log *zap.Logger) *Handler {
	return &Handler{limits: limits, log: log}
}

// RegisterRoutes - crop endpoints
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/crop/initial", h.InitialCrop).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/crop/suggest", h.SuggestCrop).Methods("POST", "OPTIONS")
	h.log.Info("✅ [Crop] Routes registered: /api/crop/initial, /api/crop/suggest")
}

// InitialCrop - centered 90% region for a display size and aspect
func (h *Handler) InitialCrop(w http.ResponseWriter, r *http.Request) {
	var req InitialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request format", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_request", "displayWidth and displayHeight must be positive and aspect one of 1:1, 4:3, 16:9, free", nil)
		return
	}

	aspect, err := ParseAspect(req.Aspect)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	region, err := InitialCrop(Size{Width: req.DisplayWidth, Height: req.DisplayHeight}, aspect)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, map[string]any{"aspect": aspect, "region": region})
}

// SuggestCrop - content-aware region for an uploaded file
func (h *Handler) SuggestCrop(w http.ResponseWriter, r *http.Request) {
	upload, err := ParseUpload(w, r, h.limits)
	if err != nil {
		h.log.Warn("⚠️ [Crop] Rejected upload", zap.Error(err))
		status, code, msg := UploadErrorResponse(err)
		utils.WriteError(w, status, code, msg, nil)
		return
	}

	aspect, err := ParseAspect(upload.Params.Aspect)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	region, err := Suggest(r.Context(), upload.Image, aspect)
	if err != nil {
		h.log.Error("❌ [Crop] Suggestion failed", zap.Error(err))
		utils.WriteError(w, http.StatusUnprocessableEntity, "suggest_failed", "Could not suggest a crop for this image.", nil)
		return
	}

	b := upload.Image.Bounds()
	h.log.Debug("🎯 [Crop] Suggested", zap.String("aspect", string(aspect)), zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
	utils.WriteSuccess(w, http.StatusOK, map[string]any{
		"aspect":  aspect,
		"region":  region,
		"natural": Size{Width: float64(b.Dx()), Height: float64(b.Dy())},
	})
}

// UploadErrorResponse - status, code and user message for an upload or crop error
func UploadErrorResponse(err error) (int, string, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "invalid_upload", "The image is too large."
	case errors.Is(err, ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "image_too_large", "The image dimensions are too large. Please use a smaller image."
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusBadRequest, "unsupported_media", "Unsupported file type. Please use a JPEG, PNG or WebP image."
	case errors.Is(err, ErrEmptyCrop):
		return http.StatusBadRequest, "empty_crop", "Please select a crop area before continuing."
	case errors.Is(err, ErrOutOfBounds):
		return http.StatusBadRequest, "invalid_crop", "The crop area must lie inside the image."
	case errors.Is(err, ErrCropTooLarge):
		return http.StatusBadRequest, "crop_too_large", "The cropped image would be too large. Please select a smaller area."
	case errors.Is(err, ErrUnknownAspect):
		return http.StatusBadRequest, "invalid_upload", "Unknown aspect ratio."
	}
	return http.StatusBadRequest, "invalid_upload", "Invalid upload. Please choose an image file and try again."
}
