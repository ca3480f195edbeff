package tryon

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fitting-room-server/modules/common/utils"
	"fitting-room-server/modules/crop"
)

//go:embed web/index.html
var indexHTML []byte

// Handler - HTTP surface of the try-on flow
type Handler struct {
	manager    *Manager
	cropFormat crop.Format
	limits     crop.Limits
	log        *zap.Logger
}

func NewHandler(manager *Manager, cropFormat crop.Format, limits crop.Limits, log *zap.Logger) *Handler {
	return &Handler{manager: manager, cropFormat: cropFormat, limits: limits, log: log}
}

// RegisterRoutes - page, session and example endpoints
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Index).Methods("GET")

	api := r.PathPrefix("/api/tryon").Subrouter()
	api.HandleFunc("/examples", h.ListExamples).Methods("GET", "OPTIONS")
	api.HandleFunc("/examples/{exampleId}/{slot}", h.ExampleImage).Methods("GET", "OPTIONS")

	api.HandleFunc("/sessions", h.CreateSession).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET", "OPTIONS")
	api.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/inputs/{slot}", h.UploadInput).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/inputs/{slot}", h.GetInput).Methods("GET")
	api.HandleFunc("/sessions/{id}/generate", h.Generate).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/upscale", h.Upscale).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/reset", h.Reset).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/examples/{exampleId}", h.LoadExample).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/result", h.GetResult).Methods("GET", "OPTIONS")

	h.log.Info("✅ [TryOn] Routes registered: /, /api/tryon/sessions, /api/tryon/examples")
}

// Index - the try-on page
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// CreateSession - new idle session
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context())
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, NewSnapshot(s))
}

// GetSession - snapshot
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, NewSnapshot(s))
}

// DeleteSession - drop the session
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, nil)
}

// UploadInput - multipart file plus crop fields, cropped and stored in the slot
func (h *Handler) UploadInput(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot, err := ParseSlot(vars["slot"])
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	if _, err := h.manager.Get(r.Context(), vars["id"]); err != nil {
		h.writeError(w, err, nil)
		return
	}

	upload, err := crop.ParseUpload(w, r, h.limits)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	encoded, err := upload.Apply(h.cropFormat)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	artifact := &Artifact{
		Name:     upload.Name,
		MIMEType: encoded.MIMEType,
		Data:     encoded.Data,
		Width:    encoded.Width,
		Height:   encoded.Height,
	}
	s, err := h.manager.SetInput(r.Context(), vars["id"], slot, artifact)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, NewSnapshot(s))
}

// GetInput - stored artifact bytes
func (h *Handler) GetInput(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot, err := ParseSlot(vars["slot"])
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	a, err := h.manager.Input(r.Context(), vars["id"], slot)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	writeImage(w, a.MIMEType, a.Data, fmt.Sprintf("inline; filename=%q", a.Name))
}

// Generate - start a try-on; completes in the background
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	job, s, err := h.manager.BeginTryOn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, s)
		return
	}
	h.runAsync(r.Context(), job)
	utils.WriteSuccess(w, http.StatusAccepted, NewSnapshot(s))
}

// Upscale - start an upscale; 200 with the unchanged state when there is nothing to do
func (h *Handler) Upscale(w http.ResponseWriter, r *http.Request) {
	job, s, err := h.manager.BeginUpscale(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, s)
		return
	}
	if job == nil {
		utils.WriteSuccess(w, http.StatusOK, NewSnapshot(s))
		return
	}
	h.runAsync(r.Context(), job)
	utils.WriteSuccess(w, http.StatusAccepted, NewSnapshot(s))
}

// runAsync - the request may end before the call does
func (h *Handler) runAsync(ctx context.Context, job *Job) {
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := h.manager.Run(bg, job); err != nil {
			h.log.Debug("[TryOn] Background job finished with error",
				zap.String("session", job.SessionID), zap.String("operation", string(job.Op)), zap.Error(err))
		}
	}()
}

// Reset - empty idle state
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, NewSnapshot(s))
}

// LoadExample - reset and fill both inputs from a bundled example
func (h *Handler) LoadExample(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	exampleID, err := strconv.Atoi(vars["exampleId"])
	if err != nil {
		h.writeError(w, NewValidationError(CodeUnknownExample, "Unknown example.", err), nil)
		return
	}
	s, err := h.manager.LoadExample(r.Context(), vars["id"], exampleID)
	if err != nil {
		h.writeError(w, err, s)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, NewSnapshot(s))
}

// GetResult - result bytes; download=1 names the file for saving
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Result(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	disposition := "inline"
	if r.URL.Query().Get("download") == "1" {
		disposition = fmt.Sprintf("attachment; filename=%q", DownloadName(res))
	}
	writeImage(w, res.Image.MIMEType, res.Image.Data, disposition)
}

// ListExamples - picker entries
func (h *Handler) ListExamples(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, h.manager.Examples().List())
}

// ExampleImage - thumbnail source for one side of an example
func (h *Handler) ExampleImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot, err := ParseSlot(vars["slot"])
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	exampleID, err := strconv.Atoi(vars["exampleId"])
	if err != nil {
		h.writeError(w, NewValidationError(CodeUnknownExample, "Unknown example.", err), nil)
		return
	}

	person, outfit, err := h.manager.Examples().Decode(exampleID)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	a := person
	if slot == SlotOutfit {
		a = outfit
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeImage(w, a.MIMEType, a.Data, fmt.Sprintf("inline; filename=%q", a.Name))
}

func writeImage(w http.ResponseWriter, mimeType string, data []byte, disposition string) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", disposition)
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// StatusFor - HTTP status of an error from the Manager
func StatusFor(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		switch e.Code {
		case CodeBusy:
			return http.StatusConflict
		case CodeSessionNotFound, CodeNoResult, CodeNoInput, CodeUnknownExample:
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// writeError - user message only; the cause goes to the log
func (h *Handler) writeError(w http.ResponseWriter, err error, s *State) {
	status := StatusFor(err)

	var data any
	if s != nil {
		data = NewSnapshot(s)
	}

	var e *Error
	if !errors.As(err, &e) {
		h.log.Error("❌ [TryOn] Internal error", zap.Error(err))
		utils.WriteError(w, status, "internal", "Something went wrong. Please try again.", data)
		return
	}
	if status >= http.StatusInternalServerError || e.Err != nil {
		h.log.Warn("⚠️ [TryOn] Request failed", zap.String("code", e.Code), zap.Error(err))
	}
	utils.WriteError(w, status, e.Code, e.Message, data)
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	h.log.Warn("⚠️ [TryOn] Rejected upload", zap.Error(err))
	status, code, msg := crop.UploadErrorResponse(err)
	utils.WriteError(w, status, code, msg, nil)
}
