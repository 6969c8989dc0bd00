package voice

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/prosody"
	"github.com/zhouzirui/haven/backend/internal/middleware"
	voiceservice "github.com/zhouzirui/haven/backend/internal/service/voice"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Handler serves voice tone analysis over HTTP.
type Handler struct {
	voice  *voiceservice.Service
	logger *zap.Logger
}

// New creates the handler.
func New(voice *voiceservice.Service, logger *zap.Logger) *Handler {
	return &Handler{voice: voice, logger: logger}
}

// RegisterRoutes mounts the voice routes. The live channel is mounted
// separately by LiveHandler.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice/analyze", h.handleAnalyze)
	r.Get("/voice/history", h.handleHistory)
	r.Get("/voice/{id}", h.handleGet)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	result, err := h.voice.Analyze(r.Context(), middleware.UserIDFromContext(r.Context()), voiceservice.Request{
		Audio:    audio,
		Filename: header.Filename,
		Language: r.FormValue("language"),
	})
	if err != nil {
		RespondAnalysisError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.voice.History(r.Context(), middleware.UserIDFromContext(r.Context()), utils.QueryInt(r, "limit"))
	if err != nil {
		RespondAnalysisError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	log, err := h.voice.Get(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		RespondAnalysisError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, log)
}

// AnalysisStatus maps a voice pipeline error to an HTTP status.
func AnalysisStatus(err error) int {
	switch {
	case errors.Is(err, voiceservice.ErrDisabled):
		return http.StatusForbidden
	case errors.Is(err, voiceservice.ErrInvalidAudio):
		return http.StatusBadRequest
	case errors.Is(err, prosody.ErrInsufficientAudio):
		return http.StatusUnprocessableEntity
	case errors.Is(err, voiceservice.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondAnalysisError writes err as JSON, hiding internal failures.
func RespondAnalysisError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := AnalysisStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("voice request failed", zap.Error(err))
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
