package speech

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	speechsvc "github.com/zhouzirui/haven/backend/internal/service/speech"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Handler exposes plain speech-to-text for dictation in the journal and
// chat screens.
type Handler struct {
	speech *speechsvc.Service
	logger *zap.Logger
}

// New creates the speech handler.
func New(speech *speechsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{speech: speech, logger: logger}
}

// RegisterRoutes mounts the speech routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(r chi.Router) {
		r.Post("/transcribe", h.handleTranscribe)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !h.speech.Enabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, speechsvc.ErrDisabled.Error())
		return
	}

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
	if err != nil || len(audio) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	transcript, err := h.speech.Transcribe(r.Context(), speechsvc.Request{
		Audio:    audio,
		Filename: header.Filename,
		Language: r.FormValue("language"),
	})
	if errors.Is(err, speechsvc.ErrDisabled) {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("transcription request failed", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, transcript)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"service": "speech",
		"enabled": h.speech.Enabled(),
	})
}
