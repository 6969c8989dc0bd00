package music

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/middleware"
	musicservice "github.com/zhouzirui/haven/backend/internal/service/music"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// Handler serves the music therapy catalog and listening sessions.
type Handler struct {
	music  *musicservice.Service
	logger *zap.Logger
}

// New creates the handler.
func New(music *musicservice.Service, logger *zap.Logger) *Handler {
	return &Handler{music: music, logger: logger}
}

// RegisterRoutes mounts the music routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/music", func(r chi.Router) {
		r.Get("/tracks", h.handleTracks)
		r.Get("/recommendations", h.handleRecommend)
		r.Get("/effectiveness", h.handleEffectiveness)
		r.Get("/sessions", h.handleSessions)
		r.Post("/sessions", h.handleStart)
		r.Post("/sessions/{id}/finish", h.handleFinish)
	})
}

type startRequest struct {
	TrackID    string `json:"trackId"`
	MoodBefore int    `json:"moodBefore"`
}

type finishRequest struct {
	MoodAfter   int `json:"moodAfter"`
	DurationSec int `json:"durationSec"`
}

func (h *Handler) handleTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tracks, err := h.music.Tracks(q.Get("purpose"), q.Get("mood"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, tracks)
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("tone"))
	if raw == "" {
		raw = strings.TrimSpace(q.Get("mood"))
	}
	if raw == "" {
		utils.RespondError(w, http.StatusBadRequest, "tone or mood is required")
		return
	}

	recs, err := h.music.Recommend(raw, utils.QueryInt(r, "limit"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.music.StartSession(r.Context(), middleware.UserIDFromContext(r.Context()), req.TrackID, req.MoodBefore)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.music.FinishSession(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req.MoodAfter, req.DurationSec)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.music.Sessions(r.Context(), middleware.UserIDFromContext(r.Context()), utils.QueryInt(r, "limit"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleEffectiveness(w http.ResponseWriter, r *http.Request) {
	report, err := h.music.Effectiveness(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, musicservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, musicservice.ErrSessionFinished):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, musicservice.ErrUnknownTrack),
		errors.Is(err, musicservice.ErrUnknownPurpose),
		errors.Is(err, musicservice.ErrUnknownMood),
		errors.Is(err, musicservice.ErrInvalidMood):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("music request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
