package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/middleware"
	"github.com/zhouzirui/haven/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/haven/backend/internal/service/chat"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// Handler serves conversations and their messages.
type Handler struct {
	chatSvc *chatservice.Service
	logger  *zap.Logger
}

// New creates the handler.
func New(chatSvc *chatservice.Service, logger *zap.Logger) *Handler {
	return &Handler{chatSvc: chatSvc, logger: logger}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleCreateConversation)
	r.Get("/conversations", h.handleListConversations)
	r.Get("/conversations/{id}", h.handleGetConversation)
	r.Delete("/conversations/{id}", h.handleDeleteConversation)
	r.Post("/conversations/{id}/messages", h.handleSendMessage)
}

// ConversationView is a conversation with its recent messages.
type ConversationView struct {
	chat.Conversation
	Messages []chat.Message `json:"messages"`
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CompanionID string `json:"companionId"`
		Title       string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &payload, 0); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	conv, err := h.chatSvc.CreateConversation(r.Context(), middleware.UserIDFromContext(r.Context()), payload.CompanionID, payload.Title)
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.chatSvc.ListConversations(r.Context(), middleware.UserIDFromContext(r.Context()), utils.QueryInt(r, "limit"))
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, messages, err := h.chatSvc.GetConversation(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), utils.QueryInt(r, "limit"))
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ConversationView{Conversation: conv, Messages: messages})
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteConversation(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatservice.SendRequest
	if err := utils.DecodeJSON(w, r, &req, 64<<10); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.chatSvc.SendMessage(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, turn)
}

// StatusFor maps chat service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatservice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrEmptyMessage),
		errors.Is(err, chatservice.ErrMessageTooLong),
		errors.Is(err, chatservice.ErrUnknownCompanion),
		errors.Is(err, chatservice.ErrToneNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondServiceError writes err with the status from StatusFor. Internal
// errors are logged and hidden from the client.
func RespondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("chat request failed", zap.Error(err))
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
