package stream

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chathandler "github.com/zhouzirui/haven/backend/internal/handler/chat"
	"github.com/zhouzirui/haven/backend/internal/middleware"
	chatservice "github.com/zhouzirui/haven/backend/internal/service/chat"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// SSE event names, in emission order.
const (
	EventStart   = "start"
	EventDelta   = "delta"
	EventMessage = "message"
	EventEmotion = "emotion"
	EventCrisis  = "crisis"
	EventEnd     = "end"
	EventError   = "error"
)

// Handler streams companion replies as Server-Sent Events.
type Handler struct {
	chatSvc *chatservice.Service
	logger  *zap.Logger
}

// New creates the handler.
func New(chatSvc *chatservice.Service, logger *zap.Logger) *Handler {
	return &Handler{chatSvc: chatSvc, logger: logger.With(zap.String("component", "stream"))}
}

// RegisterRoutes mounts the streaming route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{id}/stream", h.handleStream)
}

type startPayload struct {
	ConversationID string `json:"conversationId"`
	UserMessageID  string `json:"userMessageId"`
	CompanionID    string `json:"companionId"`
}

type deltaPayload struct {
	Content string `json:"content"`
}

type endPayload struct {
	ConversationID string `json:"conversationId"`
	Finished       bool   `json:"finished"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	conversationID := chi.URLParam(r, "id")

	pending, err := h.chatSvc.BeginTurn(ctx, userID, conversationID, chatservice.SendRequest{
		Content:   message,
		ToneLogID: r.URL.Query().Get("toneLogId"),
	})
	if err != nil {
		chathandler.RespondServiceError(w, h.logger, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	utils.SendSSEEvent(w, flusher, EventStart, startPayload{
		ConversationID: pending.Conversation.ID,
		UserMessageID:  pending.UserMessage.ID,
		CompanionID:    pending.Conversation.CompanionID,
	})

	reply, err := h.chatSvc.GenerateReply(ctx, pending, func(delta string) {
		utils.SendSSEEvent(w, flusher, EventDelta, deltaPayload{Content: delta})
	})
	if err != nil {
		h.logger.Warn("reply generation stopped", zap.String("conversation_id", conversationID), zap.Error(err))
		utils.SendSSEEvent(w, flusher, EventError, errorPayload{Error: "reply generation failed"})
		return
	}

	turn, err := h.chatSvc.CompleteTurn(ctx, pending, reply)
	if err != nil {
		h.logger.Error("save reply failed", zap.String("conversation_id", conversationID), zap.Error(err))
		utils.SendSSEEvent(w, flusher, EventError, errorPayload{Error: "saving the reply failed"})
		return
	}

	utils.SendSSEEvent(w, flusher, EventMessage, turn.AssistantMessage)
	utils.SendSSEEvent(w, flusher, EventEmotion, turn.Guidance)
	if turn.Crisis != nil {
		utils.SendSSEEvent(w, flusher, EventCrisis, turn.Crisis)
	}
	utils.SendSSEEvent(w, flusher, EventEnd, endPayload{ConversationID: pending.Conversation.ID, Finished: true})

	h.logger.Debug("stream completed",
		zap.String("conversation_id", pending.Conversation.ID),
		zap.Int("reply_length", len(reply)))
}
