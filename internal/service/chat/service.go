package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/crisis"
	analysis "github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/analysis/tone"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/model/chat"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/internal/model/user"
	aiservice "github.com/zhouzirui/haven/backend/internal/service/ai"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
	"github.com/zhouzirui/haven/backend/internal/store"
)

var (
	ErrNotFound         = errors.New("conversation not found")
	ErrEmptyMessage     = errors.New("message content is required")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrUnknownCompanion = errors.New("unknown companion")
	ErrToneNotFound     = errors.New("tone log not found")
)

const (
	titleRunes       = 48
	maxMessageLen    = 4000
	historyWindow    = 20
	toneFreshness    = 30 * time.Minute
	defaultListLimit = 50
)

// SendRequest is one user turn.
type SendRequest struct {
	Content   string `json:"content"`
	ToneLogID string `json:"toneLogId,omitempty"`
}

// Tone is the voice tone applied to a reply.
type Tone struct {
	LogID      string             `json:"logId"`
	Label      analysis.Label     `json:"label"`
	Confidence float64            `json:"confidence"`
	Style      tone.ResponseStyle `json:"style"`
}

// Turn is the outcome of SendMessage.
type Turn struct {
	UserMessage      chat.Message            `json:"userMessage"`
	AssistantMessage chat.Message            `json:"assistantMessage"`
	Guidance         emotionservice.Guidance `json:"emotion"`
	Crisis           *crisis.Result          `json:"crisis,omitempty"`
	Tone             *Tone                   `json:"tone,omitempty"`
}

// PendingTurn is a saved user message waiting for the companion's reply.
type PendingTurn struct {
	Conversation chat.Conversation
	UserMessage  chat.Message
	Guidance     emotionservice.Guidance
	Crisis       *crisis.Result
	Tone         *Tone
	Reply        aiservice.ReplyContext
}

// Dependencies wires the service.
type Dependencies struct {
	Conversations *store.ConversationRepository
	Users         *store.UserRepository
	Voice         *store.VoiceRepository
	Companions    companion.Directory
	Emotion       *emotionservice.Service
	AI            *aiservice.Service
	Metrics       *metrics.Collector
	Logger        *zap.Logger
}

// Service runs conversations with a companion.
type Service struct {
	conversations *store.ConversationRepository
	users         *store.UserRepository
	voice         *store.VoiceRepository
	companions    companion.Directory
	emotion       *emotionservice.Service
	ai            *aiservice.Service
	metrics       *metrics.Collector
	logger        *zap.Logger
	now           func() time.Time
}

// NewService builds the chat service.
func NewService(deps Dependencies) *Service {
	return &Service{
		conversations: deps.Conversations,
		users:         deps.Users,
		voice:         deps.Voice,
		companions:    deps.Companions,
		emotion:       deps.Emotion,
		ai:            deps.AI,
		metrics:       deps.Metrics,
		logger:        deps.Logger.With(zap.String("component", "chat")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateConversation starts a conversation. An empty companionID uses the
// companion from the user's settings.
func (s *Service) CreateConversation(ctx context.Context, userID, companionID, title string) (chat.Conversation, error) {
	companionID = strings.TrimSpace(companionID)
	if companionID == "" {
		settings, err := s.users.GetSettings(ctx, userID)
		switch {
		case err == nil && settings.CompanionID != "":
			companionID = settings.CompanionID
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return chat.Conversation{}, fmt.Errorf("load settings: %w", err)
		default:
			companionID = companion.DefaultID
		}
	}
	if _, ok := s.companions.Get(companionID); !ok {
		return chat.Conversation{}, ErrUnknownCompanion
	}

	conv := chat.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		CompanionID: companionID,
		Title:       truncateRunes(strings.TrimSpace(title), titleRunes),
	}
	if err := s.conversations.Create(ctx, &conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recent first.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.conversations.List(ctx, userID, limit)
}

// GetConversation returns a conversation and its recent messages.
func (s *Service) GetConversation(ctx context.Context, userID, id string, limit int) (chat.Conversation, []chat.Message, error) {
	conv, err := s.conversation(ctx, userID, id)
	if err != nil {
		return chat.Conversation{}, nil, err
	}
	messages, err := s.conversations.Messages(ctx, conv.ID, limit)
	if err != nil {
		return chat.Conversation{}, nil, fmt.Errorf("load messages: %w", err)
	}
	return conv, messages, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, id string) error {
	err := s.conversations.Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// SendMessage saves the user's message, generates the reply and saves it.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID string, req SendRequest) (Turn, error) {
	pending, err := s.BeginTurn(ctx, userID, conversationID, req)
	if err != nil {
		return Turn{}, err
	}

	reply, err := s.GenerateReply(ctx, pending, nil)
	if err != nil {
		return Turn{}, err
	}
	return s.CompleteTurn(ctx, pending, reply)
}

// GenerateReply produces the companion's reply for a pending turn. When
// streaming is enabled and onDelta is set, every non-empty chunk is passed
// to onDelta as it arrives. A broken stream keeps what was received.
func (s *Service) GenerateReply(ctx context.Context, pending *PendingTurn, onDelta func(string)) (string, error) {
	if onDelta == nil || !s.ai.StreamingEnabled() {
		return s.ai.GenerateResponse(ctx, pending.Reply)
	}

	stream, err := s.ai.StreamResponse(ctx, pending.Reply)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		s.logger.Warn("stream unavailable, generating in one piece", zap.Error(err))
		return s.ai.GenerateResponse(ctx, pending.Reply)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 16)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.logger.Warn("reply stream broke", zap.Int("chunks", len(chunks)), zap.Error(err))
			break
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			onDelta(chunk.Content)
		}
	}
	if len(chunks) == 0 {
		return aiservice.FallbackReply(pending.Reply), nil
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("concat reply chunks: %w", err)
	}
	return merged.Content, nil
}

// BeginTurn validates and saves the user message, then computes crisis,
// emotion and tone context for the reply.
func (s *Service) BeginTurn(ctx context.Context, userID, conversationID string, req SendRequest) (*PendingTurn, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		return nil, ErrMessageTooLong
	}

	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	comp := s.companions.Resolve(conv.CompanionID)

	settings := s.settings(ctx, userID)

	var toneHint *Tone
	if id := strings.TrimSpace(req.ToneLogID); id != "" {
		toneHint, err = s.loadTone(ctx, userID, id)
		if err != nil {
			return nil, err
		}
	}

	history, err := s.conversations.Messages(ctx, conv.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	detection := crisis.Detect(content, crisis.Contact{Name: settings.CrisisContactName, Phone: settings.CrisisContactPhone})
	var crisisResult *crisis.Result
	if detection.Detected {
		crisisResult = &detection
		s.metrics.RecordCrisis(string(detection.Severity))
		s.logger.Warn("crisis language detected",
			zap.String("conversation_id", conv.ID),
			zap.String("severity", string(detection.Severity)))
	}

	guidance := s.emotion.Analyze(ctx, &comp, history, content, "")

	userMsg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         chat.SenderUser,
		Content:        content,
		Emotion:        string(guidance.Decision.Emotion),
		Crisis:         detection.Detected,
		CreatedAt:      s.now(),
	}
	if toneHint != nil {
		userMsg.ToneLabel = string(toneHint.Label)
	}
	if err := s.conversations.AddMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	if err := s.conversations.Touch(ctx, conv.ID, truncateRunes(content, titleRunes)); err != nil {
		s.logger.Warn("touch conversation failed", zap.Error(err))
	}

	reply := aiservice.ReplyContext{
		Companion:   &comp,
		History:     history,
		UserMessage: content,
		Guidance:    &guidance,
		Crisis:      crisisResult,
	}
	if toneHint != nil {
		reply.Tone = &aiservice.ToneHint{Label: toneHint.Label, Confidence: toneHint.Confidence, Style: toneHint.Style}
	}

	return &PendingTurn{
		Conversation: conv,
		UserMessage:  userMsg,
		Guidance:     guidance,
		Crisis:       crisisResult,
		Tone:         toneHint,
		Reply:        reply,
	}, nil
}

// CompleteTurn saves the companion's reply for a pending turn.
func (s *Service) CompleteTurn(ctx context.Context, pending *PendingTurn, reply string) (Turn, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = aiservice.FallbackReply(pending.Reply)
	}

	createdAt := s.now()
	if !createdAt.After(pending.UserMessage.CreatedAt) {
		createdAt = pending.UserMessage.CreatedAt.Add(time.Millisecond)
	}

	assistant := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: pending.Conversation.ID,
		Sender:         chat.SenderAssistant,
		Content:        reply,
		Emotion:        string(pending.Guidance.Decision.Emotion),
		Crisis:         pending.Crisis != nil,
		CreatedAt:      createdAt,
	}
	if pending.Tone != nil {
		assistant.ToneLabel = string(pending.Tone.Label)
	}
	if err := s.conversations.AddMessage(ctx, &assistant); err != nil {
		return Turn{}, fmt.Errorf("save assistant message: %w", err)
	}
	if err := s.conversations.Touch(ctx, pending.Conversation.ID, ""); err != nil {
		s.logger.Warn("touch conversation failed", zap.Error(err))
	}

	return Turn{
		UserMessage:      pending.UserMessage,
		AssistantMessage: assistant,
		Guidance:         pending.Guidance,
		Crisis:           pending.Crisis,
		Tone:             pending.Tone,
	}, nil
}

func (s *Service) conversation(ctx context.Context, userID, id string) (chat.Conversation, error) {
	conv, err := s.conversations.Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return chat.Conversation{}, ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) settings(ctx context.Context, userID string) user.Settings {
	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("load settings failed", zap.Error(err))
		}
		return user.DefaultSettings(userID, companion.DefaultID)
	}
	return settings
}

// loadTone returns nil without error when the tone log is too old to
// describe how the user sounds now.
func (s *Service) loadTone(ctx context.Context, userID, id string) (*Tone, error) {
	log, err := s.voice.Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrToneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tone log: %w", err)
	}
	if s.now().Sub(log.CreatedAt) > toneFreshness {
		s.logger.Debug("ignoring stale tone log", zap.String("tone_log_id", id))
		return nil, nil
	}

	label, ok := analysis.ParseLabel(log.Label)
	if !ok {
		label = analysis.Neutral
	}
	return &Tone{
		LogID:      log.ID,
		Label:      label,
		Confidence: log.Confidence,
		Style:      tone.StyleFor(label),
	}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
