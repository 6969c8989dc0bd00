package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/crisis"
	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/analysis/tone"
	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/model/chat"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
)

// ErrStreamingDisabled is returned by StreamResponse when streaming is off
// or no model is configured.
var ErrStreamingDisabled = errors.New("streaming disabled")

const historyLimit = 10

// ToneHint carries the user's latest voice tone into the prompt.
type ToneHint struct {
	Label      emotion.Label
	Confidence float64
	Style      tone.ResponseStyle
}

// ReplyContext is everything the companion knows when answering.
type ReplyContext struct {
	Companion   *companion.Companion
	History     []chat.Message
	UserMessage string
	Guidance    *emotionservice.Guidance
	Tone        *ToneHint
	Crisis      *crisis.Result
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	prompts   *CompanionPromptManager
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewService compiles the reply chain. With a nil chatModel the service
// answers with canned replies.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, logger *zap.Logger, collector *metrics.Collector) (*Service, error) {
	svc := &Service{
		chatModel: chatModel,
		cfg:       cfg,
		prompts:   NewCompanionPromptManager(),
		logger:    logger.With(zap.String("component", "ai")),
		metrics:   collector,
	}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

// Enabled reports whether a chat model is configured.
func (s *Service) Enabled() bool {
	return s.chain != nil
}

// StreamingEnabled reports whether SSE streaming should be used.
func (s *Service) StreamingEnabled() bool {
	return s.Enabled() && s.cfg.StreamResponse
}

// GenerateResponse produces the companion's reply. Model failures degrade to
// a canned reply so the conversation never dead-ends.
func (s *Service) GenerateResponse(ctx context.Context, rc ReplyContext) (string, error) {
	if !s.Enabled() {
		return FallbackReply(rc), nil
	}

	start := time.Now()
	response, err := s.chain.Invoke(ctx, s.buildChainInput(rc))
	s.metrics.RecordLLMRequest("chat", err, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("failed to run AI chain: %w", err)
		}
		s.logger.Warn("chat chain failed, using canned reply", zap.Error(err))
		return FallbackReply(rc), nil
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return FallbackReply(rc), nil
	}

	s.logger.Debug("generated reply", zap.Int("length", len(content)))
	return content, nil
}

// StreamResponse streams reply chunks via the configured chain.
func (s *Service) StreamResponse(ctx context.Context, rc ReplyContext) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, ErrStreamingDisabled
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(rc))
	if err != nil {
		s.metrics.RecordLLMRequest("chat_stream", err, 0)
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	s.metrics.RecordLLMRequest("chat_stream", nil, 0)
	return stream, nil
}

func (s *Service) buildChainInput(rc ReplyContext) map[string]any {
	return map[string]any{
		"system":  s.BuildSystemPrompt(rc),
		"history": buildHistoryMessages(rc.History),
		"query":   rc.UserMessage,
	}
}

// BuildSystemPrompt combines the companion prompt with emotion guidance,
// voice tone style and crisis instructions.
func (s *Service) BuildSystemPrompt(rc ReplyContext) string {
	var builder strings.Builder
	builder.WriteString(s.prompts.BuildSystemPrompt(rc.Companion))

	if g := rc.Guidance; g != nil && g.Decision.Emotion != "" {
		builder.WriteString("\n\nEmotion read of the user's message: ")
		if desc := describeEmotion(g.Decision.Emotion); desc != "" {
			builder.WriteString(desc)
		} else {
			fmt.Fprintf(&builder, "label=%s.", g.Decision.Emotion)
		}
		fmt.Fprintf(&builder, " Intensity about %.1f of 5.", g.Decision.Scale)
		if g.Style != "" {
			builder.WriteString("\nSuggested tone: ")
			builder.WriteString(g.Style)
		}
		if g.Reason != "" && g.Reason != "fallback" {
			builder.WriteString("\nWhy: ")
			builder.WriteString(g.Reason)
		}
	}

	if t := rc.Tone; t != nil && t.Label != "" {
		fmt.Fprintf(&builder, "\n\nTheir voice recently sounded %s (confidence %.2f).", t.Label, t.Confidence)
		fmt.Fprintf(&builder, "\nReply style: %s pace, %s warmth, %s length. %s",
			t.Style.Pace, t.Style.Warmth, t.Style.Length, t.Style.Guidance)
	}

	if c := rc.Crisis; c != nil && c.Detected {
		builder.WriteString("\n\nIMPORTANT: the user's message may indicate a crisis (severity ")
		builder.WriteString(string(c.Severity))
		builder.WriteString("). Respond with calm care, tell them they deserve support right now, and encourage them to reach out to one of these:")
		for _, r := range c.Resources {
			fmt.Fprintf(&builder, "\n- %s: %s", r.Name, r.Contact)
		}
	}

	builder.WriteString("\n\nStay in character and put the user's feelings first.")
	return builder.String()
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := max(len(messages)-historyLimit, 0)

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}

func describeEmotion(label emotion.Label) string {
	switch label {
	case emotion.Happy:
		return "the user seems positive and happy; keep it light and affirming."
	case emotion.Excited:
		return "the user is excited; share their energy and help them savour it."
	case emotion.Calm:
		return "the user is calm; keep a gentle, unhurried tone."
	case emotion.Sad:
		return "the user seems low or sad; be soft, comforting and validating."
	case emotion.Tired:
		return "the user sounds tired; keep it short and easy to read."
	case emotion.Anxious:
		return "the user seems anxious; be steady and grounding."
	case emotion.Angry:
		return "the user is frustrated or angry; stay composed and acknowledge it."
	case emotion.Stressed:
		return "the user is under pressure; help them find one manageable next step."
	case emotion.Neutral:
		return "the user seems even; stay clear, kind and natural."
	default:
		return ""
	}
}
