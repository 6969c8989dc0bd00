package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	analysis "github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/model/chat"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
)

// Config controls the classifier.
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Guidance is the detected emotion of a chat turn plus a tone suggestion
// for the reply.
type Guidance struct {
	Decision   analysis.Decision `json:"decision"`
	Style      string            `json:"style"`
	Confidence float32           `json:"confidence"`
	Reason     string            `json:"reason"`
}

// Sentiment sources.
const (
	SourceLLM     = "llm"
	SourceLexicon = "lexicon"
)

// Sentiment is a VAD rating of a transcript.
type Sentiment struct {
	Point      analysis.Point `json:"point"`
	Label      analysis.Label `json:"label"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	Reason     string         `json:"reason,omitempty"`
}

// Service classifies emotion with the LLM and falls back to keyword rules.
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	rater        compose.Runnable[map[string]any, *schema.Message]
	fallback     func(user, assistant string) analysis.Decision
	historyLimit int
	logger       *zap.Logger
	metrics      *metrics.Collector
}

// NewService builds the classifier chains. chatModel may be nil.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config, logger *zap.Logger, collector *metrics.Collector) (*Service, error) {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		fallback:     analysis.Analyze,
		historyLimit: historyLimit,
		logger:       logger.With(zap.String("component", "emotion")),
		metrics:      collector,
	}
	if !svc.enabled {
		return svc, nil
	}

	classifier, err := compileChain(ctx, chatModel, emotionSystemPrompt, emotionUserPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}
	rater, err := compileChain(ctx, chatModel, sentimentSystemPrompt, sentimentUserPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment chain: %w", err)
	}

	svc.classifier = classifier
	svc.rater = rater
	return svc, nil
}

func compileChain(ctx context.Context, chatModel model.BaseChatModel, system, user string) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Enabled reports whether the LLM classifier is active.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Analyze predicts the user's emotion for a chat turn. assistantDraft may be
// empty when guidance is needed before the reply exists.
func (s *Service) Analyze(ctx context.Context, comp *companion.Companion, history []chat.Message, userMessage, assistantDraft string) Guidance {
	if !s.Enabled() {
		return s.fallbackGuidance(userMessage, assistantDraft)
	}

	input := map[string]any{
		"companion":       summarizeCompanion(comp),
		"history":         formatHistory(history, s.historyLimit),
		"user_message":    strings.TrimSpace(userMessage),
		"assistant_draft": strings.TrimSpace(assistantDraft),
	}

	start := time.Now()
	msg, err := s.classifier.Invoke(ctx, input)
	s.metrics.RecordLLMRequest("emotion", err, time.Since(start))
	if err != nil {
		s.logger.Warn("classifier invoke failed, using fallback", zap.Error(err))
		return s.fallbackGuidance(userMessage, assistantDraft)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackGuidance(userMessage, assistantDraft)
	}

	result := &classifierPayload{}
	if err := parseJSONObject(msg.Content, result); err != nil {
		s.logger.Warn("classifier output parse failed, using fallback", zap.Error(err))
		return s.fallbackGuidance(userMessage, assistantDraft)
	}

	label, ok := analysis.ParseLabel(result.Emotion)
	if !ok {
		return s.fallbackGuidance(userMessage, assistantDraft)
	}

	scale := clampScale(result.Scale)
	style := strings.TrimSpace(result.Style)
	if style == "" {
		style = defaultStyleByEmotion[label]
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Guidance{
		Decision:   analysis.Decision{Emotion: label, Scale: scale, Score: int(scale * 2)},
		Style:      style,
		Confidence: confidence,
		Reason:     strings.TrimSpace(result.Reason),
	}
}

// RateTranscript rates valence, arousal and dominance of a transcript.
// ok is false when the transcript is empty.
func (s *Service) RateTranscript(ctx context.Context, transcript string) (Sentiment, bool) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Sentiment{}, false
	}
	if !s.Enabled() || s.rater == nil {
		return lexiconSentiment(transcript), true
	}

	start := time.Now()
	msg, err := s.rater.Invoke(ctx, map[string]any{"transcript": transcript})
	s.metrics.RecordLLMRequest("sentiment", err, time.Since(start))
	if err != nil {
		s.logger.Warn("sentiment invoke failed, using lexicon", zap.Error(err))
		return lexiconSentiment(transcript), true
	}
	if msg == nil {
		return lexiconSentiment(transcript), true
	}

	payload := &sentimentPayload{}
	if err := parseJSONObject(msg.Content, payload); err != nil || payload.Valence == nil || payload.Arousal == nil {
		s.logger.Warn("sentiment output unusable, using lexicon", zap.Error(err))
		return lexiconSentiment(transcript), true
	}

	point := analysis.Point{
		Valence:   clamp(*payload.Valence, -1, 1),
		Arousal:   clamp(*payload.Arousal, 0, 1),
		Dominance: 0.5,
	}
	if payload.Dominance != nil {
		point.Dominance = clamp(*payload.Dominance, 0, 1)
	}
	confidence := 0.7
	if payload.Confidence != nil {
		confidence = clamp(*payload.Confidence, 0, 1)
	}
	label, _ := analysis.ParseLabel(payload.Label)

	return Sentiment{
		Point:      point,
		Label:      label,
		Confidence: confidence,
		Source:     SourceLLM,
		Reason:     strings.TrimSpace(payload.Reason),
	}, true
}

// lexiconSentiment moves from the neutral anchor towards the detected
// label's anchor in proportion to the keyword score.
func lexiconSentiment(text string) Sentiment {
	d := analysis.Detect(text)
	if d.Score == 0 {
		return Sentiment{Point: analysis.Anchor(analysis.Neutral), Label: analysis.Neutral, Confidence: 0.25, Source: SourceLexicon}
	}

	weight := math.Min(1, float64(d.Score)/6)
	from, to := analysis.Anchor(analysis.Neutral), analysis.Anchor(d.Emotion)
	point := analysis.Point{
		Valence:   from.Valence + weight*(to.Valence-from.Valence),
		Arousal:   from.Arousal + weight*(to.Arousal-from.Arousal),
		Dominance: from.Dominance + weight*(to.Dominance-from.Dominance),
	}
	return Sentiment{
		Point:      point,
		Label:      d.Emotion,
		Confidence: 0.35 + 0.25*weight,
		Source:     SourceLexicon,
	}
}

func (s *Service) fallbackGuidance(userMessage, assistantDraft string) Guidance {
	decision := s.fallback(userMessage, assistantDraft)
	style := defaultStyleByEmotion[decision.Emotion]
	if style == "" {
		style = defaultStyleByEmotion[analysis.Neutral]
	}

	confidence := float32(0.3)
	if decision.Score > 0 {
		confidence = 0.55
	}

	return Guidance{
		Decision:   decision,
		Style:      style,
		Confidence: confidence,
		Reason:     "fallback",
	}
}

// parseJSONObject decodes the first {...} span of a model reply.
func parseJSONObject(content string, dest any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("missing json object")
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), dest)
}

func summarizeCompanion(c *companion.Companion) string {
	if c == nil {
		return "No specific companion."
	}

	sections := []string{
		"Name: " + strings.TrimSpace(c.Name),
		"Role: " + strings.TrimSpace(c.Title),
	}
	if tone := strings.TrimSpace(c.Tone); tone != "" {
		sections = append(sections, "Usual tone: "+tone)
	}
	return strings.Join(sections, " | ")
}

func formatHistory(messages []chat.Message, limit int) string {
	if len(messages) == 0 {
		return "No previous messages."
	}
	if limit < 1 {
		limit = 1
	}
	start := max(len(messages)-limit, 0)

	lines := make([]string, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "User"
		if strings.EqualFold(msg.Sender, chat.SenderAssistant) {
			role = "Companion"
		}
		lines = append(lines, role+": "+content)
	}
	if len(lines) == 0 {
		return "No previous messages."
	}
	return strings.Join(lines, "\n")
}

func clampScale(val float32) float32 {
	if val <= 0 {
		return 3
	}
	return max(1, min(5, val))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

type classifierPayload struct {
	Emotion    string  `json:"emotion"`
	Scale      float32 `json:"scale"`
	Confidence float32 `json:"confidence"`
	Style      string  `json:"style"`
	Reason     string  `json:"reason"`
}

type sentimentPayload struct {
	Valence    *float64 `json:"valence"`
	Arousal    *float64 `json:"arousal"`
	Dominance  *float64 `json:"dominance"`
	Confidence *float64 `json:"confidence"`
	Label      string   `json:"label"`
	Reason     string   `json:"reason"`
}

// Templates are rendered with FString, so they must not contain literal braces.
const emotionSystemPrompt = "You analyse emotion and tone for a mental-wellness companion app. Read the companion profile, recent conversation, the user's latest message and the optional draft reply, infer the user's current emotion, and suggest the tone the reply should take.\n" +
	"Respond with a single JSON object and nothing else. Fields: emotion (one of neutral, happy, excited, calm, sad, tired, anxious, angry, stressed), scale (intensity from 1 to 5, decimals allowed), confidence (0 to 1), style (one sentence describing the reply tone), reason (short explanation)."

const emotionUserPrompt = "Companion:\n{companion}\n\nRecent conversation:\n{history}\n\nUser's latest message:\n{user_message}\n\nDraft reply (may be empty):\n{assistant_draft}\n\nReturn the JSON now."

const sentimentSystemPrompt = "You rate the emotional content of spoken-word transcripts for a wellness app.\n" +
	"Respond with a single JSON object and nothing else. Fields: valence (-1 very negative to 1 very positive), arousal (0 very calm or low energy to 1 highly activated), dominance (0 feeling powerless to 1 feeling in control), confidence (0 to 1), label (one of neutral, happy, excited, calm, sad, tired, anxious, angry, stressed), reason (short explanation)."

const sentimentUserPrompt = "Transcript:\n{transcript}\n\nReturn the JSON now."

var defaultStyleByEmotion = map[analysis.Label]string{
	analysis.Neutral:  "Stay calm, patient and clear.",
	analysis.Happy:    "Be light and encouraging, and share in their good mood.",
	analysis.Excited:  "Be warm and energetic, and celebrate with them.",
	analysis.Calm:     "Keep a gentle, unhurried pace and leave space for reflection.",
	analysis.Sad:      "Be soft and empathetic, and validate before suggesting anything.",
	analysis.Tired:    "Keep it short and gentle, and suggest rest without pressure.",
	analysis.Anxious:  "Be steady and grounding, and offer one small calming step.",
	analysis.Angry:    "Stay composed and non-defensive, and acknowledge the frustration first.",
	analysis.Stressed: "Acknowledge the pressure and help break things into one manageable step.",
}
