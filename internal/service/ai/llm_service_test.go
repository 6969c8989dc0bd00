package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/crisis"
	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/analysis/tone"
	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/model/chat"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

func newTestService(t *testing.T, fake *testutil.FakeChatModel, stream bool) *Service {
	t.Helper()
	var svc *Service
	var err error
	if fake == nil {
		svc, err = NewService(context.Background(), nil, config.AIConfig{StreamResponse: stream}, zap.NewNop(), nil)
	} else {
		svc, err = NewService(context.Background(), fake, config.AIConfig{StreamResponse: stream}, zap.NewNop(), nil)
	}
	require.NoError(t, err)
	return svc
}

func TestGenerateResponseBuildsPrompt(t *testing.T) {
	fake := testutil.NewFakeChatModel("  I hear you.  ")
	svc := newTestService(t, fake, false)
	comp := companion.Seed()[1]

	history := make([]chat.Message, 0, 14)
	for i := range 14 {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderAssistant
		}
		history = append(history, chat.Message{Sender: sender, Content: strings.Repeat("x", i+1)})
	}

	reply, err := svc.GenerateResponse(context.Background(), ReplyContext{
		Companion:   &comp,
		History:     history,
		UserMessage: "work is too much",
		Guidance: &emotionservice.Guidance{
			Decision: emotion.Decision{Emotion: emotion.Stressed, Scale: 3.5},
			Style:    "one step at a time",
		},
		Tone: &ToneHint{Label: emotion.Tired, Confidence: 0.72, Style: tone.StyleFor(emotion.Tired)},
	})
	require.NoError(t, err)
	assert.Equal(t, "I hear you.", reply)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	msgs := calls[0]
	// system + 10 history + query
	assert.Len(t, msgs, 12)
	assert.Equal(t, "work is too much", msgs[len(msgs)-1].Content)

	system := fake.LastSystemPrompt()
	assert.Contains(t, system, "Rowan")
	assert.Contains(t, system, "under pressure")
	assert.Contains(t, system, "one step at a time")
	assert.Contains(t, system, "sounded tired (confidence 0.72)")
	assert.NotContains(t, system, "IMPORTANT")
}

func TestSystemPromptIncludesCrisisResources(t *testing.T) {
	svc := newTestService(t, nil, false)
	result := crisis.Detect("I want to kill myself", crisis.Contact{Name: "Sam", Phone: "555-0100"})
	require.True(t, result.Detected)

	prompt := svc.BuildSystemPrompt(ReplyContext{Crisis: &result})
	assert.Contains(t, prompt, "IMPORTANT")
	assert.Contains(t, prompt, "555-0100")
	assert.Contains(t, prompt, "supportive wellbeing companion")
}

func TestUnknownCompanionUsesBasicPrompt(t *testing.T) {
	pm := NewCompanionPromptManager()
	prompt := pm.BuildSystemPrompt(&companion.Companion{ID: "custom", Name: "Kai", Title: "Sleep Buddy", Techniques: []string{"wind-down"}})
	assert.Contains(t, prompt, "You are Kai, a sleep buddy")
	assert.Contains(t, prompt, "wind-down")
	assert.Contains(t, prompt, "not a therapist")
}

func TestGenerateResponseFallbacks(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, nil, true)
		assert.False(t, svc.Enabled())
		assert.False(t, svc.StreamingEnabled())

		reply, err := svc.GenerateResponse(context.Background(), ReplyContext{
			Guidance: &emotionservice.Guidance{Decision: emotion.Decision{Emotion: emotion.Sad}},
		})
		require.NoError(t, err)
		assert.Equal(t, cannedReplies[emotion.Sad], reply)
	})

	t.Run("model error", func(t *testing.T) {
		fake := &testutil.FakeChatModel{Reply: func([]*schema.Message) (string, error) {
			return "", errors.New("boom")
		}}
		reply, err := newTestService(t, fake, false).GenerateResponse(context.Background(), ReplyContext{})
		require.NoError(t, err)
		assert.Equal(t, cannedReplies[emotion.Neutral], reply)
	})

	t.Run("cancelled", func(t *testing.T) {
		fake := &testutil.FakeChatModel{Reply: func([]*schema.Message) (string, error) {
			return "", context.Canceled
		}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestService(t, fake, false).GenerateResponse(ctx, ReplyContext{})
		assert.Error(t, err)
	})
}

func TestFallbackReplyPrefersToneAndCrisis(t *testing.T) {
	rc := ReplyContext{
		Guidance: &emotionservice.Guidance{Decision: emotion.Decision{Emotion: emotion.Happy}},
		Tone:     &ToneHint{Label: emotion.Anxious},
	}
	assert.Equal(t, cannedReplies[emotion.Anxious], FallbackReply(rc))

	result := crisis.Detect("there is no reason to live", crisis.Contact{})
	rc.Crisis = &result
	reply := FallbackReply(rc)
	assert.True(t, strings.HasPrefix(reply, crisisReply))
	for _, r := range result.Resources {
		assert.Contains(t, reply, r.Contact)
	}
}

func TestStreamResponse(t *testing.T) {
	svc := newTestService(t, testutil.NewFakeChatModel("take a slow breath"), true)
	stream, err := svc.StreamResponse(context.Background(), ReplyContext{UserMessage: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		b.WriteString(chunk.Content)
	}
	assert.Equal(t, "take a slow breath", b.String())

	_, err = newTestService(t, testutil.NewFakeChatModel("x"), false).StreamResponse(context.Background(), ReplyContext{})
	assert.ErrorIs(t, err, ErrStreamingDisabled)
}
