package chat_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/crisis"
	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/config"
	chatmodel "github.com/zhouzirui/haven/backend/internal/model/chat"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/internal/model/user"
	"github.com/zhouzirui/haven/backend/internal/model/voice"
	aiservice "github.com/zhouzirui/haven/backend/internal/service/ai"
	chat "github.com/zhouzirui/haven/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
	"github.com/zhouzirui/haven/backend/internal/store"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

type fixture struct {
	svc    *chat.Service
	users  *store.UserRepository
	voice  *store.VoiceRepository
	userID string
}

func newFixture(t *testing.T, fake *testutil.FakeChatModel) fixture {
	t.Helper()
	return newFixtureWithAI(t, fake, config.AIConfig{})
}

func newFixtureWithAI(t *testing.T, fake *testutil.FakeChatModel, aiCfg config.AIConfig) fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	logger := zap.NewNop()

	emotionSvc, err := emotionservice.NewService(ctx, nil, emotionservice.Config{}, logger, nil)
	require.NoError(t, err)

	var aiSvc *aiservice.Service
	if fake != nil {
		aiSvc, err = aiservice.NewService(ctx, fake, aiCfg, logger, nil)
	} else {
		aiSvc, err = aiservice.NewService(ctx, nil, aiCfg, logger, nil)
	}
	require.NoError(t, err)

	users := store.NewUserRepository(db)
	voiceRepo := store.NewVoiceRepository(db)

	u := user.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	settings := user.DefaultSettings(u.ID, "mindfulness-guide")
	settings.CrisisContactName = "Sam"
	settings.CrisisContactPhone = "555-0100"
	require.NoError(t, users.CreateWithSettings(ctx, &u, &settings))

	svc := chat.NewService(chat.Dependencies{
		Conversations: store.NewConversationRepository(db),
		Users:         users,
		Voice:         voiceRepo,
		Companions:    companion.DefaultCatalog(),
		Emotion:       emotionSvc,
		AI:            aiSvc,
		Logger:        logger,
	})
	return fixture{svc: svc, users: users, voice: voiceRepo, userID: u.ID}
}

func TestCreateConversationUsesSettingsCompanion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conv, err := f.svc.CreateConversation(ctx, f.userID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "mindfulness-guide", conv.CompanionID)

	_, err = f.svc.CreateConversation(ctx, f.userID, "pirate", "")
	assert.ErrorIs(t, err, chat.ErrUnknownCompanion)

	list, err := f.svc.ListConversations(ctx, f.userID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSendMessageWithoutModel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	conv, err := f.svc.CreateConversation(ctx, f.userID, companion.DefaultID, "")
	require.NoError(t, err)

	long := "I feel so lonely and sad since my friend moved away to another city last month"
	turn, err := f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: long})
	require.NoError(t, err)

	assert.Equal(t, emotion.Sad, turn.Guidance.Decision.Emotion)
	assert.Equal(t, "sad", turn.UserMessage.Emotion)
	assert.NotEmpty(t, turn.AssistantMessage.Content)
	assert.Nil(t, turn.Crisis)

	got, messages, err := f.svc.GetConversation(ctx, f.userID, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []rune(long)[:48], []rune(got.Title))
	require.Len(t, messages, 2)
	assert.Equal(t, chatmodel.SenderUser, messages[0].Sender)
	assert.Equal(t, chatmodel.SenderAssistant, messages[1].Sender)

	_, err = f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: "   "})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	_, err = f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: strings.Repeat("a", 4001)})
	assert.ErrorIs(t, err, chat.ErrMessageTooLong)
}

func TestSendMessageFlagsCrisis(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	conv, err := f.svc.CreateConversation(ctx, f.userID, "", "")
	require.NoError(t, err)

	turn, err := f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: "I want to end my life"})
	require.NoError(t, err)

	require.NotNil(t, turn.Crisis)
	assert.Equal(t, crisis.High, turn.Crisis.Severity)
	assert.True(t, turn.UserMessage.Crisis)
	assert.True(t, turn.AssistantMessage.Crisis)
	require.NotEmpty(t, turn.Crisis.Resources)
	assert.Equal(t, "555-0100", turn.Crisis.Resources[0].Contact)
	assert.Contains(t, turn.AssistantMessage.Content, "555-0100")
}

func TestSendMessageAppliesFreshTone(t *testing.T) {
	fake := testutil.NewFakeChatModel("Let's take this slowly.")
	f := newFixture(t, fake)
	ctx := context.Background()
	conv, err := f.svc.CreateConversation(ctx, f.userID, "", "")
	require.NoError(t, err)

	fresh := voice.ToneLog{ID: uuid.NewString(), UserID: f.userID, Label: "anxious", Confidence: 0.8, CreatedAt: time.Now().UTC()}
	stale := voice.ToneLog{ID: uuid.NewString(), UserID: f.userID, Label: "excited", Confidence: 0.9, CreatedAt: time.Now().UTC().Add(-2 * time.Hour)}
	require.NoError(t, f.voice.Create(ctx, &fresh))
	require.NoError(t, f.voice.Create(ctx, &stale))

	turn, err := f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: "hello", ToneLogID: fresh.ID})
	require.NoError(t, err)
	require.NotNil(t, turn.Tone)
	assert.Equal(t, emotion.Anxious, turn.Tone.Label)
	assert.Equal(t, "anxious", turn.AssistantMessage.ToneLabel)
	assert.Equal(t, "Let's take this slowly.", turn.AssistantMessage.Content)
	assert.Contains(t, fake.LastSystemPrompt(), "sounded anxious")

	turn, err = f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: "hello again", ToneLogID: stale.ID})
	require.NoError(t, err)
	assert.Nil(t, turn.Tone)
	assert.NotContains(t, fake.LastSystemPrompt(), "sounded")

	_, err = f.svc.SendMessage(ctx, f.userID, conv.ID, chat.SendRequest{Content: "hi", ToneLogID: "missing"})
	assert.ErrorIs(t, err, chat.ErrToneNotFound)
}

func TestConversationOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	conv, err := f.svc.CreateConversation(ctx, f.userID, "", "Evening check-in")
	require.NoError(t, err)
	assert.Equal(t, "Evening check-in", conv.Title)

	_, _, err = f.svc.GetConversation(ctx, "intruder", conv.ID, 0)
	assert.ErrorIs(t, err, chat.ErrNotFound)
	_, err = f.svc.SendMessage(ctx, "intruder", conv.ID, chat.SendRequest{Content: "hi"})
	assert.ErrorIs(t, err, chat.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteConversation(ctx, "intruder", conv.ID), chat.ErrNotFound)

	require.NoError(t, f.svc.DeleteConversation(ctx, f.userID, conv.ID))
	_, _, err = f.svc.GetConversation(ctx, f.userID, conv.ID, 0)
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestGenerateReplyStreamsDeltas(t *testing.T) {
	fake := testutil.NewFakeChatModel("Breathe in slowly with me.")
	f := newFixtureWithAI(t, fake, config.AIConfig{StreamResponse: true})
	ctx := context.Background()
	conv, err := f.svc.CreateConversation(ctx, f.userID, "", "")
	require.NoError(t, err)

	pending, err := f.svc.BeginTurn(ctx, f.userID, conv.ID, chat.SendRequest{Content: "I can't calm down"})
	require.NoError(t, err)

	var deltas []string
	reply, err := f.svc.GenerateReply(ctx, pending, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Breathe in slowly with me.", reply)
	assert.Equal(t, []string{"Breathe ", "in ", "slowly ", "with ", "me."}, deltas)

	turn, err := f.svc.CompleteTurn(ctx, pending, reply)
	require.NoError(t, err)
	assert.True(t, turn.AssistantMessage.CreatedAt.After(turn.UserMessage.CreatedAt))

	// without a delta callback the reply is generated in one piece
	pending, err = f.svc.BeginTurn(ctx, f.userID, conv.ID, chat.SendRequest{Content: "thanks"})
	require.NoError(t, err)
	reply, err = f.svc.GenerateReply(ctx, pending, nil)
	require.NoError(t, err)
	assert.Equal(t, "Breathe in slowly with me.", reply)
}
