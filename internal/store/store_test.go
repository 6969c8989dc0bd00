package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/haven/backend/internal/model/chat"
	"github.com/zhouzirui/haven/backend/internal/model/goal"
	"github.com/zhouzirui/haven/backend/internal/model/journal"
	"github.com/zhouzirui/haven/backend/internal/model/mood"
	"github.com/zhouzirui/haven/backend/internal/model/music"
	"github.com/zhouzirui/haven/backend/internal/model/user"
	"github.com/zhouzirui/haven/backend/internal/model/voice"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testutil.NewDB(t))

	u := &user.User{ID: uuid.NewString(), Email: "ana@example.com", PasswordHash: "x", DisplayName: "Ana"}
	settings := user.DefaultSettings(u.ID, "gentle-listener")
	require.NoError(t, repo.CreateWithSettings(ctx, u, &settings))

	exists, err := repo.EmailExists(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := repo.FindByEmail(ctx, "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetSettings(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.VoiceAnalysisEnabled)

	got.Theme = user.ThemeDark
	got.VoiceAnalysisEnabled = false
	require.NoError(t, repo.SaveSettings(ctx, &got))

	again, err := repo.GetSettings(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ThemeDark, again.Theme)
	assert.False(t, again.VoiceAnalysisEnabled)
}

func TestConversationRepositoryOwnershipAndMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(testutil.NewDB(t))

	conv := &chat.Conversation{ID: uuid.NewString(), UserID: "u1", CompanionID: "gentle-listener"}
	require.NoError(t, repo.Create(ctx, conv))

	_, err := repo.Get(ctx, "u2", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Now().UTC().Add(-time.Minute)
	for i, text := range []string{"one", "two", "three"} {
		require.NoError(t, repo.AddMessage(ctx, &chat.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Sender:         chat.SenderUser,
			Content:        text,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := repo.Messages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)

	require.NoError(t, repo.Touch(ctx, conv.ID, "first title"))
	require.NoError(t, repo.Touch(ctx, conv.ID, "second title"))
	got, err := repo.Get(ctx, "u1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "first title", got.Title)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", conv.ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", conv.ID))

	msgs, err = repo.Messages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMoodRepositoryRangeAndSummaryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMoodRepository(testutil.NewDB(t))

	day := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &mood.Log{
			ID:       uuid.NewString(),
			UserID:   "u1",
			Score:    i + 3,
			Emotions: mood.StringList{"calm"},
			LoggedAt: day.AddDate(0, 0, i),
		}))
	}

	logs, err := repo.List(ctx, "u1", day.AddDate(0, 0, 1), day.AddDate(0, 0, 3), 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 4, logs[0].Score)
	assert.Equal(t, mood.StringList{"calm"}, logs[0].Emotions)

	capped, err := repo.List(ctx, "u1", time.Time{}, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	all, err := repo.ListRange(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 7, all[4].Score)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", logs[0].ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", logs[0].ID))

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	first := &mood.Summary{ID: uuid.NewString(), UserID: "u1", Period: mood.Weekly, PeriodStart: start, Count: 2, Average: 5}
	require.NoError(t, repo.UpsertSummary(ctx, first))
	second := &mood.Summary{ID: uuid.NewString(), UserID: "u1", Period: mood.Weekly, PeriodStart: start, Count: 4, Average: 6.5, Insight: "updated"}
	require.NoError(t, repo.UpsertSummary(ctx, second))

	summaries, err := repo.Summaries(ctx, "u1", mood.Weekly, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 4, summaries[0].Count)
	assert.Equal(t, "updated", summaries[0].Insight)
}

func TestJournalRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewJournalRepository(testutil.NewDB(t))

	base := time.Now().UTC().Add(-time.Hour)
	for i, text := range []string{"sunrise", "friends", "a good book"} {
		require.NoError(t, repo.Create(ctx, &journal.Entry{
			ID:        uuid.NewString(),
			UserID:    "u1",
			Kind:      journal.Hope,
			Content:   text,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &journal.Entry{ID: uuid.NewString(), UserID: "u1", Kind: journal.Free, Content: "today"}))

	n, err := repo.CountByKind(ctx, "u1", journal.Hope)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	second, err := repo.NthByKind(ctx, "u1", journal.Hope, 1)
	require.NoError(t, err)
	assert.Equal(t, "friends", second.Content)

	_, err = repo.NthByKind(ctx, "u1", journal.Hope, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	free, err := repo.List(ctx, "u1", journal.Free, 0)
	require.NoError(t, err)
	require.Len(t, free, 1)

	all, err := repo.List(ctx, "u1", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	entry := free[0]
	entry.Content = "edited"
	require.NoError(t, repo.Save(ctx, &entry))
	got, err := repo.Get(ctx, "u1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)

	require.NoError(t, repo.Delete(ctx, "u1", entry.ID))
	_, err = repo.Get(ctx, "u1", entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoalRepositoryOrdersOpenFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewGoalRepository(testutil.NewDB(t))

	done := &goal.Goal{ID: uuid.NewString(), UserID: "u1", Title: "walk", Progress: 100, Completed: true}
	open := &goal.Goal{ID: uuid.NewString(), UserID: "u1", Title: "sleep", Progress: 20}
	require.NoError(t, repo.Create(ctx, done))
	require.NoError(t, repo.Create(ctx, open))

	goals, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "sleep", goals[0].Title)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", open.ID), ErrNotFound)
}

func TestMusicRepositoryFinished(t *testing.T) {
	ctx := context.Background()
	repo := NewMusicRepository(testutil.NewDB(t))

	now := time.Now().UTC()
	after := 7
	require.NoError(t, repo.Create(ctx, &music.Session{ID: uuid.NewString(), UserID: "u1", TrackID: "t1", MoodBefore: 4, StartedAt: now}))
	require.NoError(t, repo.Create(ctx, &music.Session{
		ID: uuid.NewString(), UserID: "u1", TrackID: "t1", MoodBefore: 4, MoodAfter: &after,
		StartedAt: now.Add(-time.Hour), EndedAt: &now, DurationSec: 300,
	}))

	finished, err := repo.Finished(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, 7, *finished[0].MoodAfter)

	all, err := repo.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	open := all[1]
	if open.EndedAt != nil {
		open = all[0]
	}
	ok, err := repo.Finish(ctx, "u2", open.ID, 6, now, 120)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.Finish(ctx, "u1", open.ID, 6, now, 120)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Finish(ctx, "u1", open.ID, 9, now, 180)
	require.NoError(t, err)
	assert.False(t, ok)

	finished, err = repo.Finished(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, finished, 2)
}

func TestVoiceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewVoiceRepository(testutil.NewDB(t))

	log := &voice.ToneLog{ID: uuid.NewString(), UserID: "u1", Label: "calm", Confidence: 0.7, Features: "{}"}
	require.NoError(t, repo.Create(ctx, log))

	got, err := repo.Get(ctx, "u1", log.ID)
	require.NoError(t, err)
	assert.Equal(t, "calm", got.Label)

	_, err = repo.Get(ctx, "u2", log.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
