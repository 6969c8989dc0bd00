package mood

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/moodstats"
	"github.com/zhouzirui/haven/backend/internal/cache"
	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/model/mood"
	"github.com/zhouzirui/haven/backend/internal/store"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC) // a Wednesday

func newTestService(t *testing.T, c cache.Cache) *Service {
	t.Helper()
	svc := NewService(store.NewMoodRepository(testutil.NewDB(t)), c, time.Minute, zap.NewNop(), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func intPtr(v int) *int { return &v }

func at(daysAgo int) *time.Time {
	t := fixedNow.AddDate(0, 0, -daysAgo).Add(-time.Hour)
	return &t
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	cases := map[string]struct {
		in   CreateInput
		want error
	}{
		"score low":     {CreateInput{Score: 0}, ErrInvalidScore},
		"score high":    {CreateInput{Score: 11}, ErrInvalidScore},
		"energy":        {CreateInput{Score: 5, Energy: intPtr(6)}, ErrInvalidEnergy},
		"future":        {CreateInput{Score: 5, LoggedAt: ptrTime(fixedNow.Add(10 * time.Minute))}, ErrFutureLog},
		"many emotions": {CreateInput{Score: 5, Emotions: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}}, ErrTooManyEmotions},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	entry, err := svc.Create(ctx, "u1", CreateInput{
		Score:    7,
		Energy:   intPtr(3),
		Emotions: []string{" Calm ", "calm", "", "Hopeful"},
		LoggedAt: ptrTime(fixedNow.Add(2 * time.Minute)),
	})
	require.NoError(t, err)
	assert.Equal(t, mood.StringList{"calm", "hopeful"}, entry.Emotions)
	assert.Equal(t, fixedNow.Add(2*time.Minute), entry.LoggedAt)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestStatsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(config.CacheConfig{Addr: mr.Addr(), TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	svc := newTestService(t, manager)
	ctx := context.Background()

	for i, score := range []int{4, 5, 6, 7} {
		_, err := svc.Create(ctx, "u1", CreateInput{Score: score, Emotions: []string{"calm"}, LoggedAt: at(3 - i)})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 5.5, stats.Average)
	assert.Equal(t, moodstats.TrendImproving, stats.Trend)
	assert.Equal(t, 4, stats.CurrentStreak)
	assert.Equal(t, 4, stats.EmotionCounts["calm"])

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "mood:u1:stats:")

	// served from cache even though the row is gone underneath
	require.NoError(t, svc.repo.Delete(ctx, "u1", mustFirstID(t, svc)))
	cached, err := svc.Stats(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, cached.Count)

	_, err = svc.Create(ctx, "u1", CreateInput{Score: 9})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())

	fresh, err := svc.Stats(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, fresh.Count)
	assert.Equal(t, 9, fresh.Max)
}

func TestStatsCoverEveryLogInRange(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	// 1100 logs on the oldest day, then a handful of recent ones that a
	// capped read would drop.
	for i := 0; i < 1100; i++ {
		ts := fixedNow.AddDate(0, 0, -5).Add(time.Duration(i) * time.Second)
		_, err := svc.Create(ctx, "u1", CreateInput{Score: 2, LoggedAt: &ts})
		require.NoError(t, err)
	}
	for i := 4; i >= 0; i-- {
		_, err := svc.Create(ctx, "u1", CreateInput{Score: 10, LoggedAt: at(i)})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1105, stats.Count)
	assert.Equal(t, 10, stats.Max)
	assert.Equal(t, 6, stats.CurrentStreak)
	assert.Equal(t, moodstats.TrendImproving, stats.Trend)

	summaries, err := svc.Summaries(ctx, "u1", mood.Daily, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, summaries, 6)
	assert.Equal(t, 1100, summaries[0].Count)
	assert.Equal(t, 1, summaries[len(summaries)-1].Count)
}

func mustFirstID(t *testing.T, svc *Service) string {
	t.Helper()
	logs, err := svc.List(context.Background(), "u1", time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	return logs[0].ID
}

func TestDeleteOwnership(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	entry, err := svc.Create(ctx, "u1", CreateInput{Score: 5})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", entry.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", entry.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", entry.ID), ErrNotFound)
}

func TestSummariesUpsertWeeklyBuckets(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	// Mon 10 Mar and Wed 12 Mar share a week; Sun 9 Mar is the week before.
	for _, in := range []CreateInput{
		{Score: 3, Emotions: []string{"tired"}, LoggedAt: ptrTime(time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC))},
		{Score: 6, Emotions: []string{"calm"}, LoggedAt: ptrTime(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))},
		{Score: 8, Emotions: []string{"calm"}, LoggedAt: ptrTime(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))},
	} {
		_, err := svc.Create(ctx, "u1", in)
		require.NoError(t, err)
	}

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	summaries, err := svc.Summaries(ctx, "u1", mood.Weekly, from, time.Time{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), summaries[0].PeriodStart.UTC())
	assert.Equal(t, 1, summaries[0].Count)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), summaries[1].PeriodStart.UTC())
	assert.Equal(t, 2, summaries[1].Count)
	assert.Equal(t, 7.0, summaries[1].Average)
	assert.Equal(t, "calm", summaries[1].DominantEmotion)
	assert.NotEmpty(t, summaries[1].Insight)

	// a second pass updates in place
	_, err = svc.Create(ctx, "u1", CreateInput{Score: 10, LoggedAt: ptrTime(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC))})
	require.NoError(t, err)
	again, err := svc.Summaries(ctx, "u1", mood.Weekly, from, time.Time{})
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, 3, again[1].Count)
	assert.Equal(t, summaries[1].ID, again[1].ID)
}

func TestRangeValidation(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Stats(context.Background(), "u1", fixedNow, fixedNow.AddDate(0, 0, -3))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = svc.List(context.Background(), "u1", fixedNow, fixedNow, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}
