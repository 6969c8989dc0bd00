package moodstats

import (
	"sort"
	"time"

	"github.com/zhouzirui/haven/backend/internal/model/mood"
)

// BucketStart returns the UTC start of the period containing t.
// Weeks start on Monday.
func BucketStart(t time.Time, period mood.Period) time.Time {
	d := truncateDay(t)
	switch period {
	case mood.Weekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case mood.Monthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// Summarize groups logs into period buckets ordered by start. ID, UserID
// and CreatedAt are left for the caller.
func Summarize(logs []mood.Log, period mood.Period) []mood.Summary {
	groups := make(map[time.Time][]mood.Log)
	for _, l := range logs {
		start := BucketStart(l.LoggedAt, period)
		groups[start] = append(groups[start], l)
	}

	starts := make([]time.Time, 0, len(groups))
	for s := range groups {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]mood.Summary, 0, len(starts))
	for _, start := range starts {
		bucket := groups[start]
		stats := Compute(bucket, start, time.Time{}, start)
		out = append(out, mood.Summary{
			Period:          period,
			PeriodStart:     start,
			Count:           stats.Count,
			Average:         stats.Average,
			Min:             stats.Min,
			Max:             stats.Max,
			DominantEmotion: DominantEmotion(stats.EmotionCounts),
			Insight:         Insight(stats.Average, stats.Trend, period),
		})
	}
	return out
}

// Insight is a short canned sentence for a summary card.
func Insight(average float64, trend string, period mood.Period) string {
	span := "day"
	switch period {
	case mood.Weekly:
		span = "week"
	case mood.Monthly:
		span = "month"
	}

	switch {
	case average >= 7.5 && trend == TrendDeclining:
		return "A strong " + span + " overall, though things dipped towards the end. Notice what changed."
	case average >= 7.5:
		return "A bright " + span + ". Take a moment to note what helped you feel this way."
	case average >= 5 && trend == TrendImproving:
		return "Your mood lifted through the " + span + ". Keep leaning on what is working."
	case average >= 5 && trend == TrendDeclining:
		return "A middling " + span + " that trended down. Be kind to yourself and plan something restful."
	case average >= 5:
		return "A steady " + span + ". Small routines like check-ins and walks help keep it that way."
	case trend == TrendImproving:
		return "A hard " + span + ", but things started to turn. Every small step counts."
	default:
		return "This " + span + " has been heavy. Consider reaching out to someone you trust or talking it through with your companion."
	}
}
