// Package moodstats aggregates mood logs into dashboard statistics and
// period summaries.
package moodstats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/zhouzirui/haven/backend/internal/model/mood"
)

// Trend labels.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendSteady    = "steady"
)

// trendThreshold is the slope in score points per day that counts as movement.
const trendThreshold = 0.05

const day = 24 * time.Hour

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Compute builds the dashboard view of logs in [from, to). now anchors the streak.
func Compute(logs []mood.Log, from, to, now time.Time) mood.Stats {
	stats := mood.Stats{
		From:          from,
		To:            to,
		Trend:         TrendSteady,
		EmotionCounts: map[string]int{},
	}
	if len(logs) == 0 {
		stats.CurrentStreak = Streak(logs, now)
		return stats
	}

	scores := make([]float64, len(logs))
	stats.Min, stats.Max = logs[0].Score, logs[0].Score
	var energySum float64
	var energyN int
	for i, l := range logs {
		scores[i] = float64(l.Score)
		stats.Min = min(stats.Min, l.Score)
		stats.Max = max(stats.Max, l.Score)
		if l.Energy != nil {
			energySum += float64(*l.Energy)
			energyN++
		}
		for _, e := range l.Emotions {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				stats.EmotionCounts[e]++
			}
		}
	}

	mean, std := meanStd(scores)
	stats.Count = len(logs)
	stats.Average = round2(mean)
	stats.StdDev = round2(std)
	if energyN > 0 {
		stats.AverageEnergy = round2(energySum / float64(energyN))
	}

	stats.TrendSlope = round3(Slope(logs))
	stats.Trend = TrendLabel(stats.TrendSlope)
	stats.CurrentStreak = Streak(logs, now)
	stats.BestWeekday, stats.WorstWeekday = weekdayExtremes(logs)
	return stats
}

// Slope is the least-squares change in score per day, with x the whole
// UTC day offset of each log from the earliest logged day. Logs sharing a
// day share an x.
func Slope(logs []mood.Log) float64 {
	if len(logs) < 2 {
		return 0
	}
	origin := truncateDay(logs[0].LoggedAt)
	for _, l := range logs[1:] {
		if d := truncateDay(l.LoggedAt); d.Before(origin) {
			origin = d
		}
	}

	var sx, sy, sxx, sxy float64
	n := float64(len(logs))
	for _, l := range logs {
		x := float64(truncateDay(l.LoggedAt).Sub(origin) / day)
		y := float64(l.Score)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	denom := n*sxx - sx*sx
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (n*sxy - sx*sy) / denom
}

// TrendLabel names a slope.
func TrendLabel(slope float64) string {
	switch {
	case slope > trendThreshold:
		return TrendImproving
	case slope < -trendThreshold:
		return TrendDeclining
	default:
		return TrendSteady
	}
}

// Streak counts consecutive UTC days with at least one log, ending today or
// yesterday relative to now.
func Streak(logs []mood.Log, now time.Time) int {
	days := make(map[time.Time]struct{}, len(logs))
	for _, l := range logs {
		days[truncateDay(l.LoggedAt)] = struct{}{}
	}

	cursor := truncateDay(now)
	if _, ok := days[cursor]; !ok {
		cursor = cursor.Add(-day)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.Add(-day)
	}
}

// weekdayExtremes returns the weekdays with the highest and lowest average
// score. Both are empty until at least two weekdays have logs.
func weekdayExtremes(logs []mood.Log) (string, string) {
	var sums, counts [7]float64
	for _, l := range logs {
		wd := l.LoggedAt.UTC().Weekday()
		sums[wd] += float64(l.Score)
		counts[wd]++
	}

	var best, worst time.Weekday
	bestAvg, worstAvg := math.Inf(-1), math.Inf(1)
	seen := 0
	for _, wd := range weekdayOrder {
		if counts[wd] == 0 {
			continue
		}
		seen++
		avg := sums[wd] / counts[wd]
		if avg > bestAvg {
			best, bestAvg = wd, avg
		}
		if avg < worstAvg {
			worst, worstAvg = wd, avg
		}
	}
	if seen < 2 {
		return "", ""
	}
	return best.String(), worst.String()
}

// DominantEmotion is the most frequent emotion tag; ties go alphabetically.
func DominantEmotion(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
