// Package tone merges text sentiment and prosody into a single tone label.
package tone

import (
	"errors"
	"math"

	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/analysis/prosody"
)

// ErrNoSignal is returned when neither text nor audio features are available.
var ErrNoSignal = errors.New("no text or acoustic signal")

// Signal sources reported in Result.Sources.
const (
	SourceText     = "text"
	SourceAcoustic = "acoustic"
)

const singleSignalCap = 0.6

// TextSignal is the sentiment rating of a transcript.
type TextSignal struct {
	Point      emotion.Point
	Confidence float64
}

// Input feeds Classify. Either field may be nil.
type Input struct {
	Text     *TextSignal
	Features *prosody.Features
}

// Result is the merged tone.
type Result struct {
	Label           emotion.Label `json:"label"`
	Confidence      float64       `json:"confidence"`
	Valence         float64       `json:"valence"`
	Arousal         float64       `json:"arousal"`
	Dominance       float64       `json:"dominance"`
	Sources         []string      `json:"sources"`
	Recommendations []string      `json:"recommendations"`
	Style           ResponseStyle `json:"responseStyle"`
}

// Classify merges the available signals. With both present, arousal is an
// even blend and valence leans 70/30 towards the text.
func Classify(in Input) (Result, error) {
	if in.Text == nil && in.Features == nil {
		return Result{}, ErrNoSignal
	}

	var (
		merged  emotion.Point
		conf    float64
		sources []string
	)

	switch {
	case in.Text != nil && in.Features != nil:
		text := clampPoint(in.Text.Point)
		acoustic := Acoustic(*in.Features)
		merged = emotion.Point{
			Valence:   0.7*text.Valence + 0.3*acoustic.Valence,
			Arousal:   0.5*text.Arousal + 0.5*acoustic.Arousal,
			Dominance: 0.5*text.Dominance + 0.5*acoustic.Dominance,
		}
		agreement := 1 - (math.Abs(text.Valence-acoustic.Valence)/2+math.Abs(text.Arousal-acoustic.Arousal))/2
		conf = 0.35 + 0.35*agreement + 0.15*quality(*in.Features) + 0.15*unit(in.Text.Confidence)
		sources = []string{SourceText, SourceAcoustic}
	case in.Text != nil:
		merged = clampPoint(in.Text.Point)
		conf = math.Min(singleSignalCap, 0.2+0.4*unit(in.Text.Confidence))
		sources = []string{SourceText}
	default:
		merged = Acoustic(*in.Features)
		conf = math.Min(singleSignalCap, 0.2+0.4*quality(*in.Features))
		sources = []string{SourceAcoustic}
	}

	merged = clampPoint(merged)
	label := Label(merged)
	return Result{
		Label:           label,
		Confidence:      round3(unit(conf)),
		Valence:         round3(merged.Valence),
		Arousal:         round3(merged.Arousal),
		Dominance:       round3(merged.Dominance),
		Sources:         sources,
		Recommendations: Recommendations(label),
		Style:           StyleFor(label),
	}, nil
}

// Acoustic estimates a VAD point from prosody alone. Valence is deliberately
// kept within about ±0.5.
func Acoustic(f prosody.Features) emotion.Point {
	volume := norm(f.DBFS, -40, -10)
	variability := 0.0
	if f.PitchMeanHz > 0 {
		variability = norm(f.PitchStdHz/f.PitchMeanHz, 0.02, 0.25)
	}
	rate := norm(f.SpeechRateWPM, 90, 200)
	pausiness := norm(f.PausesPerMinute, 0, 30)

	arousal := 0.35*volume + 0.25*variability + 0.25*rate + 0.15*(1-pausiness)

	brightness := 0.5
	if f.PitchMeanHz > 0 {
		brightness = norm(f.PitchMeanHz, 100, 260)
	}
	roughness := 0.5*norm(f.Jitter, 0.005, 0.04) + 0.5*norm(f.Shimmer, 0.03, 0.2)
	valence := 0.4*(2*brightness-1) - 0.5*roughness + 0.1

	dominance := 0.5*volume + 0.3*rate + 0.2*(1-pausiness)

	return clampPoint(emotion.Point{Valence: valence, Arousal: arousal, Dominance: dominance})
}

// Label maps a VAD point to a tone label, with a neutral centre.
func Label(p emotion.Point) emotion.Label {
	v, a, d := p.Valence, p.Arousal, p.Dominance

	switch {
	case math.Abs(v) < 0.2:
		switch {
		case a >= 0.65:
			return emotion.Stressed
		case a <= 0.3 && v >= 0:
			return emotion.Calm
		case a <= 0.3:
			return emotion.Tired
		default:
			return emotion.Neutral
		}
	case v >= 0.2:
		switch {
		case a >= 0.65:
			return emotion.Excited
		case a >= 0.4:
			return emotion.Happy
		default:
			return emotion.Calm
		}
	default:
		switch {
		case a < 0.4 && v <= -0.45:
			return emotion.Sad
		case a < 0.4:
			return emotion.Tired
		case a >= 0.6 && d >= 0.6:
			return emotion.Angry
		case a >= 0.55 && d < 0.33:
			return emotion.Anxious
		default:
			return emotion.Stressed
		}
	}
}

func quality(f prosody.Features) float64 {
	return 0.5*unit(f.VoicedRatio/0.5) + 0.5*unit(f.DurationSec/5)
}

func norm(x, lo, hi float64) float64 {
	if hi <= lo || math.IsNaN(x) {
		return 0
	}
	return unit((x - lo) / (hi - lo))
}

func unit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

func clampPoint(p emotion.Point) emotion.Point {
	v := p.Valence
	if math.IsNaN(v) {
		v = 0
	}
	return emotion.Point{
		Valence:   math.Max(-1, math.Min(1, v)),
		Arousal:   unit(p.Arousal),
		Dominance: unit(p.Dominance),
	}
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
