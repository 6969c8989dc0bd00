// Package prosody extracts elementary acoustic statistics from speech audio.
package prosody

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrInsufficientAudio is returned for clips that are too short or silent.
var ErrInsufficientAudio = errors.New("insufficient audio for analysis")

const (
	frameDuration = 0.040
	hopDuration   = 0.010

	minDuration   = 0.25
	minPauseSec   = 0.25
	minPitchHz    = 75.0
	maxPitchHz    = 400.0
	voicingCorr   = 0.3
	speechFloor   = 0.02
	relativeFloor = 0.3
	silenceFloor  = 1e-4

	// syllables per word used to turn energy peaks into words per minute
	syllablesPerWord = 1.5
	minPeakGapSec    = 0.1
	peakProminence   = 0.1
)

// Speech rate sources.
const (
	RateFromTranscript = "transcript"
	RateFromEnergy     = "energy"
)

// Features is the acoustic summary of one clip.
type Features struct {
	DurationSec     float64 `json:"durationSec"`
	SpeakingSec     float64 `json:"speakingSec"`
	VoicedRatio     float64 `json:"voicedRatio"`
	RMS             float64 `json:"rms"`
	DBFS            float64 `json:"dbfs"`
	PitchMeanHz     float64 `json:"pitchMeanHz"`
	PitchStdHz      float64 `json:"pitchStdHz"`
	PitchRangeHz    float64 `json:"pitchRangeHz"`
	Jitter          float64 `json:"jitter"`
	Shimmer         float64 `json:"shimmer"`
	PauseCount      int     `json:"pauseCount"`
	PausesPerMinute float64 `json:"pausesPerMinute"`
	PauseRatio      float64 `json:"pauseRatio"`
	SpeechRateWPM   float64 `json:"speechRateWpm"`
	SpeechRateFrom  string  `json:"speechRateFrom"`
}

type frame struct {
	rms    float64
	speech bool
	pitch  float64 // 0 when unvoiced
}

// Extract computes Features for a clip. transcript, when non-empty, drives
// the speech rate; otherwise energy peaks stand in for syllables.
func Extract(a Audio, transcript string) (Features, error) {
	duration := a.Duration()
	frameLen := int(math.Round(frameDuration * float64(a.SampleRate)))
	hop := int(math.Round(hopDuration * float64(a.SampleRate)))
	if duration < minDuration || frameLen < 2 || hop < 1 || len(a.Samples) < frameLen {
		return Features{}, ErrInsufficientAudio
	}

	overall := rms(a.Samples)
	if overall < silenceFloor {
		return Features{}, ErrInsufficientAudio
	}

	frames := analyzeFrames(a, frameLen, hop)
	if len(frames) == 0 {
		return Features{}, ErrInsufficientAudio
	}

	f := Features{
		DurationSec: duration,
		RMS:         overall,
		DBFS:        20 * math.Log10(overall),
	}

	var pitches []float64
	var speechFrames, voicedFrames int
	for _, fr := range frames {
		if fr.speech {
			speechFrames++
		}
		if fr.pitch > 0 {
			voicedFrames++
			pitches = append(pitches, fr.pitch)
		}
	}
	if speechFrames == 0 {
		return Features{}, ErrInsufficientAudio
	}

	f.SpeakingSec = float64(speechFrames) * hopDuration
	f.VoicedRatio = float64(voicedFrames) / float64(len(frames))

	if len(pitches) > 0 {
		mean, std := meanStd(pitches)
		lo, hi := minMax(pitches)
		f.PitchMeanHz = mean
		f.PitchStdHz = std
		f.PitchRangeHz = hi - lo
	}

	// unvoiced frames break the period and amplitude sequences
	periods := make([]float64, 0, len(frames))
	amps := make([]float64, 0, len(frames))
	for _, fr := range frames {
		if fr.pitch == 0 {
			periods = append(periods, math.NaN())
			amps = append(amps, math.NaN())
			continue
		}
		periods = append(periods, 1/fr.pitch)
		amps = append(amps, fr.rms)
	}
	f.Jitter = localPerturbation(periods)
	f.Shimmer = localPerturbation(amps)

	f.PauseCount, f.PauseRatio = pauses(frames)
	f.PausesPerMinute = float64(f.PauseCount) / (duration / 60)

	voicedSec := float64(voicedFrames) * hopDuration
	if voicedSec > 0 {
		peaks := energyPeaks(frames)
		f.SpeechRateWPM = float64(peaks) / voicedSec * 60 / syllablesPerWord
	}
	f.SpeechRateFrom = RateFromEnergy

	return f.WithTranscript(transcript), nil
}

// WithTranscript returns f with the speech rate taken from the words of
// transcript. f is returned unchanged when transcript has no words.
func (f Features) WithTranscript(transcript string) Features {
	words := countWords(transcript)
	if words == 0 || f.SpeakingSec <= 0 {
		return f
	}
	f.SpeechRateWPM = float64(words) / f.SpeakingSec * 60
	f.SpeechRateFrom = RateFromTranscript
	return f
}

func analyzeFrames(a Audio, frameLen, hop int) []frame {
	count := 1 + (len(a.Samples)-frameLen)/hop
	frames := make([]frame, count)
	var active []float64
	for i := range frames {
		start := i * hop
		frames[i].rms = rms(a.Samples[start : start+frameLen])
		if frames[i].rms > silenceFloor {
			active = append(active, frames[i].rms)
		}
	}

	threshold := speechFloor
	if len(active) > 0 {
		threshold = math.Max(speechFloor, relativeFloor*median(active))
	}

	minLag := int(math.Floor(float64(a.SampleRate) / maxPitchHz))
	maxLag := int(math.Ceil(float64(a.SampleRate) / minPitchHz))
	if maxLag >= frameLen {
		maxLag = frameLen - 1
	}
	if minLag < 1 {
		minLag = 1
	}

	buf := make([]float64, frameLen)
	for i := range frames {
		if frames[i].rms <= threshold {
			continue
		}
		frames[i].speech = true

		start := i * hop
		copy(buf, a.Samples[start:start+frameLen])
		removeDC(buf)
		lag, corr := bestLag(buf, minLag, maxLag)
		if lag > 0 && corr >= voicingCorr {
			frames[i].pitch = float64(a.SampleRate) / lag
		}
	}
	return frames
}

// bestLag returns the refined pitch period in samples and its normalized
// autocorrelation. The shortest lag within 90% of the global peak wins to
// avoid octave-down errors.
func bestLag(x []float64, minLag, maxLag int) (float64, float64) {
	if maxLag <= minLag {
		return 0, 0
	}
	corr := make([]float64, maxLag+2)
	peak := 0.0
	for lag := minLag; lag <= maxLag+1 && lag < len(x); lag++ {
		corr[lag] = normalizedAutocorr(x, lag)
		if lag <= maxLag && corr[lag] > peak {
			peak = corr[lag]
		}
	}
	if peak <= 0 {
		return 0, 0
	}

	chosen := 0
	for lag := minLag; lag <= maxLag; lag++ {
		c := corr[lag]
		if c < 0.9*peak {
			continue
		}
		left := lag == minLag || c >= corr[lag-1]
		right := lag+1 >= len(corr) || c >= corr[lag+1]
		if left && right {
			chosen = lag
			break
		}
	}
	if chosen == 0 {
		return 0, 0
	}

	refined := float64(chosen)
	if chosen > minLag && chosen+1 < len(corr) {
		a, b, c := corr[chosen-1], corr[chosen], corr[chosen+1]
		if denom := a - 2*b + c; denom != 0 {
			shift := 0.5 * (a - c) / denom
			if math.Abs(shift) < 1 {
				refined += shift
			}
		}
	}
	return refined, corr[chosen]
}

func normalizedAutocorr(x []float64, lag int) float64 {
	var num, e1, e2 float64
	for i := 0; i+lag < len(x); i++ {
		num += x[i] * x[i+lag]
		e1 += x[i] * x[i]
		e2 += x[i+lag] * x[i+lag]
	}
	if e1 == 0 || e2 == 0 {
		return 0
	}
	return num / math.Sqrt(e1*e2)
}

// localPerturbation is mean |x_i - x_{i-1}| / mean x over runs separated by NaN.
func localPerturbation(values []float64) float64 {
	var diffSum, valueSum float64
	var diffs, count int
	prev := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			prev = math.NaN()
			continue
		}
		valueSum += v
		count++
		if !math.IsNaN(prev) {
			diffSum += math.Abs(v - prev)
			diffs++
		}
		prev = v
	}
	if diffs == 0 || count == 0 || valueSum == 0 {
		return 0
	}
	return (diffSum / float64(diffs)) / (valueSum / float64(count))
}

// pauses counts silent runs of at least minPauseSec between the first and
// last speech frame, and returns the silent share of the whole clip.
func pauses(frames []frame) (int, float64) {
	first, last := -1, -1
	silent := 0
	for i, fr := range frames {
		if fr.speech {
			if first < 0 {
				first = i
			}
			last = i
		} else {
			silent++
		}
	}
	ratio := float64(silent) / float64(len(frames))
	if first < 0 {
		return 0, ratio
	}

	minRun := int(math.Ceil(minPauseSec / hopDuration))
	count, run := 0, 0
	for i := first; i <= last; i++ {
		if frames[i].speech {
			if run >= minRun {
				count++
			}
			run = 0
			continue
		}
		run++
	}
	return count, ratio
}

// energyPeaks counts local maxima of the smoothed RMS contour over voiced
// frames that rise clear of the preceding valley, at least minPeakGapSec apart.
func energyPeaks(frames []frame) int {
	smoothed := make([]float64, len(frames))
	for i := range frames {
		var sum float64
		var n int
		for j := i - 2; j <= i+2; j++ {
			if j >= 0 && j < len(frames) {
				sum += frames[j].rms
				n++
			}
		}
		smoothed[i] = sum / float64(n)
	}

	minGap := int(math.Ceil(minPeakGapSec / hopDuration))
	peaks, lastPeak := 0, -minGap
	valley := smoothed[0]
	for i := 1; i < len(frames)-1; i++ {
		valley = math.Min(valley, smoothed[i])
		if frames[i].pitch == 0 || i-lastPeak < minGap {
			continue
		}
		rising := smoothed[i] > smoothed[i-1] && smoothed[i] >= smoothed[i+1]
		if rising && smoothed[i]-valley >= peakProminence*smoothed[i] {
			peaks++
			lastPeak = i
			valley = smoothed[i]
		}
	}
	return peaks
}

func countWords(transcript string) int {
	return len(strings.Fields(transcript))
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func removeDC(x []float64) {
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	for i := range x {
		x[i] -= mean
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
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

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
