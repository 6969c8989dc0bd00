package prosody

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zhouzirui/haven/backend/internal/testutil"
)

func tone(freq, amp, seconds float64, rate int) []float64 {
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func silence(seconds float64, rate int) []float64 {
	return make([]float64, int(seconds*float64(rate)))
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestExtractSteadyTone(t *testing.T) {
	a := Audio{Samples: tone(200, 0.5, 1, 16000), SampleRate: 16000}

	f, err := Extract(a, "")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, f.DurationSec, 1e-9)
	assert.InDelta(t, 0.5/math.Sqrt2, f.RMS, 0.005)
	assert.InDelta(t, -9.03, f.DBFS, 0.1)
	assert.InDelta(t, 200, f.PitchMeanHz, 4)
	assert.Less(t, f.PitchStdHz, 2.0)
	assert.Less(t, f.Jitter, 0.02)
	assert.Less(t, f.Shimmer, 0.05)
	assert.Equal(t, 0, f.PauseCount)
	assert.Greater(t, f.VoicedRatio, 0.95)
	assert.Equal(t, RateFromEnergy, f.SpeechRateFrom)
}

func TestExtractCountsPauses(t *testing.T) {
	rate := 16000
	a := Audio{
		Samples:    concat(tone(180, 0.4, 0.5, rate), silence(0.5, rate), tone(180, 0.4, 0.5, rate)),
		SampleRate: rate,
	}

	f, err := Extract(a, "")
	require.NoError(t, err)

	assert.Equal(t, 1, f.PauseCount)
	assert.InDelta(t, 40, f.PausesPerMinute, 0.01)
	assert.Greater(t, f.PauseRatio, 0.2)
	assert.Less(t, f.PauseRatio, 0.45)
	assert.InDelta(t, 1.0, f.SpeakingSec, 0.1)
}

func TestExtractShortGapIsNotAPause(t *testing.T) {
	rate := 16000
	a := Audio{
		Samples:    concat(tone(180, 0.4, 0.5, rate), silence(0.1, rate), tone(180, 0.4, 0.5, rate)),
		SampleRate: rate,
	}

	f, err := Extract(a, "")
	require.NoError(t, err)
	assert.Equal(t, 0, f.PauseCount)
}

func TestExtractSpeechRateFromTranscript(t *testing.T) {
	a := Audio{Samples: tone(150, 0.3, 2, 16000), SampleRate: 16000}

	f, err := Extract(a, "I have been feeling a lot better")
	require.NoError(t, err)

	assert.Equal(t, RateFromTranscript, f.SpeechRateFrom)
	assert.InDelta(t, 7/f.SpeakingSec*60, f.SpeechRateWPM, 1e-9)
	assert.InDelta(t, 210, f.SpeechRateWPM, 10)
}

func TestWithTranscriptOverridesEnergyRate(t *testing.T) {
	a := Audio{Samples: tone(150, 0.3, 2, 16000), SampleRate: 16000}

	acoustic, err := Extract(a, "")
	require.NoError(t, err)
	require.Equal(t, RateFromEnergy, acoustic.SpeechRateFrom)

	same := acoustic.WithTranscript("   ")
	assert.Equal(t, acoustic, same)

	withText, err := Extract(a, "I have been feeling a lot better")
	require.NoError(t, err)
	assert.Equal(t, withText, acoustic.WithTranscript("I have been feeling a lot better"))
}

func TestExtractSpeechRateFromEnergyPeaks(t *testing.T) {
	rate := 16000
	var parts [][]float64
	// four syllable-like bursts per second for two seconds
	for i := 0; i < 8; i++ {
		burst := tone(160, 0.5, 0.15, rate)
		for j := range burst {
			burst[j] *= math.Sin(math.Pi * float64(j) / float64(len(burst)))
		}
		parts = append(parts, burst, silence(0.1, rate))
	}
	a := Audio{Samples: concat(parts...), SampleRate: rate}

	f, err := Extract(a, "")
	require.NoError(t, err)
	assert.Equal(t, RateFromEnergy, f.SpeechRateFrom)
	assert.Greater(t, f.SpeechRateWPM, 0.0)
}

func TestExtractRejectsShortOrSilentAudio(t *testing.T) {
	_, err := Extract(Audio{Samples: tone(200, 0.5, 0.1, 16000), SampleRate: 16000}, "")
	assert.ErrorIs(t, err, ErrInsufficientAudio)

	_, err = Extract(Audio{Samples: silence(1, 16000), SampleRate: 16000}, "hello")
	assert.ErrorIs(t, err, ErrInsufficientAudio)

	_, err = Extract(Audio{}, "")
	assert.ErrorIs(t, err, ErrInsufficientAudio)
}

func TestEncodeParseWAV(t *testing.T) {
	in := tone(220, 0.6, 0.3, 8000)
	out, err := ParseWAV(testutil.EncodeWAV(in, 8000))
	require.NoError(t, err)

	require.Equal(t, 8000, out.SampleRate)
	require.Len(t, out.Samples, len(in))
	for i := range in {
		require.InDelta(t, in[i], out.Samples[i], 1e-4)
	}
}

func buildWAV(t *testing.T, format, channels, bits uint16, rate uint32, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+16+8+len(payload)+8+4))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, format)
	_ = binary.Write(&buf, binary.LittleEndian, channels)
	_ = binary.Write(&buf, binary.LittleEndian, rate)
	_ = binary.Write(&buf, binary.LittleEndian, rate*uint32(channels)*uint32(bits/8))
	_ = binary.Write(&buf, binary.LittleEndian, channels*bits/8)
	_ = binary.Write(&buf, binary.LittleEndian, bits)
	// odd-sized chunk that must be skipped with its pad byte
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

func TestParseWAVDownmixesStereoFloat(t *testing.T) {
	var payload bytes.Buffer
	for _, v := range []float32{0.5, -0.5, 0.25, 0.75} {
		_ = binary.Write(&payload, binary.LittleEndian, math.Float32bits(v))
	}

	a, err := ParseWAV(buildWAV(t, formatFloat, 2, 32, 16000, payload.Bytes()))
	require.NoError(t, err)
	require.Len(t, a.Samples, 2)
	assert.InDelta(t, 0, a.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, a.Samples[1], 1e-9)
}

func TestParseWAVInteger24And8Bit(t *testing.T) {
	// 0x400000 is half scale; 0xC00000 is minus half scale
	a, err := ParseWAV(buildWAV(t, formatPCM, 1, 24, 8000, []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}))
	require.NoError(t, err)
	require.Len(t, a.Samples, 2)
	assert.InDelta(t, 0.5, a.Samples[0], 1e-6)
	assert.InDelta(t, -0.5, a.Samples[1], 1e-6)

	a, err = ParseWAV(buildWAV(t, formatPCM, 1, 8, 8000, []byte{128, 192}))
	require.NoError(t, err)
	assert.InDelta(t, 0, a.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, a.Samples[1], 1e-9)
}

func TestParseWAVErrors(t *testing.T) {
	_, err := ParseWAV([]byte("definitely not audio"))
	assert.ErrorIs(t, err, ErrInvalidWAV)

	_, err = ParseWAV(buildWAV(t, formatPCM, 1, 12, 8000, []byte{0, 0}))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	noData := testutil.EncodeWAV(nil, 8000)[:36]
	_, err = ParseWAV(noData)
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestExtractTracksPitchProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.SampledFrom([]int{8000, 16000}).Draw(t, "rate")
		freq := rapid.Float64Range(90, 380).Draw(t, "freq")
		amp := rapid.Float64Range(0.05, 0.9).Draw(t, "amp")

		f, err := Extract(Audio{Samples: tone(freq, amp, 0.5, rate), SampleRate: rate}, "")
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if math.Abs(f.PitchMeanHz-freq)/freq > 0.03 {
			t.Fatalf("pitch %.2f too far from %.2f", f.PitchMeanHz, freq)
		}
		if f.Jitter < 0 || f.Jitter > 0.05 {
			t.Fatalf("jitter out of range: %f", f.Jitter)
		}
	})
}

func TestExtractFeaturesStayFiniteProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := rapid.SliceOfN(rapid.Float64Range(-1, 1), 2000, 6000).Draw(t, "samples")

		f, err := Extract(Audio{Samples: samples, SampleRate: 8000}, "")
		if err != nil {
			if err != ErrInsufficientAudio {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		for name, v := range map[string]float64{
			"rms": f.RMS, "dbfs": f.DBFS, "pitch": f.PitchMeanHz, "jitter": f.Jitter,
			"shimmer": f.Shimmer, "pauses": f.PausesPerMinute, "rate": f.SpeechRateWPM,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s is not finite: %v", name, v)
			}
		}
		if f.VoicedRatio < 0 || f.VoicedRatio > 1 || f.PauseRatio < 0 || f.PauseRatio > 1 {
			t.Fatalf("ratios out of range: %+v", f)
		}
		if f.PitchMeanHz != 0 && (f.PitchMeanHz < minPitchHz*0.9 || f.PitchMeanHz > maxPitchHz*1.1) {
			t.Fatalf("pitch outside band: %f", f.PitchMeanHz)
		}
	})
}
