package prosody

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Errors returned by DecodeWAV.
var (
	ErrInvalidWAV        = errors.New("invalid wav data")
	ErrUnsupportedFormat = errors.New("unsupported wav sample format")
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// Audio is mono PCM normalized to [-1, 1].
type Audio struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the clip in seconds.
func (a Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// DecodeWAV reads a RIFF/WAVE stream and downmixes it to mono.
// Integer PCM of 8, 16, 24 or 32 bits and 32/64-bit float are accepted.
func DecodeWAV(r io.Reader) (Audio, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Audio{}, fmt.Errorf("read wav: %w", err)
	}
	return ParseWAV(data)
}

// ParseWAV decodes an in-memory WAV file.
func ParseWAV(data []byte) (Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format  *wavFormat
		payload []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			// tolerate a truncated trailing data chunk from streaming recorders
			if id == "data" {
				end = len(data)
			} else {
				return Audio{}, fmt.Errorf("%w: chunk %q overruns file", ErrInvalidWAV, id)
			}
		}

		switch id {
		case "fmt ":
			f, err := parseFormat(data[body:end])
			if err != nil {
				return Audio{}, err
			}
			format = &f
		case "data":
			payload = data[body:end]
		}

		pos = end + (end-body)%2
	}

	if format == nil {
		return Audio{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	if payload == nil {
		return Audio{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}
	return decodeSamples(*format, payload)
}

func parseFormat(chunk []byte) (wavFormat, error) {
	if len(chunk) < 16 {
		return wavFormat{}, fmt.Errorf("%w: fmt chunk too short", ErrInvalidWAV)
	}
	f := wavFormat{
		audioFormat:   binary.LittleEndian.Uint16(chunk[0:2]),
		channels:      binary.LittleEndian.Uint16(chunk[2:4]),
		sampleRate:    binary.LittleEndian.Uint32(chunk[4:8]),
		bitsPerSample: binary.LittleEndian.Uint16(chunk[14:16]),
	}
	if f.audioFormat == formatExtensible {
		// sub-format GUID starts at offset 24; its first two bytes carry the real format
		if len(chunk) < 26 {
			return wavFormat{}, fmt.Errorf("%w: extensible fmt chunk too short", ErrInvalidWAV)
		}
		f.audioFormat = binary.LittleEndian.Uint16(chunk[24:26])
	}
	if f.channels == 0 || f.sampleRate == 0 {
		return wavFormat{}, fmt.Errorf("%w: zero channels or sample rate", ErrInvalidWAV)
	}
	return f, nil
}

func decodeSamples(f wavFormat, payload []byte) (Audio, error) {
	var read func([]byte) float64
	switch {
	case f.audioFormat == formatPCM && f.bitsPerSample == 8:
		read = func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }
	case f.audioFormat == formatPCM && f.bitsPerSample == 16:
		read = func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) / 32768 }
	case f.audioFormat == formatPCM && f.bitsPerSample == 24:
		read = func(b []byte) float64 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float64(v) / 8388608
		}
	case f.audioFormat == formatPCM && f.bitsPerSample == 32:
		read = func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648 }
	case f.audioFormat == formatFloat && f.bitsPerSample == 32:
		read = func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	case f.audioFormat == formatFloat && f.bitsPerSample == 64:
		read = func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
	default:
		return Audio{}, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedFormat, f.audioFormat, f.bitsPerSample)
	}

	width := int(f.bitsPerSample) / 8
	channels := int(f.channels)
	frameSize := width * channels
	frames := len(payload) / frameSize

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		base := i * frameSize
		var sum float64
		for c := 0; c < channels; c++ {
			off := base + c*width
			sum += read(payload[off : off+width])
		}
		v := sum / float64(channels)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		samples[i] = math.Max(-1, math.Min(1, v))
	}
	return Audio{Samples: samples, SampleRate: int(f.sampleRate)}, nil
}
