// Package audio holds the realtime audio primitives: the PCM codec, the
// gapless playback scheduler, and the microphone capture pipeline.
package audio

import (
	"errors"
	"fmt"
)

const (
	// BytesPerSample is the width of one little-endian signed 16-bit sample.
	BytesPerSample = 2

	// CaptureSampleRate is the microphone rate sent to the model.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of model speech received back.
	PlaybackSampleRate = 24000

	// CaptureMIMEType tags outbound chunks. The rate suffix is part of the
	// wire contract and must not change.
	CaptureMIMEType = "audio/pcm;rate=16000"
)

// ErrMalformedAudio reports a byte buffer that cannot be a whole number of
// samples.
var ErrMalformedAudio = errors.New("malformed audio payload")

// Decode interprets b as little-endian 16-bit signed mono PCM and returns
// normalized samples in [-1, 1].
func Decode(b []byte) ([]float32, error) {
	return DecodeChannels(b, 1)
}

// DecodeChannels decodes interleaved multi-channel PCM, returning channel 0.
func DecodeChannels(b []byte, channels int) ([]float32, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrMalformedAudio, channels)
	}
	stride := BytesPerSample * channels
	if len(b)%stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedAudio, len(b), stride)
	}
	frames := len(b) / stride
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		off := i * stride
		s := int16(uint16(b[off]) | uint16(b[off+1])<<8)
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}

// Encode converts normalized samples back to little-endian 16-bit signed
// PCM, clamping anything outside [-1, 1].
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, v := range samples {
		f := v * 32768.0
		if f > 32767 {
			f = 32767
		} else if f < -32768 {
			f = -32768
		}
		s := int16(f)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DurationOf returns the play time in nanoseconds of pcmLen bytes of mono
// s16le audio at the given rate.
func DurationOf(pcmLen, sampleRate int) int64 {
	if sampleRate <= 0 || pcmLen <= 0 {
		return 0
	}
	samples := int64(pcmLen / BytesPerSample)
	return samples * 1e9 / int64(sampleRate)
}
