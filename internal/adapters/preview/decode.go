package preview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/ewilliams-labs/cadence/internal/adapters/wav"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// go-mp3 always yields 16-bit little-endian stereo.
const mp3FrameBytes = 4

// DecodeClip decodes an MP3 or WAV file into mono samples at the file's
// native rate, keeping at most maxDuration of audio.
func DecodeClip(data []byte, maxDuration time.Duration) (domain.AudioBuffer, error) {
	if len(data) == 0 {
		return domain.AudioBuffer{}, errors.New("preview decode: empty input")
	}

	var (
		buf domain.AudioBuffer
		err error
	)
	if isWAV(data) {
		buf, err = wav.Decode(bytes.NewReader(data))
	} else {
		buf, err = decodeMP3(data, maxDuration)
	}
	if err != nil {
		return domain.AudioBuffer{}, fmt.Errorf("preview decode: %w", err)
	}
	if len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		return domain.AudioBuffer{}, errors.New("preview decode: no samples")
	}

	return truncate(buf, maxDuration), nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeMP3(data []byte, maxDuration time.Duration) (domain.AudioBuffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return domain.AudioBuffer{}, fmt.Errorf("mp3: %w", err)
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		return domain.AudioBuffer{}, fmt.Errorf("mp3: invalid sample rate %d", rate)
	}

	limit := maxSamples(rate, maxDuration)
	samples := make([]float64, 0, limit)
	chunk := make([]byte, 4096)
	var carry []byte

	for len(samples) < limit {
		n, err := dec.Read(chunk)
		if n > 0 {
			frame := append(carry, chunk[:n]...)
			usable := len(frame) - len(frame)%mp3FrameBytes
			for i := 0; i < usable && len(samples) < limit; i += mp3FrameBytes {
				l := int16(frame[i]) | int16(frame[i+1])<<8
				r := int16(frame[i+2]) | int16(frame[i+3])<<8
				samples = append(samples, (float64(l)+float64(r))/2/32768.0)
			}
			carry = append(carry[:0], frame[usable:]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return domain.AudioBuffer{}, fmt.Errorf("mp3: read: %w", err)
		}
	}

	return domain.AudioBuffer{Samples: samples, SampleRate: rate}, nil
}

func maxSamples(rate int, maxDuration time.Duration) int {
	return int(int64(rate) * int64(maxDuration) / int64(time.Second))
}

func truncate(buf domain.AudioBuffer, maxDuration time.Duration) domain.AudioBuffer {
	if limit := maxSamples(buf.SampleRate, maxDuration); len(buf.Samples) > limit {
		buf.Samples = buf.Samples[:limit]
	}
	return buf
}
