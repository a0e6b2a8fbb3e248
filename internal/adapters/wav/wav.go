// Package wav encodes reconstructed audio as 16-bit PCM WAV and decodes WAV
// previews into mono sample buffers.
package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	bitDepth      = 16
	pcmFormat     = 1
	maxPCM16      = 32767
	ContentType   = "audio/wav"
	AttachmentFmt = `attachment; filename="%s"`
)

// Encode renders w as a mono 16-bit PCM WAV file. Samples outside [-1, 1]
// are clipped.
func Encode(w domain.Waveform) ([]byte, error) {
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", w.SampleRate)
	}

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = toPCM16(s)
	}

	out := &writeSeeker{}
	enc := gowav.NewEncoder(out, w.SampleRate, bitDepth, 1, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("wav: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav: finalize header: %w", err)
	}
	return out.Bytes(), nil
}

// Decode reads a PCM WAV file and mixes it down to mono.
func Decode(r io.ReadSeeker) (domain.AudioBuffer, error) {
	dec := gowav.NewDecoder(r)
	if !dec.IsValidFile() {
		return domain.AudioBuffer{}, errors.New("wav: not a valid PCM wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return domain.AudioBuffer{}, fmt.Errorf("wav: read pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return domain.AudioBuffer{}, errors.New("wav: missing format chunk")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return domain.AudioBuffer{}, fmt.Errorf("wav: invalid channel count %d", channels)
	}
	depth := int(dec.BitDepth)
	if depth <= 0 || depth > 32 {
		return domain.AudioBuffer{}, fmt.Errorf("wav: unsupported bit depth %d", depth)
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	scale := float64(int64(1) << (depth - 1))
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if depth == 8 {
				// 8-bit PCM is unsigned.
				v -= 128
			}
			sum += float64(v) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return domain.AudioBuffer{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func toPCM16(s float64) int {
	if math.IsNaN(s) {
		return 0
	}
	s = math.Max(-1, math.Min(1, s))
	return int(math.Round(s * maxPCM16))
}

// writeSeeker is an in-memory io.WriteSeeker; the encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(w.pos) + offset
	case io.SeekEnd:
		next = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("wav: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("wav: negative seek position")
	}
	w.pos = int(next)
	return next, nil
}

func (w *writeSeeker) Bytes() []byte {
	return bytes.Clone(w.buf)
}
