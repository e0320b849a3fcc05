// Package track loads audio clips into memory for timeline playback and
// waveform display.
package track

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	wav "github.com/youpy/go-wav"
)

// Buffer holds a decoded clip as interleaved stereo float32 samples at
// the engine sample rate.
type Buffer struct {
	Data       []float32
	SampleRate int
}

// Frames returns the number of stereo frames in the buffer.
func (b *Buffer) Frames() int { return len(b.Data) / 2 }

// Duration returns the clip length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Load reads the WAV file at path, converting it to stereo at sampleRate.
func Load(path string, sampleRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	b, err := Decode(f, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return b, nil
}

// Decode reads WAV data from r. Mono input is duplicated to both
// channels and the result is resampled to sampleRate when the file rate
// differs. Files with more than two channels are rejected.
func Decode(r io.Reader, sampleRate int) (*Buffer, error) {
	// go-wav needs ReadAt for RIFF chunk seeking, so slurp the stream.
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read wav data: %w", err)
	}
	wr := wav.NewReader(bytes.NewReader(raw))
	format, err := wr.Format()
	if err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	channels := int(format.NumChannels)
	if channels == 0 {
		return nil, errors.New("wav header reports zero channels")
	}
	if channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d, want mono or stereo", channels)
	}

	var left, right []float32
	for {
		samples, err := wr.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read wav samples: %w", err)
		}
		for _, s := range samples {
			l := float32(wr.FloatValue(s, 0))
			rv := l
			if channels > 1 {
				rv = float32(wr.FloatValue(s, 1))
			}
			left = append(left, l)
			right = append(right, rv)
		}
	}

	if src := int(format.SampleRate); src != sampleRate {
		left = resample(left, src, sampleRate)
		right = resample(right, src, sampleRate)
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return &Buffer{Data: data, SampleRate: sampleRate}, nil
}

// resample converts src between sample rates by linear interpolation.
func resample(src []float32, srcRate, dstRate int) []float32 {
	if len(src) == 0 || srcRate == dstRate {
		return src
	}
	n := int(math.Round(float64(len(src)) * float64(dstRate) / float64(srcRate)))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = src[j]*(1-frac) + src[j+1]*frac
	}
	return out
}

// Peak is the min/max envelope of one bucket of samples.
type Peak struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Peaks reduces the buffer to per-bucket min/max pairs over the mono mix
// of both channels, one bucket per pixel column of a waveform view.
func (b *Buffer) Peaks(buckets int) []Peak {
	frames := b.Frames()
	if buckets <= 0 || frames == 0 {
		return nil
	}
	if buckets > frames {
		buckets = frames
	}
	out := make([]Peak, buckets)
	for i := range out {
		start := i * frames / buckets
		end := (i + 1) * frames / buckets
		lo, hi := float32(0), float32(0)
		for f := start; f < end; f++ {
			v := (b.Data[f*2] + b.Data[f*2+1]) / 2
			if f == start {
				lo, hi = v, v
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		out[i] = Peak{Min: lo, Max: hi}
	}
	return out
}
