package pianoroll

import (
	"errors"
	"io"
	"math"

	intconv "github.com/hi-ogawa/pianoroll-go/internal/timeconv"
	wav "github.com/youpy/go-wav"
)

const (
	bounceBlockFrames = 4096
	bounceTailSeconds = 1.0
)

// Bounce renders the project offline through the same transport and mixer
// path used for live playback and writes a 16-bit stereo WAV. It refuses
// to run while the live backend is open, since both would pull from the
// one transport clock. A non-positive length renders until the later of
// the last note-off and the end of the audio track, plus a release tail.
func (e *Engine) Bounce(w io.Writer, seconds float64) error {
	e.mu.Lock()
	if e.backend != nil {
		e.mu.Unlock()
		return errors.New("cannot bounce while the audio backend is running")
	}
	e.mu.Unlock()

	notes := e.Notes()
	if seconds <= 0 {
		if length := e.ProjectLength(); length > 0 {
			seconds = length + bounceTailSeconds
		}
	}
	frames := int(math.Round(seconds * float64(e.sampleRate)))
	if frames <= 0 {
		return errors.New("nothing to render")
	}

	e.transport.Stop()
	e.transport.ScheduleNotes(notes, 0)
	e.transport.Play()
	defer e.transport.Stop()

	out := wav.NewWriter(w, uint32(frames), 2, uint32(e.sampleRate), 16)
	block := make([]float32, bounceBlockFrames*2)
	samples := make([]wav.Sample, bounceBlockFrames)
	for done := 0; done < frames; {
		n := bounceBlockFrames
		if rest := frames - done; rest < n {
			n = rest
		}
		buf := block[:n*2]
		e.transport.Process(buf)
		for i := 0; i < n; i++ {
			samples[i].Values[0] = pcm16(buf[i*2])
			samples[i].Values[1] = pcm16(buf[i*2+1])
		}
		if err := out.WriteSamples(samples[:n]); err != nil {
			return err
		}
		done += n
	}
	return nil
}

// ProjectLength is the transport time where the content runs out: the
// later of the last note-off and the end of the audio track. A positive
// offset trims the head of the track, a negative one pushes the whole
// track later, so the track ends at duration minus offset. Zero when the
// project is empty.
func (e *Engine) ProjectLength() float64 {
	var end float64
	tempo := e.transport.Tempo()
	for _, n := range e.Notes() {
		if sec := intconv.BeatsToSeconds(n.End(), tempo); sec > end {
			end = sec
		}
	}
	e.mu.Lock()
	buf := e.buf
	e.mu.Unlock()
	if buf != nil {
		if sec := buf.Duration() - e.transport.Offset(); sec > end {
			end = sec
		}
	}
	if end < 0 {
		return 0
	}
	return end
}

func pcm16(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(math.Round(float64(v) * 32767))
}
