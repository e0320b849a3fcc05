// Package transport is the master playback clock. It owns the
// stopped/paused/playing state machine, a queue of absolute-time note
// events dispatched to the sound generator as the clock crosses them,
// the audio clip's timeline alignment, and the metronome.
package transport

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hi-ogawa/pianoroll-go/internal/audio"
	"github.com/hi-ogawa/pianoroll-go/internal/score"
	"github.com/hi-ogawa/pianoroll-go/internal/timeconv"
	"github.com/hi-ogawa/pianoroll-go/internal/track"
)

// State is the transport's lifecycle position.
type State int

const (
	Stopped State = iota
	Paused
	Playing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	}
	return "unknown"
}

// NoteSink receives note events as they come due. *synth.Sampler
// satisfies it. Calls happen on the audio goroutine and must not block.
type NoteSink interface {
	NoteOn(pitch, velocity, channel uint8, delaySeconds float64)
	NoteOff(pitch, channel uint8, delaySeconds float64)
	AllNotesOff()
}

// Handle identifies one scheduled event. Handles cannot be cancelled
// individually; ClearScheduled discards all of them at once.
type Handle uint64

type eventKind int

// Note-offs order before note-ons at the same sample so a retriggered
// pitch is released before it restarts.
const (
	eventNoteOff eventKind = iota
	eventNoteOn
)

type event struct {
	at       int64 // absolute sample position on the timeline
	kind     eventKind
	pitch    uint8
	velocity uint8
	handle   Handle
}

// noteChannel is the MIDI channel all timeline notes play on.
const noteChannel = 0

// Transport advances a sample clock inside the audio callback and keeps
// the three output channels (audio clip, synthesized notes, metronome)
// aligned to it. Control methods are safe from any goroutine; they
// serialize on one mutex.
type Transport struct {
	sampleRate int
	sink       NoteSink
	mixer      *audio.Mixer
	metro      *metronome

	clock int64 // atomic; sample position of the next block to render

	mu            sync.Mutex
	state         State
	gen           uint64 // bumped whenever the clock is forcibly repositioned
	tempo         float64
	events        []event
	nextHandle    Handle
	buf           *track.Buffer
	offsetSamples int64
}

// New builds a transport. The caller binds TrackSource and
// MetronomeSource to mixer channels; the transport pulls the whole mixer
// from Process so events dispatch before the sound generator renders.
func New(sampleRate int, tempo float64, sink NoteSink, mixer *audio.Mixer) *Transport {
	t := &Transport{
		sampleRate: sampleRate,
		sink:       sink,
		mixer:      mixer,
		tempo:      tempo,
	}
	t.metro = newMetronome(sampleRate, t.beatSamples(tempo))
	return t
}

func (t *Transport) beatSamples(tempo float64) float64 {
	return timeconv.BeatsToSeconds(1, tempo) * float64(t.sampleRate)
}

func (t *Transport) secondsToSamples(seconds float64) int64 {
	return int64(math.Round(seconds * float64(t.sampleRate)))
}

// Process implements audio.SampleSource. One call renders one block:
// events whose positions fall inside the block are dispatched with their
// intra-block delays, the mixer pulls all three channels, and the clock
// advances by the block length while playing.
func (t *Transport) Process(dst []float32) {
	frames := int64(len(dst) / 2)

	t.mu.Lock()
	advancing := t.state == Playing
	gen := t.gen
	var start int64
	if advancing {
		start = atomic.LoadInt64(&t.clock)
		end := start + frames
		t.dispatchLocked(start, end)
		t.metro.schedule(start, end)
	}
	t.mu.Unlock()

	t.mixer.Process(dst)

	if advancing {
		// A Stop or Seek that landed while the mixer rendered owns the
		// clock now; advancing it would drag the position off the value
		// they stored. Pause keeps the generation, so the in-flight
		// block still counts.
		t.mu.Lock()
		if t.gen == gen {
			atomic.StoreInt64(&t.clock, start+frames)
		}
		t.mu.Unlock()
	}
}

// dispatchLocked delivers every event positioned before end. Events in
// the past fire with zero delay rather than being rejected.
func (t *Transport) dispatchLocked(start, end int64) {
	fired := 0
	for fired < len(t.events) && t.events[fired].at < end {
		ev := t.events[fired]
		delay := float64(ev.at-start) / float64(t.sampleRate)
		if delay < 0 {
			delay = 0
		}
		switch ev.kind {
		case eventNoteOn:
			t.sink.NoteOn(ev.pitch, ev.velocity, noteChannel, delay)
		case eventNoteOff:
			t.sink.NoteOff(ev.pitch, noteChannel, delay)
		}
		fired++
	}
	if fired > 0 {
		kept := copy(t.events, t.events[fired:])
		t.events = t.events[:kept]
	}
}

// Play starts the clock, or resumes it where Pause left it. Events
// queued before the pause stay valid because their positions are
// absolute. The metronome re-arms at the next measure boundary.
func (t *Transport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Playing {
		return
	}
	t.state = Playing
	t.metro.arm(atomic.LoadInt64(&t.clock))
}

// Pause freezes the clock, keeping position and queued events. Sounding
// voices are silenced; the render context keeps running underneath, so
// a voice left on would otherwise sustain forever.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing {
		return
	}
	t.state = Paused
	t.sink.AllNotesOff()
}

// Stop halts playback, resets the position to zero and discards the
// scheduled queue.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Stopped
	t.gen++
	atomic.StoreInt64(&t.clock, 0)
	t.events = t.events[:0]
	t.sink.AllNotesOff()
	t.metro.arm(0)
}

// Seek moves the clock to seconds, clamped to [0, audio duration]; the
// audio clip is the authoritative seek range, so with no clip loaded
// every seek lands at zero. The queue is cleared and the caller
// reschedules from the new position. Returns the clamped position.
func (t *Transport) Seek(seconds float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	limit := 0.0
	if t.buf != nil {
		limit = t.buf.Duration()
	}
	if seconds < 0 {
		seconds = 0
	} else if seconds > limit {
		seconds = limit
	}
	if t.state == Stopped {
		// Position is only pinned to zero while stopped; seeking
		// leaves the stopped state.
		t.state = Paused
	}
	t.gen++
	atomic.StoreInt64(&t.clock, t.secondsToSamples(seconds))
	t.events = t.events[:0]
	t.sink.AllNotesOff()
	t.metro.arm(atomic.LoadInt64(&t.clock))
	return seconds
}

// SetOffset aligns the audio clip against the timeline and returns the
// stored value, clamped so |offset| never exceeds the clip duration.
// Offset >= 0 plays the clip's sample at offset when the transport is at
// zero (skipping an intro); offset < 0 holds the clip until the
// transport reaches -offset. Playback state and position are untouched.
func (t *Transport) SetOffset(seconds float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	dur := 0.0
	if t.buf != nil {
		dur = t.buf.Duration()
	}
	if seconds > dur {
		seconds = dur
	} else if seconds < -dur {
		seconds = -dur
	}
	t.offsetSamples = t.secondsToSamples(seconds)
	return seconds
}

// Offset returns the stored audio offset in seconds.
func (t *Transport) Offset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.offsetSamples) / float64(t.sampleRate)
}

// SetTempo changes the playback tempo. Queued events keep their absolute
// positions; callers that want scored notes to follow the new tempo must
// reschedule explicitly. The metronome re-arms on the new beat grid.
func (t *Transport) SetTempo(tempo float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tempo = tempo
	t.metro.setBeat(t.beatSamples(tempo), atomic.LoadInt64(&t.clock))
}

// Tempo returns the current tempo in beats per minute.
func (t *Transport) Tempo() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempo
}

// SetMetronome toggles the metronome. Enabling mid-playback schedules
// the first tick at the next measure boundary, not immediately.
func (t *Transport) SetMetronome(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metro.setEnabled(enabled, atomic.LoadInt64(&t.clock))
}

// Metronome reports whether the metronome is enabled.
func (t *Transport) Metronome() bool {
	return t.metro.Enabled()
}

// ScheduleNotes replaces the queue with the given notes converted to
// seconds at the current tempo. Notes whose end is at or before
// fromSeconds are skipped; a note already sounding at fromSeconds keeps
// its original note-on position, which dispatch delivers with zero
// delay.
func (t *Transport) ScheduleNotes(notes []score.Note, fromSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = t.events[:0]
	for _, n := range notes {
		on := timeconv.BeatsToSeconds(n.Start, t.tempo)
		off := timeconv.BeatsToSeconds(n.End(), t.tempo)
		if off <= fromSeconds {
			continue
		}
		t.scheduleLocked(event{at: t.secondsToSamples(on), kind: eventNoteOn, pitch: n.Pitch, velocity: n.Velocity})
		t.scheduleLocked(event{at: t.secondsToSamples(off), kind: eventNoteOff, pitch: n.Pitch})
	}
	t.sortEventsLocked()
}

// ScheduleNoteOn queues a single note-on at an absolute position.
func (t *Transport) ScheduleNoteOn(pitch, velocity uint8, atSeconds float64) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.scheduleLocked(event{at: t.secondsToSamples(atSeconds), kind: eventNoteOn, pitch: pitch, velocity: velocity})
	t.sortEventsLocked()
	return h
}

// ScheduleNoteOff queues a single note-off at an absolute position.
func (t *Transport) ScheduleNoteOff(pitch uint8, atSeconds float64) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.scheduleLocked(event{at: t.secondsToSamples(atSeconds), kind: eventNoteOff, pitch: pitch})
	t.sortEventsLocked()
	return h
}

// ClearScheduled discards every queued event. Earlier handles become
// meaningless; there is no per-event cancel.
func (t *Transport) ClearScheduled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = t.events[:0]
}

func (t *Transport) scheduleLocked(ev event) Handle {
	t.nextHandle++
	ev.handle = t.nextHandle
	t.events = append(t.events, ev)
	return ev.handle
}

func (t *Transport) sortEventsLocked() {
	// Insertion sort: the queue is nearly sorted because callers mostly
	// append in timeline order.
	for i := 1; i < len(t.events); i++ {
		key := t.events[i]
		j := i - 1
		for j >= 0 && eventLess(key, t.events[j]) {
			t.events[j+1] = t.events[j]
			j--
		}
		t.events[j+1] = key
	}
}

func eventLess(a, b event) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.handle < b.handle
}

// BindAudio attaches a decoded clip to the timeline, replacing any
// previous one. A nil buffer detaches.
func (t *Transport) BindAudio(buf *track.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = buf
}

// AudioDuration returns the clip length in seconds, zero when no clip
// is loaded.
func (t *Transport) AudioDuration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf == nil {
		return 0
	}
	return t.buf.Duration()
}

// Position returns the playback position in seconds.
func (t *Transport) Position() float64 {
	return float64(atomic.LoadInt64(&t.clock)) / float64(t.sampleRate)
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TrackSource returns the mixer source that plays the bound audio clip.
func (t *Transport) TrackSource() audio.SampleSource {
	return trackSource{t}
}

// MetronomeSource returns the mixer source that renders metronome
// clicks.
func (t *Transport) MetronomeSource() audio.SampleSource {
	return t.metro
}

type trackSource struct {
	t *Transport
}

func (s trackSource) Process(dst []float32) {
	s.t.renderTrack(dst)
}

// renderTrack copies the clip samples the current block covers, shifted
// by the offset. Timeline positions outside the clip render silence.
func (t *Transport) renderTrack(dst []float32) {
	t.mu.Lock()
	buf := t.buf
	offset := t.offsetSamples
	playing := t.state == Playing
	t.mu.Unlock()

	if buf == nil || !playing {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	frames := len(dst) / 2
	pos := atomic.LoadInt64(&t.clock)
	total := int64(buf.Frames())
	for f := 0; f < frames; f++ {
		idx := pos + int64(f) + offset
		if idx < 0 || idx >= total {
			dst[f*2] = 0
			dst[f*2+1] = 0
			continue
		}
		dst[f*2] = buf.Data[idx*2]
		dst[f*2+1] = buf.Data[idx*2+1]
	}
}
