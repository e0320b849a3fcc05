package synth

import (
	"sync"
	"sync/atomic"
)

// Renderer is the downstream synthesizer that turns MIDI-style events
// into audio. *meltysynth.Synthesizer satisfies it.
type Renderer interface {
	NoteOn(channel, key, velocity int32)
	NoteOff(channel, key int32)
	ProcessMidiMessage(channel, command, data1, data2 int32)
	Render(left, right []float32)
}

const (
	midiControlChange = 0xB0
	midiProgramChange = 0xC0
	ccAllNotesOff     = 123
	midiChannels      = 16
)

// dueEvent is a message whose firing position has been resolved to an
// absolute sample count on the render timeline.
type dueEvent struct {
	at  int64
	msg message
}

// Source is the render side of the instrument. Process drains the inbox,
// resolves message delays against the samples rendered so far, and splits
// each block at event boundaries so notes start and stop sample-accurately.
type Source struct {
	sampleRate int
	inbox      <-chan message
	resps      chan<- State

	mu       sync.Mutex
	renderer Renderer
	ready    uint32

	rendered  int64
	processed uint64
	dropped   uint64
	pending   []dueEvent

	batch []message
	left  []float32
	right []float32
}

// InstallRenderer hands the synthesizer to the render side. Messages that
// arrived before installation have already been dropped; only the counters
// remember them.
func (s *Source) InstallRenderer(r Renderer) {
	s.mu.Lock()
	s.renderer = r
	s.mu.Unlock()
	atomic.StoreUint32(&s.ready, 1)
}

// Ready reports whether a renderer has been installed.
func (s *Source) Ready() bool {
	return atomic.LoadUint32(&s.ready) == 1
}

// Process implements audio.SampleSource.
func (s *Source) Process(dst []float32) {
	frames := len(dst) / 2

	s.mu.Lock()
	r := s.renderer
	s.mu.Unlock()

	s.drain(r)

	if r == nil {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	if cap(s.left) < frames {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}
	left := s.left[:frames]
	right := s.right[:frames]

	done := 0
	fired := 0
	for done < frames {
		for fired < len(s.pending) && s.pending[fired].at <= s.rendered {
			s.apply(r, s.pending[fired].msg)
			fired++
		}
		limit := frames
		if fired < len(s.pending) {
			if until := int(s.pending[fired].at - s.rendered); done+until < limit {
				limit = done + until
			}
		}
		n := limit - done
		r.Render(left[done:limit], right[done:limit])
		for i := done; i < limit; i++ {
			dst[i*2] = left[i]
			dst[i*2+1] = right[i]
		}
		done = limit
		s.rendered += int64(n)
	}
	if fired > 0 {
		kept := copy(s.pending, s.pending[fired:])
		s.pending = s.pending[:kept]
	}
}

// drain moves every queued message into the pending list, answering state
// requests inline and dropping playable messages when no renderer exists.
func (s *Source) drain(r Renderer) {
	s.batch = s.batch[:0]
	for {
		select {
		case m := <-s.inbox:
			s.batch = append(s.batch, m)
			continue
		default:
		}
		break
	}
	if len(s.batch) == 0 {
		return
	}
	sortBySeq(s.batch)
	for _, m := range s.batch {
		if m.kind == kindStateRequest {
			st := State{Ready: r != nil, Processed: s.processed, Dropped: s.dropped}
			select {
			case s.resps <- st:
			default:
			}
			continue
		}
		if r == nil {
			s.dropped++
			continue
		}
		at := s.rendered
		if m.delaySec > 0 {
			at += int64(m.delaySec * float64(s.sampleRate))
		}
		s.pending = append(s.pending, dueEvent{at: at, msg: m})
	}
	// Insertion sort: the slice is nearly sorted since most deadlines
	// arrive in increasing order; this avoids sort.Slice allocation on
	// the render path.
	for i := 1; i < len(s.pending); i++ {
		key := s.pending[i]
		j := i - 1
		for j >= 0 && (s.pending[j].at > key.at ||
			(s.pending[j].at == key.at && s.pending[j].msg.seq > key.msg.seq)) {
			s.pending[j+1] = s.pending[j]
			j--
		}
		s.pending[j+1] = key
	}
}

func (s *Source) apply(r Renderer, m message) {
	switch m.kind {
	case kindNoteOn:
		r.NoteOn(int32(m.channel), int32(m.pitch), int32(m.velocity))
	case kindNoteOff:
		r.NoteOff(int32(m.channel), int32(m.pitch))
	case kindProgramChange:
		r.ProcessMidiMessage(int32(m.channel), midiProgramChange, int32(m.program), 0)
	case kindAllNotesOff:
		for ch := int32(0); ch < midiChannels; ch++ {
			r.ProcessMidiMessage(ch, midiControlChange, ccAllNotesOff, 0)
		}
	}
	s.processed++
}
