// Package synth plays MIDI-style note events through a SoundFont
// synthesizer. It is split across the two sides of the audio boundary:
// a Sampler is the control handle callers trigger notes on, and a Source
// renders those events inside the audio callback. The pair communicates
// over buffered channels; the control side never blocks and never touches
// the synthesizer directly.
package synth

import (
	"sync"
	"sync/atomic"
)

const (
	inboxCapacity    = 256
	responseCapacity = 8
)

// State reports the render side's view of the instrument.
type State struct {
	// Ready is true once a renderer has been installed.
	Ready bool `json:"ready"`
	// Processed counts messages applied to the renderer.
	Processed uint64 `json:"processed"`
	// Dropped counts messages discarded because no renderer was installed.
	Dropped uint64 `json:"dropped"`
}

// Sampler is the control side of the instrument. Methods are safe to call
// from any goroutine, including the audio callback.
type Sampler struct {
	inbox chan<- message
	resps <-chan State
	seq   uint64

	mu      sync.Mutex
	pending map[messageKind]chan State
}

// New builds a connected Sampler/Source pair for the given sample rate.
func New(sampleRate int) (*Sampler, *Source) {
	inbox := make(chan message, inboxCapacity)
	resps := make(chan State, responseCapacity)
	smp := &Sampler{
		inbox:   inbox,
		resps:   resps,
		pending: map[messageKind]chan State{},
	}
	src := &Source{
		sampleRate: sampleRate,
		inbox:      inbox,
		resps:      resps,
	}
	go smp.dispatch()
	return smp, src
}

// NoteOn triggers pitch on the given MIDI channel after delaySeconds.
// A zero or negative delay fires at the start of the next render block.
func (s *Sampler) NoteOn(pitch, velocity, channel uint8, delaySeconds float64) {
	s.send(message{kind: kindNoteOn, pitch: pitch, velocity: velocity, channel: channel, delaySec: delaySeconds})
}

// NoteOff releases pitch on the given MIDI channel after delaySeconds.
func (s *Sampler) NoteOff(pitch, channel uint8, delaySeconds float64) {
	s.send(message{kind: kindNoteOff, pitch: pitch, channel: channel, delaySec: delaySeconds})
}

// ProgramChange selects the instrument program for a MIDI channel.
func (s *Sampler) ProgramChange(program, channel uint8) {
	s.send(message{kind: kindProgramChange, program: program, channel: channel})
}

// AllNotesOff silences every MIDI channel.
func (s *Sampler) AllNotesOff() {
	s.send(message{kind: kindAllNotesOff})
}

// State asks the render side for its counters and blocks until it answers.
// The render side only answers while something is pulling audio, so the
// caller must ensure the Source is being processed. Waiters are keyed by
// response kind: a second State call while one is in flight replaces the
// first waiter, which then never resolves.
func (s *Sampler) State() State {
	waiter := make(chan State, 1)
	s.mu.Lock()
	s.pending[kindStateRequest] = waiter
	s.mu.Unlock()
	s.send(message{kind: kindStateRequest})
	return <-waiter
}

func (s *Sampler) dispatch() {
	for st := range s.resps {
		s.mu.Lock()
		waiter, ok := s.pending[kindStateRequest]
		if ok {
			delete(s.pending, kindStateRequest)
		}
		s.mu.Unlock()
		if ok {
			waiter <- st
		}
	}
}

// send enqueues without blocking; when the inbox is full the message is
// dropped so the caller, possibly the audio callback, never stalls.
func (s *Sampler) send(m message) {
	m.seq = atomic.AddUint64(&s.seq, 1)
	select {
	case s.inbox <- m:
	default:
	}
}
