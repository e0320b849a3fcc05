package transport

import (
	"math"
	"sync"
)

// The metronome accents the first beat of each measure. The measure is
// fixed at four beats; the project time signature does not change it.
const (
	beatsPerMeasure = 4
	accentHz        = 1760
	tickHz          = 880
	clickSeconds    = 0.05
	clickGain       = 0.5
)

type clickVoice struct {
	freq  float64
	delay int // frames into the next block before the click starts
	phase float64
	amp   float64
}

// metronome schedules measure-aligned ticks against the transport clock
// and renders them as decaying sine bursts on its own mixer channel.
type metronome struct {
	sampleRate int
	decay      float64

	mu          sync.Mutex
	enabled     bool
	beatSamples float64
	next        float64 // absolute sample position of the next tick
	slot        int     // 0 accents, 1-3 tick
	voices      []clickVoice
}

func newMetronome(sampleRate int, beatSamples float64) *metronome {
	return &metronome{
		sampleRate:  sampleRate,
		decay:       math.Exp(math.Log(0.001) / (clickSeconds * float64(sampleRate))),
		beatSamples: beatSamples,
	}
}

func (m *metronome) setEnabled(on bool, pos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = on
	if on {
		m.armLocked(pos)
	}
}

func (m *metronome) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// arm restarts the tick sequence: the next tick lands on the first
// measure boundary at or after pos, or at zero when the clock is at or
// before zero, so the accent stays phase-locked to the measure grid.
func (m *metronome) arm(pos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armLocked(pos)
}

func (m *metronome) armLocked(pos int64) {
	m.slot = 0
	measure := m.beatSamples * beatsPerMeasure
	if pos <= 0 || measure <= 0 {
		m.next = 0
		return
	}
	m.next = math.Ceil(float64(pos)/measure) * measure
}

func (m *metronome) setBeat(beatSamples float64, pos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beatSamples = beatSamples
	m.armLocked(pos)
}

// schedule triggers a click voice for every tick in [start, end).
func (m *metronome) schedule(start, end int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.beatSamples <= 0 {
		return
	}
	for m.next < float64(end) {
		offset := int(m.next) - int(start)
		if offset < 0 {
			offset = 0
		}
		freq := float64(tickHz)
		if m.slot == 0 {
			freq = accentHz
		}
		m.voices = append(m.voices, clickVoice{freq: freq, delay: offset, amp: 1})
		m.slot = (m.slot + 1) % beatsPerMeasure
		m.next += m.beatSamples
	}
}

// Process implements audio.SampleSource, rendering pending click voices.
func (m *metronome) Process(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.voices) == 0 {
		return
	}
	frames := len(dst) / 2
	alive := m.voices[:0]
	for _, v := range m.voices {
		step := 2 * math.Pi * v.freq / float64(m.sampleRate)
		for f := 0; f < frames; f++ {
			if v.delay > 0 {
				v.delay--
				continue
			}
			if v.amp < 1e-4 {
				break
			}
			s := float32(math.Sin(v.phase) * v.amp * clickGain)
			dst[f*2] += s
			dst[f*2+1] += s
			v.phase += step
			v.amp *= m.decay
		}
		if v.amp >= 1e-4 {
			alive = append(alive, v)
		}
	}
	m.voices = alive
}
