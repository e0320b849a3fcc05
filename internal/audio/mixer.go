package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Channel identifies one input of the Mixer.
type Channel int

const (
	// ChannelAudio carries the imported audio track.
	ChannelAudio Channel = iota
	// ChannelMIDI carries the synthesizer output.
	ChannelMIDI
	// ChannelMetronome carries metronome clicks.
	ChannelMetronome

	numChannels
)

func (c Channel) String() string {
	switch c {
	case ChannelAudio:
		return "audio"
	case ChannelMIDI:
		return "midi"
	case ChannelMetronome:
		return "metronome"
	}
	return "unknown"
}

// ParseChannel maps a channel name to its Channel.
func ParseChannel(name string) (Channel, error) {
	switch name {
	case "audio":
		return ChannelAudio, nil
	case "midi":
		return ChannelMIDI, nil
	case "metronome":
		return ChannelMetronome, nil
	}
	return 0, fmt.Errorf("unknown mixer channel %q", name)
}

// Mixer sums its sources into one stereo stream, scaling each by a
// per-channel gain. Gains are stored as float64 bits and accessed
// atomically so the control surface can adjust them mid-render.
type Mixer struct {
	mu      sync.Mutex
	sources [numChannels]SampleSource
	scratch []float32

	gains [numChannels]uint64
}

func NewMixer() *Mixer {
	m := &Mixer{}
	for c := Channel(0); c < numChannels; c++ {
		atomic.StoreUint64(&m.gains[c], math.Float64bits(1))
	}
	return m
}

// SetSource binds src to channel c, replacing any previous source.
// A nil source silences the channel.
func (m *Mixer) SetSource(c Channel, src SampleSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[c] = src
}

// SetVolume sets the gain of channel c, clamped to [0, 1].
func (m *Mixer) SetVolume(c Channel, v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	atomic.StoreUint64(&m.gains[c], math.Float64bits(v))
}

func (m *Mixer) Volume(c Channel) float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.gains[c]))
}

// Process implements SampleSource. Every bound source runs each block even
// when its channel is muted, so sources that consume event queues inside
// Process keep advancing.
func (m *Mixer) Process(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.scratch) < len(dst) {
		m.scratch = make([]float32, len(dst))
	}
	buf := m.scratch[:len(dst)]
	for c := Channel(0); c < numChannels; c++ {
		src := m.sources[c]
		if src == nil {
			continue
		}
		src.Process(buf)
		gain := float32(m.Volume(c))
		if gain == 0 {
			continue
		}
		for i := range dst {
			dst[i] += buf[i] * gain
		}
	}
}
