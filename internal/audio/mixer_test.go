package audio

import (
	"math"
	"testing"
)

type constSource struct {
	value float32
	calls int
}

func (s *constSource) Process(dst []float32) {
	s.calls++
	for i := range dst {
		dst[i] = s.value
	}
}

func TestMixerSumsScaledSources(t *testing.T) {
	m := NewMixer()
	m.SetSource(ChannelAudio, &constSource{value: 0.5})
	m.SetSource(ChannelMIDI, &constSource{value: 0.25})
	m.SetVolume(ChannelMIDI, 0.5)

	dst := make([]float32, 8)
	m.Process(dst)

	want := float32(0.5 + 0.25*0.5)
	for i, v := range dst {
		if math.Abs(float64(v-want)) > 1e-6 {
			t.Fatalf("dst[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestMixerSilentWithoutSources(t *testing.T) {
	m := NewMixer()
	dst := []float32{1, 2, 3, 4}
	m.Process(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("dst[%d] = %v, want 0", i, v)
		}
	}
}

func TestMixerVolumeClamped(t *testing.T) {
	m := NewMixer()
	m.SetVolume(ChannelAudio, -0.5)
	if got := m.Volume(ChannelAudio); got != 0 {
		t.Errorf("Volume after SetVolume(-0.5) = %v, want 0", got)
	}
	m.SetVolume(ChannelAudio, 1.5)
	if got := m.Volume(ChannelAudio); got != 1 {
		t.Errorf("Volume after SetVolume(1.5) = %v, want 1", got)
	}
}

func TestMixerRunsMutedSources(t *testing.T) {
	src := &constSource{value: 1}
	m := NewMixer()
	m.SetSource(ChannelMIDI, src)
	m.SetVolume(ChannelMIDI, 0)

	dst := make([]float32, 4)
	m.Process(dst)

	if src.calls != 1 {
		t.Fatalf("muted source ran %d times, want 1", src.calls)
	}
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("dst[%d] = %v, want 0 for muted channel", i, v)
		}
	}
}

func TestParseChannel(t *testing.T) {
	for name, want := range map[string]Channel{
		"audio":     ChannelAudio,
		"midi":      ChannelMIDI,
		"metronome": ChannelMetronome,
	} {
		got, err := ParseChannel(name)
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseChannel(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseChannel("drums"); err == nil {
		t.Error("ParseChannel(\"drums\") succeeded, want error")
	}
}
