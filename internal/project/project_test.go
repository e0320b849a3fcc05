package project

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hi-ogawa/pianoroll-go/internal/score"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	p, err := Decode(strings.NewReader(`{"notes":[]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Tempo != 120 {
		t.Errorf("Tempo = %v, want 120", p.Tempo)
	}
	if p.MetronomeEnabled {
		t.Error("MetronomeEnabled = true, want false")
	}
	if p.Volumes != (Volumes{Audio: 1, MIDI: 1, Metronome: 1}) {
		t.Errorf("Volumes = %+v, want all 1", p.Volumes)
	}
	if p.TimeSignature != (TimeSignature{Numerator: 4, Denominator: 4}) {
		t.Errorf("TimeSignature = %+v, want 4/4", p.TimeSignature)
	}
}

func TestDecodePartialDocument(t *testing.T) {
	p, err := Decode(strings.NewReader(`{"tempo":90,"metronomeEnabled":true}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Tempo != 90 {
		t.Errorf("Tempo = %v, want 90", p.Tempo)
	}
	if !p.MetronomeEnabled {
		t.Error("MetronomeEnabled = false, want true")
	}
	if p.Volumes.Audio != 1 {
		t.Errorf("Volumes.Audio = %v, want default 1", p.Volumes.Audio)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	p, err := Decode(strings.NewReader(`{"tempo":100,"futureFeature":{"x":1}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Tempo != 100 {
		t.Errorf("Tempo = %v, want 100", p.Tempo)
	}
}

func TestDecodeRejectsCorruptDocument(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"tempo":`)); err == nil {
		t.Error("Decode of truncated JSON succeeded, want error")
	}
}

func TestDecodeRejectsInvalidTempo(t *testing.T) {
	for _, doc := range []string{`{"tempo":0}`, `{"tempo":-5}`} {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("Decode(%s) succeeded, want error", doc)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := Default()
	p.Tempo = 96
	p.AudioOffset = -1.25
	p.AudioDuration = 30.5
	p.MetronomeEnabled = true
	p.Volumes = Volumes{Audio: 0.8, MIDI: 1, Metronome: 0.3}
	p.TimeSignature = TimeSignature{Numerator: 3, Denominator: 4}
	p.Notes = []score.Note{
		{ID: "note-1", Pitch: 60, Start: 0, Duration: 1, Velocity: 100},
		{ID: "note-2", Pitch: 72, Start: 4, Duration: 0.5, Velocity: 64},
	}

	path := filepath.Join(t.TempDir(), "song.json")
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, p)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load of missing file succeeded, want error")
	}
}
