package pianoroll

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	intaudio "github.com/hi-ogawa/pianoroll-go/internal/audio"
	intproj "github.com/hi-ogawa/pianoroll-go/internal/project"
	intscore "github.com/hi-ogawa/pianoroll-go/internal/score"
	wav "github.com/youpy/go-wav"
)

// The tests below never call Play: opening the platform audio backend
// needs a real output device. Bounce drives the same graph offline.

const testRate = 100

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(WithSampleRate(testRate))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// writeTestWAV writes a stereo 16-bit WAV holding frames copies of value.
func writeTestWAV(t *testing.T, path string, value float64, frames, rate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w := wav.NewWriter(f, uint32(frames), 2, uint32(rate), 16)
	samples := make([]wav.Sample, frames)
	v := int(value * 32768)
	for i := range samples {
		samples[i].Values[0] = v
		samples[i].Values[1] = v
	}
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("write samples: %v", err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewEngineDefaults(t *testing.T) {
	e := newTestEngine(t)
	st := e.Status()
	if st.State != "stopped" {
		t.Fatalf("state = %q, want stopped", st.State)
	}
	if st.Tempo != 120 {
		t.Fatalf("tempo = %v, want 120", st.Tempo)
	}
	if st.Position != 0 || st.Duration != 0 || st.Offset != 0 {
		t.Fatalf("position/duration/offset = %v/%v/%v, want zeros", st.Position, st.Duration, st.Offset)
	}
	if st.MetronomeEnabled || st.Connected || st.SoundFontReady {
		t.Fatalf("metronome/connected/soundfont = %v/%v/%v, want all false",
			st.MetronomeEnabled, st.Connected, st.SoundFontReady)
	}
	if st.Volumes.Audio != 1 || st.Volumes.MIDI != 1 || st.Volumes.Metronome != 1 {
		t.Fatalf("volumes = %+v, want all 1", st.Volumes)
	}
	if st.TimeSignature.Numerator != 4 || st.TimeSignature.Denominator != 4 {
		t.Fatalf("time signature = %+v, want 4/4", st.TimeSignature)
	}
	if st.NoteCount != 0 {
		t.Fatalf("noteCount = %d, want 0", st.NoteCount)
	}
}

func TestNewEngineRejectsNonPositiveRate(t *testing.T) {
	if _, err := NewEngine(WithSampleRate(0)); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := NewEngine(WithSampleRate(-48000)); err == nil {
		t.Fatal("expected error for negative sample rate")
	}
}

func TestSetTempoValidation(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetTempo(0); err == nil {
		t.Fatal("expected error for zero tempo")
	}
	if err := e.SetTempo(-3); err == nil {
		t.Fatal("expected error for negative tempo")
	}
	if err := e.SetTempo(90); err != nil {
		t.Fatalf("SetTempo(90): %v", err)
	}
	if got := e.Tempo(); got != 90 {
		t.Fatalf("tempo = %v, want 90", got)
	}
}

func TestSeekWithoutAudioStaysAtZero(t *testing.T) {
	e := newTestEngine(t)
	if got := e.Seek(10); got != 0 {
		t.Fatalf("Seek(10) = %v, want 0 with no audio loaded", got)
	}
	if st := e.Status(); st.State != "paused" {
		t.Fatalf("state after seek = %q, want paused", st.State)
	}
}

func TestSeekClampsToLoadedAudio(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeTestWAV(t, path, 0, 2*testRate, testRate)
	if err := e.LoadAudio(path); err != nil {
		t.Fatalf("LoadAudio: %v", err)
	}
	if got := e.Seek(1.5); !approx(got, 1.5) {
		t.Fatalf("Seek(1.5) = %v", got)
	}
	if got := e.Seek(5); !approx(got, 2) {
		t.Fatalf("Seek(5) = %v, want clamp to 2", got)
	}
	if got := e.Seek(-1); got != 0 {
		t.Fatalf("Seek(-1) = %v, want 0", got)
	}
}

func TestSetOffsetReappliedOnLoad(t *testing.T) {
	e := newTestEngine(t)
	if got := e.SetOffset(3); got != 0 {
		t.Fatalf("SetOffset(3) with no audio = %v, want 0", got)
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeTestWAV(t, path, 0, 2*testRate, testRate)
	if err := e.LoadAudio(path); err != nil {
		t.Fatalf("LoadAudio: %v", err)
	}
	// The requested 3 s survives the load and clamps to the 2 s track.
	if got := e.Offset(); !approx(got, 2) {
		t.Fatalf("offset after load = %v, want 2", got)
	}
	if got := e.SetOffset(-5); !approx(got, -2) {
		t.Fatalf("SetOffset(-5) = %v, want -2", got)
	}
}

func TestVolumeClamped(t *testing.T) {
	e := newTestEngine(t)
	e.SetVolume(intaudio.ChannelMIDI, 2)
	if got := e.Volume(intaudio.ChannelMIDI); got != 1 {
		t.Fatalf("volume = %v, want clamp to 1", got)
	}
	e.SetVolume(intaudio.ChannelMIDI, -1)
	if got := e.Volume(intaudio.ChannelMIDI); got != 0 {
		t.Fatalf("volume = %v, want clamp to 0", got)
	}
}

func TestNoteEditingAndSelection(t *testing.T) {
	e := newTestEngine(t)
	a := e.AddNote(intscore.Note{Pitch: 60, Start: 0, Duration: 1, Velocity: 100})
	b := e.AddNote(intscore.Note{Pitch: 64, Start: 1, Duration: 1, Velocity: 100})
	if a.ID != "note-1" || b.ID != "note-2" {
		t.Fatalf("ids = %q, %q", a.ID, b.ID)
	}

	pitch := uint8(62)
	got, ok := e.UpdateNote(a.ID, intscore.Patch{Pitch: &pitch})
	if !ok || got.Pitch != 62 {
		t.Fatalf("UpdateNote = %+v, %v", got, ok)
	}
	if _, ok := e.UpdateNote("note-99", intscore.Patch{Pitch: &pitch}); ok {
		t.Fatal("expected unknown id to report false")
	}

	if sel := e.SelectNotes([]string{a.ID, b.ID}, false); len(sel) != 2 {
		t.Fatalf("selection = %v", sel)
	}
	if sel := e.SelectNotes([]string{b.ID}, true); len(sel) != 1 || sel[0] != b.ID {
		t.Fatalf("exclusive selection = %v", sel)
	}

	// Deleting a selected note removes it from the selection too.
	if n := e.DeleteNotes([]string{b.ID}); n != 1 {
		t.Fatalf("deleted = %d", n)
	}
	if sel := e.SelectedNoteIDs(); len(sel) != 0 {
		t.Fatalf("selection after delete = %v", sel)
	}
	if len(e.Notes()) != 1 {
		t.Fatalf("notes = %v", e.Notes())
	}
}

func TestSynthStateWithoutBackend(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.SynthState(); err == nil {
		t.Fatal("expected error while the backend is not running")
	}
}

func TestPreviewNoteWithoutSoundFontIsHarmless(t *testing.T) {
	e := newTestEngine(t)
	e.PreviewNote(60, 100)
	// Pump the graph so the dropped messages are actually consumed.
	var out bytes.Buffer
	if err := e.Bounce(&out, 0.05); err != nil {
		t.Fatalf("Bounce: %v", err)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetTempo(96); err != nil {
		t.Fatalf("SetTempo: %v", err)
	}
	e.SetMetronome(true)
	e.SetVolume(intaudio.ChannelAudio, 0.8)
	e.SetVolume(intaudio.ChannelMIDI, 0.6)
	e.SetVolume(intaudio.ChannelMetronome, 0.4)
	if err := e.SetTimeSignature(3, 4); err != nil {
		t.Fatalf("SetTimeSignature: %v", err)
	}
	e.SetOffset(1.25)
	e.AddNote(intscore.Note{Pitch: 60, Start: 0, Duration: 1, Velocity: 100})
	e.AddNote(intscore.Note{Pitch: 64, Start: 1, Duration: 0.5, Velocity: 90})

	path := filepath.Join(t.TempDir(), "song.json")
	if err := e.SaveProject(path); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	// The requested offset is saved even though no audio was loaded.
	p, err := intproj.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !approx(p.AudioOffset, 1.25) {
		t.Fatalf("saved offset = %v, want 1.25", p.AudioOffset)
	}

	e2 := newTestEngine(t)
	if err := e2.LoadProject(path); err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	st := e2.Status()
	if st.Tempo != 96 || !st.MetronomeEnabled {
		t.Fatalf("tempo/metronome = %v/%v", st.Tempo, st.MetronomeEnabled)
	}
	if st.Volumes.Audio != 0.8 || st.Volumes.MIDI != 0.6 || st.Volumes.Metronome != 0.4 {
		t.Fatalf("volumes = %+v", st.Volumes)
	}
	if st.TimeSignature.Numerator != 3 || st.TimeSignature.Denominator != 4 {
		t.Fatalf("time signature = %+v, want 3/4", st.TimeSignature)
	}
	if st.NoteCount != 2 {
		t.Fatalf("noteCount = %d, want 2", st.NoteCount)
	}
	notes := e2.Notes()
	if notes[0].ID != "note-1" || notes[1].ID != "note-2" {
		t.Fatalf("note ids = %q, %q", notes[0].ID, notes[1].ID)
	}
	if notes[0].Pitch != 60 || !approx(notes[0].Duration, 1) {
		t.Fatalf("note[0] = %+v", notes[0])
	}
}

func TestLoadProjectMissingFile(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadProject(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing project file")
	}
	// A failed load leaves the engine usable.
	if st := e.Status(); st.State != "stopped" || st.Tempo != 120 {
		t.Fatalf("state/tempo after failed load = %q/%v", st.State, st.Tempo)
	}
}

func TestCloseWithoutBackend(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
