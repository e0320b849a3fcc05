package pianoroll

import (
	"errors"
	"sync"

	intaudio "github.com/hi-ogawa/pianoroll-go/internal/audio"
	intproj "github.com/hi-ogawa/pianoroll-go/internal/project"
	intscore "github.com/hi-ogawa/pianoroll-go/internal/score"
	intsynth "github.com/hi-ogawa/pianoroll-go/internal/synth"
	inttrack "github.com/hi-ogawa/pianoroll-go/internal/track"
	inttrans "github.com/hi-ogawa/pianoroll-go/internal/transport"
	"go.uber.org/zap"
)

// DefaultSampleRate is the output rate used when WithSampleRate is not given.
const DefaultSampleRate = 48000

// previewSeconds is how long a PreviewNote sounds before its note-off.
const previewSeconds = 0.3

type Option func(*engineConfig)

type engineConfig struct {
	sampleRate    int
	logger        *zap.Logger
	soundFontPath string
}

func defaultEngineConfig() engineConfig {
	return engineConfig{sampleRate: DefaultSampleRate}
}

// WithSampleRate overrides the output sample rate. The platform audio
// backend supports one rate per process, so every Engine in a process
// must agree on it.
func WithSampleRate(rate int) Option {
	return func(cfg *engineConfig) {
		cfg.sampleRate = rate
	}
}

// WithLogger installs a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithSoundFont loads a SoundFont during construction. Until a soundfont
// is installed, note messages reach the sampler and are dropped silently.
func WithSoundFont(path string) Option {
	return func(cfg *engineConfig) {
		cfg.soundFontPath = path
	}
}

// Engine wires the note store, transport clock, SoundFont sampler, and
// three-channel mixer into one owned graph. All methods are safe for
// concurrent use.
type Engine struct {
	mu         sync.Mutex
	logger     *zap.Logger
	sampleRate int

	score     *intscore.Store
	mixer     *intaudio.Mixer
	sampler   *intsynth.Sampler
	source    *intsynth.Source
	transport *inttrans.Transport

	backend *intaudio.Player
	buf     *inttrack.Buffer
	offset  float64 // requested offset, reapplied when a new track loads
	timeSig intproj.TimeSignature
}

// NewEngine builds the playback graph. The platform audio backend is not
// opened until the first Play call, so an Engine works for offline use
// (Bounce, project editing) on machines with no audio device.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	defaults := intproj.Default()
	sampler, source := intsynth.New(cfg.sampleRate)
	mixer := intaudio.NewMixer()
	trans := inttrans.New(cfg.sampleRate, defaults.Tempo, sampler, mixer)
	mixer.SetSource(intaudio.ChannelAudio, trans.TrackSource())
	mixer.SetSource(intaudio.ChannelMIDI, source)
	mixer.SetSource(intaudio.ChannelMetronome, trans.MetronomeSource())

	e := &Engine{
		logger:     logger,
		sampleRate: cfg.sampleRate,
		score:      intscore.NewStore(),
		mixer:      mixer,
		sampler:    sampler,
		source:     source,
		transport:  trans,
		timeSig:    defaults.TimeSignature,
	}
	if cfg.soundFontPath != "" {
		if err := e.LoadSoundFont(cfg.soundFontPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SampleRate returns the engine output rate in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// The store itself carries no locking; every access below goes through
// the engine mutex. Note edits made while playing do not change the event
// queue until Reschedule or the next Play from stopped.

// AddNote stores a note, generating an id when the given one is empty,
// and returns the stored note.
func (e *Engine) AddNote(n intscore.Note) intscore.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score.Add(n)
}

// UpdateNote applies a partial update and returns the updated note, or
// ok=false when the id is unknown.
func (e *Engine) UpdateNote(id string, p intscore.Patch) (intscore.Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.score.Update(id, p) {
		return intscore.Note{}, false
	}
	return e.score.Get(id)
}

// DeleteNotes removes the given notes, reporting how many existed.
func (e *Engine) DeleteNotes(ids []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score.DeleteMany(ids)
}

// SelectNotes marks notes selected, replacing the selection in exclusive
// mode, and returns the resulting selection.
func (e *Engine) SelectNotes(ids []string, exclusive bool) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.score.Select(ids, exclusive)
	return e.score.SelectedIDs()
}

// DeselectNotes clears the selection.
func (e *Engine) DeselectNotes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.score.DeselectAll()
}

// Note returns a single note by id.
func (e *Engine) Note(id string) (intscore.Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score.Get(id)
}

// Notes returns a snapshot of all notes in insertion order.
func (e *Engine) Notes() []intscore.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score.Notes()
}

// SelectedNoteIDs returns the selected ids in sorted order.
func (e *Engine) SelectedNoteIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score.SelectedIDs()
}

// Play starts the transport. From stopped the whole score is scheduled
// from position zero; from paused the queue resumes as-is, with every
// event keeping its absolute timestamp. The audio backend is opened on
// first use and then keeps running for the life of the Engine.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		backend, err := intaudio.NewPlayer(e.sampleRate, e.transport)
		if err != nil {
			return err
		}
		e.backend = backend
		backend.Play()
		e.logger.Info("audio backend opened", zap.Int("sampleRate", e.sampleRate))
	}
	if e.transport.State() == inttrans.Stopped {
		e.transport.ScheduleNotes(e.score.Notes(), 0)
	}
	e.transport.Play()
	return nil
}

// Pause freezes the clock and leaves the queue intact, so a later Play
// resumes exactly where playback left off.
func (e *Engine) Pause() { e.transport.Pause() }

// Stop halts playback and pins the position back to zero. The queue is
// discarded; the next Play schedules from the score again.
func (e *Engine) Stop() { e.transport.Stop() }

// Seek repositions the transport, clamped to [0, audio duration], and
// reschedules the score from the landing position. Returns the position
// actually applied.
func (e *Engine) Seek(seconds float64) float64 {
	pos := e.transport.Seek(seconds)
	e.transport.ScheduleNotes(e.Notes(), pos)
	return pos
}

// SetTempo changes the playback tempo in beats per minute. Events already
// queued keep their scheduled sample times; callers that want the score
// to follow the new tempo call Reschedule.
func (e *Engine) SetTempo(bpm float64) error {
	if bpm <= 0 {
		return errors.New("tempo must be positive")
	}
	e.transport.SetTempo(bpm)
	return nil
}

func (e *Engine) Tempo() float64 { return e.transport.Tempo() }

// Reschedule rebuilds the event queue from the note store starting at the
// current position. A no-op while stopped; Play schedules from scratch.
func (e *Engine) Reschedule() {
	if e.transport.State() == inttrans.Stopped {
		return
	}
	e.transport.ScheduleNotes(e.Notes(), e.transport.Position())
}

// SetOffset places the audio track against the transport timeline and
// returns the value applied after clamping to the track duration. The
// requested value is remembered and reapplied when a new track loads.
// Neither the transport state nor the position moves.
func (e *Engine) SetOffset(seconds float64) float64 {
	e.mu.Lock()
	e.offset = seconds
	e.mu.Unlock()
	return e.transport.SetOffset(seconds)
}

func (e *Engine) Offset() float64 { return e.transport.Offset() }

// LoadAudio decodes a WAV file, resamples it to the engine rate, and
// binds it as the audio track. The previously requested offset is
// reapplied under the new track's clamp bound.
func (e *Engine) LoadAudio(path string) error {
	buf, err := inttrack.Load(path, e.sampleRate)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.buf = buf
	offset := e.offset
	e.mu.Unlock()
	e.transport.BindAudio(buf)
	applied := e.transport.SetOffset(offset)
	e.logger.Info("audio track loaded",
		zap.String("path", path),
		zap.Float64("seconds", buf.Duration()),
		zap.Float64("offset", applied))
	return nil
}

// LoadSoundFont installs a SoundFont as the note renderer.
func (e *Engine) LoadSoundFont(path string) error {
	renderer, err := intsynth.LoadSoundFont(path, e.sampleRate)
	if err != nil {
		return err
	}
	e.source.InstallRenderer(renderer)
	e.logger.Info("soundfont loaded", zap.String("path", path))
	return nil
}

// PreviewNote sounds a single note immediately, outside the schedule.
// Used for keystroke feedback while editing; before a soundfont is
// installed the messages are dropped and nothing sounds.
func (e *Engine) PreviewNote(pitch, velocity uint8) {
	e.sampler.NoteOn(pitch, velocity, 0, 0)
	e.sampler.NoteOff(pitch, 0, previewSeconds)
}

// ProgramChange switches the General MIDI program on a channel.
func (e *Engine) ProgramChange(program, channel uint8) {
	e.sampler.ProgramChange(program, channel)
}

// SetVolume sets a mixer channel gain, clamped to [0, 1].
func (e *Engine) SetVolume(channel intaudio.Channel, volume float64) {
	e.mixer.SetVolume(channel, volume)
}

func (e *Engine) Volume(channel intaudio.Channel) float64 {
	return e.mixer.Volume(channel)
}

func (e *Engine) SetMetronome(enabled bool) { e.transport.SetMetronome(enabled) }

func (e *Engine) Metronome() bool { return e.transport.Metronome() }

// SetTimeSignature records the project time signature. It is persisted
// and exported but does not change scheduling; the metronome keeps its
// fixed four-beat measure.
func (e *Engine) SetTimeSignature(numerator, denominator int) error {
	if numerator <= 0 || denominator <= 0 {
		return errors.New("time signature must be positive")
	}
	e.mu.Lock()
	e.timeSig = intproj.TimeSignature{Numerator: numerator, Denominator: denominator}
	e.mu.Unlock()
	return nil
}

func (e *Engine) TimeSignature() intproj.TimeSignature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeSig
}

func (e *Engine) Position() float64 { return e.transport.Position() }

func (e *Engine) AudioDuration() float64 { return e.transport.AudioDuration() }

func (e *Engine) State() inttrans.State { return e.transport.State() }

// WaveformPeaks extracts min/max peak pairs from the loaded audio track,
// or nil when no track is bound.
func (e *Engine) WaveformPeaks(buckets int) []inttrack.Peak {
	e.mu.Lock()
	buf := e.buf
	e.mu.Unlock()
	if buf == nil {
		return nil
	}
	return buf.Peaks(buckets)
}

// SynthState queries the render side for its ready flag and message
// counters. The answer comes back through the audio callback, so the
// backend must be running or the request would wait forever.
func (e *Engine) SynthState() (intsynth.State, error) {
	e.mu.Lock()
	running := e.backend != nil
	e.mu.Unlock()
	if !running {
		return intsynth.State{}, errors.New("audio backend not running")
	}
	return e.sampler.State(), nil
}

// Status is a snapshot of everything the UI polls for.
type Status struct {
	State            string                `json:"state"`
	Position         float64               `json:"position"`
	Duration         float64               `json:"duration"`
	Tempo            float64               `json:"tempo"`
	Offset           float64               `json:"offset"`
	MetronomeEnabled bool                  `json:"metronomeEnabled"`
	Connected        bool                  `json:"connected"`
	SoundFontReady   bool                  `json:"soundFontReady"`
	Volumes          intproj.Volumes       `json:"volumes"`
	TimeSignature    intproj.TimeSignature `json:"timeSignature"`
	NoteCount        int                   `json:"noteCount"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	connected := e.backend != nil
	timeSig := e.timeSig
	noteCount := e.score.Len()
	e.mu.Unlock()
	return Status{
		State:            e.transport.State().String(),
		Position:         e.transport.Position(),
		Duration:         e.transport.AudioDuration(),
		Tempo:            e.transport.Tempo(),
		Offset:           e.transport.Offset(),
		MetronomeEnabled: e.transport.Metronome(),
		Connected:        connected,
		SoundFontReady:   e.source.Ready(),
		Volumes: intproj.Volumes{
			Audio:     e.mixer.Volume(intaudio.ChannelAudio),
			MIDI:      e.mixer.Volume(intaudio.ChannelMIDI),
			Metronome: e.mixer.Volume(intaudio.ChannelMetronome),
		},
		TimeSignature: timeSig,
		NoteCount:     noteCount,
	}
}

// LoadProject replaces the whole session state with the contents of a
// project file. Playback stops first; the loaded notes are scheduled on
// the next Play.
func (e *Engine) LoadProject(path string) error {
	p, err := intproj.Load(path)
	if err != nil {
		return err
	}
	e.transport.Stop()
	e.mu.Lock()
	e.score.SetNotes(p.Notes)
	e.offset = p.AudioOffset
	e.timeSig = p.TimeSignature
	e.mu.Unlock()
	e.transport.SetTempo(p.Tempo)
	e.transport.SetMetronome(p.MetronomeEnabled)
	e.mixer.SetVolume(intaudio.ChannelAudio, p.Volumes.Audio)
	e.mixer.SetVolume(intaudio.ChannelMIDI, p.Volumes.MIDI)
	e.mixer.SetVolume(intaudio.ChannelMetronome, p.Volumes.Metronome)
	e.transport.SetOffset(p.AudioOffset)
	e.logger.Info("project loaded", zap.String("path", path), zap.Int("notes", len(p.Notes)))
	return nil
}

// SaveProject writes the session state to a project file. The saved
// offset is the requested one, not the clamp result, so intent survives
// sessions where the audio file was never loaded.
func (e *Engine) SaveProject(path string) error {
	e.mu.Lock()
	offset := e.offset
	timeSig := e.timeSig
	notes := e.score.Notes()
	e.mu.Unlock()
	p := intproj.Project{
		Tempo:            e.transport.Tempo(),
		AudioOffset:      offset,
		AudioDuration:    e.transport.AudioDuration(),
		MetronomeEnabled: e.transport.Metronome(),
		Volumes: intproj.Volumes{
			Audio:     e.mixer.Volume(intaudio.ChannelAudio),
			MIDI:      e.mixer.Volume(intaudio.ChannelMIDI),
			Metronome: e.mixer.Volume(intaudio.ChannelMetronome),
		},
		TimeSignature: timeSig,
		Notes:         notes,
	}
	if err := p.Save(path); err != nil {
		return err
	}
	e.logger.Info("project saved", zap.String("path", path), zap.Int("notes", len(notes)))
	return nil
}

// Close stops playback and releases the audio backend.
func (e *Engine) Close() error {
	e.transport.Stop()
	e.mu.Lock()
	backend := e.backend
	e.backend = nil
	e.mu.Unlock()
	if backend == nil {
		return nil
	}
	return backend.Stop()
}
