// Package project persists sequencer documents as JSON.
package project

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hi-ogawa/pianoroll-go/internal/score"
)

// Volumes holds the three mixer channel gains.
type Volumes struct {
	Audio     float64 `json:"audio"`
	MIDI      float64 `json:"midi"`
	Metronome float64 `json:"metronome"`
}

// TimeSignature is stored for export and display; playback does not
// consult it.
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// Project is the serialized document. Loading is forward-compatible:
// unknown fields are ignored and absent fields keep their defaults.
type Project struct {
	Tempo            float64       `json:"tempo"`
	AudioOffset      float64       `json:"audioOffset"`
	AudioDuration    float64       `json:"audioDuration"`
	MetronomeEnabled bool          `json:"metronomeEnabled"`
	Volumes          Volumes       `json:"volumes"`
	TimeSignature    TimeSignature `json:"timeSignature"`
	Notes            []score.Note  `json:"notes"`
}

// Default returns a project with standard settings: 120 BPM, 4/4, every
// channel at full volume, metronome off.
func Default() Project {
	return Project{
		Tempo:         120,
		Volumes:       Volumes{Audio: 1, MIDI: 1, Metronome: 1},
		TimeSignature: TimeSignature{Numerator: 4, Denominator: 4},
	}
}

// Decode reads a project from r over the defaults.
func Decode(r io.Reader) (Project, error) {
	p := Default()
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Project{}, fmt.Errorf("decode project: %w", err)
	}
	if p.Tempo <= 0 {
		return Project{}, fmt.Errorf("project tempo %v out of range", p.Tempo)
	}
	return p, nil
}

// Load reads the project file at path.
func Load(path string) (Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return Project{}, fmt.Errorf("open project: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return Project{}, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}

// Save writes the project to path as indented JSON.
func (p Project) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}
