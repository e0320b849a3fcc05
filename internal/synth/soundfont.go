package synth

import (
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// LoadSoundFont parses an SF2 file and builds a renderer for it at the
// given sample rate.
func LoadSoundFont(path string, sampleRate int) (Renderer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open soundfont: %w", err)
	}
	defer f.Close()

	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, fmt.Errorf("parse soundfont %s: %w", path, err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	sy, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}
	return sy, nil
}
