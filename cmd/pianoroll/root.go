package main

import (
	pianoroll "github.com/hi-ogawa/pianoroll-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagSampleRate int
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pianoroll",
	Short: "Piano-roll sequencer engine",
	Long:  `Transport, SoundFont synth, backing track and metronome behind one sample clock.`,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagSampleRate, "sample-rate", pianoroll.DefaultSampleRate, "output sample rate in Hz")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level, human readable")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newEngine builds an engine from the persistent flags plus an optional
// soundfont path.
func newEngine(logger *zap.Logger, soundFont string) (*pianoroll.Engine, error) {
	opts := []pianoroll.Option{
		pianoroll.WithSampleRate(flagSampleRate),
		pianoroll.WithLogger(logger.Named("engine")),
	}
	if soundFont != "" {
		opts = append(opts, pianoroll.WithSoundFont(soundFont))
	}
	return pianoroll.NewEngine(opts...)
}
