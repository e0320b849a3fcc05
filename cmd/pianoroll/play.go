package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var playFlags struct {
	soundFont string
	audio     string
	metronome bool
}

func init() {
	playCmd.Flags().StringVar(&playFlags.soundFont, "soundfont", "", "SoundFont (.sf2) to render notes with")
	playCmd.Flags().StringVar(&playFlags.audio, "audio", "", "WAV backing track")
	playCmd.Flags().BoolVar(&playFlags.metronome, "metronome", false, "force the metronome on")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <project.json>",
	Short: "Play a project through the audio device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		engine, err := newEngine(logger, playFlags.soundFont)
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.LoadProject(args[0]); err != nil {
			return err
		}
		if playFlags.audio != "" {
			if err := engine.LoadAudio(playFlags.audio); err != nil {
				return err
			}
		}
		if playFlags.metronome {
			engine.SetMetronome(true)
		}
		if err := engine.Play(); err != nil {
			return err
		}

		// Run until the content ends (plus a release tail) or until
		// interrupted; an empty project plays until interrupted.
		var timeout <-chan time.Time
		if length := engine.ProjectLength(); length > 0 {
			logger.Info("playing", zap.Float64("seconds", length))
			timeout = time.After(time.Duration((length + 1) * float64(time.Second)))
		} else {
			logger.Info("playing until interrupted")
		}
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-timeout:
		case <-sig:
		}
		engine.Stop()
		return nil
	},
}
