package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var bounceFlags struct {
	out       string
	seconds   float64
	soundFont string
	audio     string
	metronome bool
}

func init() {
	bounceCmd.Flags().StringVarP(&bounceFlags.out, "out", "o", "", "output WAV file (default: input with .wav)")
	bounceCmd.Flags().Float64Var(&bounceFlags.seconds, "seconds", 0, "render length; 0 renders until the content ends")
	bounceCmd.Flags().StringVar(&bounceFlags.soundFont, "soundfont", "", "SoundFont (.sf2) to render notes with")
	bounceCmd.Flags().StringVar(&bounceFlags.audio, "audio", "", "WAV backing track")
	bounceCmd.Flags().BoolVar(&bounceFlags.metronome, "metronome", false, "force the metronome on")
	rootCmd.AddCommand(bounceCmd)
}

var bounceCmd = &cobra.Command{
	Use:   "bounce <project.json>",
	Short: "Render a project to a WAV file without an audio device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		engine, err := newEngine(logger, bounceFlags.soundFont)
		if err != nil {
			return err
		}
		if err := engine.LoadProject(args[0]); err != nil {
			return err
		}
		if bounceFlags.audio != "" {
			if err := engine.LoadAudio(bounceFlags.audio); err != nil {
				return err
			}
		}
		if bounceFlags.metronome {
			engine.SetMetronome(true)
		}

		out := bounceFlags.out
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wav"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := engine.Bounce(f, bounceFlags.seconds); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", out)
		return nil
	},
}
