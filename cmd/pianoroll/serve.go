package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hi-ogawa/pianoroll-go/internal/server"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	addr      string
	soundFont string
	project   string
	audio     string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().StringVar(&serveFlags.soundFont, "soundfont", "", "SoundFont (.sf2) to render notes with")
	serveCmd.Flags().StringVar(&serveFlags.project, "project", "", "project file to preload")
	serveCmd.Flags().StringVar(&serveFlags.audio, "audio", "", "WAV backing track to preload")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API for the browser UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		engine, err := newEngine(logger, serveFlags.soundFont)
		if err != nil {
			return err
		}
		defer engine.Close()

		if serveFlags.project != "" {
			if err := engine.LoadProject(serveFlags.project); err != nil {
				return err
			}
		}
		if serveFlags.audio != "" {
			if err := engine.LoadAudio(serveFlags.audio); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(engine, logger.Named("http")).Run(ctx, serveFlags.addr)
	},
}
