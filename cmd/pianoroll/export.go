package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hi-ogawa/pianoroll-go/internal/midifile"
	"github.com/hi-ogawa/pianoroll-go/internal/project"
	"github.com/spf13/cobra"
)

var exportFlags struct {
	out string
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.out, "out", "o", "", "output MIDI file (default: input with .mid)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <project.json>",
	Short: "Export a project as a standard MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Load(args[0])
		if err != nil {
			return err
		}
		out := exportFlags.out
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".mid"
		}
		if err := midifile.Export(out, p.Notes, p.Tempo, p.TimeSignature.Numerator, p.TimeSignature.Denominator); err != nil {
			return err
		}
		fmt.Printf("exported %d notes to %s\n", len(p.Notes), out)
		return nil
	},
}
