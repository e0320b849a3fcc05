package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hi-ogawa/pianoroll-go/internal/midifile"
	"github.com/hi-ogawa/pianoroll-go/internal/project"
	"github.com/hi-ogawa/pianoroll-go/internal/score"
	"github.com/spf13/cobra"
)

var importFlags struct {
	out string
}

func init() {
	importCmd.Flags().StringVarP(&importFlags.out, "out", "o", "", "output project file (default: input with .json)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file.mid>",
	Short: "Import a standard MIDI file into a project",
	Long: `Import reads note-on/note-off pairs from a standard MIDI file,
converts their times to beats at the file's own tempo, and writes a
project file carrying the notes, the tempo and the time signature.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := midifile.Import(args[0])
		if err != nil {
			return err
		}

		// Run the notes through a store so the project file carries
		// assigned ids.
		st := score.NewStore()
		for _, n := range res.Notes {
			st.Add(n)
		}

		p := project.Default()
		p.Tempo = res.Tempo
		p.TimeSignature = project.TimeSignature{Numerator: res.Numerator, Denominator: res.Denominator}
		p.Notes = st.Notes()

		out := importFlags.out
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".json"
		}
		if err := p.Save(out); err != nil {
			return err
		}
		fmt.Printf("imported %d notes at %g BPM into %s\n", len(p.Notes), p.Tempo, out)
		return nil
	},
}
