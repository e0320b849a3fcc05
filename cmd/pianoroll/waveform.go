package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/hi-ogawa/pianoroll-go/internal/track"
	"github.com/spf13/cobra"
)

var waveformFlags struct {
	out    string
	width  int
	height int
}

func init() {
	waveformCmd.Flags().StringVarP(&waveformFlags.out, "out", "o", "", "output PNG file (default: input with .png)")
	waveformCmd.Flags().IntVar(&waveformFlags.width, "width", 1024, "image width; one peak bucket per pixel column")
	waveformCmd.Flags().IntVar(&waveformFlags.height, "height", 256, "image height")
	rootCmd.AddCommand(waveformCmd)
}

var waveformCmd = &cobra.Command{
	Use:   "waveform <file.wav>",
	Short: "Render a WAV file's peak waveform to a PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := track.Load(args[0], flagSampleRate)
		if err != nil {
			return err
		}
		peaks := buf.Peaks(waveformFlags.width)

		w := waveformFlags.width
		h := waveformFlags.height
		dc := gg.NewContext(w, h)
		dc.SetRGB(0.09, 0.09, 0.11)
		dc.DrawRectangle(0, 0, float64(w), float64(h))
		dc.Fill()

		mid := float64(h) / 2
		scale := mid * 0.92
		dc.SetRGB(0.38, 0.65, 0.87)
		dc.SetLineWidth(1)
		for i, p := range peaks {
			x := float64(i) + 0.5
			top := mid - float64(p.Max)*scale
			bottom := mid - float64(p.Min)*scale
			if bottom-top < 1 {
				bottom = top + 1
			}
			dc.DrawLine(x, top, x, bottom)
			dc.Stroke()
		}
		dc.SetRGBA(1, 1, 1, 0.25)
		dc.SetLineWidth(0.5)
		dc.DrawLine(0, mid, float64(w), mid)
		dc.Stroke()

		out := waveformFlags.out
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".png"
		}
		if err := dc.SavePNG(out); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d buckets)\n", out, len(peaks))
		return nil
	},
}
