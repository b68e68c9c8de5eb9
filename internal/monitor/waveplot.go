// Package monitor renders quality-control plots for artifact projection
// runs. A plot of the averaged artifact waveform per channel kind is the
// quickest way to confirm the detector locked onto real heartbeats or
// blinks rather than noise.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/meglab-data/artifact.report/internal/epochs"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// PlotEvoked writes one PNG per channel kind present in the evoked
// waveform, each overlaying every channel of that kind against time in
// milliseconds. Returns the paths written.
func PlotEvoked(ev *epochs.Evoked, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	byKind := make(map[recording.ChannelKind][]int)
	for c, kind := range ev.Kinds {
		byKind[kind] = append(byKind[kind], c)
	}

	var written []string
	for kind, chans := range byKind {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Averaged artifact waveform (%s, n=%d)", kind, ev.NAve)
		p.X.Label.Text = "Time (ms)"
		p.Y.Label.Text = "Amplitude"

		for i, c := range chans {
			pts := make(plotter.XYs, len(ev.Data[c]))
			for t := range ev.Data[c] {
				pts[t].X = (ev.TMin + float64(t)/ev.SampleRate) * 1000
				pts[t].Y = ev.Data[c][t]
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return written, fmt.Errorf("plot %s channel %s: %w", kind, ev.Names[c], err)
			}
			line.Color = channelColor(i, len(chans))
			line.Width = vg.Points(0.75)
			p.Add(line)
		}

		path := filepath.Join(outputDir, fmt.Sprintf("avg_%s.png", kind))
		if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save %s plot: %w", kind, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// channelColor spreads channels over a blue-to-red ramp so dense overlays
// stay readable.
func channelColor(i, n int) color.Color {
	if n <= 1 {
		return color.RGBA{R: 40, G: 80, B: 200, A: 255}
	}
	frac := float64(i) / float64(n-1)
	return color.RGBA{
		R: uint8(40 + 180*frac),
		G: 60,
		B: uint8(200 - 160*frac),
		A: 255,
	}
}
