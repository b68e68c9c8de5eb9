package pipeline

import (
	"github.com/meglab-data/artifact.report/internal/dsp"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// FilterSpec is an optional pair of frequency bounds (Hz). Which of the
// four filter outcomes runs is decided entirely by which bounds are set:
//
//	Low unset, High unset  -> no filtering
//	Low unset, High set    -> high-pass at High
//	Low set,   High unset  -> low-pass at Low
//	Low set,   High set    -> band-pass Low..High
//
// The first two follow the domain's inherited naming convention, where
// supplying only the "high" parameter selects a high-pass filter.
type FilterSpec struct {
	Low  *float64
	High *float64
}

// applyFilterStage runs at most one filtering operation over the picked
// channels of the recording, in place. filterLength is the FIR tap count;
// workers is a pure performance knob and never changes the numeric
// output. Recording metadata is untouched.
func applyFilterStage(rec *recording.Recording, picks []int, spec FilterSpec, filterLength, workers int) {
	var taps []float64
	switch {
	case spec.Low == nil && spec.High == nil:
		diagf("filter stage: no bounds set, skipping")
		return
	case spec.Low == nil:
		diagf("filter stage: high-pass at %.2f Hz over %d channels", *spec.High, len(picks))
		taps = dsp.HighPassTaps(*spec.High, rec.SampleRate, filterLength)
	case spec.High == nil:
		// The low bound is the cutoff here. An earlier revision wired the
		// (unset) high bound into this branch; see DESIGN.md.
		diagf("filter stage: low-pass at %.2f Hz over %d channels", *spec.Low, len(picks))
		taps = dsp.LowPassTaps(*spec.Low, rec.SampleRate, filterLength)
	default:
		diagf("filter stage: band-pass %.2f-%.2f Hz over %d channels", *spec.Low, *spec.High, len(picks))
		taps = dsp.BandPassTaps(*spec.Low, *spec.High, rec.SampleRate, filterLength)
	}
	dsp.FilterChannels(rec.Data, picks, taps, workers)
}
