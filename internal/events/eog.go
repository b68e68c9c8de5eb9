package events

import (
	"fmt"
	"math"

	"github.com/meglab-data/artifact.report/internal/dsp"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// EOGConfig controls ocular event detection.
type EOGConfig struct {
	// EventID is the integer label assigned to detected blinks.
	EventID int

	// LowFreq and HighFreq bound the detection band (Hz). Blinks are slow
	// deflections; 1-10 Hz isolates them from drift and muscle noise.
	LowFreq  float64
	HighFreq float64

	// ZThreshold is the robust z-score a deflection must exceed to count
	// as a blink.
	ZThreshold float64

	// MinBlinkSeparation is the minimum interval between accepted blinks
	// in seconds.
	MinBlinkSeparation float64

	// FilterTaps is the FIR length for the detection band-pass.
	FilterTaps int
}

// DefaultEOGConfig returns the detection parameters used by the ocular
// projection wrapper.
func DefaultEOGConfig() EOGConfig {
	return EOGConfig{
		EventID:            998,
		LowFreq:            1.0,
		HighFreq:           10.0,
		ZThreshold:         3.0,
		MinBlinkSeparation: 0.5,
		FilterTaps:         512,
	}
}

// FindEOGEvents locates ocular events (blinks, large saccades) on the
// recording's EOG channels. The channels are averaged, band-passed, and
// thresholded on the magnitude of their standardized deflection.
func FindEOGEvents(rec *recording.Recording, cfg EOGConfig) ([]Event, error) {
	picks := rec.Picks([]recording.ChannelKind{recording.KindEOG}, nil)
	if len(picks) == 0 {
		return nil, fmt.Errorf("eog detection: recording has no usable EOG channels")
	}

	n := rec.NSamples()
	mean := make([]float64, n)
	for _, p := range picks {
		for t, v := range rec.Data[p] {
			mean[t] += v
		}
	}
	for t := range mean {
		mean[t] /= float64(len(picks))
	}

	filtered := dsp.BandPassed(mean, rec.SampleRate, cfg.LowFreq, cfg.HighFreq, cfg.FilterTaps)

	// Standardize against the trace's own spread so thresholds are
	// amplitude-scale free.
	var sum, sumSq float64
	for _, v := range filtered {
		sum += v
		sumSq += v * v
	}
	mu := sum / float64(len(filtered))
	sigma := math.Sqrt(sumSq/float64(len(filtered)) - mu*mu)
	if sigma == 0 {
		return nil, nil
	}
	z := make([]float64, len(filtered))
	for i, v := range filtered {
		z[i] = math.Abs(v-mu) / sigma
	}

	minSep := int(cfg.MinBlinkSeparation * rec.SampleRate)
	peaks := findPeaks(z, cfg.ZThreshold, minSep)

	evs := make([]Event, len(peaks))
	for i, p := range peaks {
		evs[i] = Event{Sample: p, ID: cfg.EventID}
	}
	return evs, nil
}
