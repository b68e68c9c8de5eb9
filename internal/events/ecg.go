package events

import (
	"fmt"
	"math"

	"github.com/meglab-data/artifact.report/internal/dsp"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// ECGConfig controls cardiac event detection.
type ECGConfig struct {
	// EventID is the integer label assigned to detected beats.
	EventID int

	// ChName optionally names the channel to detect on when the recording
	// has no dedicated ECG channel. Empty means no hint; detection then
	// falls back to a synthesized mean of the MEG channels, which carry a
	// usable cardiac signature.
	ChName string

	// LowFreq and HighFreq bound the detection band (Hz). QRS complexes
	// concentrate their energy between roughly 5 and 35 Hz.
	LowFreq  float64
	HighFreq float64

	// ThresholdFactor scales the peak-amplitude threshold relative to the
	// 98th percentile of the rectified detection trace.
	ThresholdFactor float64

	// MinBeatSeparation is the refractory interval between accepted beats
	// in seconds. 0.25 s caps detection at 240 bpm.
	MinBeatSeparation float64

	// FilterTaps is the FIR length for the detection band-pass.
	FilterTaps int
}

// DefaultECGConfig returns the detection parameters used by the cardiac
// projection wrapper.
func DefaultECGConfig() ECGConfig {
	return ECGConfig{
		EventID:           999,
		LowFreq:           5.0,
		HighFreq:          35.0,
		ThresholdFactor:   0.6,
		MinBeatSeparation: 0.25,
		FilterTaps:        512,
	}
}

// FindECGEvents locates cardiac (QRS) events in the recording. Alongside
// the events it returns the band-passed cardiac trace the detection ran on
// and the mean pulse in beats per minute; callers that only need the
// events may discard both.
//
// Channel selection falls back in order: first dedicated ECG channel, then
// cfg.ChName, then the mean of all good MEG channels.
func FindECGEvents(rec *recording.Recording, cfg ECGConfig) ([]Event, []float64, float64, error) {
	trace, err := cardiacTrace(rec, cfg.ChName)
	if err != nil {
		return nil, nil, 0, err
	}

	filtered := dsp.BandPassed(trace, rec.SampleRate, cfg.LowFreq, cfg.HighFreq, cfg.FilterTaps)
	rectified := make([]float64, len(filtered))
	for i, v := range filtered {
		rectified[i] = math.Abs(v)
	}

	thresh := cfg.ThresholdFactor * percentile(rectified, 98)
	minSep := int(cfg.MinBeatSeparation * rec.SampleRate)
	peaks := findPeaks(rectified, thresh, minSep)

	evs := make([]Event, len(peaks))
	for i, p := range peaks {
		evs[i] = Event{Sample: p, ID: cfg.EventID}
	}

	var pulse float64
	if dur := float64(len(trace)) / rec.SampleRate; dur > 0 {
		pulse = float64(len(evs)) / dur * 60
	}
	return evs, filtered, pulse, nil
}

// cardiacTrace picks the signal QRS detection runs on.
func cardiacTrace(rec *recording.Recording, chName string) ([]float64, error) {
	for i, kind := range rec.Kinds {
		if kind == recording.KindECG {
			return rec.Data[i], nil
		}
	}
	if chName != "" {
		idx := rec.ChannelIndex(chName)
		if idx < 0 {
			return nil, fmt.Errorf("ecg detection: channel %q not found", chName)
		}
		return rec.Data[idx], nil
	}
	// Synthesize from MEG: the magnetic field of the heart is visible on
	// most MEG sensors, so their mean carries the beat.
	picks := rec.Picks([]recording.ChannelKind{recording.KindGrad, recording.KindMag}, nil)
	if len(picks) == 0 {
		return nil, fmt.Errorf("ecg detection: no ECG channel, no hint, and no MEG channels to derive from")
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
	return mean, nil
}
