// Package epochs extracts fixed-length windows around artifact events,
// rejects windows whose peak-to-peak amplitude exceeds per-kind
// thresholds, and averages surviving windows into an evoked waveform.
//
// No baseline correction is applied anywhere in this package: the artifact
// pipeline always operates on raw (filtered) amplitudes.
package epochs

import (
	"fmt"
	"math"

	"github.com/meglab-data/artifact.report/internal/events"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// Rejection holds one optional peak-to-peak amplitude ceiling per channel
// kind. A nil field means the kind is absent from the rejection profile
// and is never checked; +Inf means the kind is present but unbounded.
type Rejection struct {
	Grad *float64
	Mag  *float64
	EEG  *float64
	EOG  *float64
}

// Threshold returns the ceiling for the given kind, or nil when the kind
// is not part of the profile.
func (r Rejection) Threshold(kind recording.ChannelKind) *float64 {
	switch kind {
	case recording.KindGrad:
		return r.Grad
	case recording.KindMag:
		return r.Mag
	case recording.KindEEG:
		return r.EEG
	case recording.KindEOG:
		return r.EOG
	default:
		return nil
	}
}

// Config parameterizes epoch extraction.
type Config struct {
	// TMin and TMax bound the window in seconds relative to each event.
	// TMin is normally negative.
	TMin float64
	TMax float64

	// Picks are the recording channel indices included in each epoch.
	Picks []int

	// Reject is the per-kind peak-to-peak amplitude profile. Epochs with
	// any channel exceeding its kind's ceiling are dropped.
	Reject Rejection

	// ApplyProj applies the recording's active projections to each epoch
	// at construction time.
	ApplyProj bool
}

// Epochs is a collection of extracted windows. Data is epoch-major:
// Data[e][c][t] with channels parallel to Names/Kinds (the picked subset,
// in pick order).
type Epochs struct {
	Data       [][][]float64
	Names      []string
	Kinds      []recording.ChannelKind
	SampleRate float64
	TMin       float64

	// Events are the surviving events, parallel to Data.
	Events []events.Event

	// Dropped counts events discarded for amplitude or window-bounds
	// reasons.
	Dropped int
}

// Evoked is the average of an epoch collection: Data[c][t] over the same
// picked channels.
type Evoked struct {
	Data       [][]float64
	Names      []string
	Kinds      []recording.ChannelKind
	SampleRate float64
	TMin       float64

	// NAve is the number of epochs averaged.
	NAve int
}

// Extract builds one epoch per event from the recording. Events whose
// window would cross the recording bounds are dropped, as are epochs
// failing the rejection profile. Returns an error when no epochs survive,
// since every downstream consumer needs at least one.
func Extract(rec *recording.Recording, evs []events.Event, cfg Config) (*Epochs, error) {
	if len(cfg.Picks) == 0 {
		return nil, fmt.Errorf("epochs: empty pick set")
	}
	nSamp := rec.NSamples()
	pre := int(math.Round(cfg.TMin * rec.SampleRate))
	post := int(math.Round(cfg.TMax * rec.SampleRate))
	if post < pre {
		return nil, fmt.Errorf("epochs: window end %v precedes start %v", cfg.TMax, cfg.TMin)
	}
	nTimes := post - pre + 1

	names := make([]string, len(cfg.Picks))
	kinds := make([]recording.ChannelKind, len(cfg.Picks))
	for i, p := range cfg.Picks {
		names[i] = rec.Names[p]
		kinds[i] = rec.Kinds[p]
	}

	ep := &Epochs{
		Names:      names,
		Kinds:      kinds,
		SampleRate: rec.SampleRate,
		TMin:       cfg.TMin,
	}

	for _, ev := range evs {
		start := ev.Sample + pre
		end := ev.Sample + post
		if start < 0 || end >= nSamp {
			ep.Dropped++
			continue
		}

		window := make([][]float64, len(cfg.Picks))
		for i, p := range cfg.Picks {
			window[i] = make([]float64, nTimes)
			copy(window[i], rec.Data[p][start:end+1])
		}
		if cfg.ApplyProj {
			recording.ApplyProjections(window, names, rec.Projs)
		}
		if rejected(window, kinds, cfg.Reject) {
			ep.Dropped++
			continue
		}
		ep.Data = append(ep.Data, window)
		ep.Events = append(ep.Events, ev)
	}

	if len(ep.Data) == 0 {
		return nil, fmt.Errorf("epochs: no epochs survived from %d events (%d dropped)", len(evs), ep.Dropped)
	}
	return ep, nil
}

// Average reduces the collection to its mean waveform.
func (e *Epochs) Average() *Evoked {
	nCh := len(e.Names)
	nTimes := 0
	if len(e.Data) > 0 {
		nTimes = len(e.Data[0][0])
	}
	mean := make([][]float64, nCh)
	for c := range mean {
		mean[c] = make([]float64, nTimes)
	}
	for _, epoch := range e.Data {
		for c := range epoch {
			for t, v := range epoch[c] {
				mean[c][t] += v
			}
		}
	}
	n := float64(len(e.Data))
	for c := range mean {
		for t := range mean[c] {
			mean[c][t] /= n
		}
	}
	return &Evoked{
		Data:       mean,
		Names:      e.Names,
		Kinds:      e.Kinds,
		SampleRate: e.SampleRate,
		TMin:       e.TMin,
		NAve:       len(e.Data),
	}
}

// rejected reports whether any channel's peak-to-peak amplitude exceeds
// its kind's ceiling.
func rejected(window [][]float64, kinds []recording.ChannelKind, reject Rejection) bool {
	for c, samples := range window {
		ceil := reject.Threshold(kinds[c])
		if ceil == nil || math.IsInf(*ceil, 1) {
			continue
		}
		lo, hi := samples[0], samples[0]
		for _, v := range samples[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi-lo > *ceil {
			return true
		}
	}
	return false
}
