// Package recording holds the in-memory data model for continuous
// multichannel physiological recordings: the signal matrix, per-channel
// metadata (name, kind, bad flag), the sampling rate, and any projection
// vectors already attached to the recording.
//
// The pipeline packages treat a Recording as the single mutable shared
// resource: filtering overwrites the signal in place, while the metadata
// (projections, bad-channel list) is never touched by signal operations.
package recording

import (
	"fmt"
	"slices"
)

// ChannelKind classifies a channel by sensor type. The artifact pipeline
// keys amplitude rejection and projection budgets off these kinds.
type ChannelKind int

const (
	// KindOther covers channels the pipeline neither filters nor projects
	// (triggers, annotations, unrecognised labels).
	KindOther ChannelKind = iota
	// KindGrad is a planar or axial gradiometer (MEG).
	KindGrad
	// KindMag is a magnetometer (MEG).
	KindMag
	// KindEEG is a scalp EEG electrode.
	KindEEG
	// KindEOG is an electrooculogram channel.
	KindEOG
	// KindECG is an electrocardiogram channel.
	KindECG
	// KindStim is a stimulus/trigger channel.
	KindStim
)

// String returns the lowercase label used in projection descriptions and
// storage records.
func (k ChannelKind) String() string {
	switch k {
	case KindGrad:
		return "grad"
	case KindMag:
		return "mag"
	case KindEEG:
		return "eeg"
	case KindEOG:
		return "eog"
	case KindECG:
		return "ecg"
	case KindStim:
		return "stim"
	default:
		return "other"
	}
}

// Recording is a continuous multichannel time series plus channel metadata.
// Data is laid out channel-major: Data[i] is the full time series for
// channel i, parallel to Names and Kinds. A nil Data (or a nil per-channel
// slice) marks a recording whose signal has not been materialized in
// memory; mutating operations refuse to run on such a recording.
type Recording struct {
	Names      []string
	Kinds      []ChannelKind
	SampleRate float64

	// Data holds the signal, one slice per channel. All channels must have
	// equal length.
	Data [][]float64

	// Bads lists channel names known to be unusable. Bad channels are
	// excluded from picks, rejection counting, and the average reference.
	Bads []string

	// Projs are the projection vectors already attached to this recording,
	// e.g. from a previous artifact run or an acquisition-time average
	// reference.
	Projs []Projection
}

// Preloaded reports whether the signal is fully materialized in memory.
// Operations that mutate the signal (filtering) require this.
func (r *Recording) Preloaded() bool {
	if r == nil || r.Data == nil || len(r.Data) != len(r.Names) {
		return false
	}
	for _, ch := range r.Data {
		if ch == nil {
			return false
		}
	}
	return true
}

// NSamples returns the number of samples per channel, or 0 for an empty or
// unmaterialized recording.
func (r *Recording) NSamples() int {
	if len(r.Data) == 0 || r.Data[0] == nil {
		return 0
	}
	return len(r.Data[0])
}

// ChannelIndex returns the index of the named channel, or -1.
func (r *Recording) ChannelIndex(name string) int {
	return slices.Index(r.Names, name)
}

// IsBad reports whether the named channel is marked bad, either on the
// recording itself or in the supplied extra list.
func (r *Recording) IsBad(name string, extra []string) bool {
	return slices.Contains(r.Bads, name) || slices.Contains(extra, name)
}

// Picks returns the indices of all channels whose kind is one of kinds,
// skipping bad channels and any names in extra. The result is in channel
// order.
func (r *Recording) Picks(kinds []ChannelKind, extra []string) []int {
	picks := make([]int, 0, len(r.Names))
	for i, kind := range r.Kinds {
		if !slices.Contains(kinds, kind) {
			continue
		}
		if r.IsBad(r.Names[i], extra) {
			continue
		}
		picks = append(picks, i)
	}
	return picks
}

// CountKind returns the number of usable (non-bad) channels of the given
// kind. The rejection resolver uses this to prune thresholds for kinds
// with no member channels.
func (r *Recording) CountKind(kind ChannelKind, extra []string) int {
	n := 0
	for i, k := range r.Kinds {
		if k == kind && !r.IsBad(r.Names[i], extra) {
			n++
		}
	}
	return n
}

// Validate checks structural consistency: parallel metadata slices and, if
// the signal is present, equal channel lengths.
func (r *Recording) Validate() error {
	if len(r.Names) != len(r.Kinds) {
		return fmt.Errorf("recording: %d names but %d kinds", len(r.Names), len(r.Kinds))
	}
	if r.SampleRate <= 0 {
		return fmt.Errorf("recording: non-positive sample rate %v", r.SampleRate)
	}
	if r.Data == nil {
		return nil
	}
	if len(r.Data) != len(r.Names) {
		return fmt.Errorf("recording: %d data channels but %d names", len(r.Data), len(r.Names))
	}
	n := r.NSamples()
	for i, ch := range r.Data {
		if len(ch) != n {
			return fmt.Errorf("recording: channel %q has %d samples, want %d", r.Names[i], len(ch), n)
		}
	}
	return nil
}
