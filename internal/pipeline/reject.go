package pipeline

import (
	"github.com/meglab-data/artifact.report/internal/epochs"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// RejectionSpec maps channel kinds to peak-to-peak amplitude ceilings for
// epoch rejection. It is the epoch layer's Rejection record: one optional
// threshold per kind, nil meaning absent and +Inf meaning present but
// unbounded.
type RejectionSpec = epochs.Rejection

// pruneReject clears every threshold whose kind has zero usable channels
// in the recording. The epoch rejection logic is only defined for kinds
// with member channels, so absent kinds must not reach it. Pruning is
// silent: a missing kind is normal, not an error.
//
// The spec is mutated in place; callers must not assume the input is
// preserved.
func pruneReject(spec *RejectionSpec, rec *recording.Recording, extraBads []string) {
	if rec.CountKind(recording.KindGrad, extraBads) == 0 {
		spec.Grad = nil
	}
	if rec.CountKind(recording.KindMag, extraBads) == 0 {
		spec.Mag = nil
	}
	if rec.CountKind(recording.KindEEG, extraBads) == 0 {
		spec.EEG = nil
	}
	if rec.CountKind(recording.KindEOG, extraBads) == 0 {
		spec.EOG = nil
	}
}

// ptr is a convenience for building rejection thresholds.
func ptr(v float64) *float64 { return &v }
