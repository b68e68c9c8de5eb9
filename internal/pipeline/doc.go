// Package pipeline computes signal-space projection (SSP) vectors for
// cardiac and ocular artifacts from a continuous recording.
//
// It is the composition root: it wires the recording model, FIR
// filtering, event detection, epoch extraction, and SVD reduction into
// one strictly sequential computation, and exposes two public entry
// points (ComputeProjECG, ComputeProjEOG) that fix artifact-specific
// defaults. The layer packages it imports never import pipeline back.
//
// The recording passed in is consumed: the filter stage overwrites its
// signal data in place. Metadata (projections, bad channels) is left
// untouched.
package pipeline
