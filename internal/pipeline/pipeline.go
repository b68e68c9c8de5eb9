package pipeline

import (
	"fmt"
	"math"

	"github.com/meglab-data/artifact.report/internal/epochs"
	"github.com/meglab-data/artifact.report/internal/events"
	"github.com/meglab-data/artifact.report/internal/recording"
	"github.com/meglab-data/artifact.report/internal/ssp"
)

// Config holds the full parameter set of the artifact projection
// computation. Use DefaultECGConfig or DefaultEOGConfig as a starting
// point; every field has artifact-specific defaults there.
type Config struct {
	// TMin and TMax bound the epoch window in seconds around each event.
	TMin float64
	TMax float64

	// Budgets caps projection vectors per channel kind.
	Budgets ssp.Budgets

	// LowFreq and HighFreq are the optional filter bounds (Hz). See
	// FilterSpec for how they map to filter operations.
	LowFreq  *float64
	HighFreq *float64

	// Average reduces the mean artifact waveform instead of the full
	// epoch collection.
	Average bool

	// FilterLength is the FIR tap count for the filter stage.
	FilterLength int

	// NJobs bounds the filter stage's worker count. Performance knob
	// only: output is identical for any value >= 1.
	NJobs int

	// ChName optionally names the channel for cardiac detection when the
	// recording has no dedicated ECG channel. Ignored in ocular mode.
	ChName string

	// Reject is the amplitude rejection profile. It is pruned in place to
	// the kinds actually present in the recording.
	Reject RejectionSpec

	// Bads lists additional bad channels excluded from picks and
	// rejection counting, on top of the recording's own list.
	Bads []string

	// AvgRef appends an average-EEG-reference projection to the output.
	AvgRef bool

	// NoProj excludes the recording's pre-existing projections from the
	// output list.
	NoProj bool

	// EventID is the integer label assigned to detected events.
	EventID int
}

// DefaultECGConfig returns the cardiac defaults: a [-0.2 s, +0.4 s]
// window, event ID 999, existing projections excluded, a finite EOG
// rejection ceiling, and a 1-35 Hz detection band.
func DefaultECGConfig() Config {
	return Config{
		TMin:         -0.2,
		TMax:         0.4,
		Budgets:      ssp.DefaultBudgets(),
		LowFreq:      ptr(1.0),
		HighFreq:     ptr(35.0),
		FilterLength: 2048,
		NJobs:        1,
		Reject: RejectionSpec{
			Grad: ptr(2000e-13),
			Mag:  ptr(3000e-15),
			EEG:  ptr(50e-6),
			EOG:  ptr(250e-6),
		},
		Bads:    []string{},
		NoProj:  true,
		EventID: 999,
	}
}

// DefaultEOGConfig returns the ocular defaults: a [-0.15 s, +0.15 s]
// window, event ID 998, and an unbounded EOG ceiling — the EOG channels
// carry the artifact under examination, so rejecting on them would
// discard exactly the epochs of interest.
func DefaultEOGConfig() Config {
	return Config{
		TMin:         -0.15,
		TMax:         0.15,
		Budgets:      ssp.DefaultBudgets(),
		LowFreq:      ptr(1.0),
		HighFreq:     ptr(35.0),
		FilterLength: 2048,
		NJobs:        1,
		Reject: RejectionSpec{
			Grad: ptr(2000e-13),
			Mag:  ptr(3000e-15),
			EEG:  ptr(500e-6),
			EOG:  ptr(math.Inf(1)),
		},
		Bads:    []string{},
		NoProj:  true,
		EventID: 998,
	}
}

// ComputeProjECG computes SSP vectors for cardiac artifacts. The
// recording is filtered in place; treat it as consumed afterwards.
// Returns the assembled projection list and the detected beat events.
func ComputeProjECG(rec *recording.Recording, cfg Config) ([]recording.Projection, []events.Event, error) {
	return computeArtifactProj(ModeCardiac, rec, cfg)
}

// ComputeProjEOG computes SSP vectors for ocular artifacts. Ocular
// detection has no channel-name hint; any ChName in cfg is ignored.
func ComputeProjEOG(rec *recording.Recording, cfg Config) ([]recording.Projection, []events.Event, error) {
	cfg.ChName = ""
	return computeArtifactProj(ModeOcular, rec, cfg)
}

// computeArtifactProj runs the full pipeline: precondition checks,
// rejection pruning, channel filtering, event detection, epoch
// extraction, SVD reduction, and projection assembly. Stages are strictly
// sequential; each consumes the previous stage's output.
func computeArtifactProj(mode Mode, rec *recording.Recording, cfg Config) ([]recording.Projection, []events.Event, error) {
	// Both checks run before the recording is mutated.
	if !rec.Preloaded() {
		return nil, nil, fmt.Errorf("compute %s projections: %w", mode, ErrNotPreloaded)
	}
	if !mode.valid() {
		return nil, nil, fmt.Errorf("compute artifact projections: %w: got %d", ErrInvalidMode, int(mode))
	}
	diagf("running %s SSP computation", mode)

	pruneReject(&cfg.Reject, rec, cfg.Bads)

	picks := rec.Picks([]recording.ChannelKind{
		recording.KindGrad,
		recording.KindMag,
		recording.KindEEG,
		recording.KindEOG,
	}, cfg.Bads)
	if len(picks) == 0 {
		return nil, nil, fmt.Errorf("compute %s projections: no usable MEG/EEG/EOG channels", mode)
	}

	applyFilterStage(rec, picks, FilterSpec{Low: cfg.LowFreq, High: cfg.HighFreq}, cfg.FilterLength, cfg.NJobs)

	evs, err := detectEvents(mode, rec, cfg.ChName, cfg.EventID)
	if err != nil {
		return nil, nil, err
	}
	if len(evs) == 0 {
		return nil, nil, fmt.Errorf("compute %s projections: no events detected", mode)
	}

	ep, err := epochs.Extract(rec, evs, epochs.Config{
		TMin:      cfg.TMin,
		TMax:      cfg.TMax,
		Picks:     picks,
		Reject:    cfg.Reject,
		ApplyProj: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compute %s projections: %w", mode, err)
	}
	diagf("extracted %d epochs (%d dropped)", len(ep.Data), ep.Dropped)
	if ep.Dropped > len(ep.Data) {
		opsf("more epochs dropped (%d) than kept (%d); check rejection thresholds and bad channels", ep.Dropped, len(ep.Data))
	}

	var artifactProjs []recording.Projection
	if cfg.Average {
		artifactProjs, err = ssp.ComputeProjEvoked(ep.Average(), cfg.Budgets, mode.String())
	} else {
		artifactProjs, err = ssp.ComputeProjEpochs(ep, cfg.Budgets, mode.String())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("compute %s projections: %w", mode, err)
	}
	diagf("computed %d artifact projection vectors", len(artifactProjs))

	projs, err := assembleProjections(rec, cfg, artifactProjs)
	if err != nil {
		return nil, nil, fmt.Errorf("compute %s projections: %w", mode, err)
	}
	return projs, evs, nil
}

// assembleProjections builds the output list in its contractual order:
// pre-existing recording projections (unless NoProj), then the optional
// average-EEG-reference projection, then the newly computed artifact
// projections. Downstream consumers apply vectors in list order, so the
// order is part of the public contract.
func assembleProjections(rec *recording.Recording, cfg Config, artifactProjs []recording.Projection) ([]recording.Projection, error) {
	var projs []recording.Projection
	if !cfg.NoProj {
		diagf("including %d projections from recording", len(rec.Projs))
		projs = append(projs, rec.Projs...)
	}
	if cfg.AvgRef {
		diagf("adding average EEG reference projection")
		avgRef, err := recording.AverageReference(rec)
		if err != nil {
			return nil, err
		}
		projs = append(projs, avgRef)
	}
	projs = append(projs, artifactProjs...)
	return projs, nil
}
