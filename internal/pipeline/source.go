package pipeline

import (
	"errors"
	"fmt"

	"github.com/meglab-data/artifact.report/internal/events"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// Mode selects which artifact the pipeline targets.
type Mode int

const (
	// ModeCardiac detects heartbeat (QRS) events.
	ModeCardiac Mode = iota + 1
	// ModeOcular detects blink/saccade events.
	ModeOcular
)

// String returns the conventional artifact abbreviation.
func (m Mode) String() string {
	switch m {
	case ModeCardiac:
		return "ECG"
	case ModeOcular:
		return "EOG"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// valid reports whether m is one of the two defined modes.
func (m Mode) valid() bool {
	return m == ModeCardiac || m == ModeOcular
}

// Sentinel errors for the pipeline's two fatal precondition failures.
var (
	// ErrNotPreloaded is returned when the recording's signal is not
	// materialized in memory. The pipeline mutates the signal in place
	// and cannot run against lazily loaded data.
	ErrNotPreloaded = errors.New("recording must be preloaded in memory")

	// ErrInvalidMode is returned for a mode outside {ModeCardiac,
	// ModeOcular}, before the recording is touched.
	ErrInvalidMode = errors.New("mode must be ModeCardiac or ModeOcular")
)

// detectEvents dispatches to the artifact detector for the given mode and
// returns its event list. The cardiac detector also produces a filtered
// trace and mean pulse; the trace is discarded here and the pulse only
// logged. Mode validity is checked by the orchestrator before any
// mutation, so an unknown mode here is a programming error.
func detectEvents(mode Mode, rec *recording.Recording, chName string, eventID int) ([]events.Event, error) {
	switch mode {
	case ModeCardiac:
		cfg := events.DefaultECGConfig()
		cfg.EventID = eventID
		cfg.ChName = chName
		evs, _, pulse, err := events.FindECGEvents(rec, cfg)
		if err != nil {
			return nil, fmt.Errorf("cardiac event detection: %w", err)
		}
		diagf("detected %d cardiac events (mean pulse %.1f bpm)", len(evs), pulse)
		return evs, nil
	case ModeOcular:
		cfg := events.DefaultEOGConfig()
		cfg.EventID = eventID
		evs, err := events.FindEOGEvents(rec, cfg)
		if err != nil {
			return nil, fmt.Errorf("ocular event detection: %w", err)
		}
		diagf("detected %d ocular events", len(evs))
		return evs, nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMode, int(mode))
	}
}
