package pipeline

import (
	"io"
	"log"
)

var (
	opsLogger  *log.Logger
	diagLogger *log.Logger
)

// SetLogWriters configures the two logging streams for the pipeline
// package. The ops stream carries actionable warnings; the diag stream
// carries stage-boundary narration (projector counts, event counts, drop
// totals). Pass nil for either writer to disable that stream. Both are
// disabled by default: the pipeline never writes to a console it was not
// handed.
func SetLogWriters(ops, diag io.Writer) {
	opsLogger = newLogger("[ssp] ", ops)
	diagLogger = newLogger("[ssp] ", diag)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (warnings, degraded behavior).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (stage boundaries, counts).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}
