// Package events detects discrete physiological artifact events (cardiac
// beats, ocular blinks) in a continuous recording. Detectors return a
// sequence of sample-indexed events carrying a caller-chosen integer ID;
// the events are immutable once returned and exist only to anchor epoch
// extraction.
package events

import "sort"

// Event marks one detected artifact occurrence.
type Event struct {
	// Sample is the index into the recording's time axis.
	Sample int
	// ID is the integer label assigned at detection time.
	ID int
}

// findPeaks returns the sample indices of local maxima of x that exceed
// thresh, enforcing a minimum separation between accepted peaks. When two
// peaks fall within minSep samples the larger one wins.
func findPeaks(x []float64, thresh float64, minSep int) []int {
	if minSep < 1 {
		minSep = 1
	}
	var peaks []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] < thresh || x[i] < x[i-1] || x[i] < x[i+1] {
			continue
		}
		if n := len(peaks); n > 0 && i-peaks[n-1] < minSep {
			if x[i] > x[peaks[n-1]] {
				peaks[n-1] = i
			}
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

// percentile returns the p-th percentile (0..100) of x using nearest-rank
// on a sorted copy.
func percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	rank := int(p / 100 * float64(len(sorted)-1))
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
