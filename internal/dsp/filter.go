// Package dsp implements the FIR filtering primitives used by the artifact
// pipeline: windowed-sinc low-pass, high-pass, and band-pass filters with
// zero-phase (group-delay compensated) application.
//
// Filters are applied in place to a channel-major signal matrix, scoped by
// a pick set. The worker count is a pure performance knob: channels are
// filtered independently, so output is bit-identical for any worker count.
package dsp

import (
	"math"
	"sync"
)

// LowPassTaps designs a linear-phase windowed-sinc low-pass filter with the
// given cutoff (Hz). numTaps is rounded up to the next odd value so the
// filter has integer group delay.
func LowPassTaps(cutoff, sampleRate float64, numTaps int) []float64 {
	numTaps = oddTaps(numTaps)
	taps := sincTaps(cutoff, sampleRate, numTaps)
	// Unity gain at DC.
	sum := 0.0
	for _, t := range taps {
		sum += t
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// HighPassTaps designs a high-pass filter at the given cutoff (Hz) by
// spectral inversion of the corresponding low-pass.
func HighPassTaps(cutoff, sampleRate float64, numTaps int) []float64 {
	taps := LowPassTaps(cutoff, sampleRate, numTaps)
	for i := range taps {
		taps[i] = -taps[i]
	}
	taps[len(taps)/2] += 1.0
	return taps
}

// BandPassTaps designs a band-pass filter between low and high (Hz) as the
// difference of two low-pass filters, normalized to unity gain at the
// geometric centre of the band.
func BandPassTaps(low, high, sampleRate float64, numTaps int) []float64 {
	numTaps = oddTaps(numTaps)
	hi := LowPassTaps(high, sampleRate, numTaps)
	lo := LowPassTaps(low, sampleRate, numTaps)
	taps := make([]float64, numTaps)
	for i := range taps {
		taps[i] = hi[i] - lo[i]
	}
	centre := math.Sqrt(low * high)
	gain := gainAt(taps, centre, sampleRate)
	if gain > 0 {
		for i := range taps {
			taps[i] /= gain
		}
	}
	return taps
}

// FilterChannels convolves every picked channel of data with taps in
// place, compensating the filter's group delay so the output is aligned
// with the input. Edges use mirror padding. workers bounds the number of
// concurrent channel filters; values < 1 are treated as 1.
func FilterChannels(data [][]float64, picks []int, taps []float64, workers int) {
	if len(picks) == 0 || len(taps) == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(picks) {
		workers = len(picks)
	}

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ch := range work {
				filtered := Convolve(data[ch], taps)
				copy(data[ch], filtered)
			}
		}()
	}
	for _, ch := range picks {
		work <- ch
	}
	close(work)
	wg.Wait()
}

// Convolve returns the zero-phase convolution of x with a linear-phase
// FIR: the usual convolution shifted back by the group delay, with mirror
// padding at both edges. The input is not modified.
func Convolve(x, taps []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	half := len(taps) / 2
	for i := 0; i < n; i++ {
		acc := 0.0
		for k, t := range taps {
			acc += t * sampleMirrored(x, i+half-k)
		}
		out[i] = acc
	}
	return out
}

// BandPassed returns a band-pass filtered copy of a single channel. Used
// by the event detectors to condition their detection trace.
func BandPassed(x []float64, sampleRate, low, high float64, numTaps int) []float64 {
	return Convolve(x, BandPassTaps(low, high, sampleRate, numTaps))
}

// sampleMirrored indexes x with mirror reflection at both edges.
func sampleMirrored(x []float64, i int) float64 {
	n := len(x)
	if n == 1 {
		return x[0]
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return x[i]
}

// sincTaps is the raw Hamming-windowed sinc kernel for the given cutoff.
func sincTaps(cutoff, sampleRate float64, numTaps int) []float64 {
	taps := make([]float64, numTaps)
	fc := cutoff / sampleRate
	m := float64(numTaps - 1)
	for i := range taps {
		k := float64(i) - m/2
		var s float64
		if k == 0 {
			s = 2 * math.Pi * fc
		} else {
			s = math.Sin(2*math.Pi*fc*k) / k
		}
		// Hamming window.
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/m)
		taps[i] = s * w
	}
	return taps
}

// gainAt evaluates the filter's magnitude response at frequency f (Hz).
func gainAt(taps []float64, f, sampleRate float64) float64 {
	var re, im float64
	for k, t := range taps {
		phase := -2 * math.Pi * f * float64(k) / sampleRate
		re += t * math.Cos(phase)
		im += t * math.Sin(phase)
	}
	return math.Hypot(re, im)
}

func oddTaps(n int) int {
	if n < 3 {
		n = 3
	}
	if n%2 == 0 {
		n++
	}
	return n
}
