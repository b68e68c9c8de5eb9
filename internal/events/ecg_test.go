package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meglab-data/artifact.report/internal/recording"
)

const testRate = 200.0

// beatTrain returns n samples with a sharp triphasic spike every
// intervalSecs, scaled by amp. Spike centres are returned alongside.
func beatTrain(n int, intervalSecs, amp float64) ([]float64, []int) {
	x := make([]float64, n)
	var centres []int
	step := int(intervalSecs * testRate)
	for c := step; c < n-step; c += step {
		x[c-1] += 0.4 * amp
		x[c] += amp
		x[c+1] -= 0.7 * amp
		centres = append(centres, c)
	}
	return x, centres
}

// slowDrift returns a low-frequency background wave.
func slowDrift(n int, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*0.2*float64(i)/testRate)
	}
	return x
}

func nearAny(sample int, centres []int, tol int) bool {
	for _, c := range centres {
		if sample >= c-tol && sample <= c+tol {
			return true
		}
	}
	return false
}

func ecgRecording(beats []float64) *recording.Recording {
	return &recording.Recording{
		Names:      []string{"ECG 001", "MEG 001"},
		Kinds:      []recording.ChannelKind{recording.KindECG, recording.KindGrad},
		SampleRate: testRate,
		Data:       [][]float64{beats, slowDrift(len(beats), 0.1)},
	}
}

func TestFindECGEvents_DedicatedChannel(t *testing.T) {
	t.Parallel()

	n := int(40 * testRate)
	beats, centres := beatTrain(n, 0.8, 1.0)
	addTo(beats, slowDrift(n, 0.3))
	rec := ecgRecording(beats)

	evs, trace, pulse, err := FindECGEvents(rec, DefaultECGConfig())
	require.NoError(t, err)
	require.Len(t, trace, n)

	assert.InDelta(t, len(centres), len(evs), 3)
	assert.InDelta(t, 75.0, pulse, 8.0)
	for _, ev := range evs {
		assert.Equal(t, 999, ev.ID)
		assert.True(t, nearAny(ev.Sample, centres, 10),
			"event at sample %d is not near any true beat", ev.Sample)
	}
}

func TestFindECGEvents_ChannelHint(t *testing.T) {
	t.Parallel()

	n := int(30 * testRate)
	beats, centres := beatTrain(n, 0.8, 1.0)
	rec := &recording.Recording{
		Names:      []string{"MISC 001", "EEG 001"},
		Kinds:      []recording.ChannelKind{recording.KindOther, recording.KindEEG},
		SampleRate: testRate,
		Data:       [][]float64{beats, slowDrift(n, 0.2)},
	}

	cfg := DefaultECGConfig()
	cfg.ChName = "MISC 001"
	evs, _, _, err := FindECGEvents(rec, cfg)
	require.NoError(t, err)
	assert.InDelta(t, len(centres), len(evs), 3)

	cfg.ChName = "NO SUCH CHANNEL"
	_, _, _, err = FindECGEvents(rec, cfg)
	assert.Error(t, err)
}

func TestFindECGEvents_SynthesizedFromMEG(t *testing.T) {
	t.Parallel()

	// No ECG channel and no hint: the cardiac signature on the MEG
	// channels themselves drives detection.
	n := int(30 * testRate)
	beats, centres := beatTrain(n, 1.0, 1.0)
	meg1 := make([]float64, n)
	copy(meg1, beats)
	meg2 := make([]float64, n)
	copy(meg2, beats)
	addTo(meg2, slowDrift(n, 0.2))

	rec := &recording.Recording{
		Names:      []string{"MEG 001", "MEG 002"},
		Kinds:      []recording.ChannelKind{recording.KindGrad, recording.KindMag},
		SampleRate: testRate,
		Data:       [][]float64{meg1, meg2},
	}

	evs, _, _, err := FindECGEvents(rec, DefaultECGConfig())
	require.NoError(t, err)
	assert.InDelta(t, len(centres), len(evs), 3)
}

func TestFindECGEvents_NoSourceChannel(t *testing.T) {
	t.Parallel()

	rec := &recording.Recording{
		Names:      []string{"EEG 001"},
		Kinds:      []recording.ChannelKind{recording.KindEEG},
		SampleRate: testRate,
		Data:       [][]float64{make([]float64, 100)},
	}
	_, _, _, err := FindECGEvents(rec, DefaultECGConfig())
	assert.Error(t, err)
}

func addTo(a, b []float64) {
	for i := range a {
		a[i] += b[i]
	}
}
