package pipeline

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meglab-data/artifact.report/internal/dsp"
	"github.com/meglab-data/artifact.report/internal/recording"
)

const testRate = 200.0

// beatTrain returns n samples with a sharp triphasic spike every
// intervalSecs, plus the spike centres.
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

// blinkTrain returns n samples with a raised-cosine blink every
// intervalSecs.
func blinkTrain(n int, intervalSecs, amp float64) []float64 {
	x := make([]float64, n)
	step := int(intervalSecs * testRate)
	width := int(0.3 * testRate)
	for c := step; c < n-step; c += step {
		for k := -width / 2; k <= width/2; k++ {
			x[c+k] += amp * 0.5 * (1 + math.Cos(2*math.Pi*float64(k)/float64(width)))
		}
	}
	return x
}

func sine(freq float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / testRate)
	}
	return x
}

// cardiacRecording has a dedicated ECG channel plus grad channels that
// carry the beat with a fixed spatial pattern over background activity.
func cardiacRecording(seconds float64) *recording.Recording {
	n := int(seconds * testRate)
	beats, _ := beatTrain(n, 0.8, 1.0)

	pattern := []float64{1.0, -0.6, 0.3}
	names := []string{"ECG 001"}
	kinds := []recording.ChannelKind{recording.KindECG}
	data := [][]float64{beats}
	for c, w := range pattern {
		names = append(names, "MEG 00"+string(rune('1'+c)))
		kinds = append(kinds, recording.KindGrad)
		ch := make([]float64, n)
		bg := sine(3+2*float64(c), n)
		for i := range ch {
			ch[i] = w*beats[i] + 0.05*bg[i]
		}
		data = append(data, ch)
	}
	return &recording.Recording{
		Names:      names,
		Kinds:      kinds,
		SampleRate: testRate,
		Data:       data,
	}
}

func ocularRecording(seconds float64) *recording.Recording {
	n := int(seconds * testRate)
	blinks := blinkTrain(n, 2.0, 1.0)

	names := []string{"EOG 061"}
	kinds := []recording.ChannelKind{recording.KindEOG}
	data := [][]float64{blinks}
	for c, w := range []float64{0.8, -0.5} {
		names = append(names, "EEG 00"+string(rune('1'+c)))
		kinds = append(kinds, recording.KindEEG)
		ch := make([]float64, n)
		bg := sine(7+3*float64(c), n)
		for i := range ch {
			ch[i] = w*blinks[i] + 0.05*bg[i]
		}
		data = append(data, ch)
	}
	return &recording.Recording{
		Names:      names,
		Kinds:      kinds,
		SampleRate: testRate,
		Data:       data,
	}
}

func TestComputeProjECG(t *testing.T) {
	t.Parallel()

	rec := cardiacRecording(40)
	rec.Projs = []recording.Projection{{Desc: "leftover calibration"}}

	cfg := DefaultECGConfig()
	cfg.FilterLength = 257
	cfg.Reject = RejectionSpec{} // synthetic amplitudes, physical ceilings do not apply

	projs, evs, err := ComputeProjECG(rec, cfg)
	require.NoError(t, err)

	require.NotEmpty(t, evs)
	for _, ev := range evs {
		assert.Equal(t, 999, ev.ID)
	}

	require.NotEmpty(t, projs)
	assert.LessOrEqual(t, len(projs), 2, "grad budget caps the output")
	for _, p := range projs {
		assert.True(t, strings.HasPrefix(p.Desc, "ECG-grad-pca-"), "unexpected desc %q", p.Desc)
		assert.Equal(t, recording.KindGrad, p.Kind)
		assert.False(t, p.Active)
		assert.NotEqual(t, "leftover calibration", p.Desc,
			"existing projections are excluded while NoProj holds")
	}
}

func TestComputeProjECG_AverageMode(t *testing.T) {
	t.Parallel()

	rec := cardiacRecording(40)
	cfg := DefaultECGConfig()
	cfg.FilterLength = 257
	cfg.Reject = RejectionSpec{}
	cfg.Average = true

	projs, _, err := ComputeProjECG(rec, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, projs)
	assert.LessOrEqual(t, len(projs), 2)
}

func TestComputeProjEOG(t *testing.T) {
	t.Parallel()

	rec := ocularRecording(40)
	cfg := DefaultEOGConfig()
	cfg.FilterLength = 257
	cfg.Reject = RejectionSpec{}
	// Ocular mode has no channel hint; a bogus one must be ignored.
	cfg.ChName = "NO SUCH CHANNEL"

	projs, evs, err := ComputeProjEOG(rec, cfg)
	require.NoError(t, err)

	require.NotEmpty(t, evs)
	for _, ev := range evs {
		assert.Equal(t, 998, ev.ID)
	}

	require.NotEmpty(t, projs)
	for _, p := range projs {
		assert.True(t, strings.HasPrefix(p.Desc, "EOG-eeg-pca-"), "unexpected desc %q", p.Desc)
		assert.Equal(t, recording.KindEEG, p.Kind)
	}
}

func TestComputeProj_NotPreloaded(t *testing.T) {
	t.Parallel()

	rec := &recording.Recording{
		Names:      []string{"MEG 001"},
		Kinds:      []recording.ChannelKind{recording.KindGrad},
		SampleRate: testRate,
	}
	_, _, err := ComputeProjECG(rec, DefaultECGConfig())
	assert.ErrorIs(t, err, ErrNotPreloaded)
}

func TestComputeProj_InvalidMode(t *testing.T) {
	t.Parallel()

	rec := cardiacRecording(10)
	before := make([][]float64, len(rec.Data))
	for i, ch := range rec.Data {
		before[i] = make([]float64, len(ch))
		copy(before[i], ch)
	}

	_, _, err := computeArtifactProj(Mode(42), rec, DefaultECGConfig())
	require.ErrorIs(t, err, ErrInvalidMode)

	// The check fires before the filter stage: no sample may change.
	if diff := cmp.Diff(before, rec.Data); diff != "" {
		t.Errorf("signal mutated on invalid mode (-before +after):\n%s", diff)
	}
}

func TestComputeProj_NoUsableChannels(t *testing.T) {
	t.Parallel()

	rec := &recording.Recording{
		Names:      []string{"STI 014"},
		Kinds:      []recording.ChannelKind{recording.KindStim},
		SampleRate: testRate,
		Data:       [][]float64{make([]float64, 100)},
	}
	_, _, err := ComputeProjECG(rec, DefaultECGConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable")
}

func TestDefaultConfigs(t *testing.T) {
	t.Parallel()

	t.Run("cardiac", func(t *testing.T) {
		cfg := DefaultECGConfig()
		assert.Equal(t, -0.2, cfg.TMin)
		assert.Equal(t, 0.4, cfg.TMax)
		assert.Equal(t, 999, cfg.EventID)
		assert.True(t, cfg.NoProj)
		require.NotNil(t, cfg.Reject.EOG)
		assert.False(t, math.IsInf(*cfg.Reject.EOG, 1),
			"cardiac mode bounds EOG amplitude")
	})

	t.Run("ocular", func(t *testing.T) {
		cfg := DefaultEOGConfig()
		assert.Equal(t, -0.15, cfg.TMin)
		assert.Equal(t, 0.15, cfg.TMax)
		assert.Equal(t, 998, cfg.EventID)
		assert.True(t, cfg.NoProj)
		require.NotNil(t, cfg.Reject.EOG)
		assert.True(t, math.IsInf(*cfg.Reject.EOG, 1),
			"ocular mode must not reject on the channels carrying the artifact")
		require.NotNil(t, cfg.Reject.EEG)
		assert.Equal(t, 500e-6, *cfg.Reject.EEG)
	})
}

func TestPruneReject(t *testing.T) {
	t.Parallel()

	rec := &recording.Recording{
		Names: []string{"MEG 001", "EEG 001"},
		Kinds: []recording.ChannelKind{recording.KindGrad, recording.KindEEG},
	}

	t.Run("absent kinds cleared", func(t *testing.T) {
		spec := RejectionSpec{
			Grad: ptr(1), Mag: ptr(2), EEG: ptr(3), EOG: ptr(4),
		}
		pruneReject(&spec, rec, nil)
		assert.NotNil(t, spec.Grad)
		assert.Nil(t, spec.Mag)
		assert.NotNil(t, spec.EEG)
		assert.Nil(t, spec.EOG)
	})

	t.Run("bad channels count as absent", func(t *testing.T) {
		spec := RejectionSpec{Grad: ptr(1), EEG: ptr(3)}
		pruneReject(&spec, rec, []string{"MEG 001"})
		assert.Nil(t, spec.Grad)
		assert.NotNil(t, spec.EEG)
	})
}

func TestApplyFilterStage(t *testing.T) {
	t.Parallel()

	makeRec := func() *recording.Recording {
		n := 1000
		x := sine(5, n)
		hi := sine(60, n)
		for i := range x {
			x[i] += hi[i]
		}
		return &recording.Recording{
			Names:      []string{"MEG 001"},
			Kinds:      []recording.ChannelKind{recording.KindGrad},
			SampleRate: testRate,
			Data:       [][]float64{x},
		}
	}

	t.Run("no bounds is a bit-identical no-op", func(t *testing.T) {
		rec := makeRec()
		before := make([]float64, len(rec.Data[0]))
		copy(before, rec.Data[0])

		applyFilterStage(rec, []int{0}, FilterSpec{}, 257, 1)
		require.Equal(t, before, rec.Data[0])
	})

	t.Run("only low bound selects low-pass at the low bound", func(t *testing.T) {
		rec := makeRec()
		want := dsp.Convolve(makeRec().Data[0], dsp.LowPassTaps(5, testRate, 257))

		applyFilterStage(rec, []int{0}, FilterSpec{Low: ptr(5)}, 257, 1)
		if diff := cmp.Diff(want, rec.Data[0]); diff != "" {
			t.Errorf("low-pass branch output mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("only high bound selects high-pass at the high bound", func(t *testing.T) {
		rec := makeRec()
		want := dsp.Convolve(makeRec().Data[0], dsp.HighPassTaps(30, testRate, 257))

		applyFilterStage(rec, []int{0}, FilterSpec{High: ptr(30)}, 257, 1)
		if diff := cmp.Diff(want, rec.Data[0]); diff != "" {
			t.Errorf("high-pass branch output mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("both bounds select band-pass", func(t *testing.T) {
		rec := makeRec()
		want := dsp.Convolve(makeRec().Data[0], dsp.BandPassTaps(1, 35, testRate, 257))

		applyFilterStage(rec, []int{0}, FilterSpec{Low: ptr(1), High: ptr(35)}, 257, 1)
		if diff := cmp.Diff(want, rec.Data[0]); diff != "" {
			t.Errorf("band-pass branch output mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("worker count does not change output", func(t *testing.T) {
		serial := cardiacRecording(10)
		parallel := cardiacRecording(10)
		picks := []int{1, 2, 3}
		spec := FilterSpec{Low: ptr(1), High: ptr(35)}

		applyFilterStage(serial, picks, spec, 257, 1)
		applyFilterStage(parallel, picks, spec, 257, 4)
		if diff := cmp.Diff(serial.Data, parallel.Data); diff != "" {
			t.Errorf("output differs between worker counts (-w1 +w4):\n%s", diff)
		}
	})
}

func TestAssembleProjections_Order(t *testing.T) {
	t.Parallel()

	rec := ocularRecording(10)
	rec.Projs = []recording.Projection{
		{Desc: "existing-a"},
		{Desc: "existing-b"},
	}
	artifact := []recording.Projection{
		{Desc: "ECG-grad-pca-01"},
		{Desc: "ECG-grad-pca-02"},
	}

	t.Run("existing then reference then artifact", func(t *testing.T) {
		cfg := Config{NoProj: false, AvgRef: true}
		projs, err := assembleProjections(rec, cfg, artifact)
		require.NoError(t, err)

		descs := make([]string, len(projs))
		for i, p := range projs {
			descs[i] = p.Desc
		}
		assert.Equal(t, []string{
			"existing-a",
			"existing-b",
			"Average EEG reference",
			"ECG-grad-pca-01",
			"ECG-grad-pca-02",
		}, descs)
	})

	t.Run("NoProj drops existing only", func(t *testing.T) {
		cfg := Config{NoProj: true, AvgRef: true}
		projs, err := assembleProjections(rec, cfg, artifact)
		require.NoError(t, err)
		require.Len(t, projs, 3)
		assert.Equal(t, "Average EEG reference", projs[0].Desc)
	})

	t.Run("average reference needs EEG channels", func(t *testing.T) {
		noEEG := cardiacRecording(5)
		cfg := Config{AvgRef: true}
		_, err := assembleProjections(noEEG, cfg, artifact)
		assert.Error(t, err)
	})
}

func TestModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ECG", ModeCardiac.String())
	assert.Equal(t, "EOG", ModeOcular.String())
	assert.Equal(t, "Mode(42)", Mode(42).String())
}
