package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecording() *Recording {
	return &Recording{
		Names: []string{"MEG 001", "MEG 002", "MEG 101", "EEG 001", "EEG 002", "EOG 001", "ECG 001"},
		Kinds: []ChannelKind{
			KindGrad, KindGrad, KindMag, KindEEG, KindEEG, KindEOG, KindECG,
		},
		SampleRate: 100,
		Data: [][]float64{
			{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}, {11, 12}, {13, 14},
		},
	}
}

func TestPreloaded(t *testing.T) {
	t.Parallel()

	rec := testRecording()
	assert.True(t, rec.Preloaded())

	rec.Data = nil
	assert.False(t, rec.Preloaded())

	rec = testRecording()
	rec.Data[3] = nil
	assert.False(t, rec.Preloaded())

	var nilRec *Recording
	assert.False(t, nilRec.Preloaded())
}

func TestPicks(t *testing.T) {
	t.Parallel()

	rec := testRecording()

	t.Run("kind filter", func(t *testing.T) {
		picks := rec.Picks([]ChannelKind{KindGrad, KindMag}, nil)
		assert.Equal(t, []int{0, 1, 2}, picks)
	})

	t.Run("recording bads excluded", func(t *testing.T) {
		rec := testRecording()
		rec.Bads = []string{"MEG 002"}
		picks := rec.Picks([]ChannelKind{KindGrad}, nil)
		assert.Equal(t, []int{0}, picks)
	})

	t.Run("extra bads excluded", func(t *testing.T) {
		picks := rec.Picks([]ChannelKind{KindEEG}, []string{"EEG 001"})
		assert.Equal(t, []int{4}, picks)
	})
}

func TestCountKind(t *testing.T) {
	t.Parallel()

	rec := testRecording()
	assert.Equal(t, 2, rec.CountKind(KindGrad, nil))
	assert.Equal(t, 1, rec.CountKind(KindMag, nil))
	assert.Equal(t, 0, rec.CountKind(KindStim, nil))
	assert.Equal(t, 1, rec.CountKind(KindEEG, []string{"EEG 002"}))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testRecording().Validate())

	rec := testRecording()
	rec.Kinds = rec.Kinds[:3]
	assert.Error(t, rec.Validate())

	rec = testRecording()
	rec.SampleRate = 0
	assert.Error(t, rec.Validate())

	rec = testRecording()
	rec.Data[2] = []float64{1}
	assert.Error(t, rec.Validate())
}
