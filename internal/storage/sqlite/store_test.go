package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meglab-data/artifact.report/internal/events"
	"github.com/meglab-data/artifact.report/internal/recording"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun() *Run {
	return &Run{
		Mode:       "ECG",
		SampleRate: 200,
		ParamsJSON: json.RawMessage(`{"t_min":-0.2,"t_max":0.4}`),
		Events: []events.Event{
			{Sample: 480, ID: 999},
			{Sample: 642, ID: 999},
		},
		Projections: []recording.Projection{
			{
				Desc:         "ECG-grad-pca-01",
				Kind:         recording.KindGrad,
				ChannelNames: []string{"MEG 001", "MEG 002"},
				Vector:       []float64{0.8, -0.6},
			},
			{
				Desc:         "Average EEG reference",
				Kind:         recording.KindEEG,
				Active:       true,
				ChannelNames: []string{"EEG 001", "EEG 002"},
				Vector:       []float64{0.7071, 0.7071},
			},
		},
	}
}

func TestSaveRun_FillsIdentity(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	run := sampleRun()
	require.NoError(t, store.SaveRun(run))

	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.CreatedAtNs)
}

func TestSaveGetRun_RoundTrip(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	run := sampleRun()
	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)

	assert.Equal(t, run.Mode, got.Mode)
	assert.Equal(t, run.SampleRate, got.SampleRate)
	assert.JSONEq(t, string(run.ParamsJSON), string(got.ParamsJSON))
	assert.Equal(t, run.Events, got.Events)
	require.Len(t, got.Projections, 2)
	assert.Equal(t, run.Projections[0], got.Projections[0])
	assert.Equal(t, run.Projections[1], got.Projections[1])
	assert.True(t, got.Projections[1].Active)
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	_, err := store.GetRun("no-such-run")
	assert.Error(t, err)
}

func TestListRuns_NewestFirst(t *testing.T) {
	t.Parallel()

	store := testStore(t)

	older := sampleRun()
	older.CreatedAtNs = 1000
	require.NoError(t, store.SaveRun(older))

	newer := sampleRun()
	newer.Mode = "EOG"
	newer.CreatedAtNs = 2000
	require.NoError(t, store.SaveRun(newer))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.RunID, runs[0].RunID)
	assert.Equal(t, "EOG", runs[0].Mode)
	assert.Equal(t, older.RunID, runs[1].RunID)

	// Listing is shallow: no events or projections loaded.
	assert.Empty(t, runs[0].Events)
	assert.Empty(t, runs[0].Projections)
}

func TestSaveRun_EmptyParams(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	run := sampleRun()
	run.ParamsJSON = nil
	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, got.ParamsJSON)
}

func TestKindFromString(t *testing.T) {
	t.Parallel()

	for _, kind := range []recording.ChannelKind{
		recording.KindGrad,
		recording.KindMag,
		recording.KindEEG,
		recording.KindEOG,
		recording.KindECG,
		recording.KindStim,
	} {
		assert.Equal(t, kind, kindFromString(kind.String()))
	}
	assert.Equal(t, recording.KindOther, kindFromString("bogus"))
}
