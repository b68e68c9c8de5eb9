// Package ssp reduces epoch data to signal-space projection vectors: for
// each channel kind it extracts the dominant spatial patterns of the
// artifact via singular value decomposition, bounded by a per-kind vector
// budget.
package ssp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/meglab-data/artifact.report/internal/epochs"
	"github.com/meglab-data/artifact.report/internal/recording"
)

// Budgets caps the number of projection vectors computed per channel
// kind. EOG channels never receive a budget: they carry the artifact
// itself and are not projected.
type Budgets struct {
	Grad int
	Mag  int
	EEG  int
}

// DefaultBudgets returns the conventional two vectors per kind.
func DefaultBudgets() Budgets {
	return Budgets{Grad: 2, Mag: 2, EEG: 2}
}

// budgeted lists the kinds that participate in reduction, in output order.
var budgeted = []recording.ChannelKind{
	recording.KindGrad,
	recording.KindMag,
	recording.KindEEG,
}

func (b Budgets) limit(kind recording.ChannelKind) int {
	switch kind {
	case recording.KindGrad:
		return b.Grad
	case recording.KindMag:
		return b.Mag
	case recording.KindEEG:
		return b.EEG
	default:
		return 0
	}
}

// ComputeProjEvoked derives projection vectors from an averaged artifact
// waveform. The returned list holds at most b.Grad+b.Mag+b.EEG vectors;
// fewer when a kind has no channels or insufficient independent variance.
func ComputeProjEvoked(ev *epochs.Evoked, b Budgets, descPrefix string) ([]recording.Projection, error) {
	return reduce(ev.Data, ev.Names, ev.Kinds, b, descPrefix)
}

// ComputeProjEpochs derives projection vectors from the full epoch
// collection by concatenating epochs along the time axis before
// decomposition.
func ComputeProjEpochs(ep *epochs.Epochs, b Budgets, descPrefix string) ([]recording.Projection, error) {
	if len(ep.Data) == 0 {
		return nil, fmt.Errorf("ssp: empty epoch collection")
	}
	nCh := len(ep.Names)
	nTimes := len(ep.Data[0][0])
	concat := make([][]float64, nCh)
	for c := 0; c < nCh; c++ {
		concat[c] = make([]float64, 0, len(ep.Data)*nTimes)
		for _, epoch := range ep.Data {
			concat[c] = append(concat[c], epoch[c]...)
		}
	}
	return reduce(concat, ep.Names, ep.Kinds, b, descPrefix)
}

// reduce runs one SVD per budgeted kind and collects the dominant left
// singular vectors as projections.
func reduce(data [][]float64, names []string, kinds []recording.ChannelKind, b Budgets, descPrefix string) ([]recording.Projection, error) {
	var projs []recording.Projection
	for _, kind := range budgeted {
		budget := b.limit(kind)
		if budget <= 0 {
			continue
		}
		var rows []int
		for c, k := range kinds {
			if k == kind {
				rows = append(rows, c)
			}
		}
		if len(rows) == 0 {
			continue
		}

		nTimes := len(data[rows[0]])
		x := mat.NewDense(len(rows), nTimes, nil)
		for i, c := range rows {
			x.SetRow(i, data[c])
		}

		var svd mat.SVD
		if ok := svd.Factorize(x, mat.SVDThin); !ok {
			return nil, fmt.Errorf("ssp: SVD failed for %s channels", kind)
		}
		var u mat.Dense
		svd.UTo(&u)
		sv := svd.Values(nil)

		kindNames := make([]string, len(rows))
		for i, c := range rows {
			kindNames[i] = names[c]
		}

		n := budget
		if n > len(sv) {
			n = len(sv)
		}
		// Skip numerically zero directions: a rank-deficient artifact
		// yields fewer vectors than the budget allows.
		tol := 0.0
		if len(sv) > 0 {
			tol = sv[0] * 1e-10
		}
		for i := 0; i < n; i++ {
			if sv[i] <= tol {
				break
			}
			vec := make([]float64, len(rows))
			for r := range vec {
				vec[r] = u.At(r, i)
			}
			canonicalizeSign(vec)
			projs = append(projs, recording.Projection{
				Desc:         fmt.Sprintf("%s-%s-pca-%02d", descPrefix, kind, i+1),
				Kind:         kind,
				ChannelNames: kindNames,
				Vector:       vec,
			})
		}
	}
	return projs, nil
}

// canonicalizeSign flips the vector so its largest-magnitude component is
// positive. SVD sign is arbitrary; fixing it keeps output deterministic.
func canonicalizeSign(vec []float64) {
	maxIdx := 0
	for i, v := range vec {
		if abs(v) > abs(vec[maxIdx]) {
			maxIdx = i
		}
	}
	if vec[maxIdx] < 0 {
		for i := range vec {
			vec[i] = -vec[i]
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
