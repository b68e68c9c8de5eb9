package recording

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Projection is a single spatial projection vector tied to a set of named
// channels. The vector is stored unit-norm over ChannelNames; applying the
// projection removes the corresponding spatial pattern from the data.
//
// Projections are immutable once constructed: stages hand them around and
// append them to output lists but never modify them.
type Projection struct {
	// Desc is a human-readable label, e.g. "ECG-grad-pca-01" or
	// "Average EEG reference".
	Desc string

	// Kind is the channel kind the vector was computed over.
	Kind ChannelKind

	// Active marks the projection for application during epoch
	// construction. Newly computed artifact projections are delivered
	// inactive so callers decide when to apply them.
	Active bool

	// ChannelNames lists the channels the vector spans, parallel to Vector.
	ChannelNames []string

	// Vector is the unit-norm spatial pattern.
	Vector []float64
}

// AverageReference builds the average-EEG-reference projection from the
// recording's channel metadata: a uniform unit-norm pattern over all good
// EEG channels. Returns an error when the recording has no usable EEG
// channels.
func AverageReference(r *Recording) (Projection, error) {
	picks := r.Picks([]ChannelKind{KindEEG}, nil)
	if len(picks) == 0 {
		return Projection{}, fmt.Errorf("average reference: recording has no usable EEG channels")
	}
	names := make([]string, len(picks))
	vec := make([]float64, len(picks))
	w := 1.0 / math.Sqrt(float64(len(picks)))
	for i, p := range picks {
		names[i] = r.Names[p]
		vec[i] = w
	}
	return Projection{
		Desc:         "Average EEG reference",
		Kind:         KindEEG,
		Active:       true,
		ChannelNames: names,
		Vector:       vec,
	}, nil
}

// ApplyProjections removes the spatial pattern of every active projection
// from data in place. Rows of data are parallel to names. Channels a
// projection references but which are absent from names are skipped; the
// remaining sub-vector is renormalized before application, matching how
// projections behave on picked subsets of a recording.
func ApplyProjections(data [][]float64, names []string, projs []Projection) {
	if len(data) == 0 {
		return
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	for _, proj := range projs {
		if !proj.Active {
			continue
		}
		rows := make([]int, 0, len(proj.ChannelNames))
		vec := make([]float64, 0, len(proj.ChannelNames))
		for i, ch := range proj.ChannelNames {
			if row, ok := index[ch]; ok {
				rows = append(rows, row)
				vec = append(vec, proj.Vector[i])
			}
		}
		if len(rows) == 0 {
			continue
		}
		norm := floats.Norm(vec, 2)
		if norm == 0 {
			continue
		}
		floats.Scale(1/norm, vec)

		// coeff[t] is the pattern's amplitude at sample t; subtracting
		// vec[i]*coeff removes it from every referenced channel.
		coeff := make([]float64, len(data[rows[0]]))
		for i, row := range rows {
			floats.AddScaled(coeff, vec[i], data[row])
		}
		for i, row := range rows {
			floats.AddScaled(data[row], -vec[i], coeff)
		}
	}
}
