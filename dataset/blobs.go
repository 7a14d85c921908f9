package dataset

import "math/rand/v2"

// Blobs generates perClass points for each of classes Gaussian clusters in
// a features-dimensional space, with one-hot targets. Cluster centers are
// drawn uniformly in [-spread, spread] per feature; points have unit
// deviation around them. The same seed yields the same data.
func Blobs(classes, perClass, features int, spread float64, seed uint64) Lines {
	src := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	centers := make([][]float64, classes)
	for c := range centers {
		centers[c] = make([]float64, features)
		for j := range centers[c] {
			centers[c][j] = (src.Float64()*2 - 1) * spread
		}
	}

	lines := make(Lines, 0, classes*perClass)
	for i := 0; i < perClass; i++ {
		for c := 0; c < classes; c++ {
			inputs := make([]float64, features)
			for j := range inputs {
				inputs[j] = centers[c][j] + src.NormFloat64()
			}
			targets := make([]float64, classes)
			targets[c] = 1
			lines = append(lines, Line{Inputs: inputs, Targets: targets})
		}
	}
	return lines
}
