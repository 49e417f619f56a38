package rand

import (
	"fmt"
	rnd "math/rand"
	"sort"

	"github.com/milosgajdos/go-bayes/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WithCovN draws n random samples from a zero mean Normal (aka Gaussian) distribution with covariance cov.
// It returns a matrix which contains the randomly generated samples stored in its columns.
// It returns error if n is not a positive integer or if cov is not positive semi-definite.
func WithCovN(cov mat.Symmetric, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	// Eigendecomposition based square root tolerates singular covariances
	// where Cholesky would fail.
	sqrt, err := matrix.SqrtPSD(cov)
	if err != nil {
		return nil, fmt.Errorf("failed to factorize covariance: %v", err)
	}

	rows := cov.SymmetricDim()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(sqrt, samples)

	return samples, nil
}

// RouletteDrawN draws n numbers randomly from a probability mass function (PMF) defined by weights in p.
// RouletteDrawN implements the Roulette Wheel Draw a.k.a. Fitness Proportionate Selection:
// https://en.wikipedia.org/wiki/Fitness_proportionate_selection
// It returns a slice of n indices into the vector p.
// It returns error if p is empty or nil.
func RouletteDrawN(p []float64, n int) ([]int, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("invalid probability weights: %v", p)
	}

	// create the discrete CDF: it is sorted in ascending order
	cdf := make([]float64, len(p))
	floats.CumSum(cdf, p)

	// 1. draw a uniformly-random value val in the range [0, max(cdf))
	// 2. binary search the index of the smallest element in cdf larger than val
	var val float64
	indices := make([]int, n)
	for i := range indices {
		val = distuv.UnitUniform.Rand() * cdf[len(cdf)-1]
		indices[i] = sort.Search(len(cdf), func(i int) bool { return cdf[i] > val })
	}

	return indices, nil
}
