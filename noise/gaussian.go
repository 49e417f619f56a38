package noise

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is additive Gaussian noise
type Gaussian struct {
	// dist is a multivariate normal distribution
	dist *distmv.Normal
	// mean is Gaussian mean
	mean []float64
	// cov is Gaussian covariance
	cov mat.Symmetric
}

// NewGaussian creates new Gaussian noise with the given mean and covariance.
// It returns error if mean and covariance dimensions do not match or if
// the covariance is not positive definite.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	if len(mean) != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid noise dimensions: mean %d, cov %d", len(mean), cov.SymmetricDim())
	}

	dist, ok := newGaussianDist(mean, cov)
	if !ok {
		return nil, fmt.Errorf("failed to create Gaussian noise")
	}

	m := make([]float64, len(mean))
	copy(m, mean)

	return &Gaussian{
		dist: dist,
		mean: m,
		cov:  cov,
	}, nil
}

// Sample generates a random sample from the Gaussian noise and returns it.
func (g *Gaussian) Sample() mat.Vector {
	r := g.dist.Rand(nil)

	return mat.NewVecDense(len(r), r)
}

// Cov returns noise covariance matrix.
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// Mean returns noise mean.
func (g *Gaussian) Mean() []float64 {
	mean := make([]float64, len(g.mean))
	copy(mean, g.mean)

	return mean
}

// Reset reseeds the noise source.
func (g *Gaussian) Reset() {
	if dist, ok := newGaussianDist(g.mean, g.cov); ok {
		g.dist = dist
	}
}

func newGaussianDist(mean []float64, cov mat.Symmetric) (*distmv.Normal, bool) {
	src := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

	return distmv.NewNormal(mean, cov, src)
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.Mean(), mat.Formatted(g.Cov(), mat.Prefix("    "), mat.Squeeze()))
}
