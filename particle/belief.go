// Package particle implements a Sequential Importance Resampling (SIR)
// particle filter a.k.a. Bootstrap Filter: a nonparametric recursive
// Bayesian estimator which represents the state belief as a weighted set
// of state samples. For more information see:
// https://en.wikipedia.org/wiki/Particle_filter#The_bootstrap_filter
package particle

import (
	"fmt"

	"github.com/milosgajdos/go-bayes/belief"
	"github.com/milosgajdos/go-bayes/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Belief is a nonparametric state belief: a finite set of weighted state
// samples. Its mean and covariance are weighted sample statistics.
type Belief struct {
	// x stores particles as column vectors
	x *mat.Dense
	// w stores normalized particle weights
	w []float64
}

// NewBelief creates a particle belief with n particles drawn from the
// Gaussian belief g; weights are initialized uniform.
// It returns error if n is not positive or if the particles fail to be
// sampled from g.
func NewBelief(g *belief.Gaussian, n int) (*Belief, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", n)
	}

	x, err := rand.WithCovN(g.Cov(), n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample particles: %v", err)
	}

	// center the samples around the Gaussian mean
	mean := g.Mean()
	rows, cols := x.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			x.Set(r, c, x.At(r, c)+mean.AtVec(r))
		}
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	return &Belief{x: x, w: w}, nil
}

// N returns the particle count
func (b *Belief) N() int {
	return len(b.w)
}

// Dim returns the state dimension
func (b *Belief) Dim() int {
	rows, _ := b.x.Dims()

	return rows
}

// Mean returns the weighted sample mean of the particles
func (b *Belief) Mean() mat.Vector {
	mean := mat.NewVecDense(b.Dim(), nil)
	for c, w := range b.w {
		mean.AddScaledVec(mean, w, b.x.ColView(c))
	}

	return mean
}

// Cov returns the weighted sample covariance of the particles
func (b *Belief) Cov() mat.Symmetric {
	dim := b.Dim()
	mean := b.Mean()

	acc := mat.NewDense(dim, dim, nil)
	out := mat.NewDense(dim, dim, nil)
	d := mat.NewVecDense(dim, nil)

	for c, w := range b.w {
		d.SubVec(b.x.ColView(c), mean)
		out.Outer(w, d, d)
		acc.Add(acc, out)
	}

	cov := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			cov.SetSym(i, j, 0.5*(acc.At(i, j)+acc.At(j, i)))
		}
	}

	return cov
}

// Gaussian summarizes the particle belief by its weighted moments and
// returns them as a Gaussian belief.
func (b *Belief) Gaussian() (*belief.Gaussian, error) {
	return belief.NewWithMoments(b.Mean(), b.Cov())
}

// ESS returns the effective sample size of the belief: the reciprocal of
// the sum of squared normalized weights. It collapses towards 1 as the
// weights degenerate and equals the particle count for uniform weights.
func (b *Belief) ESS() float64 {
	var sum float64
	for _, w := range b.w {
		sum += w * w
	}
	if sum == 0 {
		return 0
	}

	return 1 / sum
}

// Particles returns a copy of the belief particles
func (b *Belief) Particles() mat.Matrix {
	p := &mat.Dense{}
	p.CloneFrom(b.x)

	return p
}

// Weights returns a vector containing a copy of the particle weights
func (b *Belief) Weights() mat.Vector {
	w := make([]float64, len(b.w))
	copy(w, b.w)

	return mat.NewVecDense(len(w), w)
}

// CopyFrom copies particles and weights of belief o into b.
// It returns error if the two beliefs have different shapes.
func (b *Belief) CopyFrom(o *Belief) error {
	if o == nil || o.Dim() != b.Dim() || o.N() != b.N() {
		return fmt.Errorf("invalid belief: %v", o)
	}

	b.x.Copy(o.x)
	copy(b.w, o.w)

	return nil
}

// Clone returns a deep copy of the belief
func (b *Belief) Clone() *Belief {
	x := &mat.Dense{}
	x.CloneFrom(b.x)

	w := make([]float64, len(b.w))
	copy(w, b.w)

	return &Belief{x: x, w: w}
}

// normalize scales the weights so they sum up to 1.
func (b *Belief) normalize() {
	floats.Scale(1/floats.Sum(b.w), b.w)
}
