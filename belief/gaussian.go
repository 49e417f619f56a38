package belief

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Gaussian is a Gaussian belief over the system state.
// It is a summary of the state distribution given by its first two moments.
type Gaussian struct {
	// mean is belief mean
	mean *mat.VecDense
	// cov is belief covariance
	cov *mat.SymDense
}

// New creates a zero mean, zero covariance Gaussian belief of the given dimension.
// It returns error if dim is not a positive integer.
func New(dim int) (*Gaussian, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid belief dimension: %d", dim)
	}

	return &Gaussian{
		mean: mat.NewVecDense(dim, nil),
		cov:  mat.NewSymDense(dim, nil),
	}, nil
}

// NewWithMoments creates a Gaussian belief with the given mean and covariance.
// It returns error if either of the moments is nil or if their dimensions do not match.
func NewWithMoments(mean mat.Vector, cov mat.Symmetric) (*Gaussian, error) {
	if mean == nil || cov == nil {
		return nil, fmt.Errorf("invalid belief moments: %v, %v", mean, cov)
	}

	if mean.Len() != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid belief dimensions: mean %d, cov %d x %d",
			mean.Len(), cov.SymmetricDim(), cov.SymmetricDim())
	}

	g, err := New(mean.Len())
	if err != nil {
		return nil, err
	}

	g.mean.CopyVec(mean)
	g.cov.CopySym(cov)

	return g, nil
}

// Dim returns belief dimension
func (g *Gaussian) Dim() int {
	return g.mean.Len()
}

// Mean returns a copy of the belief mean
func (g *Gaussian) Mean() mat.Vector {
	mean := mat.NewVecDense(g.mean.Len(), nil)
	mean.CopyVec(g.mean)

	return mean
}

// Cov returns a copy of the belief covariance
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// Precision computes the inverse of the belief covariance and returns it.
// It returns error if the covariance is not positive definite i.e. not invertible.
func (g *Gaussian) Precision() (mat.Symmetric, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(g.cov); !ok {
		return nil, fmt.Errorf("singular belief covariance: precision undefined")
	}

	prec := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	if err := chol.InverseTo(prec); err != nil {
		return nil, fmt.Errorf("failed to invert belief covariance: %v", err)
	}

	return prec, nil
}

// SetMean sets belief mean to the given vector.
// It returns error if the vector dimension does not match the belief dimension.
func (g *Gaussian) SetMean(mean mat.Vector) error {
	if mean == nil || mean.Len() != g.mean.Len() {
		return fmt.Errorf("invalid belief mean: %v", mean)
	}

	g.mean.CopyVec(mean)

	return nil
}

// SetCov sets belief covariance to the given matrix.
// It returns error if the matrix dimensions do not match the belief dimensions.
func (g *Gaussian) SetCov(cov mat.Symmetric) error {
	if cov == nil || cov.SymmetricDim() != g.cov.SymmetricDim() {
		return fmt.Errorf("invalid belief covariance: %v", cov)
	}

	g.cov.CopySym(cov)

	return nil
}

// SetMoments sets both belief moments at once.
// It returns error if either of the moments has invalid dimensions.
func (g *Gaussian) SetMoments(mean mat.Vector, cov mat.Symmetric) error {
	if err := g.SetMean(mean); err != nil {
		return err
	}

	return g.SetCov(cov)
}

// SetStandard resets the belief to the standard normal distribution:
// zero mean and identity covariance.
func (g *Gaussian) SetStandard() {
	g.mean.Zero()
	n := g.cov.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				g.cov.SetSym(i, j, 1.0)
				continue
			}
			g.cov.SetSym(i, j, 0.0)
		}
	}
}

// CopyFrom copies the moments of belief b into g.
// It returns error if the dimensions of the two beliefs do not match.
func (g *Gaussian) CopyFrom(b *Gaussian) error {
	if b == nil || b.Dim() != g.Dim() {
		return fmt.Errorf("invalid belief: %v", b)
	}

	g.mean.CopyVec(b.mean)
	g.cov.CopySym(b.cov)

	return nil
}

// Clone returns a deep copy of the belief
func (g *Gaussian) Clone() *Gaussian {
	b, _ := NewWithMoments(g.mean, g.cov)

	return b
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}",
		mat.Formatted(g.mean, mat.Prefix("     "), mat.Squeeze()),
		mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
