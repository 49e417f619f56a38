// Package quad provides moment integration policies: deterministic
// sigma point rules which approximate the first two moments of a
// nonlinear function output under a Gaussian input distribution.
package quad

import (
	"fmt"

	"github.com/milosgajdos/go-bayes/belief"
	"github.com/milosgajdos/go-bayes/matrix"
	"gonum.org/v1/gonum/mat"
)

// Func is a function of system state x and noise w
type Func func(x, w mat.Vector) (mat.Vector, error)

// Moments are output moments of a function integrated under Gaussian input
type Moments struct {
	// Mean is output mean
	Mean *mat.VecDense
	// Cov is output covariance
	Cov *mat.SymDense
	// CrossCov is input-output cross covariance
	CrossCov *mat.Dense
}

// Policy numerically integrates the output moments of function h under
// the given input and noise Gaussians. The noise belief may be nil in
// which case h is treated as deterministic in its second argument.
type Policy interface {
	// IntegrateMoments integrates the moments of h(x, w) where x is
	// distributed as input and w as noise
	IntegrateMoments(h Func, input, noise *belief.Gaussian) (*Moments, error)
	// Name returns the policy name
	Name() string
}

// augment builds the augmented (state, noise) mean vector and block
// diagonal covariance. It returns the augmented moments together with
// the state dimension.
func augment(input, noise *belief.Gaussian) (*mat.VecDense, *mat.SymDense, int, error) {
	if input == nil {
		return nil, nil, 0, fmt.Errorf("invalid input belief: %v", input)
	}

	nx := input.Dim()
	nw := 0
	if noise != nil {
		nw = noise.Dim()
	}

	mean := mat.NewVecDense(nx+nw, nil)
	mean.SliceVec(0, nx).(*mat.VecDense).CopyVec(input.Mean())

	cov := mat.NewSymDense(nx+nw, nil)
	cov.SliceSym(0, nx).(*mat.SymDense).CopySym(input.Cov())

	if nw > 0 {
		mean.SliceVec(nx, nx+nw).(*mat.VecDense).CopyVec(noise.Mean())
		cov.SliceSym(nx, nx+nw).(*mat.SymDense).CopySym(noise.Cov())
	}

	return mean, cov, nx, nil
}

// sigmaPoints spreads 2*n scaled square root columns around the mean and
// returns them together with the mean point in the first column.
// The returned matrix has 2*n+1 columns; rules which do not use the mean
// point simply slice it away.
func sigmaPoints(mean *mat.VecDense, cov *mat.SymDense, scale float64) (*mat.Dense, error) {
	sqrt, err := matrix.SqrtPSD(cov)
	if err != nil {
		return nil, fmt.Errorf("failed to factorize sigma point covariance: %v", err)
	}
	sqrt.Scale(scale, sqrt)

	n := mean.Len()
	pts := mat.NewDense(n, 2*n+1, nil)
	for c := 0; c < 2*n+1; c++ {
		pts.Slice(0, n, c, c+1).(*mat.Dense).Copy(mean)
	}

	// positive points
	px := pts.Slice(0, n, 1, 1+n).(*mat.Dense)
	px.Add(px, sqrt)
	// negative points
	nx := pts.Slice(0, n, 1+n, 2*n+1).(*mat.Dense)
	nx.Sub(nx, sqrt)

	return pts, nil
}

// integrate propagates the given weighted points through h and computes
// the weighted mean, covariance and input-output cross covariance of the
// propagated points. The input mean used for the cross covariance is the
// first nx rows of the weighted point mean.
func integrate(h Func, pts *mat.Dense, nx int, xMean mat.Vector, wm, wc []float64) (*Moments, error) {
	rows, cols := pts.Dims()

	var y *mat.Dense
	var ny int

	// propagate all points through h
	for c := 0; c < cols; c++ {
		pt := pts.ColView(c).(*mat.VecDense)
		x := pt.SliceVec(0, nx)

		var w mat.Vector = &mat.VecDense{}
		if rows > nx {
			w = pt.SliceVec(nx, rows)
		}

		out, err := h(x, w)
		if err != nil {
			return nil, fmt.Errorf("failed to propagate sigma point: %v", err)
		}

		if y == nil {
			ny = out.Len()
			y = mat.NewDense(ny, cols, nil)
		}
		if out.Len() != ny {
			return nil, fmt.Errorf("inconsistent sigma point output dimension: %d != %d", out.Len(), ny)
		}
		y.Slice(0, ny, c, c+1).(*mat.Dense).Copy(out)
	}

	// weighted output mean
	yMean := mat.NewVecDense(ny, nil)
	for c := 0; c < cols; c++ {
		yMean.AddScaledVec(yMean, wm[c], y.ColView(c))
	}

	// weighted output and cross covariances
	covAcc := mat.NewDense(ny, ny, nil)
	crossAcc := mat.NewDense(nx, ny, nil)
	outCov := mat.NewDense(ny, ny, nil)
	outCross := mat.NewDense(nx, ny, nil)
	dy := mat.NewVecDense(ny, nil)
	dx := mat.NewVecDense(nx, nil)

	for c := 0; c < cols; c++ {
		dy.SubVec(y.ColView(c), yMean)
		dx.SubVec(pts.ColView(c).(*mat.VecDense).SliceVec(0, nx), xMean)

		outCov.Outer(wc[c], dy, dy)
		covAcc.Add(covAcc, outCov)

		outCross.Outer(wc[c], dx, dy)
		crossAcc.Add(crossAcc, outCross)
	}

	cov, err := matrix.ToSym(covAcc)
	if err != nil {
		return nil, err
	}

	return &Moments{
		Mean:     yMean,
		Cov:      cov,
		CrossCov: crossAcc,
	}, nil
}
