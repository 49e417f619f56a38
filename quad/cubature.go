package quad

import (
	"math"

	"github.com/milosgajdos/go-bayes/belief"
	"gonum.org/v1/gonum/mat"
)

// Cubature is the third degree spherical-radial cubature moment
// integration policy. It propagates 2n equally weighted points placed at
// sqrt(n) scaled square root columns of the augmented covariance.
// Unlike the Unscented policy it has no tuning parameters and all its
// weights are positive which makes it robust for high dimensional state.
type Cubature struct{}

// NewCubature creates new Cubature moment integration policy and returns it.
func NewCubature() (*Cubature, error) {
	return &Cubature{}, nil
}

// IntegrateMoments integrates the output moments of h under the input and
// noise Gaussians. A nil noise belief makes h deterministic in its noise
// argument. It returns error if the cubature points fail to be generated
// or propagated.
func (c *Cubature) IntegrateMoments(h Func, input, noise *belief.Gaussian) (*Moments, error) {
	mean, cov, nx, err := augment(input, noise)
	if err != nil {
		return nil, err
	}

	n := mean.Len()

	pts, err := sigmaPoints(mean, cov, math.Sqrt(float64(n)))
	if err != nil {
		return nil, err
	}

	// the spherical-radial rule does not use the mean point
	pts = pts.Slice(0, n, 1, 2*n+1).(*mat.Dense)

	w := make([]float64, 2*n)
	for i := range w {
		w[i] = 1 / float64(2*n)
	}

	return integrate(h, pts, nx, input.Mean(), w, w)
}

// Name returns the policy name
func (c *Cubature) Name() string {
	return "Cubature"
}
