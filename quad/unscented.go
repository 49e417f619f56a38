package quad

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-bayes/belief"
)

// Config contains Unscented Transform [unitless] configuration parameters
type Config struct {
	// Alpha controls the spread of sigma points (usually small positive, <= 1)
	Alpha float64
	// Beta incorporates prior knowledge of the distribution (2 is optimal for Gaussian)
	Beta float64
	// Kappa is a secondary scaling parameter (must be non-negative)
	Kappa float64
}

// DefaultConfig returns unscented configuration commonly used for Gaussian beliefs.
func DefaultConfig() *Config {
	return &Config{Alpha: 1.0, Beta: 2.0, Kappa: 0.0}
}

// Unscented is the scaled Unscented Transform moment integration policy.
// It spreads 2n+1 deterministically chosen sigma points over the augmented
// (state, noise) Gaussian whose weighted sample moments match the Gaussian
// moments exactly, propagates them through the integrated function and
// recovers the output moments from the propagated points.
type Unscented struct {
	// c is unscented transform configuration
	c Config
}

// NewUnscented creates new Unscented moment integration policy and returns it.
// It returns error if an invalid configuration is supplied.
func NewUnscented(c *Config) (*Unscented, error) {
	if c == nil {
		c = DefaultConfig()
	}

	if c.Alpha <= 0 || c.Beta < 0 || c.Kappa < 0 {
		return nil, fmt.Errorf("invalid unscented config: %+v", c)
	}

	return &Unscented{c: *c}, nil
}

// IntegrateMoments integrates the output moments of h under the input and
// noise Gaussians. A nil noise belief makes h deterministic in its noise
// argument. It returns error if the sigma points fail to be generated or
// propagated.
func (u *Unscented) IntegrateMoments(h Func, input, noise *belief.Gaussian) (*Moments, error) {
	mean, cov, nx, err := augment(input, noise)
	if err != nil {
		return nil, err
	}

	n := float64(mean.Len())
	lambda := u.c.Alpha*u.c.Alpha*(n+u.c.Kappa) - n
	gamma := math.Sqrt(n + lambda)

	pts, err := sigmaPoints(mean, cov, gamma)
	if err != nil {
		return nil, err
	}

	_, cols := pts.Dims()
	wm := make([]float64, cols)
	wc := make([]float64, cols)

	wm[0] = lambda / (n + lambda)
	wc[0] = wm[0] + (1 - u.c.Alpha*u.c.Alpha + u.c.Beta)
	for i := 1; i < cols; i++ {
		wm[i] = 1 / (2 * (n + lambda))
		wc[i] = wm[i]
	}

	return integrate(h, pts, nx, input.Mean(), wm, wc)
}

// Name returns the policy name
func (u *Unscented) Name() string {
	return "Unscented"
}
