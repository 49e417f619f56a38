// Package gaussian implements a generic Gaussian filter: a recursive
// Bayesian estimator which maintains a Gaussian belief over the system
// state and propagates it through possibly nonlinear process and
// observation models using a pluggable moment integration policy.
package gaussian

import (
	"fmt"

	filter "github.com/milosgajdos/go-bayes"
	"github.com/milosgajdos/go-bayes/belief"
	"github.com/milosgajdos/go-bayes/matrix"
	"github.com/milosgajdos/go-bayes/noise"
	"github.com/milosgajdos/go-bayes/quad"
	"gonum.org/v1/gonum/mat"
)

// Filter is a generic Gaussian filter.
// When built with a moment integration policy it handles arbitrary
// nonlinear models; when built without one it requires linear models and
// runs the closed-form Kalman recursion instead.
type Filter struct {
	// pm is process model
	pm filter.ProcessModel
	// om is observation model
	om filter.ObservationModel
	// q is state noise a.k.a. process noise
	q filter.Noise
	// r is output noise a.k.a. measurement noise
	r filter.Noise
	// ip is moment integration policy; nil selects the closed-form linear path
	ip quad.Policy
	// qb is process noise belief consumed by the integration policy
	qb *belief.Gaussian
	// rb is output noise belief consumed by the integration policy
	rb *belief.Gaussian
}

// New creates a new Gaussian filter and returns it.
// It accepts the following parameters:
//   - pm: process model
//   - om: observation model
//   - q:  state noise; nil defaults to zero noise of the model noise dimension
//   - r:  output noise; nil defaults to zero noise of the model noise dimension
//   - ip: moment integration policy; nil requires linear models and selects
//     the closed-form Kalman propagation
//
// It returns error if the model dimensions are invalid, if the noise
// dimensions do not match the models or if no policy is given for
// nonlinear models.
func New(pm filter.ProcessModel, om filter.ObservationModel, q, r filter.Noise, ip quad.Policy) (*Filter, error) {
	nx, _, nq := pm.SystemDims()
	ny, nr := om.ObsrvDims()
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, ny)
	}

	var err error
	if q, err = defaultNoise(q, nq); err != nil {
		return nil, fmt.Errorf("invalid state noise: %v", err)
	}
	if r, err = defaultNoise(r, nr); err != nil {
		return nil, fmt.Errorf("invalid output noise: %v", err)
	}

	if ip == nil {
		if _, ok := pm.(filter.LinearProcess); !ok {
			return nil, fmt.Errorf("closed-form propagation requires a linear process model")
		}
		if _, ok := om.(filter.LinearObservation); !ok {
			return nil, fmt.Errorf("closed-form propagation requires a linear observation model")
		}
	}

	return &Filter{
		pm: pm,
		om: om,
		q:  q,
		r:  r,
		ip: ip,
		qb: noiseBelief(q),
		rb: noiseBelief(r),
	}, nil
}

// defaultNoise validates the noise dimension against the model noise
// dimension dim and defaults nil noise to zero (or none) noise.
func defaultNoise(n filter.Noise, dim int) (filter.Noise, error) {
	if n == nil {
		if dim > 0 {
			return noise.NewZero(dim)
		}
		return noise.NewNone()
	}

	if n.Cov().SymmetricDim() != dim {
		return nil, fmt.Errorf("invalid noise dimension: %d != %d", n.Cov().SymmetricDim(), dim)
	}

	return n, nil
}

// noiseBelief turns a noise source into a Gaussian belief consumed by the
// moment integration policy. It returns nil for noise of zero dimension.
func noiseBelief(n filter.Noise) *belief.Gaussian {
	dim := n.Cov().SymmetricDim()
	if dim == 0 {
		return nil
	}

	b, _ := belief.NewWithMoments(mat.NewVecDense(dim, n.Mean()), n.Cov())

	return b
}

// Predict propagates the prior belief through the process model given the
// control input u and writes the resulting moments into predicted.
// The predicted belief may alias the prior belief.
// It returns error if the moments fail to be integrated; the predicted
// belief is left untouched on failure.
func (f *Filter) Predict(prior *belief.Gaussian, u mat.Vector, predicted *belief.Gaussian) error {
	if f.ip == nil {
		return f.predictLinear(prior, u, predicted)
	}

	h := func(x, w mat.Vector) (mat.Vector, error) {
		return f.pm.Propagate(x, u, w)
	}

	m, err := f.ip.IntegrateMoments(h, prior, f.qb)
	if err != nil {
		return fmt.Errorf("failed to integrate process moments: %v", err)
	}

	return predicted.SetMoments(m.Mean, m.Cov)
}

// predictLinear runs the closed-form Kalman prediction: the mean becomes
// A*x + B*u plus the noise mean and the covariance becomes A*P*A' + Q.
func (f *Filter) predictLinear(prior *belief.Gaussian, u mat.Vector, predicted *belief.Gaussian) error {
	lp := f.pm.(filter.LinearProcess)

	next, err := f.pm.Propagate(prior.Mean(), u, nil)
	if err != nil {
		return fmt.Errorf("failed to propagate state: %v", err)
	}
	xNext := mat.VecDenseCopyOf(next)

	a := lp.SystemMatrix()
	cov := &mat.Dense{}
	cov.Mul(a, prior.Cov())
	cov.Mul(cov, a.T())

	// additive noise enters both moments, same as on the quadrature path
	if f.qb != nil {
		cov.Add(cov, f.q.Cov())
		xNext.AddVec(xNext, f.qb.Mean())
	}

	pNext, err := matrix.ToSym(cov)
	if err != nil {
		return err
	}

	return predicted.SetMoments(xNext, pNext)
}

// Update corrects the predicted belief using the measurement z and writes
// the corrected moments into posterior. The posterior belief may alias
// the predicted belief.
// It returns error if the observation moments fail to be integrated or if
// the innovation covariance is singular; the posterior belief is left
// untouched on failure.
func (f *Filter) Update(predicted *belief.Gaussian, z mat.Vector, posterior *belief.Gaussian) error {
	ny, _ := f.om.ObsrvDims()
	if z == nil || z.Len() != ny {
		return fmt.Errorf("invalid measurement supplied: %v", z)
	}

	yMean, pyy, pxy, err := f.obsrvMoments(predicted)
	if err != nil {
		return err
	}

	return f.correct(predicted, z, yMean, pyy, pxy, posterior)
}

// obsrvMoments computes the predicted observation mean, the innovation
// covariance and the state-observation cross covariance under the
// predicted belief.
func (f *Filter) obsrvMoments(predicted *belief.Gaussian) (mat.Vector, *mat.SymDense, *mat.Dense, error) {
	if f.ip == nil {
		return f.obsrvMomentsLinear(predicted)
	}

	h := func(x, w mat.Vector) (mat.Vector, error) {
		return f.om.Observe(x, w)
	}

	m, err := f.ip.IntegrateMoments(h, predicted, f.rb)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to integrate observation moments: %v", err)
	}

	return m.Mean, m.Cov, m.CrossCov, nil
}

// obsrvMomentsLinear computes the observation moments in closed form:
// y = H*x plus the noise mean, Pyy = H*P*H' + R, Pxy = P*H'.
func (f *Filter) obsrvMomentsLinear(predicted *belief.Gaussian) (mat.Vector, *mat.SymDense, *mat.Dense, error) {
	lo := f.om.(filter.LinearObservation)

	obsrv, err := f.om.Observe(predicted.Mean(), nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to observe state: %v", err)
	}
	yMean := mat.VecDenseCopyOf(obsrv)

	h := lo.OutputMatrix()

	pxy := &mat.Dense{}
	pxy.Mul(predicted.Cov(), h.T())

	cov := &mat.Dense{}
	cov.Mul(h, pxy)
	if f.rb != nil {
		cov.Add(cov, f.r.Cov())
		yMean.AddVec(yMean, f.rb.Mean())
	}

	pyy, err := matrix.ToSym(cov)
	if err != nil {
		return nil, nil, nil, err
	}

	return yMean, pyy, pxy, nil
}

// correct performs the Kalman-form correction of the predicted belief.
// All output moments are staged before the posterior belief is written so
// the posterior may alias the predicted belief.
func (f *Filter) correct(predicted *belief.Gaussian, z, yMean mat.Vector, pyy *mat.SymDense, pxy *mat.Dense, posterior *belief.Gaussian) error {
	pyyInv := &mat.Dense{}
	if err := pyyInv.Inverse(pyy); err != nil {
		return fmt.Errorf("singular innovation covariance: %v", err)
	}

	gain := &mat.Dense{}
	gain.Mul(pxy, pyyInv)

	// innovation vector
	inn := &mat.VecDense{}
	inn.SubVec(z, yMean)

	// corrected mean
	corr := mat.NewVecDense(predicted.Dim(), nil)
	corr.MulVec(gain, inn)
	xNew := mat.NewVecDense(predicted.Dim(), nil)
	xNew.AddVec(predicted.Mean(), corr)

	// corrected covariance: P - K*Pyy*K'
	kp := &mat.Dense{}
	kp.Mul(pyy, gain.T())
	kpk := &mat.Dense{}
	kpk.Mul(gain, kp)

	cov := &mat.Dense{}
	cov.Sub(predicted.Cov(), kpk)

	pNew, err := matrix.ToSym(cov)
	if err != nil {
		return err
	}

	return posterior.SetMoments(xNew, pNew)
}

// NewBelief returns a zero belief sized to the process model state.
func (f *Filter) NewBelief() *belief.Gaussian {
	nx, _, _ := f.pm.SystemDims()
	b, _ := belief.New(nx)

	return b
}

// ProcessModel returns the filter process model
func (f *Filter) ProcessModel() filter.ProcessModel {
	return f.pm
}

// ObservationModel returns the filter observation model
func (f *Filter) ObservationModel() filter.ObservationModel {
	return f.om
}

// StateNoise returns state noise
func (f *Filter) StateNoise() filter.Noise {
	return f.q
}

// OutputNoise returns output noise
func (f *Filter) OutputNoise() filter.Noise {
	return f.r
}

// Policy returns the filter moment integration policy; nil means the
// closed-form linear path is in use.
func (f *Filter) Policy() quad.Policy {
	return f.ip
}

// Name returns the filter name
func (f *Filter) Name() string {
	if f.ip == nil {
		return "GaussianFilter<Linear>"
	}

	return fmt.Sprintf("GaussianFilter<%s>", f.ip.Name())
}

// Description returns a human readable filter description
func (f *Filter) Description() string {
	if f.ip == nil {
		return "Gaussian filter with closed-form linear moment propagation"
	}

	return fmt.Sprintf("Gaussian filter with %s moment integration", f.ip.Name())
}
