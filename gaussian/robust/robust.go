package robust

import (
	"fmt"

	filter "github.com/milosgajdos/go-bayes"
	"github.com/milosgajdos/go-bayes/belief"
	"github.com/milosgajdos/go-bayes/gaussian"
	"github.com/milosgajdos/go-bayes/quad"
	"gonum.org/v1/gonum/mat"
)

// Filter is a robust Gaussian filter. It composes a generic Gaussian
// filter with a robust feature observation model wrapping the raw
// observation model: prediction delegates directly, while every update
// first adapts the feature transform to the predicted raw observation
// moments, maps the raw observation into feature space and only then runs
// the standard Kalman-form correction in feature space.
type Filter struct {
	// gf is the inner Gaussian filter parameterized with the feature model
	gf *gaussian.Filter
	// fm is the robust feature observation model
	fm *FeatureModel
	// om is the raw observation model wrapped by fm
	om filter.ObservationModel
	// ip is the moment integration policy shared with the inner filter
	ip quad.Policy
	// rb is the raw observation noise belief
	rb *belief.Gaussian
}

// New creates a new robust Gaussian filter and returns it.
// It accepts the same parameters as the generic Gaussian filter plus the
// feature clipping threshold in standard deviations (non-positive clip
// selects DefaultClip). The moment integration policy must not be nil:
// the feature transform makes the effective observation model nonlinear
// even for linear raw models.
// It returns error if the inner filter or the feature model fail to be
// created.
func New(pm filter.ProcessModel, om filter.ObservationModel, q, r filter.Noise, ip quad.Policy, clip float64) (*Filter, error) {
	if ip == nil {
		return nil, fmt.Errorf("robust filter requires a moment integration policy")
	}

	fm, err := NewFeatureModel(om, clip)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature model: %v", err)
	}

	gf, err := gaussian.New(pm, fm, q, r, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to create inner filter: %v", err)
	}

	f := &Filter{
		gf: gf,
		fm: fm,
		om: om,
		ip: ip,
	}

	rn := gf.OutputNoise()
	if dim := rn.Cov().SymmetricDim(); dim > 0 {
		f.rb, _ = belief.NewWithMoments(mat.NewVecDense(dim, rn.Mean()), rn.Cov())
	}

	return f, nil
}

// Predict delegates the prediction to the inner Gaussian filter.
// The predicted belief may alias the prior belief.
func (f *Filter) Predict(prior *belief.Gaussian, u mat.Vector, predicted *belief.Gaussian) error {
	return f.gf.Predict(prior, u, predicted)
}

// Update corrects the predicted belief using the raw measurement z and
// writes the corrected moments into posterior. It first integrates the
// moments of the raw observation under the predicted belief, adapts the
// feature transform to them, maps z into feature space and delegates the
// correction to the inner filter. The posterior belief may alias the
// predicted belief.
// It returns error if the raw moments fail to be integrated, if z lies
// outside the feature domain or if the inner update fails; the posterior
// belief is left untouched on failure.
func (f *Filter) Update(predicted *belief.Gaussian, z mat.Vector, posterior *belief.Gaussian) error {
	h := func(x, w mat.Vector) (mat.Vector, error) {
		return f.om.Observe(x, w)
	}

	m, err := f.ip.IntegrateMoments(h, predicted, f.rb)
	if err != nil {
		return fmt.Errorf("failed to integrate raw observation moments: %v", err)
	}

	body, err := belief.NewWithMoments(m.Mean, m.Cov)
	if err != nil {
		return fmt.Errorf("invalid body distribution: %v", err)
	}

	if err := f.fm.SetParameters(body, predicted.Mean()); err != nil {
		return fmt.Errorf("failed to adapt feature transform: %v", err)
	}

	zf, err := f.fm.FeatureObsrv(z)
	if err != nil {
		return fmt.Errorf("failed to map observation into feature space: %v", err)
	}

	return f.gf.Update(predicted, zf, posterior)
}

// NewBelief returns a zero belief sized to the process model state.
func (f *Filter) NewBelief() *belief.Gaussian {
	return f.gf.NewBelief()
}

// ProcessModel returns the filter process model
func (f *Filter) ProcessModel() filter.ProcessModel {
	return f.gf.ProcessModel()
}

// ObservationModel returns the raw observation model
func (f *Filter) ObservationModel() filter.ObservationModel {
	return f.om
}

// FeatureModel returns the robust feature observation model
func (f *Filter) FeatureModel() *FeatureModel {
	return f.fm
}

// Name returns the filter name
func (f *Filter) Name() string {
	return fmt.Sprintf("RobustGaussianFilter<%s>", f.gf.Name())
}

// Description returns a human readable filter description
func (f *Filter) Description() string {
	return fmt.Sprintf("Robust Gaussian filter with %s", f.gf.Description())
}
