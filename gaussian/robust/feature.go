// Package robust implements a robust Gaussian filter: a Gaussian filter
// whose update step maps raw observations through an adaptively
// parameterized, bounded feature transform before the Kalman-form
// correction. Bounding the feature space limits the influence a single
// outlying observation can exert on the posterior, the same way bounded
// influence functions do in robust statistics.
package robust

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-bayes"
	"github.com/milosgajdos/go-bayes/belief"
	"gonum.org/v1/gonum/mat"
)

// DefaultClip is the default feature clipping threshold in standard
// deviations of the predicted raw observation.
const DefaultClip = 2.0

// FeatureModel wraps a raw observation model and maps its observations
// into a robust feature space. The transform standardizes every
// observation coordinate by the predicted raw observation moments and
// clips it at a fixed number of standard deviations, so observations far
// outside the predicted distribution enter the update with bounded
// influence.
//
// FeatureModel is itself an observation model operating in feature space;
// its parameters must be adapted to the current predicted observation
// distribution via SetParameters before every update.
type FeatureModel struct {
	// om is the embedded raw observation model
	om filter.ObservationModel
	// clip is the clipping threshold in standard deviations
	clip float64
	// mean is the predicted raw observation mean
	mean *mat.VecDense
	// scale holds per coordinate standard deviations of the predicted
	// raw observation
	scale []float64
	// set reports whether the transform parameters have been adapted
	set bool
}

// NewFeatureModel creates a robust feature observation model wrapping the
// raw model om. Non-positive clip selects DefaultClip.
// It returns error if om is nil or has invalid dimensions.
func NewFeatureModel(om filter.ObservationModel, clip float64) (*FeatureModel, error) {
	if om == nil {
		return nil, fmt.Errorf("invalid observation model: %v", om)
	}

	ny, _ := om.ObsrvDims()
	if ny <= 0 {
		return nil, fmt.Errorf("invalid observation dimension: %d", ny)
	}

	if clip <= 0 {
		clip = DefaultClip
	}

	return &FeatureModel{
		om:    om,
		clip:  clip,
		mean:  mat.NewVecDense(ny, nil),
		scale: make([]float64, ny),
	}, nil
}

// SetParameters adapts the feature transform to the predicted raw
// observation distribution body and the predicted state mean. It must be
// called before every update so the transform is always relative to the
// current operating point.
// It returns error if body has invalid dimensions or a non-positive
// predicted variance in any coordinate.
func (m *FeatureModel) SetParameters(body *belief.Gaussian, stateMean mat.Vector) error {
	ny, _ := m.om.ObsrvDims()
	if body == nil || body.Dim() != ny {
		return fmt.Errorf("invalid body distribution: %v", body)
	}

	nx := stateMean.Len()
	if nx <= 0 {
		return fmt.Errorf("invalid state mean: %v", stateMean)
	}

	cov := body.Cov()
	for i := 0; i < ny; i++ {
		v := cov.At(i, i)
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-positive predicted observation variance in coordinate %d: %v", i, v)
		}
		m.scale[i] = math.Sqrt(v)
	}

	m.mean.CopyVec(body.Mean())
	m.set = true

	return nil
}

// FeatureObsrv maps a raw observation into feature space and returns it.
// It returns error if the transform parameters have not been set or if
// the observation lies outside the transform domain (contains a
// non-finite coordinate).
func (m *FeatureModel) FeatureObsrv(z mat.Vector) (mat.Vector, error) {
	if !m.set {
		return nil, fmt.Errorf("feature transform parameters not set")
	}

	ny, _ := m.om.ObsrvDims()
	if z == nil || z.Len() != ny {
		return nil, fmt.Errorf("invalid observation: %v", z)
	}

	f := mat.NewVecDense(ny, nil)
	for i := 0; i < ny; i++ {
		v := z.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("observation outside feature domain in coordinate %d: %v", i, v)
		}
		f.SetVec(i, m.feature(i, v))
	}

	return f, nil
}

// feature standardizes coordinate i of a raw observation, clips the
// standardized value and maps it back into observation units.
func (m *FeatureModel) feature(i int, v float64) float64 {
	u := (v - m.mean.AtVec(i)) / m.scale[i]
	if u > m.clip {
		u = m.clip
	}
	if u < -m.clip {
		u = -m.clip
	}

	return m.mean.AtVec(i) + m.scale[i]*u
}

// Observe observes the system state through the raw model and maps the
// raw observation into feature space, so feature space moments can be
// integrated with the same moment integration policy as raw ones.
// It returns error if the raw observation fails or if the transform
// parameters have not been set.
func (m *FeatureModel) Observe(x, r mat.Vector) (mat.Vector, error) {
	if !m.set {
		return nil, fmt.Errorf("feature transform parameters not set")
	}

	y, err := m.om.Observe(x, r)
	if err != nil {
		return nil, err
	}

	return m.FeatureObsrv(y)
}

// ObsrvDims returns the feature space observation dimensions which equal
// the raw model dimensions.
func (m *FeatureModel) ObsrvDims() (ny, nr int) {
	return m.om.ObsrvDims()
}

// RawModel returns the embedded raw observation model.
func (m *FeatureModel) RawModel() filter.ObservationModel {
	return m.om
}

// Clip returns the clipping threshold in standard deviations.
func (m *FeatureModel) Clip() float64 {
	return m.clip
}
