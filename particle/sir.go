package particle

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-bayes"
	"github.com/milosgajdos/go-bayes/belief"
	"github.com/milosgajdos/go-bayes/noise"
	"github.com/milosgajdos/go-bayes/rand"
	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// DefaultESSFraction is the default effective sample size fraction below
// which the filter resamples its particles.
const DefaultESSFraction = 0.5

// Config is SIR particle filter configuration
type Config struct {
	// ParticleCount specifies the number of filter particles
	ParticleCount int
	// ErrPDF is the measurement error probability density function.
	// If nil, a zero mean Gaussian with the output noise covariance is used.
	ErrPDF distmv.LogProber
	// ESSFraction is the effective sample size fraction which triggers
	// resampling; non-positive values select DefaultESSFraction.
	ESSFraction float64
}

// Filter is a SIR particle filter.
type Filter struct {
	// pm is process model
	pm filter.ProcessModel
	// om is observation model
	om filter.ObservationModel
	// q is state noise a.k.a. process noise
	q filter.Noise
	// r is output noise a.k.a. measurement noise
	r filter.Noise
	// n is particle count
	n int
	// errPDF is the measurement error PDF
	errPDF distmv.LogProber
	// essFrac is the resampling threshold fraction
	essFrac float64
	// inn is a preallocated innovation buffer: its size equals the
	// system output size so we avoid reallocating it on every Update
	inn []float64
}

// New creates a new SIR particle filter and returns it.
// It returns error if the model dimensions are invalid, the noise
// dimensions do not match the models, a non-positive particle count is
// given or no measurement error PDF can be constructed.
func New(pm filter.ProcessModel, om filter.ObservationModel, q, r filter.Noise, c *Config) (*Filter, error) {
	if c == nil || c.ParticleCount <= 0 {
		return nil, fmt.Errorf("invalid particle count")
	}

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

	errPDF := c.ErrPDF
	if errPDF == nil {
		dist, ok := distmv.NewNormal(make([]float64, ny), r.Cov(), nil)
		if !ok {
			return nil, fmt.Errorf("failed to create measurement error PDF")
		}
		errPDF = dist
	}

	essFrac := c.ESSFraction
	if essFrac <= 0 {
		essFrac = DefaultESSFraction
	}

	return &Filter{
		pm:      pm,
		om:      om,
		q:       q,
		r:       r,
		n:       c.ParticleCount,
		errPDF:  errPDF,
		essFrac: essFrac,
		inn:     make([]float64, ny),
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

// NewBelief seeds a particle belief from the Gaussian belief g using the
// configured particle count and returns it.
func (f *Filter) NewBelief(g *belief.Gaussian) (*Belief, error) {
	return NewBelief(g, f.n)
}

// Predict propagates every particle of the prior belief through the
// process model with a fresh state noise draw and writes the result into
// predicted; weights are unchanged. The predicted belief may alias the
// prior belief.
// It returns error if the beliefs have mismatched shapes or if any
// particle fails to propagate.
func (f *Filter) Predict(prior *Belief, u mat.Vector, predicted *Belief) error {
	if predicted == nil || predicted.Dim() != prior.Dim() || predicted.N() != prior.N() {
		return fmt.Errorf("invalid predicted belief: %v", predicted)
	}

	rows, cols := prior.x.Dims()
	xPred := mat.NewDense(rows, cols, nil)

	for c := 0; c < cols; c++ {
		xNext, err := f.pm.Propagate(prior.x.ColView(c), u, f.q.Sample())
		if err != nil {
			return fmt.Errorf("particle state propagation failed: %v", err)
		}
		xPred.Slice(0, rows, c, c+1).(*mat.Dense).Copy(xNext)
	}

	predicted.x.Copy(xPred)
	copy(predicted.w, prior.w)

	return nil
}

// Update reweights the particles of the predicted belief by the
// likelihood of the measurement z given each particle's predicted
// observation, normalizes the weights and resamples the particles when
// the effective sample size drops below the configured fraction of the
// particle count. The posterior belief may alias the predicted belief.
// It returns error if the measurement has invalid dimensions, if any
// particle fails to be observed or if the weights degenerate to zero:
// total sensor mismatch is a fatal estimation failure, not something to
// silently renormalize.
func (f *Filter) Update(predicted *Belief, z mat.Vector, posterior *Belief) error {
	if z == nil || z.Len() != len(f.inn) {
		return fmt.Errorf("invalid measurement size: %v", z)
	}
	if posterior == nil || posterior.Dim() != predicted.Dim() || posterior.N() != predicted.N() {
		return fmt.Errorf("invalid posterior belief: %v", posterior)
	}

	w := make([]float64, predicted.N())

	// reweight particles by the measurement likelihood of their
	// predicted observations; likelihoods are accumulated in log space
	// to avoid premature underflow
	for c := range w {
		y, err := f.om.Observe(predicted.x.ColView(c), nil)
		if err != nil {
			return fmt.Errorf("particle state observation failed: %v", err)
		}

		for r := 0; r < z.Len(); r++ {
			f.inn[r] = z.AtVec(r) - y.AtVec(r)
		}

		w[c] = math.Log(predicted.w[c]) + f.errPDF.LogProb(f.inn)
	}

	// exp-normalize about the largest log weight
	max := floats.Max(w)
	if math.IsNaN(max) || math.IsInf(max, -1) {
		return fmt.Errorf("particle weights degenerated: no particle explains the measurement")
	}
	var sum float64
	for i := range w {
		w[i] = math.Exp(w[i] - max)
		sum += w[i]
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("particle weights degenerated: no particle explains the measurement")
	}
	floats.Scale(1/sum, w)

	posterior.x.Copy(predicted.x)
	copy(posterior.w, w)

	if posterior.ESS() < f.essFrac*float64(posterior.N()) {
		if err := f.resample(posterior); err != nil {
			return err
		}
	}

	return nil
}

// resample draws a new particle set with replacement proportionally to
// the particle weights and resets the weights to uniform.
func (f *Filter) resample(b *Belief) error {
	indices, err := rand.RouletteDrawN(b.w, len(b.w))
	if err != nil {
		return fmt.Errorf("failed to resample particles: %v", err)
	}

	x := new(mat.Dense)
	x.CloneFrom(b.x)
	rows, _ := x.Dims()

	for c, idx := range indices {
		b.x.Slice(0, rows, c, c+1).(*mat.Dense).Copy(x.ColView(idx))
	}

	for i := range b.w {
		b.w[i] = 1 / float64(len(b.w))
	}

	return nil
}

// Resample regenerates the particles of belief b with regularization
// parameter alpha: after the weighted redraw it perturbs the new
// particles with samples drawn from their covariance scaled by alpha.
// If a non-positive alpha is provided the optimal value for a Gaussian
// kernel is used.
// It returns error if the resampling or the perturbation draw fails.
func (f *Filter) Resample(b *Belief, alpha float64) error {
	if err := f.resample(b); err != nil {
		return err
	}

	cov, err := matrix.Cov(b.x, "cols")
	if err != nil {
		return fmt.Errorf("failed to calculate particle covariance: %v", err)
	}

	rows, cols := b.x.Dims()

	m, err := rand.WithCovN(cov, cols)
	if err != nil {
		return fmt.Errorf("failed to draw particle perturbations: %v", err)
	}

	if alpha <= 0 {
		alpha = AlphaGauss(rows, cols)
	}
	m.Scale(alpha, m)

	b.x.Add(b.x, m)

	return nil
}

// AlphaGauss computes the optimal regularization parameter for a Gaussian
// kernel and returns it.
func AlphaGauss(r, c int) float64 {
	return math.Pow(4.0/(float64(c)*(float64(r)+2.0)), 1/(float64(r)+4.0))
}

// ProcessModel returns the filter process model
func (f *Filter) ProcessModel() filter.ProcessModel {
	return f.pm
}

// ObservationModel returns the filter observation model
func (f *Filter) ObservationModel() filter.ObservationModel {
	return f.om
}

// Name returns the filter name
func (f *Filter) Name() string {
	return "ParticleFilter<SIR>"
}

// Description returns a human readable filter description
func (f *Filter) Description() string {
	return fmt.Sprintf("SIR particle filter with %d particles", f.n)
}
