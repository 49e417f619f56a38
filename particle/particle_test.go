package particle

import (
	"math"
	"os"
	"testing"

	"github.com/milosgajdos/go-bayes/belief"
	"github.com/milosgajdos/go-bayes/gaussian"
	"github.com/milosgajdos/go-bayes/model"
	"github.com/milosgajdos/go-bayes/noise"
	"github.com/milosgajdos/go-bayes/quad"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var (
	m  *model.Linear
	q  *noise.Gaussian
	r  *noise.Gaussian
	ic *belief.Gaussian
	c  *Config
)

func setup() {
	// rotation about the z axis
	angle := math.Pi / 18
	A := mat.NewDense(3, 3, []float64{
		math.Cos(angle), -math.Sin(angle), 0,
		math.Sin(angle), math.Cos(angle), 0,
		0, 0, 1,
	})
	C := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})

	m, _ = model.NewLinear(A, nil, C)

	q, _ = noise.NewGaussian(
		[]float64{0, 0, 0},
		mat.NewSymDense(3, []float64{1e-3, 0, 0, 0, 1e-3, 0, 0, 0, 1e-3}),
	)
	r, _ = noise.NewGaussian(
		[]float64{0, 0, 0},
		mat.NewSymDense(3, []float64{1e-2, 0, 0, 0, 1e-2, 0, 0, 0, 1e-2}),
	)

	ic, _ = belief.NewWithMoments(
		mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
		mat.NewSymDense(3, []float64{0.25, 0, 0, 0, 0.25, 0, 0, 0, 0.25}),
	)

	c = &Config{ParticleCount: 10000}
}

func TestMain(t *testing.M) {
	setup()
	retCode := t.Run()
	os.Exit(retCode)
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(m, m, q, r, c)
	assert.NotNil(f)
	assert.NoError(err)
	assert.Equal(m, f.ProcessModel())
	assert.Equal(m, f.ObservationModel())
	assert.Equal("ParticleFilter<SIR>", f.Name())
	assert.NotEmpty(f.Description())

	f, err = New(m, m, q, r, nil)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(m, m, q, r, &Config{ParticleCount: -5})
	assert.Nil(f)
	assert.Error(err)

	badQ, _ := noise.NewGaussian([]float64{0}, mat.NewSymDense(1, []float64{1}))
	f, err = New(m, m, badQ, r, c)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(m, m, q, badQ, c)
	assert.Nil(f)
	assert.Error(err)

	// nil state noise defaults to zero noise
	f, err = New(m, m, nil, r, c)
	assert.NotNil(f)
	assert.NoError(err)

	// nil output noise defaults to zero noise whose singular covariance
	// cannot parameterize the default measurement error PDF
	f, err = New(m, m, q, nil, c)
	assert.Nil(f)
	assert.Error(err)
}

func TestNewBelief(t *testing.T) {
	assert := assert.New(t)

	f, err := New(m, m, q, r, c)
	assert.NoError(err)

	b, err := f.NewBelief(ic)
	assert.NotNil(b)
	assert.NoError(err)
	assert.Equal(c.ParticleCount, b.N())
	assert.Equal(3, b.Dim())

	// weights start uniform
	assert.InDelta(float64(b.N()), b.ESS(), 1e-6)
	for i := 0; i < b.N(); i++ {
		assert.InDelta(1/float64(b.N()), b.Weights().AtVec(i), 1e-12)
	}

	// sample moments approximate the seeding Gaussian
	mean := b.Mean()
	for i := 0; i < 3; i++ {
		assert.InDelta(ic.Mean().AtVec(i), mean.AtVec(i), 0.05)
		assert.InDelta(ic.Cov().At(i, i), b.Cov().At(i, i), 0.05)
	}

	b, err = NewBelief(ic, 0)
	assert.Nil(b)
	assert.Error(err)
}

func TestBelief(t *testing.T) {
	assert := assert.New(t)

	b, err := NewBelief(ic, 100)
	assert.NoError(err)

	// accessors return copies
	p := b.Particles().(*mat.Dense)
	p.Set(0, 0, 1000.0)
	assert.True(mat.Equal(b.x, b.Particles()))

	clone := b.Clone()
	clone.x.Set(0, 0, 1000.0)
	clone.w[0] = 0.5
	assert.NotEqual(clone.x.At(0, 0), b.x.At(0, 0))
	assert.NotEqual(clone.w[0], b.w[0])

	other, err := NewBelief(ic, 100)
	assert.NoError(err)
	assert.NoError(other.CopyFrom(b))
	assert.True(mat.Equal(b.x, other.x))

	small, err := NewBelief(ic, 10)
	assert.NoError(err)
	assert.Error(small.CopyFrom(b))

	g, err := b.Gaussian()
	assert.NotNil(g)
	assert.NoError(err)
	assert.Equal(3, g.Dim())
}

func TestPredict(t *testing.T) {
	assert := assert.New(t)

	f, err := New(m, m, q, r, c)
	assert.NoError(err)

	prior, err := f.NewBelief(ic)
	assert.NoError(err)

	predicted := prior.Clone()
	assert.NoError(f.Predict(prior, nil, predicted))

	// prediction rotates the cloud but never reweights it
	assert.InDelta(float64(prior.N()), predicted.ESS(), 1e-6)
	assert.Equal(prior.N(), predicted.N())

	mean := predicted.Mean()
	want, err := m.Propagate(prior.Mean(), nil, nil)
	assert.NoError(err)
	for i := 0; i < 3; i++ {
		assert.InDelta(want.AtVec(i), mean.AtVec(i), 0.05)
	}

	// in-place prediction is supported
	inPlace := prior.Clone()
	assert.NoError(f.Predict(inPlace, nil, inPlace))

	bad, err := NewBelief(ic, 10)
	assert.NoError(err)
	assert.Error(f.Predict(prior, nil, bad))
	assert.Error(f.Predict(prior, nil, nil))
}

func TestUpdate(t *testing.T) {
	assert := assert.New(t)

	f, err := New(m, m, q, r, c)
	assert.NoError(err)

	predicted, err := f.NewBelief(ic)
	assert.NoError(err)

	z := mat.NewVecDense(3, []float64{1.0, 2.0, 3.0})

	posterior := predicted.Clone()
	assert.NoError(f.Update(predicted, z, posterior))

	// weights remain normalized after the update
	var sum float64
	for i := 0; i < posterior.N(); i++ {
		sum += posterior.Weights().AtVec(i)
	}
	assert.InDelta(1.0, sum, 1e-9)

	// the posterior mean concentrates around the measurement
	for i := 0; i < 3; i++ {
		assert.InDelta(z.AtVec(i), posterior.Mean().AtVec(i), 0.1)
	}

	assert.Error(f.Update(predicted, mat.NewVecDense(2, nil), posterior))
	assert.Error(f.Update(predicted, nil, posterior))
	assert.Error(f.Update(predicted, z, nil))

	bad, err := NewBelief(ic, 10)
	assert.NoError(err)
	assert.Error(f.Update(predicted, z, bad))
}

func TestUpdateDegenerateWeights(t *testing.T) {
	assert := assert.New(t)

	f, err := New(m, m, q, r, c)
	assert.NoError(err)

	predicted, err := f.NewBelief(ic)
	assert.NoError(err)
	posterior := predicted.Clone()

	// a non-finite measurement gives every particle zero likelihood
	z := mat.NewVecDense(3, []float64{math.NaN(), 0, 0})
	assert.Error(f.Update(predicted, z, posterior))

	// the posterior is preserved on failure
	assert.InDelta(float64(posterior.N()), posterior.ESS(), 1e-6)
}

func TestResample(t *testing.T) {
	assert := assert.New(t)

	f, err := New(m, m, q, r, c)
	assert.NoError(err)

	b, err := f.NewBelief(ic)
	assert.NoError(err)

	// skew the weights so the redraw has something to correct
	for i := range b.w {
		b.w[i] = float64(i + 1)
	}
	b.normalize()
	mean := b.Mean()

	assert.NoError(f.Resample(b, 0))

	// resampling preserves the particle count, resets the weights to
	// uniform and approximately preserves the weighted mean
	assert.Equal(c.ParticleCount, b.N())
	assert.InDelta(float64(b.N()), b.ESS(), 1e-6)
	for i := 0; i < 3; i++ {
		assert.InDelta(mean.AtVec(i), b.Mean().AtVec(i), 0.1)
	}
}

func TestAlphaGauss(t *testing.T) {
	assert := assert.New(t)

	alpha := AlphaGauss(3, 10000)
	assert.True(alpha > 0 && alpha < 1)
}

// TestEstimationAgainstGaussianFilter runs the particle filter and an
// unscented Gaussian filter side by side on the same rotating system and
// measurement sequence and checks their posteriors agree.
func TestEstimationAgainstGaussianFilter(t *testing.T) {
	assert := assert.New(t)

	pf, err := New(m, m, q, r, c)
	assert.NoError(err)

	ut, err := quad.NewUnscented(nil)
	assert.NoError(err)
	gf, err := gaussian.New(m, m, q, r, ut)
	assert.NoError(err)

	pb, err := pf.NewBelief(ic)
	assert.NoError(err)
	gb := ic.Clone()

	xTrue := mat.NewVecDense(3, []float64{1.0, 2.0, 3.0})

	steps := 10
	for i := 0; i < steps; i++ {
		xNext, err := m.Propagate(xTrue, nil, q.Sample())
		assert.NoError(err)
		xTrue = xNext.(*mat.VecDense)

		z, err := m.Observe(xTrue, r.Sample())
		assert.NoError(err)

		assert.NoError(pf.Predict(pb, nil, pb))
		assert.NoError(pf.Update(pb, z, pb))

		assert.NoError(gf.Predict(gb, nil, gb))
		assert.NoError(gf.Update(gb, z, gb))

		// at every step the two posteriors must stay close: the mean
		// delta normalized by the Gaussian posterior mean stays small
		// and the covariance diagonals keep a ratio near one
		pg, err := pb.Gaussian()
		assert.NoError(err)

		d := mat.NewVecDense(3, nil)
		d.SubVec(pg.Mean(), gb.Mean())
		assert.Less(mat.Norm(d, 2)/mat.Norm(gb.Mean(), 2), 0.1)

		for j := 0; j < 3; j++ {
			assert.InDelta(1.0, pg.Cov().At(j, j)/gb.Cov().At(j, j), 0.25)
		}
	}

	pg, err := pb.Gaussian()
	assert.NoError(err)

	// and the particle posterior must have contracted around the truth
	dTrue := mat.NewVecDense(3, nil)
	dTrue.SubVec(pg.Mean(), xTrue)
	assert.Less(mat.Norm(dTrue, 2), 0.5)
}
