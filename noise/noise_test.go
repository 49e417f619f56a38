package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestGaussian(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{1.0, 2.0}
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	g, err := NewGaussian(mean, cov)
	assert.NotNil(g)
	assert.NoError(err)

	sample := g.Sample()
	assert.Equal(2, sample.Len())

	assert.Equal(mean, g.Mean())
	assert.True(mat.EqualApprox(cov, g.Cov(), 1e-10))

	// mean is copied, not referenced
	mean[0] = 100.0
	assert.Equal(1.0, g.Mean()[0])

	g.Reset()
	assert.Equal(2, g.Sample().Len())

	// mismatched dimensions
	g, err = NewGaussian([]float64{0}, cov)
	assert.Nil(g)
	assert.Error(err)

	// covariance must be positive definite
	g, err = NewGaussian([]float64{0, 0}, mat.NewSymDense(2, nil))
	assert.Nil(g)
	assert.Error(err)
}

func TestZero(t *testing.T) {
	assert := assert.New(t)

	z, err := NewZero(2)
	assert.NotNil(z)
	assert.NoError(err)

	assert.True(mat.EqualApprox(mat.NewVecDense(2, nil), z.Sample(), 1e-10))
	assert.Equal(2, z.Cov().SymmetricDim())
	assert.Equal([]float64{0, 0}, z.Mean())
	z.Reset()

	z, err = NewZero(0)
	assert.Nil(z)
	assert.Error(err)
}

func TestNone(t *testing.T) {
	assert := assert.New(t)

	n, err := NewNone()
	assert.NotNil(n)
	assert.NoError(err)

	assert.Equal(0, n.Sample().Len())
	assert.Equal(0, n.Cov().SymmetricDim())
	assert.Nil(n.Mean())
	n.Reset()
}
