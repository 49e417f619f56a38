package model

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var (
	A *mat.Dense
	B *mat.Dense
	C *mat.Dense
)

func setup() {
	A = mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	B = mat.NewDense(2, 1, []float64{0.5, 1.0})
	C = mat.NewDense(1, 2, []float64{1, 0})
}

func TestMain(t *testing.M) {
	setup()
	retCode := t.Run()
	os.Exit(retCode)
}

func TestNewLinear(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLinear(A, B, C)
	assert.NotNil(l)
	assert.NoError(err)

	nx, nu, nq := l.SystemDims()
	assert.Equal(2, nx)
	assert.Equal(1, nu)
	assert.Equal(2, nq)

	ny, nr := l.ObsrvDims()
	assert.Equal(1, ny)
	assert.Equal(1, nr)

	// B and C are optional
	l, err = NewLinear(A, nil, nil)
	assert.NotNil(l)
	assert.NoError(err)
	_, nu, _ = l.SystemDims()
	assert.Equal(0, nu)
	ny, _ = l.ObsrvDims()
	assert.Equal(0, ny)

	l, err = NewLinear(nil, B, C)
	assert.Nil(l)
	assert.Error(err)

	l, err = NewLinear(mat.NewDense(2, 3, nil), nil, nil)
	assert.Nil(l)
	assert.Error(err)

	l, err = NewLinear(A, mat.NewDense(3, 1, nil), nil)
	assert.Nil(l)
	assert.Error(err)

	l, err = NewLinear(A, nil, mat.NewDense(1, 3, nil))
	assert.Nil(l)
	assert.Error(err)
}

func TestLinearPropagate(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLinear(A, B, C)
	assert.NoError(err)

	x := mat.NewVecDense(2, []float64{1.0, 2.0})
	u := mat.NewVecDense(1, []float64{1.0})
	q := mat.NewVecDense(2, []float64{0.1, -0.1})

	xNext, err := l.Propagate(x, u, q)
	assert.NoError(err)
	// A*x + B*u + q
	want := mat.NewVecDense(2, []float64{3.6, 2.9})
	assert.True(mat.EqualApprox(want, xNext, 1e-10))

	// nil control and noise
	xNext, err = l.Propagate(x, nil, nil)
	assert.NoError(err)
	assert.True(mat.EqualApprox(mat.NewVecDense(2, []float64{3.0, 2.0}), xNext, 1e-10))

	_, err = l.Propagate(nil, u, q)
	assert.Error(err)

	_, err = l.Propagate(mat.NewVecDense(3, nil), u, q)
	assert.Error(err)

	_, err = l.Propagate(x, mat.NewVecDense(2, nil), q)
	assert.Error(err)
}

func TestLinearObserve(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLinear(A, B, C)
	assert.NoError(err)

	x := mat.NewVecDense(2, []float64{1.0, 2.0})
	r := mat.NewVecDense(1, []float64{0.5})

	y, err := l.Observe(x, r)
	assert.NoError(err)
	assert.True(mat.EqualApprox(mat.NewVecDense(1, []float64{1.5}), y, 1e-10))

	y, err = l.Observe(x, nil)
	assert.NoError(err)
	assert.True(mat.EqualApprox(mat.NewVecDense(1, []float64{1.0}), y, 1e-10))

	_, err = l.Observe(nil, r)
	assert.Error(err)

	noOut, _ := NewLinear(A, nil, nil)
	_, err = noOut.Observe(x, nil)
	assert.Error(err)
}

func TestLinearMatrices(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLinear(A, B, C)
	assert.NoError(err)

	// accessors return copies
	sm := l.SystemMatrix().(*mat.Dense)
	assert.True(mat.Equal(A, sm))
	sm.Set(0, 0, 100.0)
	assert.True(mat.Equal(A, l.SystemMatrix()))

	assert.True(mat.Equal(B, l.ControlMatrix()))
	assert.True(mat.Equal(C, l.OutputMatrix()))

	bare, _ := NewLinear(A, nil, nil)
	assert.Nil(bare.ControlMatrix())
	assert.Nil(bare.OutputMatrix())
}

func TestNewComposed(t *testing.T) {
	assert := assert.New(t)

	m1, _ := NewLinear(A, B, nil)
	m2, _ := NewLinear(mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), nil, nil)

	c, err := NewComposed(m1, m2)
	assert.NotNil(c)
	assert.NoError(err)

	nx, nu, nq := c.SystemDims()
	assert.Equal(5, nx)
	assert.Equal(1, nu)
	assert.Equal(5, nq)

	assert.Len(c.Models(), 2)

	c, err = NewComposed()
	assert.Nil(c)
	assert.Error(err)
}

func TestComposedPropagate(t *testing.T) {
	assert := assert.New(t)

	A2 := mat.NewDense(3, 3, []float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	m1, err := NewLinear(A, B, nil)
	assert.NoError(err)
	m2, err := NewLinear(A2, nil, nil)
	assert.NoError(err)

	c, err := NewComposed(m1, m2)
	assert.NoError(err)

	x := mat.NewVecDense(5, []float64{1, 2, 3, 4, 5})
	u := mat.NewVecDense(1, []float64{1.0})
	q := mat.NewVecDense(5, []float64{0.1, 0.2, 0.3, 0.4, 0.5})

	// the joint propagation must equal the concatenation of the
	// independent sub-model propagations
	x1, err := m1.Propagate(x.SliceVec(0, 2), u, q.SliceVec(0, 2))
	assert.NoError(err)
	x2, err := m2.Propagate(x.SliceVec(2, 5), nil, q.SliceVec(2, 5))
	assert.NoError(err)

	xNext, err := c.Propagate(x, u, q)
	assert.NoError(err)
	assert.Equal(5, xNext.Len())
	assert.True(mat.EqualApprox(x1, xNext.(*mat.VecDense).SliceVec(0, 2), 1e-10))
	assert.True(mat.EqualApprox(x2, xNext.(*mat.VecDense).SliceVec(2, 5), 1e-10))

	// output may alias the joint input: propagation reads a staged copy
	xOrig := mat.VecDenseCopyOf(x)
	xNext, err = c.Propagate(x, u, q)
	assert.NoError(err)
	assert.True(mat.Equal(xOrig, x))

	_, err = c.Propagate(mat.NewVecDense(4, nil), u, q)
	assert.Error(err)

	_, err = c.Propagate(x, mat.NewVecDense(2, nil), q)
	assert.Error(err)

	_, err = c.Propagate(x, u, mat.NewVecDense(4, nil))
	assert.Error(err)
}
