// Package model provides basic dynamical system models consumed by the
// filters: a linear discrete-time model and a composition of independent
// process models into one block structured joint model.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear is a linear, discrete-time model of a dynamical system:
//
//	x[n+1] = A*x[n] + B*u[n] + q[n]
//	y[n]   = C*x[n] + r[n]
type Linear struct {
	// A is internal state matrix
	A *mat.Dense
	// B is control matrix
	B *mat.Dense
	// C is output state matrix
	C *mat.Dense
}

// NewLinear creates a linear model from the given system matrices.
// B may be nil for a system without control input; C may be nil for a
// process-only model. It returns error if A is nil or not square or if
// the B or C dimensions do not agree with A.
func NewLinear(A, B, C *mat.Dense) (*Linear, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined")
	}

	nx, cols := A.Dims()
	if nx != cols {
		return nil, fmt.Errorf("invalid system matrix dimensions: [%d x %d]", nx, cols)
	}

	if B != nil {
		if r, _ := B.Dims(); r != nx {
			return nil, fmt.Errorf("invalid control matrix dimensions: [%d x %d]", r, nx)
		}
	}

	if C != nil {
		if _, c := C.Dims(); c != nx {
			return nil, fmt.Errorf("invalid output matrix dimensions: [%d x %d]", c, nx)
		}
	}

	return &Linear{A: A, B: B, C: C}, nil
}

// Propagate propagates internal state x to the next step given the
// control input u and state noise q and returns the next state.
// It returns error if the supplied vectors have invalid dimensions.
func (l *Linear) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	nx, nu, _ := l.SystemDims()

	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector: %v", x)
	}

	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid control vector: %v", u)
	}

	out := mat.NewVecDense(nx, nil)
	out.MulVec(l.A, x)

	if u != nil && l.B != nil {
		outU := mat.NewVecDense(nx, nil)
		outU.MulVec(l.B, u)
		out.AddVec(out, outU)
	}

	if q != nil && q.Len() == nx {
		out.AddVec(out, q)
	}

	return out, nil
}

// Observe observes external state of the system given internal state x
// and observation noise r and returns the observation.
// It returns error if the model has no output matrix or if the supplied
// vectors have invalid dimensions.
func (l *Linear) Observe(x, r mat.Vector) (mat.Vector, error) {
	if l.C == nil {
		return nil, fmt.Errorf("model has no output matrix")
	}

	nx, _, _ := l.SystemDims()
	ny, _ := l.ObsrvDims()

	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector: %v", x)
	}

	out := mat.NewVecDense(ny, nil)
	out.MulVec(l.C, x)

	if r != nil && r.Len() == ny {
		out.AddVec(out, r)
	}

	return out, nil
}

// SystemDims returns the state, control input and state noise dimensions.
// State noise is additive so its dimension equals the state dimension.
func (l *Linear) SystemDims() (nx, nu, nq int) {
	nx, _ = l.A.Dims()
	if l.B != nil {
		_, nu = l.B.Dims()
	}

	return nx, nu, nx
}

// ObsrvDims returns the observation and observation noise dimensions.
// Observation noise is additive so its dimension equals the observation
// dimension.
func (l *Linear) ObsrvDims() (ny, nr int) {
	if l.C == nil {
		return 0, 0
	}
	ny, _ = l.C.Dims()

	return ny, ny
}

// SystemMatrix returns state propagation matrix
func (l *Linear) SystemMatrix() mat.Matrix {
	m := &mat.Dense{}
	m.CloneFrom(l.A)

	return m
}

// ControlMatrix returns state propagation control matrix
func (l *Linear) ControlMatrix() mat.Matrix {
	if l.B == nil {
		return nil
	}

	m := &mat.Dense{}
	m.CloneFrom(l.B)

	return m
}

// OutputMatrix returns observation matrix
func (l *Linear) OutputMatrix() mat.Matrix {
	if l.C == nil {
		return nil
	}

	m := &mat.Dense{}
	m.CloneFrom(l.C)

	return m
}
