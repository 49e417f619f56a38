package model

import (
	"fmt"

	filter "github.com/milosgajdos/go-bayes"
	"gonum.org/v1/gonum/mat"
)

// span holds the slice offsets of one sub-model within the concatenated
// state, control and noise vectors. The offsets are computed once at
// construction so Propagate never recomputes them.
type span struct {
	// x is state offset
	x int
	// u is control offset
	u int
	// q is noise offset
	q int
}

// Composed aggregates independent process models into one joint process
// model over the concatenated state, control and noise vectors.
// Each sub-model propagates its own contiguous slice of the joint
// vectors; sub-models never interact, so the joint dynamics are block
// diagonal by construction.
type Composed struct {
	// models is the ordered list of sub-models
	models []filter.ProcessModel
	// spans are precomputed sub-model slice offsets
	spans []span
	// nx, nu, nq are joint dimensions: sums of the sub-model dimensions
	nx, nu, nq int
}

// NewComposed creates a joint process model from the given sub-models.
// It returns error if no sub-models are given or if any sub-model has an
// invalid state dimension.
func NewComposed(models ...filter.ProcessModel) (*Composed, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no sub-models supplied")
	}

	c := &Composed{
		models: models,
		spans:  make([]span, len(models)),
	}

	for i, m := range models {
		nx, nu, nq := m.SystemDims()
		if nx <= 0 {
			return nil, fmt.Errorf("invalid sub-model %d state dimension: %d", i, nx)
		}

		c.spans[i] = span{x: c.nx, u: c.nu, q: c.nq}
		c.nx += nx
		c.nu += nu
		c.nq += nq
	}

	return c, nil
}

// Propagate applies every sub-model to its own slice of the concatenated
// state, control and noise vectors and returns the concatenated next
// state. It returns error if the joint vectors have invalid dimensions or
// if any sub-model fails to propagate its slice.
func (c *Composed) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != c.nx {
		return nil, fmt.Errorf("invalid state vector: %v", x)
	}
	if u != nil && u.Len() != c.nu {
		return nil, fmt.Errorf("invalid control vector: %v", u)
	}
	if q != nil && q.Len() != c.nq {
		return nil, fmt.Errorf("invalid noise vector: %v", q)
	}

	xv := mat.VecDenseCopyOf(x)

	var uv, qv *mat.VecDense
	if u != nil && u.Len() > 0 {
		uv = mat.VecDenseCopyOf(u)
	}
	if q != nil && q.Len() > 0 {
		qv = mat.VecDenseCopyOf(q)
	}

	out := mat.NewVecDense(c.nx, nil)

	for i, m := range c.models {
		nx, nu, nq := m.SystemDims()
		s := c.spans[i]

		var ui, qi mat.Vector
		if uv != nil && nu > 0 {
			ui = uv.SliceVec(s.u, s.u+nu)
		}
		if qv != nil && nq > 0 {
			qi = qv.SliceVec(s.q, s.q+nq)
		}

		xi, err := m.Propagate(xv.SliceVec(s.x, s.x+nx), ui, qi)
		if err != nil {
			return nil, fmt.Errorf("failed to propagate sub-model %d: %v", i, err)
		}
		if xi.Len() != nx {
			return nil, fmt.Errorf("invalid sub-model %d state dimension: %d != %d", i, xi.Len(), nx)
		}

		out.SliceVec(s.x, s.x+nx).(*mat.VecDense).CopyVec(xi)
	}

	return out, nil
}

// SystemDims returns the joint state, control input and state noise
// dimensions: the sums of the sub-model dimensions.
func (c *Composed) SystemDims() (nx, nu, nq int) {
	return c.nx, c.nu, c.nq
}

// Models returns the ordered list of sub-models.
func (c *Composed) Models() []filter.ProcessModel {
	models := make([]filter.ProcessModel, len(c.models))
	copy(models, c.models)

	return models
}
