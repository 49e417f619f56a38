// Package sim provides small utilities for driving filters in tests and
// examples: initial conditions, a discrete-time system simulator and a
// plot helper for visual comparison of simulated, measured and filtered
// trajectories.
package sim

import (
	"fmt"

	filter "github.com/milosgajdos/go-bayes"
	"gonum.org/v1/gonum/mat"
)

// InitCond implements filter.InitCond
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond and returns it
func NewInitCond(state mat.Vector, cov mat.Symmetric) *InitCond {
	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}
}

// State returns initial state
func (c *InitCond) State() mat.Vector {
	state := mat.NewVecDense(c.state.Len(), nil)
	state.CopyVec(c.state)

	return state
}

// Cov returns initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}

// Trajectory stores a simulated system run: states and the noisy
// observations of them, one time step per column.
type Trajectory struct {
	// X stores system states in columns
	X *mat.Dense
	// Y stores system observations in columns
	Y *mat.Dense
}

// Run simulates steps steps of the given system: it repeatedly propagates
// the state through the process model with a fresh process noise draw and
// observes it through the observation model with a fresh measurement
// noise draw. The control input u is applied at every step; it may be nil
// for systems without control input.
// It returns error if the system fails to propagate or observe.
func Run(pm filter.ProcessModel, om filter.ObservationModel, q, r filter.Noise, x0, u mat.Vector, steps int) (*Trajectory, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("invalid number of steps: %d", steps)
	}

	nx, _, _ := pm.SystemDims()
	ny, _ := om.ObsrvDims()

	x := mat.NewDense(nx, steps, nil)
	y := mat.NewDense(ny, steps, nil)

	state := mat.VecDenseCopyOf(x0)

	for s := 0; s < steps; s++ {
		var qs, rs mat.Vector
		if q != nil {
			qs = q.Sample()
		}
		if r != nil {
			rs = r.Sample()
		}

		next, err := pm.Propagate(state, u, qs)
		if err != nil {
			return nil, fmt.Errorf("failed to propagate system state: %v", err)
		}
		state.CopyVec(next)

		obsrv, err := om.Observe(state, rs)
		if err != nil {
			return nil, fmt.Errorf("failed to observe system output: %v", err)
		}

		x.Slice(0, nx, s, s+1).(*mat.Dense).Copy(state)
		y.Slice(0, ny, s, s+1).(*mat.Dense).Copy(obsrv)
	}

	return &Trajectory{X: x, Y: y}, nil
}
