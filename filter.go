package filter

import (
	"github.com/milosgajdos/go-bayes/belief"
	"gonum.org/v1/gonum/mat"
)

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates state x to the next step given control input u and noise q
	Propagate(x, u, q mat.Vector) (mat.Vector, error)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe observes external state of the system given state x and noise r
	Observe(x, r mat.Vector) (mat.Vector, error)
}

// ProcessModel is a model of the hidden state dynamics
type ProcessModel interface {
	// Propagator propagates state to the next step
	Propagator
	// SystemDims returns the state, control input and state noise dimensions
	SystemDims() (nx, nu, nq int)
}

// ObservationModel is a model of the system output
type ObservationModel interface {
	// Observer observes external state of the system
	Observer
	// ObsrvDims returns the observation and observation noise dimensions
	ObsrvDims() (ny, nr int)
}

// LinearProcess is a process model driven by static dynamics matrices
type LinearProcess interface {
	// ProcessModel is a model of the hidden state dynamics
	ProcessModel
	// SystemMatrix returns state propagation matrix
	SystemMatrix() mat.Matrix
	// ControlMatrix returns state propagation control matrix
	ControlMatrix() mat.Matrix
}

// LinearObservation is an observation model driven by a static output matrix
type LinearObservation interface {
	// ObservationModel is a model of the system output
	ObservationModel
	// OutputMatrix returns observation matrix
	OutputMatrix() mat.Matrix
}

// Filter is a recursive Bayesian estimator over Gaussian beliefs.
// Predict and Update both allow their output belief to alias their
// input belief: implementations stage all reads before any write.
type Filter interface {
	// Predict propagates the prior belief to the next step
	Predict(prior *belief.Gaussian, u mat.Vector, predicted *belief.Gaussian) error
	// Update corrects the predicted belief using measurement z
	Update(predicted *belief.Gaussian, z mat.Vector, posterior *belief.Gaussian) error
	// NewBelief returns a zero belief sized to the filter state
	NewBelief() *belief.Gaussian
	// Name returns filter name
	Name() string
	// Description returns a human readable filter description
	Description() string
}

// InitCond is initial state condition of a filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// NewBelief seeds a Gaussian belief from the given initial condition and
// returns it. It returns error if the initial condition carries invalid
// moments.
func NewBelief(ic InitCond) (*belief.Gaussian, error) {
	return belief.NewWithMoments(ic.State(), ic.Cov())
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset()
}
