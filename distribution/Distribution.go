// Package distribution implements parametric action distributions
// for stochastic policies. A policy network predicts a parameter
// vector per timestep; a Distribution turns those parameters into
// log probabilities, entropies, and sampled actions.
package distribution

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Distribution is a parametric distribution over actions. Parameter
// tensors may have any number of leading axes - commonly (batch size,
// seq len) - as long as the final axis holds ParamDims() values. All
// methods reduce away the parameter axis, returning tensors with the
// leading shape of their input.
type Distribution interface {
	// ParamDims returns the number of parameters per timestep that
	// the distribution consumes, i.e. the required size of the final
	// axis of every params tensor.
	ParamDims() int

	// LogProb returns the elementwise log probability (density for
	// continuous distributions) of the given actions under the
	// distribution with the given parameters.
	LogProb(params, actions *tensor.Dense) (*tensor.Dense, error)

	// Entropy returns the elementwise entropy of the distribution
	// with the given parameters.
	Entropy(params *tensor.Dense) (*tensor.Dense, error)

	// Sample draws one action per parameter vector.
	Sample(params *tensor.Dense) (*tensor.Dense, error)
}

// paramRows validates that the final axis of params holds dims values
// and returns the leading shape along with the number of parameter
// rows. A scalar leading shape is not supported: params must have at
// least 2 axes.
func paramRows(op string, params *tensor.Dense,
	dims int) (tensor.Shape, int, error) {
	shape := params.Shape()
	if len(shape) < 2 || shape[len(shape)-1] != dims {
		return nil, 0, fmt.Errorf("%v: illegal parameter shape "+
			"\n\twant((..., %v))\n\thave(%v)", op, dims, shape)
	}

	rows := 1
	for _, dim := range shape[:len(shape)-1] {
		rows *= dim
	}
	return shape[:len(shape)-1].Clone(), rows, nil
}
