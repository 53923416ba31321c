// Package critic implements state-value baselines for advantage
// estimation. Each baseline maps a trajectory batch to a value tensor
// of shape (batch size, seq len) and can be injected into a policy
// training task as its value function.
package critic

import (
	"github.com/samuelfneumann/gopolicy/trajectory"
	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	"gorgonia.org/tensor"
)

// Constant returns a baseline predicting the same value for every
// state. With value 0 the advantage estimate degenerates to the raw
// return signal.
func Constant(value float64) func(*trajectory.Batch) (*tensor.Dense,
	error) {
	return func(b *trajectory.Batch) (*tensor.Dense, error) {
		return tensorutils.Full(value, b.BatchSize(), b.SeqLen()), nil
	}
}
