// Package trajectory implements batches of sampled trajectory slices
// and the streams that produce them
package trajectory

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ShapeError describes a violation of the tensor-shape contract
// between a trajectory producer, a value function, and an advantage
// estimator. It is a configuration or integration bug: callers should
// treat it as fatal rather than retry.
type ShapeError struct {
	Op   string // Operation that detected the violation
	Want tensor.Shape
	Have tensor.Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: tensor shape mismatch \n\twant(%v)"+
		"\n\thave(%v)", e.Op, e.Want, e.Have)
}

// Batch holds a batch of trajectory slices as parallel dense float64
// tensors. All fields share the leading axes (batch size, sequence
// length): Observations and Actions may carry extra trailing axes for
// the observation and action shapes, while Rewards, Returns, Dones,
// and Mask are exactly (batch size, sequence length).
//
// Dones flags the final timestep of an episode with 1. Mask flags
// valid timesteps with 1; padding timesteps past the end of an
// episode carry 0.
//
// A Batch is read-only once produced. Consumers transform it into
// fresh tensors rather than mutating it in place.
type Batch struct {
	Observations *tensor.Dense
	Actions      *tensor.Dense
	Rewards      *tensor.Dense
	Returns      *tensor.Dense
	Dones        *tensor.Dense
	Mask         *tensor.Dense
}

// NewBatch creates and returns a new Batch, validating that all
// parallel tensors agree on the leading (batch size, sequence length)
// axes. A *ShapeError is returned on any disagreement.
func NewBatch(observations, actions, rewards, returns, dones,
	mask *tensor.Dense) (*Batch, error) {
	if len(observations.Shape()) < 2 {
		return nil, &ShapeError{
			Op:   "newbatch: observations",
			Want: tensor.Shape{-1, -1},
			Have: observations.Shape(),
		}
	}
	batchSize, seqLen := observations.Shape()[0], observations.Shape()[1]

	if len(actions.Shape()) < 2 || actions.Shape()[0] != batchSize ||
		actions.Shape()[1] != seqLen {
		return nil, &ShapeError{
			Op:   "newbatch: actions",
			Want: tensor.Shape{batchSize, seqLen},
			Have: actions.Shape(),
		}
	}

	perStep := []struct {
		name string
		t    *tensor.Dense
	}{
		{"rewards", rewards},
		{"returns", returns},
		{"dones", dones},
		{"mask", mask},
	}
	for _, field := range perStep {
		if !field.t.Shape().Eq(tensor.Shape{batchSize, seqLen}) {
			return nil, &ShapeError{
				Op:   "newbatch: " + field.name,
				Want: tensor.Shape{batchSize, seqLen},
				Have: field.t.Shape(),
			}
		}
	}

	return &Batch{
		Observations: observations,
		Actions:      actions,
		Rewards:      rewards,
		Returns:      returns,
		Dones:        dones,
		Mask:         mask,
	}, nil
}

// BatchSize returns the number of trajectory slices in the batch
func (b *Batch) BatchSize() int {
	return b.Observations.Shape()[0]
}

// SeqLen returns the number of timesteps in each trajectory slice
func (b *Batch) SeqLen() int {
	return b.Observations.Shape()[1]
}
