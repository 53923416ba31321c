package policytask

import (
	"fmt"

	"github.com/samuelfneumann/gopolicy/distribution"
	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// Metric is a scalar evaluation metric over one evaluation batch. Its
// arguments mirror the training example order consumed by the loss:
// the raw policy-network output for the batch's observations, the
// actions taken, and the policy-loss weights. A Metric need not use
// all three.
type Metric func(policyInputs, actions,
	weights *tensor.Dense) (float64, error)

// EvalTask computes diagnostic metrics for a trained policy over the
// same labeled stream its TrainTask consumes, without recomputing
// advantages. It shares the train task's policy distribution and head
// selector so that evaluation sees exactly the wiring training does.
type EvalTask struct {
	train        *TrainTask
	dist         distribution.Distribution
	selector     Selector
	nEvalBatches int
}

// NewEvalTask creates and returns a new EvalTask evaluating the
// policy trained by train. Each evaluation round consumes
// nEvalBatches examples from the shared stream; 0 selects the default
// of a single batch.
func NewEvalTask(train *TrainTask, nEvalBatches int) (*EvalTask, error) {
	if train == nil {
		return nil, fmt.Errorf("newevaltask: no train task given")
	}
	if nEvalBatches < 0 {
		return nil, fmt.Errorf("newevaltask: batch count must be "+
			"non-negative \n\twant(>= 0)\n\thave(%v)", nEvalBatches)
	}
	if nEvalBatches == 0 {
		nEvalBatches = 1
	}

	return &EvalTask{
		train:        train,
		dist:         train.PolicyDistribution(),
		selector:     train.HeadSelector(),
		nEvalBatches: nEvalBatches,
	}, nil
}

// NEvalBatches returns the number of examples consumed per
// evaluation round.
func (e *EvalTask) NEvalBatches() int {
	return e.nEvalBatches
}

// NextExample pulls the next labeled example through the shared
// TrainTask, so that evaluation and training observe the same stream
// contract.
func (e *EvalTask) NextExample() (*Example, error) {
	return e.train.NextExample()
}

// Metrics returns the task's evaluation metrics. Currently the only
// metric is Entropy; additional metrics plug in as more functions of
// the same Metric signature.
func (e *EvalTask) Metrics() []Metric {
	return []Metric{e.Entropy}
}

// Entropy computes the mean entropy of the policy distribution over
// every timestep of an evaluation batch. Only policyInputs - the raw
// network output for the batch's observations - is consulted; the
// actions and weights arguments are ignored and may be nil. The
// task's head selector is applied to policyInputs first, mirroring
// the training-side loss wiring.
func (e *EvalTask) Entropy(policyInputs, actions,
	weights *tensor.Dense) (float64, error) {
	selected, err := e.selector(policyInputs)
	if err != nil {
		return 0, fmt.Errorf("entropy: could not select policy head: %v",
			err)
	}

	entropies, err := e.dist.Entropy(selected)
	if err != nil {
		return 0, fmt.Errorf("entropy: %v", err)
	}

	return stat.Mean(tensorutils.Float64s(entropies), nil), nil
}
