// Package policytask encapsulates the training and evaluation of a
// policy network into simple, replaceable components. A TrainTask
// turns a stream of sampled trajectory batches into
// (observations, actions, weights) training examples, where the
// weights carry advantage estimates for the policy log loss; an
// EvalTask computes diagnostic metrics over the same stream. The
// optimizer, the network, and the trajectory producer all live
// outside this package and are only referenced through narrow
// injected interfaces.
package policytask

import (
	"fmt"

	"github.com/samuelfneumann/gopolicy/advantage"
	"github.com/samuelfneumann/gopolicy/distribution"
	"github.com/samuelfneumann/gopolicy/trajectory"
	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// DefaultNormalizationEpsilon is added to the standard deviation
// denominator during advantage normalization so that zero-variance
// advantage batches divide cleanly instead of erroring.
const DefaultNormalizationEpsilon = 1e-5

// ValueFn calculates the baseline for advantage estimation, mapping a
// trajectory batch to a value tensor of shape (batch size, seq len).
// Actor-critic algorithms substitute a value-network forward pass as
// the ValueFn; see the critic package for ready-made baselines.
type ValueFn func(*trajectory.Batch) (*tensor.Dense, error)

// Example is one policy training example: a trajectory batch trimmed
// to its advantage sequence length, with advantage-derived weights
// for the policy log loss. Observations and Actions keep their
// trailing axes; Weights has shape (batch size, adv seq len) exactly.
// The positional order (observations, actions, weights) matches what
// a loss or metric evaluator consumes.
//
// Examples are transient: each is freshly allocated and meant to be
// consumed immediately by the trainer.
type Example struct {
	Observations *tensor.Dense
	Actions      *tensor.Dense
	Weights      *tensor.Dense
}

// Config describes the construction of a TrainTask. The zero value
// is not usable: PolicyDistribution, AdvantageEstimator, and ValueFn
// are required. NewConfig fills in every default.
type Config struct {
	// PolicyDistribution is the distribution over actions predicted
	// by the policy network. The task itself never samples from it;
	// it is retained so that the loss and evaluation wiring can share
	// a single distribution instance.
	PolicyDistribution distribution.Distribution

	// AdvantageEstimator computes advantages from rewards, returns,
	// dones, and baseline values.
	AdvantageEstimator advantage.Estimator

	// ValueFn computes the advantage baseline.
	ValueFn ValueFn

	// WeightFn transforms advantages into policy-loss weights.
	// Defaults to Identity.
	WeightFn WeightFn

	// NormalizeAdvantages standardizes advantages over the entire
	// batch before weighting.
	NormalizeAdvantages bool

	// NormalizationEpsilon is added to the standard deviation
	// denominator when normalizing. Values <= 0 fall back to
	// DefaultNormalizationEpsilon.
	NormalizationEpsilon float64

	// HeadSelector picks the policy head out of the raw network
	// output in multitask training. Defaults to the identity.
	HeadSelector Selector
}

// NewConfig returns a Config with the required components set and
// every optional field at its default: identity weight function,
// advantage normalization on with DefaultNormalizationEpsilon, and
// the identity head selector.
func NewConfig(dist distribution.Distribution,
	estimator advantage.Estimator, valueFn ValueFn) Config {
	return Config{
		PolicyDistribution:   dist,
		AdvantageEstimator:   estimator,
		ValueFn:              valueFn,
		WeightFn:             Identity,
		NormalizeAdvantages:  true,
		NormalizationEpsilon: DefaultNormalizationEpsilon,
		HeadSelector:         IdentitySelector,
	}
}

// Validate checks that the required components of the Config are set
func (c Config) Validate() error {
	if c.PolicyDistribution == nil {
		return fmt.Errorf("validate: no policy distribution given")
	}
	if c.AdvantageEstimator == nil {
		return fmt.Errorf("validate: no advantage estimator given")
	}
	if c.ValueFn == nil {
		return fmt.Errorf("validate: no value function given")
	}
	return nil
}

// TrainTask converts trajectory batches into policy training
// examples, encapsulating baseline estimation, advantage estimation,
// optional normalization, weighting, and margin trimming. Its
// configuration is immutable after construction, and Batch is a pure
// transform, so a TrainTask is safe for concurrent use as long as
// concurrent callers operate on independently pulled batches.
type TrainTask struct {
	stream    trajectory.Stream
	dist      distribution.Distribution
	estimator advantage.Estimator
	valueFn   ValueFn
	weightFn  WeightFn
	normalize bool
	epsilon   float64
	selector  Selector
}

// NewTrainTask creates and returns a new TrainTask consuming
// trajectory batches from stream according to the given Config.
func NewTrainTask(stream trajectory.Stream, c Config) (*TrainTask,
	error) {
	if stream == nil {
		return nil, fmt.Errorf("newtraintask: no trajectory stream given")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newtraintask: %v", err)
	}

	weightFn := c.WeightFn
	if weightFn == nil {
		weightFn = Identity
	}
	epsilon := c.NormalizationEpsilon
	if epsilon <= 0 {
		epsilon = DefaultNormalizationEpsilon
	}
	selector := c.HeadSelector
	if selector == nil {
		selector = IdentitySelector
	}

	return &TrainTask{
		stream:    stream,
		dist:      c.PolicyDistribution,
		estimator: c.AdvantageEstimator,
		valueFn:   c.ValueFn,
		weightFn:  weightFn,
		normalize: c.NormalizeAdvantages,
		epsilon:   epsilon,
		selector:  selector,
	}, nil
}

// PolicyDistribution returns the distribution over actions that the
// task trains, shared with the loss and evaluation wiring.
func (p *TrainTask) PolicyDistribution() distribution.Distribution {
	return p.dist
}

// HeadSelector returns the selector applied to raw network output
// before the policy loss sees it.
func (p *TrainTask) HeadSelector() Selector {
	return p.selector
}

// NextExample pulls the next trajectory batch from the task's stream
// and maps it through Batch. This is the labeled-data stream consumed
// by a trainer: one pull per training step, no buffering or
// lookahead. Finite streams yield trajectory.ErrStreamDone once
// exhausted.
func (p *TrainTask) NextExample() (*Example, error) {
	b, err := p.stream.Next()
	if err != nil {
		return nil, err
	}
	return p.Batch(b)
}

// Batch computes a policy training example from a trajectory batch.
// The only errors are contract violations between the trajectory
// producer, the value function, and the advantage estimator, reported
// as *trajectory.ShapeError before any arithmetic is done on the
// offending tensors; they indicate misconfiguration and should be
// treated as fatal.
func (p *TrainTask) Batch(b *trajectory.Batch) (*Example, error) {
	shape := b.Observations.Shape()
	if len(shape) < 2 {
		return nil, &trajectory.ShapeError{
			Op:   "batch: observations",
			Want: tensor.Shape{-1, -1},
			Have: shape,
		}
	}
	batchSize, seqLen := shape[0], shape[1]

	actShape := b.Actions.Shape()
	if len(actShape) < 2 || actShape[0] != batchSize ||
		actShape[1] != seqLen {
		return nil, &trajectory.ShapeError{
			Op:   "batch: actions",
			Want: tensor.Shape{batchSize, seqLen},
			Have: actShape,
		}
	}
	if !b.Mask.Shape().Eq(tensor.Shape{batchSize, seqLen}) {
		return nil, &trajectory.ShapeError{
			Op:   "batch: mask",
			Want: tensor.Shape{batchSize, seqLen},
			Have: b.Mask.Shape(),
		}
	}

	// Compute the value, i.e. baseline in advantage computation
	values, err := p.valueFn(b)
	if err != nil {
		return nil, fmt.Errorf("batch: could not compute values: %v", err)
	}
	if !values.Shape().Eq(tensor.Shape{batchSize, seqLen}) {
		return nil, &trajectory.ShapeError{
			Op:   "batch: values",
			Want: tensor.Shape{batchSize, seqLen},
			Have: values.Shape(),
		}
	}

	// Compute the advantages using the chosen advantage estimator
	advantages, err := p.estimator(b.Rewards, b.Returns, b.Dones, values)
	if err != nil {
		return nil, fmt.Errorf("batch: could not estimate advantages: %v",
			err)
	}

	// The advantage sequence may be shorter than the input sequence
	// by a uniform margin: timesteps consumed by the estimator's
	// lookahead. Its length determines the target length that the
	// training batch is trimmed to. Example for margin 2:
	//	observations.Shape() == (4, 5, 6)
	//	rewards.Shape() == values.Shape() == (4, 5)
	//	advantages.Shape() == (4, 3)
	advShape := advantages.Shape()
	if len(advShape) != 2 || advShape[0] != batchSize ||
		advShape[1] > seqLen {
		return nil, &trajectory.ShapeError{
			Op:   "batch: advantages",
			Want: tensor.Shape{batchSize, seqLen},
			Have: advShape,
		}
	}
	advSeqLen := advShape[1]

	advData := tensorutils.Float64s(advantages)
	if p.normalize {
		mean := stat.Mean(advData, nil)
		std := stat.PopStdDev(advData, nil)
		for i := range advData {
			advData[i] = (advData[i] - mean) / (std + p.epsilon)
		}
	}

	// Trim observations, actions and mask to match the target length
	observations, err := tensorutils.TrimTime(b.Observations, advSeqLen)
	if err != nil {
		return nil, fmt.Errorf("batch: %v", err)
	}
	actions, err := tensorutils.TrimTime(b.Actions, advSeqLen)
	if err != nil {
		return nil, fmt.Errorf("batch: %v", err)
	}
	mask, err := tensorutils.TrimTime(b.Mask, advSeqLen)
	if err != nil {
		return nil, fmt.Errorf("batch: %v", err)
	}

	// Compute advantage-based weights for the log loss in policy
	// training. Masked-out timesteps get weight 0 no matter their
	// advantage.
	maskData := tensorutils.Float64s(mask)
	weightData := make([]float64, batchSize*advSeqLen)
	for i := range weightData {
		weightData[i] = p.weightFn(advData[i]) * maskData[i]
	}
	weights := tensor.New(
		tensor.WithShape(batchSize, advSeqLen),
		tensor.WithBacking(weightData),
	)
	if !weights.Shape().Eq(tensor.Shape{batchSize, advSeqLen}) {
		return nil, &trajectory.ShapeError{
			Op:   "batch: weights",
			Want: tensor.Shape{batchSize, advSeqLen},
			Have: weights.Shape(),
		}
	}

	return &Example{
		Observations: observations,
		Actions:      actions,
		Weights:      weights,
	}, nil
}
