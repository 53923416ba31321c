// Package advantage implements advantage estimation for
// policy-gradient learning
package advantage

import (
	"fmt"

	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// Estimator estimates action advantages for a batch of trajectory
// slices. All four inputs share the shape (batch size, seq len). The
// returned tensor has shape (batch size, seq len - margin) for a
// uniform margin >= 0: an estimator may shrink the time axis from the
// right to account for timesteps consumed as lookahead, but it may
// never grow or reorder it.
//
// Estimators are pure functions of their arguments and hold no state
// across calls.
type Estimator func(rewards, returns, dones,
	values *tensor.Dense) (*tensor.Dense, error)

// MonteCarlo returns an Estimator computing Monte Carlo advantages
//
//	A(s_t, a_t) = G_t - V(s_t)
//
// where G_t is the empirical return supplied by the trajectory
// producer. The margin argument sets the number of trailing timesteps
// to trim, for parity with bootstrapping estimators used in the same
// training configuration; margin 0 keeps the full sequence.
func MonteCarlo(margin int) Estimator {
	if margin < 0 {
		panic(fmt.Sprintf("montecarlo: margin must be non-negative "+
			"\n\twant(>= 0)\n\thave(%v)", margin))
	}

	return func(rewards, returns, dones,
		values *tensor.Dense) (*tensor.Dense, error) {
		batchSize, seqLen, err := checkShapes("montecarlo", rewards,
			returns, dones, values, margin)
		if err != nil {
			return nil, err
		}
		advSeqLen := seqLen - margin

		retData := tensorutils.Float64s(returns)
		valData := tensorutils.Float64s(values)
		adv := make([]float64, batchSize*advSeqLen)
		for b := 0; b < batchSize; b++ {
			row := adv[b*advSeqLen : (b+1)*advSeqLen]
			floats.SubTo(row, retData[b*seqLen:b*seqLen+advSeqLen],
				valData[b*seqLen:b*seqLen+advSeqLen])
		}

		return tensor.New(tensor.WithShape(batchSize, advSeqLen),
			tensor.WithBacking(adv)), nil
	}
}

// TDK returns an Estimator computing k-step temporal difference
// advantages
//
//	A(s_t, a_t) = r_t + ℽ r_{t+1} + ... + ℽ^{k-1} r_{t+k-1}
//	              + ℽ^k V(s_{t+k}) - V(s_t)
//
// with the sum and the bootstrap cut at episode boundaries flagged by
// dones. The resulting margin is k, so the returned advantages have
// seq len - k timesteps.
func TDK(k int, gamma float64) Estimator {
	if k < 1 {
		panic(fmt.Sprintf("tdk: lookahead must be positive "+
			"\n\twant(>= 1)\n\thave(%v)", k))
	}
	if gamma < 0 || gamma > 1 {
		panic(fmt.Sprintf("tdk: discount out of range [0, 1]: %v", gamma))
	}

	return func(rewards, returns, dones,
		values *tensor.Dense) (*tensor.Dense, error) {
		batchSize, seqLen, err := checkShapes("tdk", rewards, returns,
			dones, values, k)
		if err != nil {
			return nil, err
		}
		advSeqLen := seqLen - k

		rewData := tensorutils.Float64s(rewards)
		doneData := tensorutils.Float64s(dones)
		valData := tensorutils.Float64s(values)
		adv := make([]float64, batchSize*advSeqLen)
		for b := 0; b < batchSize; b++ {
			rew := rewData[b*seqLen : (b+1)*seqLen]
			done := doneData[b*seqLen : (b+1)*seqLen]
			val := valData[b*seqLen : (b+1)*seqLen]

			for t := 0; t < advSeqLen; t++ {
				// live tracks whether the episode is still running;
				// rewards and bootstrap past a done do not count.
				target, discount, live := 0.0, 1.0, 1.0
				for i := 0; i < k; i++ {
					target += live * discount * rew[t+i]
					live *= 1 - done[t+i]
					discount *= gamma
				}
				target += live * discount * val[t+k]

				adv[b*advSeqLen+t] = target - val[t]
			}
		}

		return tensor.New(tensor.WithShape(batchSize, advSeqLen),
			tensor.WithBacking(adv)), nil
	}
}

// GAE returns an Estimator computing generalized advantage estimates -
// GAE(λ) - following https://arxiv.org/abs/1506.02438, truncated to a
// margin-length lookahead horizon:
//
//	A(s_t, a_t) = Σ_{i<margin} (ℽλ)^i δ_{t+i}
//	δ_s        = r_s + ℽ V(s_{s+1}) - V(s_s)
//
// with the sum and each bootstrap term cut at episode boundaries
// flagged by dones. The returned advantages have seq len - margin
// timesteps; margin must be at least 1 since every δ looks one step
// ahead.
func GAE(gamma, lambda float64, margin int) Estimator {
	if margin < 1 {
		panic(fmt.Sprintf("gae: margin must be positive "+
			"\n\twant(>= 1)\n\thave(%v)", margin))
	}
	if gamma < 0 || gamma > 1 {
		panic(fmt.Sprintf("gae: discount out of range [0, 1]: %v", gamma))
	}
	if lambda < 0 || lambda > 1 {
		panic(fmt.Sprintf("gae: lambda out of range [0, 1]: %v", lambda))
	}

	return func(rewards, returns, dones,
		values *tensor.Dense) (*tensor.Dense, error) {
		batchSize, seqLen, err := checkShapes("gae", rewards, returns,
			dones, values, margin)
		if err != nil {
			return nil, err
		}
		advSeqLen := seqLen - margin

		rewData := tensorutils.Float64s(rewards)
		doneData := tensorutils.Float64s(dones)
		valData := tensorutils.Float64s(values)
		adv := make([]float64, batchSize*advSeqLen)
		for b := 0; b < batchSize; b++ {
			rew := rewData[b*seqLen : (b+1)*seqLen]
			done := doneData[b*seqLen : (b+1)*seqLen]
			val := valData[b*seqLen : (b+1)*seqLen]

			for t := 0; t < advSeqLen; t++ {
				sum, discount, live := 0.0, 1.0, 1.0
				for i := 0; i < margin; i++ {
					s := t + i
					delta := rew[s] + gamma*(1-done[s])*val[s+1] - val[s]
					sum += live * discount * delta
					live *= 1 - done[s]
					discount *= gamma * lambda
				}
				adv[b*advSeqLen+t] = sum
			}
		}

		return tensor.New(tensor.WithShape(batchSize, advSeqLen),
			tensor.WithBacking(adv)), nil
	}
}

// checkShapes validates that all estimator inputs are (batch size,
// seq len) tensors of a common shape and that the margin leaves at
// least one timestep.
func checkShapes(op string, rewards, returns, dones,
	values *tensor.Dense, margin int) (batchSize, seqLen int, err error) {
	shape := rewards.Shape()
	if len(shape) != 2 {
		return 0, 0, fmt.Errorf("%v: rewards must be a matrix "+
			"\n\twant(2 axes)\n\thave(%v)", op, shape)
	}

	for name, t := range map[string]*tensor.Dense{
		"returns": returns, "dones": dones, "values": values,
	} {
		if !t.Shape().Eq(shape) {
			return 0, 0, fmt.Errorf("%v: illegal %v shape "+
				"\n\twant(%v)\n\thave(%v)", op, name, shape, t.Shape())
		}
	}

	if margin >= shape[1] {
		return 0, 0, fmt.Errorf("%v: margin %v leaves no timesteps in "+
			"sequences of length %v", op, margin, shape[1])
	}
	return shape[0], shape[1], nil
}
