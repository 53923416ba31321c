package distribution

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gopolicy/utils/floatutils"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

// Categorical implements a categorical distribution over n discrete
// actions, parameterized by unnormalized log probabilities (logits).
// Actions are represented as float64 action indices in [0, n).
type Categorical struct {
	n   int
	rng *rand.Rand // RNG for breaking sampling ties
}

// NewCategorical creates and returns a new categorical distribution
// over n actions. The seed parameter determines the seed of the
// distribution's action sampler.
func NewCategorical(n int, seed uint64) (*Categorical, error) {
	if n < 2 {
		return nil, fmt.Errorf("newcategorical: distribution needs at "+
			"least 2 actions \n\twant(>= 2)\n\thave(%v)", n)
	}

	source := rand.NewSource(seed)
	return &Categorical{n: n, rng: rand.New(source)}, nil
}

// ParamDims returns the number of logits per timestep
func (c *Categorical) ParamDims() int {
	return c.n
}

// LogProb returns the log probability of each action index in actions
// under the logits in params. The actions tensor must have the
// leading shape of params; the returned tensor shares that shape.
func (c *Categorical) LogProb(params,
	actions *tensor.Dense) (*tensor.Dense, error) {
	leading, rows, err := paramRows("logprob", params, c.n)
	if err != nil {
		return nil, err
	}
	if !actions.Shape().Eq(leading) {
		return nil, fmt.Errorf("logprob: illegal actions shape "+
			"\n\twant(%v)\n\thave(%v)", leading, actions.Shape())
	}

	logits := params.Data().([]float64)
	actionData := actions.Data().([]float64)
	logProbs := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := logits[i*c.n : (i+1)*c.n]
		action := int(actionData[i])
		if action < 0 || action >= c.n {
			return nil, fmt.Errorf("logprob: action index out of "+
				"range \n\twant([0, %v))\n\thave(%v)", c.n, action)
		}
		logProbs[i] = row[action] - floatutils.LogSumExp(row)
	}

	return tensor.New(tensor.WithShape(leading...),
		tensor.WithBacking(logProbs)), nil
}

// Entropy returns the entropy of the categorical distribution held in
// each row of logits. For uniform logits over n actions the entropy
// is ln(n).
func (c *Categorical) Entropy(params *tensor.Dense) (*tensor.Dense, error) {
	leading, rows, err := paramRows("entropy", params, c.n)
	if err != nil {
		return nil, err
	}

	logits := params.Data().([]float64)
	entropies := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := logits[i*c.n : (i+1)*c.n]
		lse := floatutils.LogSumExp(row)

		// H = -Σ p ln p with ln p = logit - logsumexp
		h := 0.0
		for _, logit := range row {
			logProb := logit - lse
			h -= math.Exp(logProb) * logProb
		}
		entropies[i] = h
	}

	return tensor.New(tensor.WithShape(leading...),
		tensor.WithBacking(entropies)), nil
}

// Sample draws one action index per logit row using the Gumbel-max
// trick. Exact ties between perturbed logits are broken uniformly at
// random.
func (c *Categorical) Sample(params *tensor.Dense) (*tensor.Dense, error) {
	leading, rows, err := paramRows("sample", params, c.n)
	if err != nil {
		return nil, err
	}

	logits := params.Data().([]float64)
	sampled := make([]float64, rows)
	perturbed := make([]float64, c.n)
	for i := 0; i < rows; i++ {
		row := logits[i*c.n : (i+1)*c.n]
		for j, logit := range row {
			gumbel := -math.Log(-math.Log(c.rng.Float64()))
			perturbed[j] = logit + gumbel
		}

		_, indices := floatutils.MaxSlice(perturbed)
		sampled[i] = float64(indices[c.rng.Intn(len(indices))])
	}

	return tensor.New(tensor.WithShape(leading...),
		tensor.WithBacking(sampled)), nil
}
