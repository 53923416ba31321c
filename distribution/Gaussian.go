package distribution

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gopolicy/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// For stability, the standard deviation of the Gaussian distribution
// should be offset from 0.
const stdOffset float64 = 1e-3

// Log standard deviations are clipped to this range before
// exponentiation so that an untrained network head cannot produce
// degenerate or overflowing standard deviations.
const (
	logStdMin float64 = -20.0
	logStdMax float64 = 2.0
)

// Gaussian implements a diagonal Gaussian distribution over
// continuous actions with dims dimensions. Each parameter vector
// holds 2*dims values: the dims action means followed by the dims log
// standard deviations, matching the two-headed mean/log-std network
// layout.
type Gaussian struct {
	dims   int
	normal distuv.Rander
}

// NewGaussian creates and returns a new diagonal Gaussian
// distribution over actions with dims dimensions. The seed parameter
// determines the seed of the distribution's action sampler.
func NewGaussian(dims int, seed uint64) (*Gaussian, error) {
	if dims < 1 {
		return nil, fmt.Errorf("newgaussian: action dimensions must be "+
			"positive \n\twant(>= 1)\n\thave(%v)", dims)
	}

	source := rand.NewSource(seed)
	normal := distuv.Normal{Mu: 0.0, Sigma: 1.0, Src: source}
	return &Gaussian{dims: dims, normal: normal}, nil
}

// ParamDims returns the number of parameters per timestep: dims means
// followed by dims log standard deviations.
func (g *Gaussian) ParamDims() int {
	return 2 * g.dims
}

// stddev returns the standard deviation encoded by a log-std
// parameter
func (g *Gaussian) stddev(logStd float64) float64 {
	return math.Exp(floatutils.Clip(logStd, logStdMin, logStdMax)) +
		stdOffset
}

// LogProb returns the log density of each action vector in actions
// under the Gaussian parameters in params. The actions tensor must
// have the leading shape of params with a trailing axis of dims; the
// returned tensor has the leading shape of params.
func (g *Gaussian) LogProb(params,
	actions *tensor.Dense) (*tensor.Dense, error) {
	leading, rows, err := paramRows("logprob", params, g.ParamDims())
	if err != nil {
		return nil, err
	}

	wantActions := append(leading.Clone(), g.dims)
	if !actions.Shape().Eq(wantActions) {
		return nil, fmt.Errorf("logprob: illegal actions shape "+
			"\n\twant(%v)\n\thave(%v)", wantActions, actions.Shape())
	}

	paramData := params.Data().([]float64)
	actionData := actions.Data().([]float64)
	logProbs := make([]float64, rows)
	for i := 0; i < rows; i++ {
		means := paramData[i*2*g.dims : i*2*g.dims+g.dims]
		logStds := paramData[i*2*g.dims+g.dims : (i+1)*2*g.dims]
		action := actionData[i*g.dims : (i+1)*g.dims]

		logProb := 0.0
		for j := 0; j < g.dims; j++ {
			std := g.stddev(logStds[j])
			z := (action[j] - means[j]) / std
			logProb -= 0.5*z*z + math.Log(std) +
				0.5*math.Log(2.0*math.Pi)
		}
		logProbs[i] = logProb
	}

	return tensor.New(tensor.WithShape(leading...),
		tensor.WithBacking(logProbs)), nil
}

// Entropy returns the entropy of the Gaussian held in each parameter
// vector: Σ_j (1 + ln(2π))/2 + ln(σ_j).
func (g *Gaussian) Entropy(params *tensor.Dense) (*tensor.Dense, error) {
	leading, rows, err := paramRows("entropy", params, g.ParamDims())
	if err != nil {
		return nil, err
	}

	paramData := params.Data().([]float64)
	entropies := make([]float64, rows)
	for i := 0; i < rows; i++ {
		logStds := paramData[i*2*g.dims+g.dims : (i+1)*2*g.dims]

		h := 0.0
		for _, logStd := range logStds {
			h += 0.5*(1.0+math.Log(2.0*math.Pi)) +
				math.Log(g.stddev(logStd))
		}
		entropies[i] = h
	}

	return tensor.New(tensor.WithShape(leading...),
		tensor.WithBacking(entropies)), nil
}

// Sample draws one action vector per parameter vector by computing
// action := μ + σ * ɛ with ɛ ~ N(0, 1), similar to the
// reparameterization trick.
func (g *Gaussian) Sample(params *tensor.Dense) (*tensor.Dense, error) {
	leading, rows, err := paramRows("sample", params, g.ParamDims())
	if err != nil {
		return nil, err
	}

	paramData := params.Data().([]float64)
	sampled := make([]float64, rows*g.dims)
	for i := 0; i < rows; i++ {
		means := paramData[i*2*g.dims : i*2*g.dims+g.dims]
		logStds := paramData[i*2*g.dims+g.dims : (i+1)*2*g.dims]

		for j := 0; j < g.dims; j++ {
			std := g.stddev(logStds[j])
			sampled[i*g.dims+j] = means[j] + std*g.normal.Rand()
		}
	}

	shape := append(leading.Clone(), g.dims)
	return tensor.New(tensor.WithShape(shape...),
		tensor.WithBacking(sampled)), nil
}
