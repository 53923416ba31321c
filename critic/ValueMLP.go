package critic

import (
	"fmt"

	"github.com/samuelfneumann/gopolicy/trajectory"
	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ValueMLP implements a state-value baseline parameterized by a
// multi-layered perceptron with ReLU hidden activations and a single
// linear output per state, the actor-critic case. The network runs
// batchwise: observations of a trajectory batch are flattened to a
// (batch size * seq len, features) matrix, pushed through the
// network in one forward pass, and the predictions reshaped back to
// (batch size, seq len).
//
// The computational graph is built for a fixed batch size and
// sequence length, so a ValueMLP only accepts trajectory batches of
// the shape it was constructed for. Weight updates are an external
// concern: a trainer holding the Learnables can step them with any
// gorgonia solver.
type ValueMLP struct {
	g          *G.ExprGraph
	input      *G.Node
	prediction *G.Node
	predVal    G.Value
	learnables G.Nodes
	vm         G.VM

	features  int
	batchSize int
	seqLen    int
}

// NewValueMLP creates and returns a new MLP state-value baseline for
// trajectory batches of the given batch size and sequence length,
// whose observations hold features values per timestep. The network
// has len(hiddenSizes) ReLU hidden layers followed by a linear output
// layer; init determines the weight initialization scheme.
func NewValueMLP(features, batchSize, seqLen int, hiddenSizes []int,
	init G.InitWFn) (*ValueMLP, error) {
	if features < 1 || batchSize < 1 || seqLen < 1 {
		return nil, fmt.Errorf("newvaluemlp: illegal dimensions "+
			"(features, batch, seq) = (%v, %v, %v)", features,
			batchSize, seqLen)
	}

	g := G.NewGraph()
	rows := batchSize * seqLen
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(rows, features),
		G.WithName("observations"),
		G.WithInit(G.Zeroes()),
	)

	var learnables G.Nodes
	pred := input
	in := features
	sizes := append(append([]int{}, hiddenSizes...), 1)
	for i, out := range sizes {
		weights := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(in, out),
			G.WithName(fmt.Sprintf("valueL%vW", i)),
			G.WithInit(init),
		)
		bias := G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, out),
			G.WithName(fmt.Sprintf("valueL%vB", i)),
			G.WithInit(G.Zeroes()),
		)
		learnables = append(learnables, weights, bias)

		pred = G.Must(G.Mul(pred, weights))

		// Broadcast the bias weights to all samples along the batch
		// dimension
		pred = G.Must(G.BroadcastAdd(pred, bias, nil, []byte{0}))

		if i < len(hiddenSizes) {
			pred = G.Must(G.Rectify(pred))
		}
		in = out
	}

	v := &ValueMLP{
		g:          g,
		input:      input,
		prediction: pred,
		learnables: learnables,
		features:   features,
		batchSize:  batchSize,
		seqLen:     seqLen,
	}
	G.Read(v.prediction, &v.predVal)
	v.vm = G.NewTapeMachine(g)

	return v, nil
}

// Values runs the forward pass of the network over every observation
// in the batch and returns the predicted state values with shape
// (batch size, seq len).
func (v *ValueMLP) Values(b *trajectory.Batch) (*tensor.Dense, error) {
	shape := b.Observations.Shape()
	if shape[0] != v.batchSize || shape[1] != v.seqLen {
		return nil, fmt.Errorf("values: illegal batch dimensions "+
			"\n\twant(%v)\n\thave(%v)",
			tensor.Shape{v.batchSize, v.seqLen}, shape[:2])
	}
	features := 1
	for _, dim := range shape[2:] {
		features *= dim
	}
	if features != v.features {
		return nil, fmt.Errorf("values: illegal observation features "+
			"\n\twant(%v)\n\thave(%v)", v.features, features)
	}

	// (batch, time, features...) flattens row-major to exactly the
	// (batch*time, features) matrix the input node expects
	obs := tensorutils.Float64s(b.Observations)
	backing := make([]float64, len(obs))
	copy(backing, obs)
	inputTensor := tensor.New(
		tensor.WithShape(v.batchSize*v.seqLen, v.features),
		tensor.WithBacking(backing),
	)
	if err := G.Let(v.input, inputTensor); err != nil {
		return nil, fmt.Errorf("values: could not set input: %v", err)
	}

	if err := v.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("values: forward pass failed: %v", err)
	}
	out := v.predVal.Data().([]float64)
	values := make([]float64, len(out))
	copy(values, out)
	v.vm.Reset()

	return tensor.New(
		tensor.WithShape(v.batchSize, v.seqLen),
		tensor.WithBacking(values),
	), nil
}

// Graph returns the computational graph of the ValueMLP
func (v *ValueMLP) Graph() *G.ExprGraph {
	return v.g
}

// Learnables returns the learnable nodes of the network, in layer
// order with each layer's weights preceding its bias.
func (v *ValueMLP) Learnables() G.Nodes {
	return v.learnables
}

// Features returns the number of features in a single observation
func (v *ValueMLP) Features() int {
	return v.features
}
