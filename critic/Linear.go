package critic

import (
	"fmt"

	"github.com/samuelfneumann/gopolicy/trajectory"
	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Linear returns a linear baseline predicting w·observation for every
// timestep. The weight vector length must equal the number of
// features per observation, i.e. the product of the trailing
// observation axes; scalar observations use a length-1 weight vector.
func Linear(weights *mat.VecDense) func(*trajectory.Batch) (*tensor.Dense,
	error) {
	return func(b *trajectory.Batch) (*tensor.Dense, error) {
		shape := b.Observations.Shape()
		features := 1
		for _, dim := range shape[2:] {
			features *= dim
		}
		if features != weights.Len() {
			return nil, fmt.Errorf("linear: illegal observation "+
				"features \n\twant(%v)\n\thave(%v)", weights.Len(),
				features)
		}

		obs := tensorutils.Float64s(b.Observations)
		rows := b.BatchSize() * b.SeqLen()
		values := make([]float64, rows)
		for i := 0; i < rows; i++ {
			row := mat.NewVecDense(features,
				obs[i*features:(i+1)*features])
			values[i] = mat.Dot(weights, row)
		}

		return tensor.New(
			tensor.WithShape(b.BatchSize(), b.SeqLen()),
			tensor.WithBacking(values),
		), nil
	}
}
