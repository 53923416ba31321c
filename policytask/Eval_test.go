package policytask

import (
	"math"
	"testing"

	"github.com/samuelfneumann/gopolicy/utils/tensorutils"
	"gorgonia.org/tensor"
)

func TestEntropyUniformLogits(t *testing.T) {
	task := testTask(t, testConfig(t, 0))
	eval, err := NewEvalTask(task, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Uniform logits over numActions actions: entropy is
	// ln(numActions) per timestep, so the mean is too
	policyInputs := tensor.New(tensor.WithShape(2, 3, numActions),
		tensor.WithBacking(make([]float64, 2*3*numActions)))

	entropy, err := eval.Entropy(policyInputs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Log(float64(numActions))
	if math.Abs(entropy-want) > 1e-12 {
		t.Errorf("wrong entropy \n\twant(%v)\n\thave(%v)", want, entropy)
	}

	// The actions and weights arguments must not influence the
	// metric
	junk := tensor.New(tensor.WithShape(2, 3),
		tensor.WithBacking([]float64{9, 9, 9, 9, 9, 9}))
	withJunk, err := eval.Entropy(policyInputs, junk, junk)
	if err != nil {
		t.Fatal(err)
	}
	if withJunk != entropy {
		t.Errorf("entropy depends on actions/weights \n\twant(%v)"+
			"\n\thave(%v)", entropy, withJunk)
	}
}

func TestEntropyHeadSelector(t *testing.T) {
	c := testConfig(t, 0)

	// Network output carries two heads of numActions logits each;
	// the selector keeps the first head
	c.HeadSelector = func(out *tensor.Dense) (*tensor.Dense, error) {
		view, err := out.Slice(nil, nil,
			tensorutils.NewSlice(0, numActions, 1))
		if err != nil {
			return nil, err
		}
		return view.Materialize().(*tensor.Dense), nil
	}
	task := testTask(t, c)
	eval, err := NewEvalTask(task, 1)
	if err != nil {
		t.Fatal(err)
	}

	policyInputs := tensor.New(tensor.WithShape(1, 2, 2*numActions),
		tensor.WithBacking(make([]float64, 1*2*2*numActions)))
	entropy, err := eval.Entropy(policyInputs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := math.Log(float64(numActions))
	if math.Abs(entropy-want) > 1e-12 {
		t.Errorf("wrong entropy \n\twant(%v)\n\thave(%v)", want, entropy)
	}
}

func TestNewEvalTask(t *testing.T) {
	task := testTask(t, testConfig(t, 0))

	eval, err := NewEvalTask(task, 0)
	if err != nil {
		t.Fatal(err)
	}
	if eval.NEvalBatches() != 1 {
		t.Errorf("wrong default batch count \n\twant(%v)\n\thave(%v)",
			1, eval.NEvalBatches())
	}
	if len(eval.Metrics()) != 1 {
		t.Errorf("wrong metric count \n\twant(%v)\n\thave(%v)", 1,
			len(eval.Metrics()))
	}

	if _, err := NewEvalTask(task, -1); err == nil {
		t.Error("expected error for negative batch count")
	}
	if _, err := NewEvalTask(nil, 1); err == nil {
		t.Error("expected error for nil train task")
	}
}
