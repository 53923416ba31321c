package policytask

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/samuelfneumann/gopolicy/advantage"
	"github.com/samuelfneumann/gopolicy/critic"
	"github.com/samuelfneumann/gopolicy/distribution"
	"github.com/samuelfneumann/gopolicy/trajectory"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

const numActions int = 4

// makeBatch returns a valid trajectory batch with deterministic,
// non-constant data: observations and actions count upwards, returns
// vary across the batch, and the mask is all ones.
func makeBatch(t *testing.T, batchSize, seqLen,
	obsDims int) *trajectory.Batch {
	t.Helper()

	sequential := func(n int, offset float64) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = offset + float64(i)
		}
		return data
	}
	ones := make([]float64, batchSize*seqLen)
	for i := range ones {
		ones[i] = 1
	}

	obs := tensor.New(tensor.WithShape(batchSize, seqLen, obsDims),
		tensor.WithBacking(sequential(batchSize*seqLen*obsDims, 0)))
	act := tensor.New(tensor.WithShape(batchSize, seqLen),
		tensor.WithBacking(sequential(batchSize*seqLen, 10)))
	rew := tensor.New(tensor.WithShape(batchSize, seqLen),
		tensor.WithBacking(ones))
	ret := tensor.New(tensor.WithShape(batchSize, seqLen),
		tensor.WithBacking(sequential(batchSize*seqLen, 1)))
	dones := tensor.New(tensor.WithShape(batchSize, seqLen),
		tensor.WithBacking(make([]float64, batchSize*seqLen)))
	mask := tensor.New(tensor.WithShape(batchSize, seqLen),
		tensor.WithBacking(append([]float64{}, ones...)))

	b, err := trajectory.NewBatch(obs, act, rew, ret, dones, mask)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func testTask(t *testing.T, c Config) *TrainTask {
	t.Helper()

	task, err := NewTrainTask(trajectory.NewSliceStream(), c)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func testConfig(t *testing.T, margin int) Config {
	t.Helper()

	dist, err := distribution.NewCategorical(numActions, 42)
	if err != nil {
		t.Fatal(err)
	}
	return NewConfig(dist, advantage.MonteCarlo(margin),
		critic.Constant(0))
}

func TestBatchShapes(t *testing.T) {
	const batchSize, seqLen, obsDims, margin = 2, 5, 3, 2
	task := testTask(t, testConfig(t, margin))

	example, err := task.Batch(makeBatch(t, batchSize, seqLen, obsDims))
	if err != nil {
		t.Fatal(err)
	}

	advSeqLen := seqLen - margin
	wantObs := tensor.Shape{batchSize, advSeqLen, obsDims}
	if !example.Observations.Shape().Eq(wantObs) {
		t.Errorf("wrong observation shape \n\twant(%v)\n\thave(%v)",
			wantObs, example.Observations.Shape())
	}
	wantPerStep := tensor.Shape{batchSize, advSeqLen}
	if !example.Actions.Shape().Eq(wantPerStep) {
		t.Errorf("wrong action shape \n\twant(%v)\n\thave(%v)",
			wantPerStep, example.Actions.Shape())
	}
	if !example.Weights.Shape().Eq(wantPerStep) {
		t.Errorf("wrong weight shape \n\twant(%v)\n\thave(%v)",
			wantPerStep, example.Weights.Shape())
	}
}

func TestBatchIdempotentWithoutNormalization(t *testing.T) {
	c := testConfig(t, 1)
	c.NormalizeAdvantages = false
	task := testTask(t, c)

	batch := makeBatch(t, 2, 4, 2)
	first, err := task.Batch(batch)
	if err != nil {
		t.Fatal(err)
	}
	second, err := task.Batch(batch)
	if err != nil {
		t.Fatal(err)
	}

	// Deterministic injected functions must produce bitwise-equal
	// weights across calls
	if !reflect.DeepEqual(first.Weights.Data(), second.Weights.Data()) {
		t.Errorf("weights differ across calls \n\tfirst(%v)"+
			"\n\tsecond(%v)", first.Weights.Data(),
			second.Weights.Data())
	}
}

func TestBatchNormalization(t *testing.T) {
	task := testTask(t, testConfig(t, 0))

	// The mask is all ones, so the weights are exactly the
	// normalized advantages
	example, err := task.Batch(makeBatch(t, 2, 5, 1))
	if err != nil {
		t.Fatal(err)
	}

	weights := example.Weights.Data().([]float64)
	if mean := stat.Mean(weights, nil); math.Abs(mean) > 1e-10 {
		t.Errorf("weights not centered: mean = %v", mean)
	}
	if std := stat.PopStdDev(weights, nil); math.Abs(std-1) > 1e-4 {
		t.Errorf("weights not standardized: std = %v", std)
	}
}

func TestBatchMasking(t *testing.T) {
	task := testTask(t, testConfig(t, 0))

	batch := makeBatch(t, 2, 3, 1)
	maskData := batch.Mask.Data().([]float64)
	maskData[1], maskData[4] = 0, 0

	example, err := task.Batch(batch)
	if err != nil {
		t.Fatal(err)
	}

	weights := example.Weights.Data().([]float64)
	for _, i := range []int{1, 4} {
		if weights[i] != 0 {
			t.Errorf("masked-out weight at %v is %v, not exactly 0", i,
				weights[i])
		}
	}
}

func TestBatchMarginTrim(t *testing.T) {
	const seqLen, margin = 5, 2
	c := testConfig(t, margin)
	c.NormalizeAdvantages = false
	c.WeightFn = Constant(1)
	task := testTask(t, c)

	batch := makeBatch(t, 1, seqLen, 2)
	maskData := batch.Mask.Data().([]float64)
	maskData[2] = 0

	example, err := task.Batch(batch)
	if err != nil {
		t.Fatal(err)
	}

	// The first seqLen - margin timesteps must survive verbatim
	wantObs := batch.Observations.Data().([]float64)[:6]
	if !reflect.DeepEqual(example.Observations.Data(), wantObs) {
		t.Errorf("observations not trimmed verbatim \n\twant(%v)"+
			"\n\thave(%v)", wantObs, example.Observations.Data())
	}
	wantActions := batch.Actions.Data().([]float64)[:3]
	if !reflect.DeepEqual(example.Actions.Data(), wantActions) {
		t.Errorf("actions not trimmed verbatim \n\twant(%v)"+
			"\n\thave(%v)", wantActions, example.Actions.Data())
	}

	// With a constant weight function and no normalization, the
	// weights reproduce the trimmed mask
	wantWeights := []float64{1, 1, 0}
	if !reflect.DeepEqual(example.Weights.Data(), wantWeights) {
		t.Errorf("mask not trimmed verbatim \n\twant(%v)\n\thave(%v)",
			wantWeights, example.Weights.Data())
	}
}

func TestBatchShapeMismatchBeforeArithmetic(t *testing.T) {
	c := testConfig(t, 0)
	valueFnCalled := false
	c.ValueFn = func(b *trajectory.Batch) (*tensor.Dense, error) {
		valueFnCalled = true
		return critic.Constant(0)(b)
	}
	task := testTask(t, c)

	good := makeBatch(t, 2, 5, 1)
	bad := &trajectory.Batch{
		Observations: good.Observations,
		Actions: tensor.New(tensor.WithShape(2, 4),
			tensor.WithBacking(make([]float64, 8))),
		Rewards: good.Rewards,
		Returns: good.Returns,
		Dones:   good.Dones,
		Mask:    good.Mask,
	}

	_, err := task.Batch(bad)
	var shapeErr *trajectory.ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *trajectory.ShapeError, got %v", err)
	}
	if valueFnCalled {
		t.Error("value function ran before shape validation failed")
	}
}

func TestBatchValueShapeValidation(t *testing.T) {
	c := testConfig(t, 0)
	c.ValueFn = func(b *trajectory.Batch) (*tensor.Dense, error) {
		return tensor.New(tensor.WithShape(b.BatchSize(), b.SeqLen()-1),
			tensor.WithBacking(make([]float64,
				b.BatchSize()*(b.SeqLen()-1)))), nil
	}
	task := testTask(t, c)

	_, err := task.Batch(makeBatch(t, 2, 5, 1))
	var shapeErr *trajectory.ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *trajectory.ShapeError, got %v", err)
	}
}

func TestNextExample(t *testing.T) {
	stream := trajectory.NewSliceStream(makeBatch(t, 1, 3, 1),
		makeBatch(t, 1, 3, 1))
	task, err := NewTrainTask(stream, testConfig(t, 0))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := task.NextExample(); err != nil {
			t.Fatalf("pull %v failed: %v", i, err)
		}
	}
	if _, err := task.NextExample(); !errors.Is(err,
		trajectory.ErrStreamDone) {
		t.Errorf("expected ErrStreamDone, got %v", err)
	}
}

func TestNewTrainTaskValidation(t *testing.T) {
	c := testConfig(t, 0)
	if _, err := NewTrainTask(nil, c); err == nil {
		t.Error("expected error for nil stream")
	}

	c.AdvantageEstimator = nil
	if _, err := NewTrainTask(trajectory.NewSliceStream(), c); err == nil {
		t.Error("expected error for missing advantage estimator")
	}
}
