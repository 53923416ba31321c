package policytask

import "math"

// WeightFn transforms a single advantage estimate into a
// policy-loss weight. It is applied elementwise to the advantage
// tensor before masking. The choice of weight function selects the
// learning algorithm:
//
//	A2C:                 Identity
//	AWR:                 Exp
//	behavioral cloning:  Constant(1)
type WeightFn func(advantage float64) float64

// Identity returns the advantage unchanged
func Identity(advantage float64) float64 {
	return advantage
}

// Exp exponentiates the advantage
func Exp(advantage float64) float64 {
	return math.Exp(advantage)
}

// Constant returns a WeightFn giving every action the same weight
// regardless of its advantage.
func Constant(weight float64) WeightFn {
	return func(float64) float64 {
		return weight
	}
}
