// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// MaxSlice gets the maximum value and indices of the maximum values in
// a slice of float64.
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i, value := range values[1:] {
		if value > max {
			max = value
			indices = []int{i + 1}
		} else if value == max {
			indices = append(indices, i+1)
		}
	}
	return
}

// LogSumExp computes ln(Σ exp(values[i])) in a numerically stable way
// by shifting by the maximum value before exponentiating.
func LogSumExp(values []float64) float64 {
	max, _ := MaxSlice(values)
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}

	sum := 0.0
	for _, value := range values {
		sum += math.Exp(value - max)
	}
	return max + math.Log(sum)
}
