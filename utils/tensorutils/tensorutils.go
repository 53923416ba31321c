// Package tensorutils provides utilities for working with dense
// tensors
package tensorutils

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Slice implements a struct that can be used for slicing tensors.
//
// Given a tensor T and a Slice S, T.Slice(..., S, ...) is equivalent to
// T[..., S.start:S.end:S.step, ...]
type Slice struct {
	start, end, step int
}

// Start returns the start index for the tensor slice
func (s Slice) Start() int {
	return s.start
}

// End returns the ending index for the tensor slice
func (s Slice) End() int {
	return s.end
}

// Step returns the step for the tensor slice
func (s Slice) Step() int {
	return s.step
}

// NewSlice returns a new Slice that can be used to slice tensors
func NewSlice(start, stop, step int) Slice {
	return Slice{start, stop, step}
}

// Float64s returns the backing data of a dense float64 tensor
func Float64s(t *tensor.Dense) []float64 {
	return t.Data().([]float64)
}

// TrimTime returns a copy of t with its second (time) axis trimmed to
// the first length entries. Any trailing axes are kept whole. The
// returned tensor owns its data, so mutating it does not affect t.
func TrimTime(t *tensor.Dense, length int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("trimtime: tensor must have at least 2 "+
			"axes \n\twant(>= 2)\n\thave(%v)", len(shape))
	}
	if length < 0 || length > shape[1] {
		return nil, fmt.Errorf("trimtime: illegal trim length "+
			"\n\twant(<= %v)\n\thave(%v)", shape[1], length)
	}

	view, err := t.Slice(nil, NewSlice(0, length, 1))
	if err != nil {
		return nil, fmt.Errorf("trimtime: could not slice time axis: %v",
			err)
	}
	return view.Materialize().(*tensor.Dense), nil
}

// Full returns a new dense tensor of the given shape with every entry
// set to value
func Full(value float64, shape ...int) *tensor.Dense {
	size := 1
	for _, dim := range shape {
		size *= dim
	}

	backing := make([]float64, size)
	for i := range backing {
		backing[i] = value
	}
	return tensor.New(tensor.WithShape(shape...),
		tensor.WithBacking(backing))
}
