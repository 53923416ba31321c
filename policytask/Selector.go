package policytask

import "gorgonia.org/tensor"

// Selector transforms a raw network-output tensor before a loss or
// metric consumes it. In multi-head (multitask) training a Selector
// picks out the head belonging to the current task; in the
// single-task case the identity Selector keeps the code path
// identical. Selectors must preserve the leading (batch size,
// seq len) axes of their input.
type Selector func(*tensor.Dense) (*tensor.Dense, error)

// IdentitySelector returns the network output unchanged
func IdentitySelector(output *tensor.Dense) (*tensor.Dense, error) {
	return output, nil
}

// ComposeSelectors chains selectors left to right into a single
// Selector. Composing no selectors yields the identity.
func ComposeSelectors(selectors ...Selector) Selector {
	return func(output *tensor.Dense) (*tensor.Dense, error) {
		var err error
		for _, s := range selectors {
			if output, err = s(output); err != nil {
				return nil, err
			}
		}
		return output, nil
	}
}
