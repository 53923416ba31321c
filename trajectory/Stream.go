package trajectory

import "errors"

// ErrStreamDone is returned by finite streams once every batch has
// been pulled. Infinite streams never return it.
var ErrStreamDone = errors.New("trajectory: stream exhausted")

// Stream produces trajectory batches one at a time, pull-based. A
// Stream may be infinite and is not restartable: once a batch has
// been pulled it cannot be pulled again. Restart policy belongs to
// the producer behind the Stream.
//
// A Stream need not be safe for concurrent use. Drivers that
// parallelize batch construction must pull each batch from a single
// goroutine, handing independent batches to independent workers.
type Stream interface {
	// Next returns the next trajectory batch. Finite streams return
	// ErrStreamDone once exhausted.
	Next() (*Batch, error)
}

// SliceStream is a finite Stream backed by a slice of batches, pulled
// in order. It is mainly useful for evaluation over a fixed set of
// batches and for testing.
type SliceStream struct {
	batches []*Batch
	next    int
}

// NewSliceStream returns a new SliceStream producing the argument
// batches in order.
func NewSliceStream(batches ...*Batch) *SliceStream {
	return &SliceStream{batches: batches}
}

// Next implements the Stream interface
func (s *SliceStream) Next() (*Batch, error) {
	if s.next >= len(s.batches) {
		return nil, ErrStreamDone
	}

	b := s.batches[s.next]
	s.next++
	return b, nil
}

// FuncStream adapts a generator function to the Stream interface.
// It is the lazy, possibly infinite case: the function is invoked
// once per pull.
type FuncStream func() (*Batch, error)

// Next implements the Stream interface
func (f FuncStream) Next() (*Batch, error) {
	return f()
}
