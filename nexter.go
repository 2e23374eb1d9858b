package dsk

import (
	"sync/atomic"
)

// Nexter is a threadsafe generator of contiguous ids starting at 0. The zero
// value is ready to use.
type Nexter struct {
	n uint64
}

// Next allocates a new id and returns it.
func (n *Nexter) Next() uint64 {
	return atomic.AddUint64(&n.n, 1) - 1
}

// Issued returns the number of ids handed out so far, which is also the id
// the next call to Next will return.
func (n *Nexter) Issued() uint64 {
	return atomic.LoadUint64(&n.n)
}
