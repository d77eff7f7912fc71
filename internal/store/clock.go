package store

import "sync/atomic"

// Clock is the store's basis counter: the number t of the latest committed
// transaction.
//
// Readers call Current without locking. Only Transact calls Next, after the
// transaction numbered Current()+1 has committed, so a reader never observes
// a basis whose datoms are not yet visible.
type Clock struct {
	t atomic.Int64
}

// NewClockAt creates a clock positioned at basis t. Open uses it to resume
// from the last committed transaction.
func NewClockAt(t int64) *Clock {
	c := &Clock{}
	c.t.Store(t)
	return c
}

// Next advances the basis and returns it.
func (c *Clock) Next() int64 {
	return c.t.Add(1)
}

// Current returns the current basis without advancing.
func (c *Clock) Current() int64 {
	return c.t.Load()
}
