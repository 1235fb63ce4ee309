package animation

import "sync/atomic"

type versioned[T any] struct {
	value   T
	version uint64
}

// Cell holds the most recent value written by a producer. Readers always see
// the latest complete value; older values are dropped, never queued.
// The zero Cell is empty and ready to use.
type Cell[T any] struct {
	p atomic.Pointer[versioned[T]]
}

// Store publishes v, replacing any previous value.
func (c *Cell[T]) Store(v T) {
	for {
		old := c.p.Load()
		next := &versioned[T]{value: v, version: 1}
		if old != nil {
			next.version = old.version + 1
		}
		if c.p.CompareAndSwap(old, next) {
			return
		}
	}
}

// Load returns the latest value and its version. Version 0 means nothing has
// been stored yet.
func (c *Cell[T]) Load() (T, uint64) {
	cur := c.p.Load()
	if cur == nil {
		var zero T
		return zero, 0
	}
	return cur.value, cur.version
}
