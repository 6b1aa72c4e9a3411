// channel.go
//
// Lock-free single-producer/single-consumer channel shared by the mutation
// path (control → render) and the reclamation path (render → destructor).
// Producer and consumer cursors live on separate cache lines and every slot
// carries a sequence stamp, so TrySend/TryReceive are wait-free and never
// touch the other side's cursor.
//
// Slot sequence contract (position p, ring size n):
//
//	seq == p        slot free, producer may write
//	seq == p+1      slot published, consumer may read
//	seq == p+n      consumer released it for the next lap
//
// The only allocation is in New. Received slots are zeroed so the Go GC
// never keeps a handle alive through a stale ring entry.

package spsc

import (
	"errors"

	"code.hybscloud.com/atomix"
)

var (
	// ErrFull is returned by Send on a FailOnFull channel with no free slot.
	ErrFull = errors.New("spsc: channel full")
	// ErrClosed is returned once the channel has been closed (and, on the
	// receive side, drained).
	ErrClosed = errors.New("spsc: channel closed")
)

// Overflow selects what Send does when the ring is full.
type Overflow uint8

const (
	// WaitOnFull blocks the producer, using the wait strategy, until the
	// consumer frees a slot.
	WaitOnFull Overflow = iota
	// FailOnFull returns ErrFull immediately.
	FailOnFull
)

// slot couples a payload with its sequence stamp.
type slot[T any] struct {
	seq atomix.Uint64 // position in the sequence space
	val T
}

// Channel is a fixed-capacity FIFO for exactly one producer goroutine and
// one consumer goroutine.
type Channel[T any] struct {
	_    [64]byte // consumer cursor isolated on its own cache-line
	head atomix.Uint64
	_    [64]byte // producer cursor
	tail atomix.Uint64
	_    [64]byte // keep hot cursors away from the metadata below

	closed   atomix.Bool
	mask     uint64
	step     uint64
	overflow Overflow
	wait     Wait
	buf      []slot[T]

	// Park strategy only: one-token doorbells.
	notEmpty chan struct{}
	notFull  chan struct{}
}

// New allocates a channel holding at least capacity elements. The real
// capacity is the next power of two, never less than two: with a single
// slot the "published" and "free for the next lap" stamps coincide.
// Panics when capacity <= 0.
func New[T any](capacity int, overflow Overflow, wait Wait) *Channel[T] {
	if capacity <= 0 {
		panic("spsc: capacity must be > 0")
	}
	size := roundPow2(capacity)
	c := &Channel[T]{
		mask:     uint64(size - 1),
		step:     uint64(size),
		overflow: overflow,
		wait:     wait,
		buf:      make([]slot[T], size),
	}
	for i := range c.buf {
		c.buf[i].seq.StoreRelaxed(uint64(i))
	}
	if wait == Park {
		c.notEmpty = make(chan struct{}, 1)
		c.notFull = make(chan struct{}, 1)
	}
	return c
}

// TrySend enqueues v without blocking. It returns false when the ring is
// full or the channel is closed.
//
//go:nosplit
func (c *Channel[T]) TrySend(v T) bool {
	if c.closed.LoadAcquire() {
		return false
	}
	t := c.tail.LoadRelaxed()
	s := &c.buf[t&c.mask]
	if s.seq.LoadAcquire() != t {
		return false // consumer has not yet released the slot
	}
	s.val = v
	s.seq.StoreRelease(t + 1)
	c.tail.StoreRelease(t + 1)
	ring(c.notEmpty)
	return true
}

// TryReceive dequeues one element without blocking. ok is false when the
// ring is empty.
//
//go:nosplit
func (c *Channel[T]) TryReceive() (v T, ok bool) {
	h := c.head.LoadRelaxed()
	s := &c.buf[h&c.mask]
	if s.seq.LoadAcquire() != h+1 {
		return v, false // producer has not yet published the slot
	}
	v = s.val
	var zero T
	s.val = zero
	s.seq.StoreRelease(h + c.step)
	c.head.StoreRelease(h + 1)
	ring(c.notFull)
	return v, true
}

// Send enqueues v. On a WaitOnFull channel it waits for space using the
// channel's wait strategy; on a FailOnFull channel it returns ErrFull.
// Returns ErrClosed if the channel is or becomes closed.
func (c *Channel[T]) Send(v T) error {
	if c.TrySend(v) {
		return nil
	}
	if c.closed.LoadAcquire() {
		return ErrClosed
	}
	if c.overflow == FailOnFull {
		return ErrFull
	}
	w := waiter{kind: c.wait}
	for {
		w.wait(c.notFull)
		if c.TrySend(v) {
			return nil
		}
		if c.closed.LoadAcquire() {
			return ErrClosed
		}
	}
}

// Receive dequeues one element, waiting while the ring is empty. Elements
// published before Close are still delivered; once the channel is closed
// and empty Receive returns ErrClosed.
func (c *Channel[T]) Receive() (T, error) {
	w := waiter{kind: c.wait}
	for {
		if v, ok := c.TryReceive(); ok {
			return v, nil
		}
		if c.closed.LoadAcquire() {
			if v, ok := c.TryReceive(); ok {
				return v, nil
			}
			var zero T
			return zero, ErrClosed
		}
		w.wait(c.notEmpty)
	}
}

// Close marks the channel closed and wakes a parked producer or consumer.
// It must be called by the producer, or after the producer has stopped;
// a TrySend racing with Close may publish an element Receive never sees.
// Calling Close more than once is harmless.
func (c *Channel[T]) Close() {
	c.closed.StoreRelease(true)
	ring(c.notEmpty)
	ring(c.notFull)
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	return c.closed.LoadAcquire()
}

// Len is a point-in-time count of queued elements; exact only when called
// from the producer or consumer with the other side idle.
func (c *Channel[T]) Len() int {
	h := c.head.LoadAcquire()
	t := c.tail.LoadAcquire()
	if t < h {
		return 0
	}
	return int(t - h)
}

// Cap returns the rounded-up capacity.
func (c *Channel[T]) Cap() int {
	return int(c.step)
}

// ring posts a wake-up token without ever blocking the caller.
func ring(bell chan struct{}) {
	if bell == nil {
		return
	}
	select {
	case bell <- struct{}{}:
	default:
	}
}

func roundPow2(n int) int {
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}
