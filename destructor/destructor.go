// destructor.go
//
// Deferred destruction worker. The render goroutine must never run a
// teardown (freeing buffers, closing files, unbounded work), so reclaimed
// handles are pushed over an SPSC channel to one dedicated goroutine that
// drops their last count.
//
// TryAccept is the only operation the render goroutine performs and it
// never blocks: a full queue defers the hand-off to the next quantum.

package destructor

import (
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"

	"audiocore/constants"
	"audiocore/control"
	"audiocore/debug"
	"audiocore/node"
	"audiocore/spsc"
)

// Option configures a Destructor.
type Option func(*options)

type options struct {
	capacity int
	wait     spsc.Wait
	core     int
}

// WithCapacity sets the queue size (rounded up to a power of two).
func WithCapacity(n int) Option { return func(o *options) { o.capacity = n } }

// WithWait sets how the idle worker waits for work.
func WithWait(w spsc.Wait) Option { return func(o *options) { o.wait = w } }

// WithCore pins the worker thread to a CPU; constants.NoCore leaves it free.
func WithCore(core int) Option { return func(o *options) { o.core = core } }

// Destructor owns the worker goroutine and its queue.
type Destructor struct {
	queue    *spsc.Channel[node.Releaser]
	exiting  atomix.Bool
	released atomix.Uint64
	done     chan struct{}
	once     sync.Once
}

// New starts the worker and returns once it is running.
func New(opts ...Option) *Destructor {
	o := options{
		capacity: constants.DestructorCapacity,
		wait:     spsc.Park,
		core:     constants.NoCore,
	}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Destructor{
		queue: spsc.New[node.Releaser](o.capacity, spsc.WaitOnFull, o.wait),
		done:  make(chan struct{}),
	}
	ready := make(chan struct{})
	go d.run(o.core, ready)
	<-ready
	return d
}

func (d *Destructor) run(core int, ready chan<- struct{}) {
	runtime.LockOSThread()
	defer func() {
		runtime.UnlockOSThread()
		close(d.done)
	}()
	if err := control.Pin(core); err != nil {
		debug.DropError("destructor", err)
	}
	close(ready)

	for {
		h, err := d.queue.Receive()
		if err != nil {
			return // closed and drained
		}
		h.Release()
		d.released.AddAcqRel(1)
	}
}

// TryAccept queues h for release on the worker. It returns false, leaving
// ownership with the caller, when the queue is full or the destructor is
// shutting down.
func (d *Destructor) TryAccept(h node.Releaser) bool {
	if d.exiting.LoadAcquire() {
		return false
	}
	return d.queue.TrySend(h)
}

// Close stops accepting, lets the worker release everything already queued
// and waits for it to exit. The caller must be the goroutine that feeds
// TryAccept, or that goroutine must have stopped.
func (d *Destructor) Close() {
	d.once.Do(func() {
		d.exiting.StoreRelease(true)
		d.queue.Close()
		<-d.done
	})
}

// Released is the number of handles the worker has released so far.
func (d *Destructor) Released() uint64 {
	return d.released.LoadAcquire()
}

// Pending is a point-in-time count of queued handles.
func (d *Destructor) Pending() int {
	return d.queue.Len()
}
