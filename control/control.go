// control.go
//
// Render-goroutine ownership and process-wide shutdown signalling.
//
// Guard pins a manager to the goroutine that first drives it. Registries
// and node wiring are only ever touched from that goroutine; the guard lets
// debug builds catch a PreProcess from the wrong place, or a blocking
// request issued from the render goroutine itself.
//
// The stop flag is polled by pinned loops (render, simulation control) to
// wind down without channels on the hot path.

package control

import (
	"code.hybscloud.com/atomix"
	"github.com/petermattis/goid"
)

// ============================================================================
// GOROUTINE GUARD
// ============================================================================

// Guard records the goroutine that owns a render-side structure.
// The zero value is unbound.
type Guard struct {
	owner atomix.Uint64 // goroutine id + 1, 0 while unbound
}

// Enter binds g to the calling goroutine on first use and reports whether
// the caller is the owner.
func (g *Guard) Enter() bool {
	id := uint64(goid.Get()) + 1
	if g.owner.LoadAcquire() == 0 {
		g.owner.CompareAndSwapAcqRel(0, id)
	}
	return g.owner.LoadAcquire() == id
}

// Owned reports whether the caller is the bound goroutine. An unbound
// guard is owned by nobody.
func (g *Guard) Owned() bool {
	return g.owner.LoadAcquire() == uint64(goid.Get())+1
}

// Bound reports whether some goroutine has entered g.
func (g *Guard) Bound() bool {
	return g.owner.LoadAcquire() != 0
}

// Release unbinds g so another goroutine may take it over, e.g. when a
// render loop restarts on a new thread.
func (g *Guard) Release() {
	g.owner.StoreRelease(0)
}

// ============================================================================
// SHUTDOWN
// ============================================================================

var stop atomix.Bool

// Shutdown asks every polling loop to stop.
func Shutdown() {
	stop.StoreRelease(true)
}

// Stopping reports whether Shutdown has been called.
func Stopping() bool {
	return stop.LoadAcquire()
}
