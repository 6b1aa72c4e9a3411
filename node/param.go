// ============================================================================
// AUDIO PARAMS
// ============================================================================
//
// A Param is a float64 control value owned by a node. Node outputs can be
// wired into it for modulation. The value is atomic; the input count
// belongs to the render goroutine.

package node

import (
	"math"

	"code.hybscloud.com/atomix"
)

// Param is a node-owned control value. Node outputs may be connected to it
// for modulation; each such connection holds one count on the param.
type Param struct {
	refs
	name     string
	value    atomix.Uint64 // float64 bits
	inputs   int           // render thread only
	teardown func()
}

// NewParam returns a param holding one count for the caller.
func NewParam(name string, value float64, teardown func()) *Param {
	p := &Param{name: name, teardown: teardown}
	p.refs.init()
	p.value.StoreRelaxed(math.Float64bits(value))
	return p
}

// Name identifies the param in diagnostics.
func (p *Param) Name() string { return p.name }

// Value is the current base value.
//
//go:nosplit
//go:inline
func (p *Param) Value() float64 { return math.Float64frombits(p.value.LoadAcquire()) }

// SetValue updates the base value from any thread.
func (p *Param) SetValue(v float64) { p.value.StoreRelease(math.Float64bits(v)) }

// Inputs is the number of node outputs currently modulating p.
//
//go:nosplit
//go:inline
func (p *Param) Inputs() int { return p.inputs }

// Retain adds one owner.
func (p *Param) Retain() { p.retain() }

// RefCount is the current number of owners.
//
//go:nosplit
//go:inline
func (p *Param) RefCount() int64 { return p.count() }

// Cleanup is a no-op: a param owns no wiring of its own. Its inputs hold
// counts on it, not the other way round.
func (p *Param) Cleanup() {}

// Release drops one owner and runs the teardown hook on the last one.
func (p *Param) Release() {
	if p.release() && p.teardown != nil {
		p.teardown()
	}
}
