// node.go
//
// Graph node contract consumed by the graph manager, plus Base, the
// reference implementation every concrete node embeds.
//
// Ownership: every handle carries an explicit atomic count. Whoever stores a
// handle (registry, another node's output list, a pending event, control
// code) holds one count. The holder of the last count runs the teardown;
// in a running engine that is always the destructor worker.
//
// Threading: wiring (Connect*/Disconnect*/Cleanup/OutputNodes) is touched
// only by the render thread inside settlement or reclamation. Counts are
// the only state shared across threads.

package node

import (
	"code.hybscloud.com/atomix"

	"audiocore/debug"
)

// Releaser is a handle whose count can be dropped off the render thread.
type Releaser interface {
	Release()
}

// Node is a unit of the audio graph.
type Node interface {
	Releaser
	Retain()
	RefCount() int64
	Name() string

	// Cleanup releases internal resources and disconnects every output.
	// Idempotent.
	Cleanup()

	ConnectNode(to Node)
	DisconnectNode(to Node)
	ConnectParam(to *Param)
	DisconnectParam(to *Param)

	// OutputNodes is the live output list; valid on the render thread only.
	OutputNodes() []Node
	// OutputParams is the live modulation target list; render thread only.
	OutputParams() []*Param
}

// SourceNode is a scheduled node. It may only be reclaimed when it is not
// going to play.
type SourceNode interface {
	Node
	IsUnscheduled() bool
	IsFinished() bool
}

// refs is the shared ownership counter embedded by Base and Param.
type refs struct {
	n atomix.Int64
}

func (r *refs) init() {
	r.n.StoreRelaxed(1)
}

func (r *refs) retain() {
	n := r.n.AddAcqRel(1)
	debug.Assert(n > 1, "retain of a released handle")
}

// release reports whether the caller dropped the last count.
func (r *refs) release() bool {
	n := r.n.AddAcqRel(-1)
	debug.Assert(n >= 0, "release below zero")
	return n == 0
}

func (r *refs) count() int64 {
	return r.n.LoadAcquire()
}

// Base implements Node. Embed it (by value) in concrete node types.
type Base struct {
	refs
	name     string
	outputs  []Node
	params   []*Param
	cleaned  bool
	teardown func()
}

// New returns a processing node holding one count for the caller.
// teardown, if non-nil, runs once when the last count is released.
func New(name string, teardown func()) *Base {
	b := &Base{}
	b.init(name, teardown)
	return b
}

func (b *Base) init(name string, teardown func()) {
	b.refs.init()
	b.name = name
	b.teardown = teardown
}

// Name identifies the node in diagnostics.
func (b *Base) Name() string { return b.name }

// Retain adds one owner.
func (b *Base) Retain() { b.retain() }

// RefCount is the current number of owners.
func (b *Base) RefCount() int64 { return b.count() }

// Release drops one owner. The last release disconnects any remaining
// outputs and runs the teardown hook on the calling goroutine.
func (b *Base) Release() {
	if !b.release() {
		return
	}
	b.Cleanup()
	if b.teardown != nil {
		b.teardown()
	}
}

// Cleanup disconnects every output node and param. Outputs are walked from
// the back so removing the current entry never shifts one not yet visited.
func (b *Base) Cleanup() {
	if b.cleaned {
		return
	}
	b.cleaned = true
	for i := len(b.outputs) - 1; i >= 0; i-- {
		b.DisconnectNode(b.outputs[i])
	}
	for i := len(b.params) - 1; i >= 0; i-- {
		b.DisconnectParam(b.params[i])
	}
}

// Cleaned reports whether Cleanup has run.
func (b *Base) Cleaned() bool { return b.cleaned }

// ConnectNode appends to as an output and takes a count on it.
func (b *Base) ConnectNode(to Node) {
	to.Retain()
	b.outputs = append(b.outputs, to)
}

// DisconnectNode removes the first connection to `to`, if any, and drops
// the count it held.
func (b *Base) DisconnectNode(to Node) {
	for i, n := range b.outputs {
		if n != to {
			continue
		}
		last := len(b.outputs) - 1
		copy(b.outputs[i:], b.outputs[i+1:])
		b.outputs[last] = nil
		b.outputs = b.outputs[:last]
		to.Release()
		return
	}
}

// ConnectParam appends p as a modulation target and takes a count on it.
func (b *Base) ConnectParam(p *Param) {
	p.Retain()
	p.inputs++
	b.params = append(b.params, p)
}

// DisconnectParam removes the first connection to p, if any.
func (b *Base) DisconnectParam(p *Param) {
	for i, q := range b.params {
		if q != p {
			continue
		}
		last := len(b.params) - 1
		copy(b.params[i:], b.params[i+1:])
		b.params[last] = nil
		b.params = b.params[:last]
		p.inputs--
		p.Release()
		return
	}
}

// OutputNodes implements Node.
func (b *Base) OutputNodes() []Node { return b.outputs }

// OutputParams implements Node.
func (b *Base) OutputParams() []*Param { return b.params }
