// manager.go
//
// Graph manager: the render goroutine's view of the topology.
//
// Control code never touches node wiring directly. It enqueues Events on a
// lock-free SPSC channel and the render goroutine applies them at the top of
// every quantum (settlement), then scans its registries for nodes nobody
// else owns and hands them to the destructor (reclamation). Nothing on the
// render side blocks, allocates in steady state, or runs a teardown.
//
// Goroutine roles:
//
//	control   Request*/Register*   producer of events, may block when full
//	render    PreProcess           consumer of events, producer of reclaimed
//	                               handles, never blocks
//	worker    (destructor)         consumer of reclaimed handles

package graph

import (
	"errors"
	"sync"

	"code.hybscloud.com/atomix"

	"audiocore/config"
	"audiocore/control"
	"audiocore/debug"
	"audiocore/destructor"
	"audiocore/node"
	"audiocore/spsc"
)

// ErrClosed is returned by requests issued after Close.
var ErrClosed = errors.New("graph: manager closed")

// Reclaimer takes ownership of a handle without blocking, or refuses it.
// *destructor.Destructor is the production implementation.
type Reclaimer interface {
	TryAccept(h node.Releaser) bool
}

// Manager owns the registries and the mutation channel.
type Manager struct {
	events    *spsc.Channel[Event]
	reclaimer Reclaimer
	owned     *destructor.Destructor // nil when the caller supplied the reclaimer

	// Render goroutine only.
	processing []node.Node
	sources    []node.SourceNode
	params     []*node.Param

	guard  control.Guard
	stats  counters
	closed atomix.Bool
	once   sync.Once
}

// New builds a manager and starts its own destructor worker. Close stops
// the worker.
func New(cfg config.Config) *Manager {
	cfg = cfg.Filled()
	d := destructor.New(
		destructor.WithCapacity(cfg.DestructorCapacity),
		destructor.WithWait(cfg.Wait()),
		destructor.WithCore(cfg.DestructorCore),
	)
	m := NewWithDestructor(cfg, d)
	m.owned = d
	return m
}

// NewWithDestructor builds a manager that reclaims into r. The caller keeps
// ownership of r and shuts it down after Close.
func NewWithDestructor(cfg config.Config, r Reclaimer) *Manager {
	cfg = cfg.Filled()
	return &Manager{
		events:     spsc.New[Event](cfg.MutationCapacity, spsc.WaitOnFull, spsc.Spin),
		reclaimer:  r,
		processing: make([]node.Node, 0, cfg.RegistryCapacity),
		sources:    make([]node.SourceNode, 0, cfg.RegistryCapacity),
		params:     make([]*node.Param, 0, cfg.RegistryCapacity),
	}
}

// ============================================================================
// CONTROL GOROUTINE
// ============================================================================

// RequestConnect queues an edge from → to.
func (m *Manager) RequestConnect(from, to node.Node) error {
	return m.send(nodeEvent(Connect, from, to))
}

// RequestDisconnect queues removal of one from → to edge.
func (m *Manager) RequestDisconnect(from, to node.Node) error {
	return m.send(nodeEvent(Disconnect, from, to))
}

// RequestConnectParam queues a modulation edge from → to.
func (m *Manager) RequestConnectParam(from node.Node, to *node.Param) error {
	return m.send(paramEvent(Connect, from, to))
}

// RequestDisconnectParam queues removal of one modulation edge.
func (m *Manager) RequestDisconnectParam(from node.Node, to *node.Param) error {
	return m.send(paramEvent(Disconnect, from, to))
}

// RequestDisconnectAll queues removal of every output of from.
func (m *Manager) RequestDisconnectAll(from node.Node) error {
	return m.send(disconnectAllEvent(from))
}

// RegisterProcessingNode hands n to the render goroutine. Each node must be
// registered exactly once.
func (m *Manager) RegisterProcessingNode(n node.Node) error {
	return m.send(registerProcessingEvent(n))
}

// RegisterSourceNode hands a source to the render goroutine.
func (m *Manager) RegisterSourceNode(n node.SourceNode) error {
	return m.send(registerSourceEvent(n))
}

// RegisterParam hands a param to the render goroutine.
func (m *Manager) RegisterParam(p *node.Param) error {
	return m.send(registerParamEvent(p))
}

// send blocks while the channel is full. On failure the event's counts are
// dropped here so callers never leak.
func (m *Manager) send(e Event) error {
	if debug.Enabled {
		debug.Assert(!m.guard.Owned(), "graph request issued from the render goroutine")
	}
	if m.closed.LoadAcquire() {
		e.Release()
		return ErrClosed
	}
	if err := m.events.Send(e); err != nil {
		e.Release()
		return ErrClosed
	}
	return nil
}

// ============================================================================
// RENDER GOROUTINE
// ============================================================================

// PreProcess runs once per quantum before the graph executes: it applies
// every pending event in FIFO order and then reclaims unowned nodes. The
// first call binds the manager to the calling goroutine.
func (m *Manager) PreProcess() {
	owner := m.guard.Enter()
	debug.Assert(owner, "PreProcess called off the render goroutine")
	if m.closed.LoadAcquire() {
		return
	}
	m.settle()
	m.reclaim()
	m.stats.quanta.AddAcqRel(1)
}

// settle drains the channel without waiting.
func (m *Manager) settle() {
	for {
		e, ok := m.events.TryReceive()
		if !ok {
			return
		}
		m.apply(&e)
		e.Release()
	}
}

// apply performs one event. Counts the event still owns afterwards are
// released by the caller; Register moves its count into a registry and
// marks the event consumed.
func (m *Manager) apply(e *Event) {
	switch e.Kind {
	case Connect:
		switch p := e.Payload.(type) {
		case *NodePair:
			p.From.ConnectNode(p.To)
		case *ParamPair:
			p.From.ConnectParam(p.To)
		default:
			m.malformed(e)
			return
		}
	case Disconnect:
		switch p := e.Payload.(type) {
		case *NodePair:
			p.From.DisconnectNode(p.To)
		case *ParamPair:
			p.From.DisconnectParam(p.To)
		default:
			m.malformed(e)
			return
		}
	case DisconnectAll:
		p, ok := e.Payload.(*OutputsPayload)
		if !ok {
			m.malformed(e)
			return
		}
		disconnectAll(p.From)
	case Register:
		switch p := e.Payload.(type) {
		case *ProcessingPayload:
			if debug.Enabled {
				debug.Assert(!contains(m.processing, p.Node), "node registered twice: "+p.Node.Name())
			}
			m.processing = append(m.processing, p.Node)
		case *SourcePayload:
			if debug.Enabled {
				debug.Assert(!contains(m.sources, p.Node), "source registered twice: "+p.Node.Name())
			}
			m.sources = append(m.sources, p.Node)
		case *ParamPayload:
			if debug.Enabled {
				debug.Assert(!contains(m.params, p.Param), "param registered twice: "+p.Param.Name())
			}
			m.params = append(m.params, p.Param)
		default:
			m.malformed(e)
			return
		}
		e.consume()
	default:
		m.malformed(e)
		return
	}
	m.stats.applied.AddAcqRel(1)
}

// malformed handles a kind/payload mismatch. Fatal in debug builds; release
// builds drop the event (the caller still releases its counts).
func (m *Manager) malformed(e *Event) {
	debug.Assert(false, "malformed "+e.Kind.String()+" event")
	m.stats.malformed.AddAcqRel(1)
}

// disconnectAll walks n's outputs from the back. Each disconnect removes one
// entry at or before the visited index, so every index read is still live.
func disconnectAll(n node.Node) {
	outs := n.OutputNodes()
	for i := len(outs) - 1; i >= 0; i-- {
		n.DisconnectNode(outs[i])
	}
	params := n.OutputParams()
	for i := len(params) - 1; i >= 0; i-- {
		n.DisconnectParam(params[i])
	}
}

// ProcessingNodes is the live processing registry. Render goroutine only;
// valid until the next PreProcess.
func (m *Manager) ProcessingNodes() []node.Node { return m.processing }

// SourceNodes is the live source registry.
func (m *Manager) SourceNodes() []node.SourceNode { return m.sources }

// Params is the live param registry.
func (m *Manager) Params() []*node.Param { return m.params }

// Pending is a point-in-time count of queued, unapplied events.
func (m *Manager) Pending() int { return m.events.Len() }

// Stats returns a snapshot of the counters; safe from any goroutine.
func (m *Manager) Stats() Stats { return m.stats.snapshot() }

// ============================================================================
// SHUTDOWN
// ============================================================================

// Close tears the graph down. Rendering and every request producer must
// have stopped. Pending events are dropped with their counts, every
// registered entry is cleaned and released on the calling goroutine, and
// an owned destructor is drained and joined. Safe to call more than once.
func (m *Manager) Close() {
	m.once.Do(func() {
		m.closed.StoreRelease(true)
		m.events.Close()
		for {
			e, ok := m.events.TryReceive()
			if !ok {
				break
			}
			e.Release()
		}

		// Disconnect everything first so no edge keeps a count across the
		// releases below.
		for _, s := range m.sources {
			s.Cleanup()
		}
		for _, n := range m.processing {
			n.Cleanup()
		}
		for i, s := range m.sources {
			s.Release()
			m.sources[i] = nil
		}
		for i, n := range m.processing {
			n.Release()
			m.processing[i] = nil
		}
		for i, p := range m.params {
			p.Release()
			m.params[i] = nil
		}
		m.sources = m.sources[:0]
		m.processing = m.processing[:0]
		m.params = m.params[:0]

		if m.owned != nil {
			m.owned.Close()
		}
	})
}

func contains[T comparable](s []T, v T) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
