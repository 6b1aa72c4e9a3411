// event.go
//
// Mutation events: one topology change each, built on the control goroutine
// and consumed exactly once on the render goroutine.
//
// Payload is a closed sum. Every variant owns one count per handle it
// carries and knows how to drop exactly those counts, so destroying an
// event can never release the wrong alternative. Copying an Event through
// the channel moves ownership without touching counts.

package graph

import "audiocore/node"

// Kind is the topology operation an Event requests.
type Kind uint8

const (
	Connect Kind = iota
	Disconnect
	DisconnectAll
	Register
)

var kindNames = [...]string{
	Connect:       "connect",
	Disconnect:    "disconnect",
	DisconnectAll: "disconnect-all",
	Register:      "register",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Payload is implemented only by the six payload types in this package.
type Payload interface {
	// release drops every count the payload owns.
	release()
}

// NodePair is a node-to-node edge.
type NodePair struct {
	From node.Node
	To   node.Node
}

// ParamPair is a node-to-param modulation edge.
type ParamPair struct {
	From node.Node
	To   *node.Param
}

// OutputsPayload carries the node whose outputs DisconnectAll removes.
type OutputsPayload struct {
	From node.Node
}

// ProcessingPayload carries one processing node.
type ProcessingPayload struct {
	Node node.Node
}

// SourcePayload carries one source node.
type SourcePayload struct {
	Node node.SourceNode
}

// ParamPayload carries one param.
type ParamPayload struct {
	Param *node.Param
}

func (p *NodePair) release() {
	p.From.Release()
	p.To.Release()
}

func (p *ParamPair) release() {
	p.From.Release()
	p.To.Release()
}

func (p *OutputsPayload) release()    { p.From.Release() }
func (p *ProcessingPayload) release() { p.Node.Release() }
func (p *SourcePayload) release()     { p.Node.Release() }
func (p *ParamPayload) release()      { p.Param.Release() }

// Event is a tagged topology mutation. A nil Payload means the event has
// been consumed.
type Event struct {
	Kind    Kind
	Payload Payload
}

// Release drops the counts still owned by e. Safe to call on a consumed
// event.
func (e *Event) Release() {
	if e.Payload == nil {
		return
	}
	e.Payload.release()
	e.Payload = nil
}

// consume marks e as applied without releasing anything; used when the
// payload's counts moved into a registry.
func (e *Event) consume() {
	e.Payload = nil
}

// Constructors retain every handle they store. The caller keeps its own
// counts.

func nodeEvent(k Kind, from, to node.Node) Event {
	from.Retain()
	to.Retain()
	return Event{Kind: k, Payload: &NodePair{From: from, To: to}}
}

func paramEvent(k Kind, from node.Node, to *node.Param) Event {
	from.Retain()
	to.Retain()
	return Event{Kind: k, Payload: &ParamPair{From: from, To: to}}
}

func disconnectAllEvent(from node.Node) Event {
	from.Retain()
	return Event{Kind: DisconnectAll, Payload: &OutputsPayload{From: from}}
}

func registerProcessingEvent(n node.Node) Event {
	n.Retain()
	return Event{Kind: Register, Payload: &ProcessingPayload{Node: n}}
}

func registerSourceEvent(n node.SourceNode) Event {
	n.Retain()
	return Event{Kind: Register, Payload: &SourcePayload{Node: n}}
}

func registerParamEvent(p *node.Param) Event {
	p.Retain()
	return Event{Kind: Register, Payload: &ParamPayload{Param: p}}
}
