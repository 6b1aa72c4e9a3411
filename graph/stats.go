// ============================================================================
// MANAGER COUNTERS
// ============================================================================
//
// Monotonic counters written by the render goroutine and snapshotted from
// any goroutine.

package graph

import "code.hybscloud.com/atomix"

// Stats is a snapshot of the manager's counters.
type Stats struct {
	Applied         uint64 // events applied by settlement
	Malformed       uint64 // events dropped for a kind/payload mismatch
	NodesReclaimed  uint64 // processing and source nodes handed to the destructor
	ParamsReclaimed uint64
	Deferred        uint64 // hand-offs refused by a full destructor, retried later
	Quanta          uint64 // PreProcess calls
}

// counters are written by the render goroutine and read from anywhere.
type counters struct {
	applied         atomix.Uint64
	malformed       atomix.Uint64
	nodesReclaimed  atomix.Uint64
	paramsReclaimed atomix.Uint64
	deferred        atomix.Uint64
	quanta          atomix.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Applied:         c.applied.LoadAcquire(),
		Malformed:       c.malformed.LoadAcquire(),
		NodesReclaimed:  c.nodesReclaimed.LoadAcquire(),
		ParamsReclaimed: c.paramsReclaimed.LoadAcquire(),
		Deferred:        c.deferred.LoadAcquire(),
		Quanta:          c.quanta.LoadAcquire(),
	}
}
