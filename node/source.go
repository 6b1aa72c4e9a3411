// source.go
//
// Scheduled source node. The schedule state is written by whichever side
// drives playback (control thread for start/stop requests, render thread
// when playback runs out) and read by the reclamation scan, so it is
// atomic.

package node

import "code.hybscloud.com/atomix"

// State is a source node's position in its playback lifecycle.
type State uint32

const (
	Unscheduled State = iota
	Scheduled
	Playing
	Finished
)

var stateNames = [...]string{
	Unscheduled: "unscheduled",
	Scheduled:   "scheduled",
	Playing:     "playing",
	Finished:    "finished",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Source is a node with a schedule. It embeds Base for wiring and
// ownership.
type Source struct {
	Base
	state atomix.Uint32
}

// NewSource returns an unscheduled source holding one count for the caller.
func NewSource(name string, teardown func()) *Source {
	s := &Source{}
	s.Base.init(name, teardown)
	return s
}

// State returns the current schedule state.
//
//go:nosplit
//go:inline
func (s *Source) State() State { return State(s.state.LoadAcquire()) }

// Start schedules playback.
func (s *Source) Start() { s.state.StoreRelease(uint32(Scheduled)) }

// Play moves a scheduled source to Playing in one step. It reports false and
// leaves the state alone when the source is not Scheduled, so a concurrent
// Finish is never overwritten.
func (s *Source) Play() bool {
	return s.state.CompareAndSwapAcqRel(uint32(Scheduled), uint32(Playing))
}

// Finish marks playback as over. A finished source never plays again.
func (s *Source) Finish() { s.state.StoreRelease(uint32(Finished)) }

// IsUnscheduled implements SourceNode.
//
//go:nosplit
//go:inline
func (s *Source) IsUnscheduled() bool { return s.State() == Unscheduled }

// IsFinished implements SourceNode.
//
//go:nosplit
//go:inline
func (s *Source) IsFinished() bool { return s.State() == Finished }
