// render.go - simulated audio callback
//
// One goroutine, locked to its OS thread and optionally pinned, standing in
// for the device callback: every quantum it settles and reclaims, advances
// source playback, then would run the graph.

package main

import (
	"runtime"
	"time"

	"audiocore/constants"
	"audiocore/control"
	"audiocore/debug"
	"audiocore/graph"
	"audiocore/node"
)

func renderLoop(m *graph.Manager, core int, p *sampler, done chan<- struct{}) {
	runtime.LockOSThread()
	defer func() {
		runtime.UnlockOSThread()
		close(done)
	}()
	if err := control.Pin(core); err != nil {
		debug.DropError("RENDER", err)
	}

	tick := time.NewTicker(time.Duration(constants.QuantumNanos))
	defer tick.Stop()

	for !control.Stopping() {
		<-tick.C
		sampled := p.pending()
		m.PreProcess()
		for _, s := range m.SourceNodes() {
			if src, ok := s.(*node.Source); ok {
				src.Play()
			}
		}
		if sampled {
			p.serve(m)
		}
	}
}
