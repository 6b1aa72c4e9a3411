// ════════════════════════════════════════════════════════════════════════════════════════════════
// graphsim - Audio Graph Core Simulator
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Usage: graphsim [topology.db] [config.json]
//
// Description:
//   Drives the graph core the way a host would: a control goroutine builds a topology loaded
//   from SQLite through the request API while a pinned render goroutine settles and reclaims
//   once per quantum. Once the graph has settled its fingerprint is logged, the whole graph is
//   torn down from the control side and the run ends when the destructor has released every
//   node, or on SIGINT/SIGTERM.
//
// Phases:
//   - Phase 0: load config and topology
//   - Phase 1: build the graph through the mutation channel
//   - Phase 2: fingerprint the settled graph on the render goroutine
//   - Phase 3: unwire, drop control handles, wait for reclamation, shut down
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.hybscloud.com/atomix"

	"audiocore/config"
	"audiocore/control"
	"audiocore/debug"
	"audiocore/graph"
	"audiocore/node"
)

// reclaimTimeout bounds phase 3 so a leaked count cannot hang the run.
const reclaimTimeout = 5 * time.Second

func main() {
	var dbPath, cfgPath string
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}
	if err := run(dbPath, cfgPath); err != nil {
		debug.DropError("FATAL", err)
		os.Exit(1)
	}
}

func run(dbPath, cfgPath string) error {
	// PHASE 0: configuration and topology
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}
	db, err := openTopology(dbPath)
	if err != nil {
		return err
	}
	topo, err := loadTopology(db)
	_ = db.Close()
	if err != nil {
		return err
	}
	debug.DropMessage("LOADED", debug.Itoa(len(topo.nodes))+" nodes, "+debug.Itoa(len(topo.edges))+" edges, "+
		debug.Itoa(len(topo.params))+" params, "+debug.Itoa(len(topo.paramEdges))+" modulations")

	setupSignalHandling()

	m := graph.New(cfg)
	var p sampler
	renderDone := make(chan struct{})
	go renderLoop(m, cfg.RenderCore, &p, renderDone)

	// PHASE 1: build
	sim := newSimulation(m)
	if err := sim.build(topo); err != nil {
		control.Shutdown()
		<-renderDone
		m.Close()
		return err
	}
	debug.DropMessage("BUILD", debug.Itoa(int(sim.total))+" handles registered")

	// PHASE 2: fingerprint once the render goroutine has applied everything
	p.request()
	if sum, ok := p.wait(); ok {
		debug.DropMessage("SETTLED", hexSum(sum))
	}

	// PHASE 3: teardown
	if err := sim.teardown(); err != nil {
		debug.DropError("TEARDOWN", err)
	}
	if sim.waitReclaimed(reclaimTimeout) {
		debug.DropMessage("RECLAIMED", "every node released by the destructor")
	} else {
		debug.DropMessage("RECLAIMED", debug.Utoa(sim.torn.LoadAcquire())+"/"+debug.Utoa(sim.total)+" released before stop")
	}

	control.Shutdown()
	<-renderDone
	m.Close()

	st := m.Stats()
	debug.DropMessage("STATS", "quanta "+debug.Utoa(st.Quanta)+
		", applied "+debug.Utoa(st.Applied)+
		", malformed "+debug.Utoa(st.Malformed)+
		", nodes reclaimed "+debug.Utoa(st.NodesReclaimed)+
		", params reclaimed "+debug.Utoa(st.ParamsReclaimed)+
		", deferred "+debug.Utoa(st.Deferred))
	if torn := sim.torn.LoadAcquire(); torn != sim.total {
		return fmt.Errorf("graphsim: %d of %d handles torn down", torn, sim.total)
	}
	return nil
}

// simulation is the control goroutine's side of the run: it owns one
// handle per node and param until teardown.
type simulation struct {
	m       *graph.Manager
	nodes   map[int64]node.Node
	order   []node.Node // registration order
	sources []*node.Source
	params  map[int64]*node.Param
	handles []node.Releaser
	total   uint64
	torn    atomix.Uint64 // teardown hooks run, from any goroutine
}

func newSimulation(m *graph.Manager) *simulation {
	return &simulation{
		m:      m,
		nodes:  make(map[int64]node.Node),
		params: make(map[int64]*node.Param),
	}
}

func (s *simulation) teardownHook() func() {
	return func() { s.torn.AddAcqRel(1) }
}

// build registers every node and param, then wires them and schedules the
// sources. Events are FIFO, so registrations land before the edges that
// use them.
func (s *simulation) build(t topology) error {
	for _, row := range t.nodes {
		name := "n" + debug.Itoa(int(row.id))
		var err error
		if row.kind == kindSource {
			src := node.NewSource(name, s.teardownHook())
			s.sources = append(s.sources, src)
			s.nodes[row.id] = src
			err = s.m.RegisterSourceNode(src)
		} else {
			n := node.New(name, s.teardownHook())
			s.nodes[row.id] = n
			err = s.m.RegisterProcessingNode(n)
		}
		s.order = append(s.order, s.nodes[row.id])
		s.handles = append(s.handles, s.nodes[row.id])
		s.total++
		if err != nil {
			return err
		}
	}
	for _, row := range t.params {
		p := node.NewParam("n"+debug.Itoa(int(row.owner))+".p"+debug.Itoa(int(row.id)), 0, s.teardownHook())
		s.params[row.id] = p
		s.handles = append(s.handles, p)
		s.total++
		if err := s.m.RegisterParam(p); err != nil {
			return err
		}
	}
	for _, e := range t.edges {
		if err := s.m.RequestConnect(s.nodes[e.from], s.nodes[e.to]); err != nil {
			return err
		}
	}
	for _, e := range t.paramEdges {
		if err := s.m.RequestConnectParam(s.nodes[e.from], s.params[e.to]); err != nil {
			return err
		}
	}
	for _, src := range s.sources {
		src.Start()
	}
	return nil
}

// teardown unwires every node, ends playback and drops the control
// handles. Unwiring first keeps cycles in the topology from pinning each
// other's counts.
func (s *simulation) teardown() error {
	var first error
	for _, n := range s.order {
		if err := s.m.RequestDisconnectAll(n); err != nil && first == nil {
			first = err
		}
	}
	for _, src := range s.sources {
		src.Finish()
	}
	for _, h := range s.handles {
		h.Release()
	}
	s.handles = nil
	return first
}

// waitReclaimed polls until every handle was torn down, the timeout
// expires or shutdown starts.
func (s *simulation) waitReclaimed(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for s.torn.LoadAcquire() < s.total {
		if control.Stopping() || time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

// setupSignalHandling turns SIGINT/SIGTERM into a control.Shutdown; the
// phases above notice it and unwind normally.
func setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "Received interrupt, shutting down...")
		control.Shutdown()
	}()
}
