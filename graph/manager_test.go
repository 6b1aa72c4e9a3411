// ============================================================================
// GRAPH MANAGER SETTLEMENT AND SHUTDOWN SUITE
// ============================================================================
//
// Drives a manager from a dedicated render goroutine with a recording
// reclaimer, covering FIFO settlement, edge bookkeeping, dropped events
// and Close.

package graph

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocore/config"
	"audiocore/debug"
	"audiocore/node"
)

// ============================================================================
// HELPERS
// ============================================================================

// renderer is a long-lived goroutine standing in for the audio thread, so
// the manager's guard sees one render goroutine for the whole test.
type renderer struct {
	calls chan func()
}

func startRenderer(t *testing.T) *renderer {
	t.Helper()
	r := &renderer{calls: make(chan func())}
	go func() {
		for f := range r.calls {
			f()
		}
	}()
	t.Cleanup(func() { close(r.calls) })
	return r
}

// do runs f on the render goroutine and waits for it.
func (r *renderer) do(f func()) {
	done := make(chan struct{})
	r.calls <- func() {
		defer close(done)
		f()
	}
	<-done
}

// sink is a Reclaimer that keeps what it accepts. Only touched on the
// render goroutine or between renderer calls.
type sink struct {
	refuse bool
	got    []node.Releaser
}

func (s *sink) TryAccept(h node.Releaser) bool {
	if s.refuse {
		return false
	}
	s.got = append(s.got, h)
	return true
}

func (s *sink) drain() {
	for _, h := range s.got {
		h.Release()
	}
	s.got = nil
}

func newTestManager(t *testing.T) (*Manager, *renderer, *sink) {
	t.Helper()
	s := &sink{}
	m := NewWithDestructor(config.Default(), s)
	r := startRenderer(t)
	return m, r, s
}

// ============================================================================
// SETTLEMENT
// ============================================================================

func TestEventsApplyInOrder(t *testing.T) {
	m, r, _ := newTestManager(t)
	a, b, c := node.New("a", nil), node.New("b", nil), node.New("c", nil)

	require.NoError(t, m.RequestConnect(a, b))
	require.NoError(t, m.RequestDisconnect(a, b))
	require.NoError(t, m.RequestConnect(a, c))
	require.NoError(t, m.RequestConnect(a, b))
	assert.Equal(t, 4, m.Pending())

	r.do(m.PreProcess)

	outs := a.OutputNodes()
	require.Len(t, outs, 2)
	assert.Same(t, c, outs[0])
	assert.Same(t, b, outs[1])
	assert.Equal(t, int64(2), b.RefCount(), "test handle plus one edge")
	assert.Equal(t, int64(2), c.RefCount())
	assert.Equal(t, int64(1), a.RefCount(), "event counts on from were dropped")
	assert.Equal(t, uint64(4), m.Stats().Applied)
	assert.Equal(t, uint64(1), m.Stats().Quanta)
}

func TestParamEdges(t *testing.T) {
	m, r, _ := newTestManager(t)
	lfo := node.New("lfo", nil)
	cutoff := node.NewParam("cutoff", 800, nil)

	require.NoError(t, m.RequestConnectParam(lfo, cutoff))
	r.do(m.PreProcess)
	assert.Equal(t, int64(2), cutoff.RefCount())
	assert.Equal(t, 1, cutoff.Inputs())

	require.NoError(t, m.RequestDisconnectParam(lfo, cutoff))
	r.do(m.PreProcess)
	assert.Equal(t, int64(1), cutoff.RefCount())
	assert.Equal(t, 0, cutoff.Inputs())
	assert.Empty(t, lfo.OutputParams())
}

// TestDisconnectAll connects A→B, asks for disconnectAll(A) and checks B
// lost exactly the count the edge held.
func TestDisconnectAll(t *testing.T) {
	m, r, _ := newTestManager(t)
	a, b := node.New("a", nil), node.New("b", nil)
	p := node.NewParam("gain", 1, nil)

	require.NoError(t, m.RequestConnect(a, b))
	require.NoError(t, m.RequestConnectParam(a, p))
	r.do(m.PreProcess)
	before := b.RefCount()

	require.NoError(t, m.RequestDisconnectAll(a))
	r.do(m.PreProcess)

	assert.Empty(t, a.OutputNodes())
	assert.Empty(t, a.OutputParams())
	assert.Equal(t, before-1, b.RefCount())
	assert.Equal(t, int64(1), p.RefCount())
}

// TestDisconnectAllDuplicates walks a list with repeated targets.
func TestDisconnectAllDuplicates(t *testing.T) {
	m, r, _ := newTestManager(t)
	a, b, c := node.New("a", nil), node.New("b", nil), node.New("c", nil)
	for _, to := range []node.Node{b, c, b, b, c} {
		require.NoError(t, m.RequestConnect(a, to))
	}
	require.NoError(t, m.RequestDisconnectAll(a))
	r.do(m.PreProcess)

	assert.Empty(t, a.OutputNodes())
	assert.Equal(t, int64(1), b.RefCount())
	assert.Equal(t, int64(1), c.RefCount())
}

// TestNoLostRegistration floods a small channel from a control goroutine
// while the render goroutine settles concurrently.
func TestNoLostRegistration(t *testing.T) {
	const n = 2000
	cfg := config.Default()
	cfg.MutationCapacity = 16
	s := &sink{}
	m := NewWithDestructor(cfg, s)
	r := startRenderer(t)

	nodes := make([]*node.Base, n)
	for i := range nodes {
		nodes[i] = node.New("n"+debug.Itoa(i), nil)
	}

	var done atomic.Bool
	go func() {
		for _, nd := range nodes {
			if err := m.RegisterProcessingNode(nd); err != nil {
				panic(err)
			}
		}
		done.Store(true)
	}()

	r.do(func() {
		for !done.Load() {
			m.PreProcess()
		}
		m.PreProcess()
	})

	var got []node.Node
	r.do(func() { got = append(got, m.ProcessingNodes()...) })
	require.Len(t, got, n)
	seen := make(map[node.Node]bool, n)
	for _, nd := range got {
		assert.False(t, seen[nd], "registered twice: %s", nd.Name())
		seen[nd] = true
	}

	// Dropping the control handles hands the whole registry to the sink.
	for _, nd := range nodes {
		nd.Release()
	}
	r.do(m.PreProcess)
	assert.Len(t, s.got, n)
	assert.Equal(t, uint64(n), m.Stats().NodesReclaimed)
	s.drain()
	for _, nd := range nodes {
		assert.Equal(t, int64(0), nd.RefCount())
	}
}

func TestMalformedEventIsDropped(t *testing.T) {
	if debug.Enabled {
		t.Skip("malformed events assert in debug builds")
	}
	m, r, _ := newTestManager(t)
	a, b := node.New("a", nil), node.New("b", nil)

	// Only reachable by bypassing the request API.
	bad := nodeEvent(DisconnectAll, a, b)
	require.True(t, m.events.TrySend(bad))
	require.True(t, m.events.TrySend(Event{Kind: Kind(9), Payload: &ProcessingPayload{Node: retained(a)}}))
	require.True(t, m.events.TrySend(Event{Kind: Register, Payload: &NodePair{From: retained(a), To: retained(b)}}))
	require.True(t, m.events.TrySend(Event{Kind: DisconnectAll, Payload: &ProcessingPayload{Node: retained(a)}}))
	require.True(t, m.events.TrySend(Event{Kind: Register, Payload: &OutputsPayload{From: retained(b)}}))

	r.do(m.PreProcess)

	st := m.Stats()
	assert.Equal(t, uint64(5), st.Malformed)
	assert.Equal(t, uint64(0), st.Applied)
	assert.Equal(t, int64(1), a.RefCount())
	assert.Equal(t, int64(1), b.RefCount())
	assert.Empty(t, a.OutputNodes())
	assert.Empty(t, m.ProcessingNodes(), "a disconnect-all payload never registers")
}

func retained(n node.Node) node.Node {
	n.Retain()
	return n
}

// ============================================================================
// SHUTDOWN
// ============================================================================

func TestRequestsAfterClose(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.Close()

	a, b := node.New("a", nil), node.New("b", nil)
	s := node.NewSource("s", nil)
	p := node.NewParam("p", 0, nil)
	assert.ErrorIs(t, m.RequestConnect(a, b), ErrClosed)
	assert.ErrorIs(t, m.RequestConnectParam(a, p), ErrClosed)
	assert.ErrorIs(t, m.RequestDisconnectAll(a), ErrClosed)
	assert.ErrorIs(t, m.RegisterProcessingNode(a), ErrClosed)
	assert.ErrorIs(t, m.RegisterSourceNode(s), ErrClosed)
	assert.ErrorIs(t, m.RegisterParam(p), ErrClosed)

	for _, h := range []counted{a, b, s, p} {
		assert.Equal(t, int64(1), h.RefCount(), "refused event leaked a count")
	}
}

// TestCloseReleasesGraph shuts down with registered, wired nodes and a
// pending event, and checks every teardown ran exactly once.
func TestCloseReleasesGraph(t *testing.T) {
	m := New(config.Default())
	r := startRenderer(t)

	var torn sync.Map
	hook := func(name string) func() {
		return func() {
			_, dup := torn.LoadOrStore(name, true)
			assert.False(t, dup, "%s torn down twice", name)
		}
	}
	src := node.NewSource("src", hook("src"))
	a := node.New("a", hook("a"))
	b := node.New("b", hook("b"))
	p := node.NewParam("p", 0, hook("p"))

	src.Start()
	require.NoError(t, m.RegisterSourceNode(src))
	require.NoError(t, m.RegisterProcessingNode(a))
	require.NoError(t, m.RegisterProcessingNode(b))
	require.NoError(t, m.RegisterParam(p))
	require.NoError(t, m.RequestConnect(src, a))
	require.NoError(t, m.RequestConnect(a, b))
	require.NoError(t, m.RequestConnectParam(b, p))
	r.do(m.PreProcess)

	require.NoError(t, m.RequestDisconnect(a, b)) // left pending
	for _, h := range []node.Releaser{src, a, b, p} {
		h.Release()
	}

	m.Close()
	m.Close()

	for _, name := range []string{"src", "a", "b", "p"} {
		_, ok := torn.Load(name)
		assert.True(t, ok, "%s never torn down", name)
	}
	assert.Empty(t, m.ProcessingNodes())
	assert.Empty(t, m.SourceNodes())
	assert.Empty(t, m.Params())
}

func TestPreProcessAfterCloseIsNoop(t *testing.T) {
	m, r, _ := newTestManager(t)
	m.Close()
	r.do(m.PreProcess)
	assert.Equal(t, uint64(0), m.Stats().Quanta)
}

func TestRequestBlocksWhileFull(t *testing.T) {
	cfg := config.Default()
	cfg.MutationCapacity = 2
	m := NewWithDestructor(cfg, &sink{})
	r := startRenderer(t)
	a, b := node.New("a", nil), node.New("b", nil)

	require.NoError(t, m.RequestConnect(a, b))
	require.NoError(t, m.RequestConnect(a, b))

	sent := make(chan error, 1)
	go func() { sent <- m.RequestConnect(a, b) }()
	select {
	case <-sent:
		t.Fatal("request returned while the channel was full")
	case <-time.After(20 * time.Millisecond):
	}

	r.do(m.PreProcess)
	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("request still blocked after settlement")
	}
	r.do(m.PreProcess)
	assert.Len(t, a.OutputNodes(), 3)
}
