// ============================================================================
// REGISTRY RECLAMATION
// ============================================================================
//
// Once per quantum the render goroutine looks for registry entries that
// nothing else owns and hands them to the reclaimer.
//
// Rules:
//   - an entry is eligible at exactly one count (the registry's own)
//   - a source must also be unscheduled or finished
//   - an entry is cleaned before it is offered
//   - a refused offer keeps the entry for the next quantum
//
// ⚠️ Render goroutine only. Never blocks and never runs a teardown.

package graph

import "audiocore/node"

// reclaim scans the registries for entries whose only owner is the
// registry itself. Sources go first because cleaning a source drops the
// counts it holds on its outputs, which may make them eligible in the
// processing pass of the same quantum. A refused hand-off leaves the entry
// in place for the next quantum.
func (m *Manager) reclaim() {
	for i := 0; i < len(m.sources); {
		s := m.sources[i]
		if s.RefCount() != 1 || !(s.IsUnscheduled() || s.IsFinished()) || !m.handOff(s) {
			i++
			continue
		}
		m.sources = swapRemove(m.sources, i)
		m.stats.nodesReclaimed.AddAcqRel(1)
	}
	for i := 0; i < len(m.processing); {
		n := m.processing[i]
		if n.RefCount() != 1 || !m.handOff(n) {
			i++
			continue
		}
		m.processing = swapRemove(m.processing, i)
		m.stats.nodesReclaimed.AddAcqRel(1)
	}
	for i := 0; i < len(m.params); {
		p := m.params[i]
		if p.RefCount() != 1 || !m.handOff(p) {
			i++
			continue
		}
		m.params = swapRemove(m.params, i)
		m.stats.paramsReclaimed.AddAcqRel(1)
	}
}

// cleaner is the part of a registry entry the scan needs.
type cleaner interface {
	node.Releaser
	Cleanup()
}

// handOff cleans h and offers it to the reclaimer. On success the
// registry's count now belongs to the reclaimer.
func (m *Manager) handOff(h cleaner) bool {
	h.Cleanup()
	if m.reclaimer.TryAccept(h) {
		return true
	}
	m.stats.deferred.AddAcqRel(1)
	return false
}

// swapRemove drops s[i] by moving the last element into its place. The
// vacated tail slot is zeroed so the backing array holds no stale handle.
func swapRemove[T any](s []T, i int) []T {
	last := len(s) - 1
	s[i] = s[last]
	var zero T
	s[last] = zero
	return s[:last]
}
