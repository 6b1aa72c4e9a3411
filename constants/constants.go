// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go - compile-time tunables for the graph core
//
// Purpose:
//   - Default capacities for the two SPSC channels and the registries.
//   - Render quantum geometry used by the simulation binary.
//
// Notes:
//   - Channel capacities are rounded up to a power of two by spsc.New.
//   - Runtime overrides live in config.Config; these are only the defaults.
//
// ⚠️ No runtime logic here - all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Channels ───────────────────────────────────

const (
	// MutationCapacity sizes the control→render event channel.
	// A full channel blocks the control thread, so this is sized for bursts
	// such as building a whole voice (dozens of nodes plus their wiring)
	// within a single quantum.
	MutationCapacity = 1024

	// DestructorCapacity sizes the render→worker reclamation channel.
	// A full channel only defers reclamation by one quantum.
	DestructorCapacity = 1024
)

// ───────────────────────────── Registries ─────────────────────────────────

const (
	// RegistryCapacity is the initial capacity of each registry slice.
	// Growth past it allocates on the render thread during settlement,
	// so hosts that build large graphs should raise it in config.
	RegistryCapacity = 32
)

// ───────────────────────────── Render quantum ─────────────────────────────

const (
	// QuantumFrames is the number of sample frames per render callback.
	QuantumFrames = 128

	// SampleRate is the default rate the simulation renders at.
	SampleRate = 48000

	// QuantumNanos is the wall-clock period of one quantum at SampleRate.
	QuantumNanos = QuantumFrames * 1_000_000_000 / SampleRate
)

// ───────────────────────────── Worker placement ───────────────────────────

const (
	// NoCore disables CPU pinning for a worker thread.
	NoCore = -1
)
