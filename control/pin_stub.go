// pin_stub.go - CPU affinity is a no-op where sched_setaffinity(2) is missing

//go:build !linux

package control

// Pin reports success without binding; the thread stays wherever the
// scheduler puts it.
func Pin(core int) error { return nil }
