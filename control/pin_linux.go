// pin_linux.go - Linux CPU affinity via sched_setaffinity(2)

//go:build linux

package control

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"audiocore/constants"
)

// Pin binds the calling OS thread to one CPU. The caller must already hold
// the thread with runtime.LockOSThread. constants.NoCore is a no-op.
func Pin(core int) error {
	if core == constants.NoCore {
		return nil
	}
	if core < 0 || core >= runtime.NumCPU() {
		return fmt.Errorf("control: cpu %d out of range", core)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("control: pin to cpu %d: %w", core, err)
	}
	return nil
}
