// wait.go
//
// Wait strategies for a producer facing a full ring or a consumer facing an
// empty one. TrySend/TryReceive never consult these; only Send/Receive do.
//
//   Spin     tight loop with a CPU pause hint; lowest latency, burns a core.
//   Backoff  adaptive spin → yield → short sleep; for waits that are rare.
//   Park     blocks on a doorbell rung by the other side; costs a wake-up
//            but no CPU while idle. The ringing side never blocks.

package spsc

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// Wait selects how Send and Receive wait.
type Wait uint8

const (
	Spin Wait = iota
	Backoff
	Park
)

var waitNames = [...]string{
	Spin:    "spin",
	Backoff: "backoff",
	Park:    "park",
}

// String returns the config name of w.
func (w Wait) String() string {
	if int(w) < len(waitNames) {
		return waitNames[w]
	}
	return "unknown"
}

// ParseWait maps a config name back to a Wait.
func ParseWait(name string) (Wait, bool) {
	for i, n := range waitNames {
		if n == name {
			return Wait(i), true
		}
	}
	return 0, false
}

// waiter carries the per-call state of one blocking Send or Receive.
type waiter struct {
	kind Wait
	sw   spin.Wait
	bo   iox.Backoff
}

// wait blocks for one round; bell is only used by Park.
func (w *waiter) wait(bell <-chan struct{}) {
	switch w.kind {
	case Spin:
		w.sw.Once()
	case Backoff:
		w.bo.Wait()
	case Park:
		<-bell
	}
}
