// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go - cold-path diagnostics for the audio graph core
//
// Purpose:
//   - Logs infrequent events (construction, shutdown, contract violations)
//     without pulling fmt into the packages that sit next to the render loop.
//   - One write(2) per message, straight to stderr.
//
// Notes:
//   - Messages are built with plain string concatenation.
//   - Itoa covers the integer formatting the callers need.
//
// ⚠️ Never invoke from inside a render quantum except on a branch that is
// already a contract violation.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"io"
	"os"
)

// out is swapped by tests to capture output.
var out io.Writer = os.Stderr

// DropError logs "<prefix>: <err>" or just "<prefix>" when err is nil.
//
//go:nosplit
func DropError(prefix string, err error) {
	if err != nil {
		write(prefix + ": " + err.Error() + "\n")
		return
	}
	write(prefix + "\n")
}

// DropMessage logs "<prefix>: <message>".
//
//go:nosplit
func DropMessage(prefix, message string) {
	write(prefix + ": " + message + "\n")
}

// write ignores short writes and errors; stderr going away is not
// something a diagnostic helper can recover from.
func write(msg string) {
	_, _ = io.WriteString(out, msg)
}

// Itoa formats v in base 10 using a stack buffer.
func Itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Utoa is Itoa for unsigned counters.
func Utoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
