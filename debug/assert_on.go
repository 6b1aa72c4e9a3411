//go:build graphdebug

// assert_on.go
//
// Debug build: contract violations panic at the call site so tests built
// with -tags graphdebug catch them immediately.

package debug

// Enabled reports whether assertions are compiled in.
const Enabled = true

// Assert panics with msg when cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		panic("audiocore: assertion failed: " + msg)
	}
}
