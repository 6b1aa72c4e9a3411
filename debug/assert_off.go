//go:build !graphdebug

// assert_off.go
//
// Release build: Assert compiles to nothing. Callers that must react to a
// violation in release builds check the condition themselves.

package debug

// Enabled reports whether assertions are compiled in.
const Enabled = false

// Assert is a no-op without the graphdebug tag.
//
//go:nosplit
func Assert(bool, string) {}
