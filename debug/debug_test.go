package debug

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

// capture redirects out for the duration of fn.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	defer func() { out = prev }()
	fn()
	return buf.String()
}

func TestDropError(t *testing.T) {
	got := capture(t, func() { DropError("CLOSE", errors.New("boom")) })
	assert.Equal(t, "CLOSE: boom\n", got)

	got = capture(t, func() { DropError("GC", nil) })
	assert.Equal(t, "GC\n", got)
}

func TestDropMessage(t *testing.T) {
	got := capture(t, func() { DropMessage("INIT", "ready") })
	assert.Equal(t, "INIT: ready\n", got)
}

func TestItoaMatchesStrconv(t *testing.T) {
	for _, v := range []int{0, 1, -1, 9, 10, 1024, -4096, math.MaxInt64, math.MinInt64 + 1} {
		assert.Equal(t, strconv.Itoa(v), Itoa(v), "value %d", v)
	}
}

func TestUtoaMatchesStrconv(t *testing.T) {
	for _, v := range []uint64{0, 7, 100, math.MaxUint64} {
		assert.Equal(t, strconv.FormatUint(v, 10), Utoa(v))
	}
}
