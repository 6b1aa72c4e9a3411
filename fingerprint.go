// fingerprint.go - content hash of the settled graph
//
// The render goroutine owns the registries, so the control goroutine asks
// for a fingerprint through a sampler and the render loop computes it between
// quanta. The hash covers node names, their outputs and modulation targets,
// and is independent of registry order.

package main

import (
	"encoding/hex"
	"io"
	"slices"
	"strings"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"golang.org/x/crypto/sha3"

	"audiocore/control"
	"audiocore/debug"
	"audiocore/graph"
	"audiocore/node"
)

// sampler hands one fingerprint from the render goroutine to the control
// goroutine.
type sampler struct {
	want  atomix.Bool
	ready atomix.Bool
	sum   [32]byte
}

// request arms the sampler; called by the control goroutine.
func (p *sampler) request() {
	p.ready.StoreRelease(false)
	p.want.StoreRelease(true)
}

// pending reports whether a fingerprint is requested. The render loop
// samples it before settlement so every event sent ahead of the request is
// applied by the time serve runs.
func (p *sampler) pending() bool {
	return p.want.LoadAcquire()
}

// serve computes the fingerprint; render goroutine.
func (p *sampler) serve(m *graph.Manager) {
	p.sum = fingerprint(m.SourceNodes(), m.ProcessingNodes(), m.Params())
	p.want.StoreRelease(false)
	p.ready.StoreRelease(true)
}

// wait blocks until the fingerprint is ready or shutdown starts.
func (p *sampler) wait() ([32]byte, bool) {
	var bo iox.Backoff
	for !p.ready.LoadAcquire() {
		if control.Stopping() {
			return [32]byte{}, false
		}
		bo.Wait()
	}
	return p.sum, true
}

func fingerprint(sources []node.SourceNode, processing []node.Node, params []*node.Param) [32]byte {
	lines := make([]string, 0, len(sources)+len(processing)+len(params))
	for _, s := range sources {
		lines = append(lines, describe("S ", s))
	}
	for _, n := range processing {
		lines = append(lines, describe("N ", n))
	}
	for _, p := range params {
		lines = append(lines, "P "+p.Name()+" "+debug.Itoa(p.Inputs()))
	}
	slices.Sort(lines)

	h := sha3.New256()
	for _, l := range lines {
		_, _ = io.WriteString(h, l)
		_, _ = h.Write([]byte{'\n'})
	}
	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

func describe(tag string, n node.Node) string {
	outs := make([]string, 0, len(n.OutputNodes()))
	for _, o := range n.OutputNodes() {
		outs = append(outs, o.Name())
	}
	params := make([]string, 0, len(n.OutputParams()))
	for _, p := range n.OutputParams() {
		params = append(params, p.Name())
	}
	slices.Sort(outs)
	slices.Sort(params)
	return tag + n.Name() + " > " + strings.Join(outs, ",") + " ~ " + strings.Join(params, ",")
}

func hexSum(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}
