// Package latency implements the per-message delay model: fixed propagation
// delay plus transmission time plus a sampled queuing delay.
package latency

import (
	"github.com/blocksim/selfminer/core/link"
	"github.com/blocksim/selfminer/internal/xrand"
)

// Sample returns the latency, in ms, for sending sizeBits over l:
// delay + size/bandwidth + Exp(queuingDelayConstant/bandwidth).
func Sample(rng *xrand.Source, l *link.Link, sizeBits int64, queuingDelayConstant float64) int64 {
	transmission := sizeBits / l.Bandwidth
	queuing := rng.Exponential(queuingDelayConstant / float64(l.Bandwidth))
	return l.PropagationDelay + transmission + queuing
}
