// Package selfish implements the selfish-mining release: the coalition
// publishes its private chain once the honest chain catches up to within
// one block of it.
package selfish

import (
	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/gossip"
	"github.com/blocksim/selfminer/core/netmodel"
	"github.com/blocksim/selfminer/internal/config"
	"github.com/blocksim/selfminer/internal/eventqueue"
	"github.com/blocksim/selfminer/internal/latency"
	"github.com/blocksim/selfminer/internal/xrand"
)

// MaybeRelease is called after a coalition node's public head changes
// (an honest block extended its public longest chain). The comparison and
// release always happen against the ringmaster's own private leaf, since
// only the ringmaster ever holds one; triggeringNodeID is only used to
// confirm the event originated at a coalition node.
func MaybeRelease(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, net *netmodel.Network, triggeringNodeID int, now int64) bool {
	if !net.Node(triggeringNodeID).Malicious {
		return false
	}
	rm := net.Node(net.RingmasterID)
	if rm.PrivateLeaf == nil {
		return false
	}
	head := rm.HeadLeaf()
	if head == nil {
		return false
	}
	publicLength := head.Length
	privateLength := rm.PrivateLeaf.Length
	if publicLength != privateLength-1 && publicLength != privateLength {
		return false
	}
	release(q, rng, cfg, net, rm.ID, now)
	return true
}

func release(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, net *netmodel.Network, ringmasterID int, now int64) {
	rm := net.Node(ringmasterID)
	net.ReleaseCounter++
	counter := net.ReleaseCounter

	for _, l := range rm.MaliciousPeers {
		if l.ReleasesSent.Contains(counter) {
			continue
		}
		l.ReleasesSent.Add(counter)
		lat := latency.Sample(rng, l, cfg.GetMessageSizeBits, cfg.QueuingDelayConstant)
		q.Push(eventqueue.Event{
			Time: now + lat, Kind: eventqueue.ReleasePrivate,
			Target: l.PeerID, FromID: rm.ID, ReleaseCounter: counter,
		})
	}

	chainBlocks := privateChainBlocks(rm.PrivateLeaf.Block)
	for _, b := range chainBlocks {
		b.IsPrivate = false
		gossip.AnnounceHash(q, rng, cfg, rm, b, now)
	}

	rm.InsertLeaf(rm.PrivateLeaf)
	rm.PrivateLeaf = nil
}

// privateChainBlocks walks up from leaf while blocks are private, returning
// them oldest-first (root of the private subtree to leaf).
func privateChainBlocks(leaf *chain.Block) []*chain.Block {
	var blocks []*chain.Block
	for cur := leaf; cur != nil && cur.IsPrivate; cur = cur.Parent {
		blocks = append(blocks, cur)
	}
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks
}
