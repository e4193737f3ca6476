// Package gossip implements block propagation: hash announcements, on-demand
// block fetches, the retry timers behind them, and the eclipse-attack drop.
package gossip

import (
	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/link"
	"github.com/blocksim/selfminer/core/netmodel"
	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/internal/config"
	"github.com/blocksim/selfminer/internal/eventqueue"
	"github.com/blocksim/selfminer/internal/latency"
	"github.com/blocksim/selfminer/internal/xrand"
)

// WireSizeBlock is the simulated size, in bits, of block b on the wire:
// transaction size times transaction count, the coinbase counted like any
// other transaction.
func WireSizeBlock(cfg *config.Config, b *chain.Block) int64 {
	return cfg.TransactionSizeBits * int64(len(b.Transactions))
}

// linkTo returns the Link from n to peerID, preferring the malicious
// overlay when both endpoints are in the coalition.
func linkTo(net *netmodel.Network, n *node.Node, peerID int) *link.Link {
	if n.Malicious && net.IsMalicious(peerID) {
		if l := n.MaliciousLinkTo(peerID); l != nil {
			return l
		}
	}
	return n.CommonLinkTo(peerID)
}

// AnnounceHash broadcasts a ReceiveHash for b to every peer n has not yet
// sent that hash to. Malicious nodes broadcast over the malicious overlay
// unconditionally, and over the common overlay only if the block is not
// private; honest nodes have an empty MaliciousPeers slice so only the
// common-overlay branch fires.
func AnnounceHash(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, n *node.Node, b *chain.Block, now int64) {
	for _, l := range n.MaliciousPeers {
		sendHash(q, rng, cfg, n, l, b, now)
	}
	if !b.IsPrivate {
		for _, l := range n.CommonPeers {
			sendHash(q, rng, cfg, n, l, b, now)
		}
	}
}

func sendHash(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, n *node.Node, l *link.Link, b *chain.Block, now int64) {
	if l.HashesSent.Contains(b.ID) {
		return
	}
	l.HashesSent.Add(b.ID)
	lat := latency.Sample(rng, l, cfg.HashSizeBits, cfg.QueuingDelayConstant)
	q.Push(eventqueue.Event{
		Time: now + lat, Kind: eventqueue.ReceiveHash,
		Target: l.PeerID, BlockID: b.ID, FromID: n.ID,
	})
}

// ReceiveHash handles an incoming hash announcement for blockID from
// sender. The first announcement triggers a GetBlockRequest and arms a
// retry timer; later announcements only feed the timer's candidate queue,
// waking it if it went idle.
func ReceiveHash(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, net *netmodel.Network, n *node.Node, blockID, sender int, now int64) {
	if n.BlockIDsInTree.Contains(blockID) {
		return
	}
	if !n.HashesSeen.Contains(blockID) {
		n.HashesSeen.Add(blockID)
		l := linkTo(net, n, sender)
		requestBlock(q, rng, cfg, n, l, blockID, now)
		n.Timers[blockID] = link.NewTimer(blockID, sender)
		q.Push(eventqueue.Event{Time: now + cfg.TimerTimeout, Kind: eventqueue.TimerExpired, Target: n.ID, BlockID: blockID})
		return
	}
	t, ok := n.Timers[blockID]
	if !ok {
		return
	}
	t.PushCandidate(sender)
	if !t.IsRunning {
		q.Push(eventqueue.Event{Time: now, Kind: eventqueue.TimerExpired, Target: n.ID, BlockID: blockID})
	}
}

// LinkTo exposes the overlay-preference link lookup used internally.
func LinkTo(net *netmodel.Network, n *node.Node, peerID int) *link.Link {
	return linkTo(net, n, peerID)
}

// SendGetBlockRequest issues a GetBlockRequest for blockID from n to peerID,
// used both on first hash receipt and on timer-driven retries.
func SendGetBlockRequest(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, net *netmodel.Network, n *node.Node, peerID, blockID int, now int64) {
	l := linkTo(net, n, peerID)
	if l == nil {
		return
	}
	requestBlock(q, rng, cfg, n, l, blockID, now)
}

func requestBlock(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, n *node.Node, l *link.Link, blockID int, now int64) {
	if l == nil {
		// The announcing peer is no longer linked (mitigation may have
		// evicted it between announce and receipt); the timer machinery
		// will retry via another candidate.
		return
	}
	l.GetRequestsSent.Add(blockID)
	lat := latency.Sample(rng, l, cfg.GetMessageSizeBits, cfg.QueuingDelayConstant)
	q.Push(eventqueue.Event{
		Time: now + lat, Kind: eventqueue.GetBlockRequest,
		Target: l.PeerID, BlockID: blockID, FromID: n.ID,
	})
}

// ReceiveGetBlockRequest serves a GetBlockRequest for blockID from
// requester. With the eclipse attack enabled, a malicious node silently
// drops a request from a non-coalition requester for an honest-origin
// block.
func ReceiveGetBlockRequest(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, net *netmodel.Network, n *node.Node, blockID, requester int, now int64) {
	b, ok := n.BlocksByID[blockID]
	if !ok {
		return
	}
	if cfg.Eclipse && n.Malicious && !net.IsMalicious(requester) && b.IsHonest {
		return
	}
	l := linkTo(net, n, requester)
	if l == nil {
		return
	}
	lat := latency.Sample(rng, l, WireSizeBlock(cfg, b), cfg.QueuingDelayConstant)
	q.Push(eventqueue.Event{
		Time: now + lat, Kind: eventqueue.ReceiveBlock,
		Target: requester, Block: b, FromID: n.ID, Tries: 0,
	})
}

// ReceiveBlockOutcome reports what ReceiveBlock did, letting the
// simulation driver decide on dedup'd hash announcing and selfish-release
// follow-up without gossip depending on those packages.
type ReceiveBlockOutcome int

const (
	Dropped ReceiveBlockOutcome = iota
	Requeued
	Accepted
)

// ReceiveBlock handles an incoming full block: dedup, orphan retry (capped
// by MaximumRetries, simulating the sender re-transmitting until the parent
// arrives), and otherwise Accepted — validation and insertion are the
// caller's job, which keeps this package free of the validate package.
func ReceiveBlock(q *eventqueue.Queue, rng *xrand.Source, cfg *config.Config, net *netmodel.Network, n *node.Node, b *chain.Block, from int, tries int, now int64) ReceiveBlockOutcome {
	if n.BlockIDsInTree.Contains(b.ID) {
		return Dropped
	}
	if b.Parent != nil && !n.BlockIDsInTree.Contains(b.Parent.ID) {
		if tries > cfg.MaximumRetries {
			return Dropped
		}
		l := linkTo(net, net.Node(from), n.ID)
		if l == nil {
			return Dropped
		}
		lat := latency.Sample(rng, l, WireSizeBlock(cfg, b), cfg.QueuingDelayConstant)
		q.Push(eventqueue.Event{
			Time: now + lat, Kind: eventqueue.ReceiveBlock,
			Target: n.ID, Block: b, FromID: from, Tries: tries + 1,
		})
		return Requeued
	}
	return Accepted
}
