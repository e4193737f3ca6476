// Package node models a single mining peer: its roles, its two peer
// overlays, its local fork tree, and its in-flight block fetches.
package node

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/link"
	"github.com/blocksim/selfminer/core/mempool"
)

// Node is one simulated peer.
type Node struct {
	ID int

	Fast       bool
	Malicious  bool
	Ringmaster bool

	HashingPower int64
	IsMining     bool

	Mempool *mempool.Mempool

	CommonPeers    []*link.Link
	MaliciousPeers []*link.Link

	// Leaves is kept ordered by descending chain length, ties broken by
	// first insertion, so Leaves[0] is always the longest-chain tip.
	Leaves []*chain.LeafNode

	// PrivateLeaf is non-nil only at the ringmaster while it holds an
	// unreleased selfish chain.
	PrivateLeaf *chain.LeafNode

	// GenesisBalance is the initial per-node balance vector seeded at
	// genesis. Genesis has no coinbase transaction to replay, so any
	// balance reconstructed by walking forward from genesis must start
	// here rather than from zero.
	GenesisBalance []int64

	// KnownBlockFirstSeen maps a known block id to the simulated time it
	// was first observed by this node. It is a correctness ledger and must
	// never evict entries.
	KnownBlockFirstSeen map[int]int64
	BlockIDsInTree      mapset.Set[int]
	BlocksByID          map[int]*chain.Block

	Timers     map[int]*link.Timer
	HashesSeen mapset.Set[int]
}

// New builds an empty node shell; peers, mining power, and the genesis
// leaf are installed afterwards by the network/graph builder.
func New(id int) *Node {
	return &Node{
		ID:                  id,
		Mempool:             mempool.New(),
		KnownBlockFirstSeen: map[int]int64{},
		BlockIDsInTree:      mapset.NewThreadUnsafeSet[int](),
		BlocksByID:          map[int]*chain.Block{},
		Timers:              map[int]*link.Timer{},
		HashesSeen:          mapset.NewThreadUnsafeSet[int](),
	}
}

// HeadLeaf returns the current longest-chain tip, or nil if the node has no
// leaves yet.
func (n *Node) HeadLeaf() *chain.LeafNode {
	if len(n.Leaves) == 0 {
		return nil
	}
	return n.Leaves[0]
}

// InsertLeaf inserts leaf into the descending-length-ordered leaf slice,
// keeping ties in insertion order (a stable insertion point: the first
// position whose length is strictly less than leaf.Length).
func (n *Node) InsertLeaf(leaf *chain.LeafNode) {
	idx := len(n.Leaves)
	for i, l := range n.Leaves {
		if l.Length < leaf.Length {
			idx = i
			break
		}
	}
	n.Leaves = append(n.Leaves, nil)
	copy(n.Leaves[idx+1:], n.Leaves[idx:])
	n.Leaves[idx] = leaf
}

// RemoveLeafByBlockID removes the leaf tipped at blockID, if present.
func (n *Node) RemoveLeafByBlockID(blockID int) {
	for i, l := range n.Leaves {
		if l.Block.ID == blockID {
			n.Leaves = append(n.Leaves[:i], n.Leaves[i+1:]...)
			return
		}
	}
}

// LeafByBlockID returns the leaf tipped at blockID, or nil.
func (n *Node) LeafByBlockID(blockID int) *chain.LeafNode {
	for _, l := range n.Leaves {
		if l.Block.ID == blockID {
			return l
		}
	}
	return nil
}

// CommonLinkTo returns the Link record for peerID on the common overlay, or
// nil if peerID is not a common peer.
func (n *Node) CommonLinkTo(peerID int) *link.Link {
	for _, l := range n.CommonPeers {
		if l.PeerID == peerID {
			return l
		}
	}
	return nil
}

// MaliciousLinkTo returns the Link record for peerID on the malicious
// overlay, or nil.
func (n *Node) MaliciousLinkTo(peerID int) *link.Link {
	for _, l := range n.MaliciousPeers {
		if l.PeerID == peerID {
			return l
		}
	}
	return nil
}

// RemoveCommonPeer drops peerID from the common overlay peer slice.
func (n *Node) RemoveCommonPeer(peerID int) {
	for i, l := range n.CommonPeers {
		if l.PeerID == peerID {
			n.CommonPeers = append(n.CommonPeers[:i], n.CommonPeers[i+1:]...)
			return
		}
	}
}
