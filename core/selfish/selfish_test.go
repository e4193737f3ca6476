package selfish

import (
	"testing"

	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/link"
	"github.com/blocksim/selfminer/core/netmodel"
	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/internal/config"
	"github.com/blocksim/selfminer/internal/eventqueue"
	"github.com/blocksim/selfminer/internal/xrand"
)

func leaf(id, length int) *chain.LeafNode {
	return &chain.LeafNode{Block: &chain.Block{ID: id}, Length: length, TransactionIDs: map[int]struct{}{}}
}

func newCoalitionNetwork() (*netmodel.Network, *config.Config) {
	ringmaster := node.New(0)
	ringmaster.Malicious = true
	ringmaster.Ringmaster = true
	accomplice := node.New(1)
	accomplice.Malicious = true
	honest := node.New(2)

	l := link.New(1, 1, 100000)
	ringmaster.MaliciousPeers = append(ringmaster.MaliciousPeers, l)

	net := &netmodel.Network{
		Nodes:        []*node.Node{ringmaster, accomplice, honest},
		CoalitionIDs: []int{0, 1},
		HonestIDs:    []int{2},
		RingmasterID: 0,
	}
	cfg := config.Defaults()
	return net, &cfg
}

func TestMaybeReleaseIgnoresTriggerFromHonestNode(t *testing.T) {
	net, cfg := newCoalitionNetwork()
	q := eventqueue.New()
	rng := xrand.New(1)
	net.Nodes[0].PrivateLeaf = leaf(1, 3)
	net.Nodes[0].Leaves = []*chain.LeafNode{leaf(0, 2)}

	if MaybeRelease(q, rng, cfg, net, 2, 0) {
		t.Errorf("MaybeRelease should not trigger from a non-coalition node")
	}
}

func TestMaybeReleaseNoPrivateLeaf(t *testing.T) {
	net, cfg := newCoalitionNetwork()
	q := eventqueue.New()
	rng := xrand.New(1)
	net.Nodes[0].Leaves = []*chain.LeafNode{leaf(0, 2)}

	if MaybeRelease(q, rng, cfg, net, 1, 0) {
		t.Errorf("MaybeRelease should not trigger when the ringmaster holds no private leaf")
	}
}

func TestMaybeReleaseTriggersWhenPublicCatchesUp(t *testing.T) {
	net, cfg := newCoalitionNetwork()
	q := eventqueue.New()
	rng := xrand.New(1)

	genesis := &chain.Block{ID: 0}
	priv1 := &chain.Block{ID: 1, Parent: genesis, IsPrivate: true, MinerID: 0}
	priv2 := &chain.Block{ID: 2, Parent: priv1, IsPrivate: true, MinerID: 0}

	honestTip := &chain.Block{ID: 3, Parent: genesis, IsHonest: true}
	net.Nodes[0].Leaves = []*chain.LeafNode{{Block: honestTip, Length: 2, TransactionIDs: map[int]struct{}{}}}
	net.Nodes[0].PrivateLeaf = &chain.LeafNode{Block: priv2, Length: 3, TransactionIDs: map[int]struct{}{}}

	if !MaybeRelease(q, rng, cfg, net, 1, 10) {
		t.Fatalf("MaybeRelease should trigger when public length is within one of the private length")
	}
	if net.Nodes[0].PrivateLeaf != nil {
		t.Errorf("after release the ringmaster should no longer hold a private leaf")
	}
	if net.Nodes[0].HeadLeaf() == nil || net.Nodes[0].HeadLeaf().Block.ID != priv2.ID {
		t.Errorf("the released private leaf should become (part of) the public leaf set")
	}
	if priv1.IsPrivate || priv2.IsPrivate {
		t.Errorf("released blocks must have IsPrivate cleared")
	}
	if q.Len() == 0 {
		t.Errorf("release should broadcast ReleasePrivate/hash-announce events")
	}
}

func TestMaybeReleaseDoesNotTriggerWhenFarBehind(t *testing.T) {
	net, cfg := newCoalitionNetwork()
	q := eventqueue.New()
	rng := xrand.New(1)

	net.Nodes[0].Leaves = []*chain.LeafNode{leaf(0, 1)}
	net.Nodes[0].PrivateLeaf = leaf(9, 5)

	if MaybeRelease(q, rng, cfg, net, 1, 0) {
		t.Errorf("MaybeRelease should not trigger when the public chain is more than one block behind")
	}
}
