package gossip

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

func testNetwork(n int, maliciousIDs ...int) *netmodel.Network {
	malicious := map[int]bool{}
	for _, id := range maliciousIDs {
		malicious[id] = true
	}
	nodes := make([]*node.Node, n)
	for i := 0; i < n; i++ {
		nd := node.New(i)
		nd.Malicious = malicious[i]
		nodes[i] = nd
	}
	return &netmodel.Network{Nodes: nodes}
}

func connectCommon(a, b *node.Node, delay, bw int64) {
	a.CommonPeers = append(a.CommonPeers, link.New(b.ID, delay, bw))
	b.CommonPeers = append(b.CommonPeers, link.New(a.ID, delay, bw))
}

func connectMalicious(a, b *node.Node, delay, bw int64) {
	a.MaliciousPeers = append(a.MaliciousPeers, link.New(b.ID, delay, bw))
	b.MaliciousPeers = append(b.MaliciousPeers, link.New(a.ID, delay, bw))
}

func TestWireSizeBlock(t *testing.T) {
	cfg := config.Defaults()
	cfg.TransactionSizeBits = 100
	b := &chain.Block{Transactions: []*chain.Transaction{{}, {}, {}}}
	if got := WireSizeBlock(&cfg, b); got != 300 {
		t.Errorf("WireSizeBlock: have %d, want 300", got)
	}
}

func TestLinkToPrefersMaliciousOverlayWhenBothMalicious(t *testing.T) {
	net := testNetwork(2, 0, 1)
	connectCommon(net.Nodes[0], net.Nodes[1], 100, 5000)
	connectMalicious(net.Nodes[0], net.Nodes[1], 1, 100000)

	got := LinkTo(net, net.Nodes[0], 1)
	if got == nil || got.PropagationDelay != 1 {
		t.Errorf("LinkTo should prefer the malicious link between two coalition nodes")
	}
}

func TestLinkToFallsBackToCommonForHonestPeer(t *testing.T) {
	net := testNetwork(2, 0)
	connectCommon(net.Nodes[0], net.Nodes[1], 100, 5000)

	got := LinkTo(net, net.Nodes[0], 1)
	if got == nil || got.PropagationDelay != 100 {
		t.Errorf("LinkTo should use the common link when the peer is not in the coalition")
	}
}

func TestAnnounceHashSkipsCommonOverlayForPrivateBlocks(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	net := testNetwork(2, 0, 1)
	connectCommon(net.Nodes[0], net.Nodes[1], 10, 5000)

	b := &chain.Block{ID: 1, IsPrivate: true}
	AnnounceHash(q, rng, &cfg, net.Nodes[0], b, 0)

	if q.Len() != 0 {
		t.Errorf("a private block must not be announced over the common overlay: have %d queued events, want 0", q.Len())
	}
}

func TestAnnounceHashDedupsPerLink(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	net := testNetwork(2, 0)
	connectCommon(net.Nodes[0], net.Nodes[1], 10, 5000)

	b := &chain.Block{ID: 1}
	AnnounceHash(q, rng, &cfg, net.Nodes[0], b, 0)
	AnnounceHash(q, rng, &cfg, net.Nodes[0], b, 0)

	if q.Len() != 1 {
		t.Errorf("AnnounceHash should not resend the same hash twice over the same link: have %d events, want 1", q.Len())
	}
}

func TestReceiveGetBlockRequestEclipseDropsHonestOriginForOutsider(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	cfg.Eclipse = true
	net := testNetwork(2, 0) // node 0 malicious, node 1 honest
	connectCommon(net.Nodes[0], net.Nodes[1], 10, 5000)

	honestBlock := &chain.Block{ID: 1, IsHonest: true, MinerID: 1}
	net.Nodes[0].BlocksByID[1] = honestBlock

	ReceiveGetBlockRequest(q, rng, &cfg, net, net.Nodes[0], 1, 1, 0)

	if q.Len() != 0 {
		t.Errorf("eclipse attack should drop an honest-origin block request from a non-coalition requester: have %d events, want 0", q.Len())
	}
}

func TestReceiveGetBlockRequestServesWithoutEclipse(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	cfg.Eclipse = false
	net := testNetwork(2, 0)
	connectCommon(net.Nodes[0], net.Nodes[1], 10, 5000)

	honestBlock := &chain.Block{ID: 1, IsHonest: true, MinerID: 1}
	net.Nodes[0].BlocksByID[1] = honestBlock

	ReceiveGetBlockRequest(q, rng, &cfg, net, net.Nodes[0], 1, 1, 0)

	if q.Len() != 1 {
		t.Errorf("without the eclipse attack, the request should be served: have %d events, want 1", q.Len())
	}
}

func TestReceiveBlockDropsAlreadyKnown(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	net := testNetwork(2)
	n := net.Nodes[0]
	n.BlockIDsInTree.Add(1)

	outcome := ReceiveBlock(q, rng, &cfg, net, n, &chain.Block{ID: 1}, 1, 0, 0)
	if outcome != Dropped {
		t.Errorf("ReceiveBlock on an already-known block: have %v, want Dropped", outcome)
	}
}

func TestReceiveBlockRequeuesOrphanUntilRetryLimit(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	cfg.MaximumRetries = 2
	net := testNetwork(2)
	connectCommon(net.Nodes[0], net.Nodes[1], 10, 5000)

	parent := &chain.Block{ID: 1}
	orphan := &chain.Block{ID: 2, Parent: parent}

	outcome := ReceiveBlock(q, rng, &cfg, net, net.Nodes[0], orphan, 1, 0, 0)
	if outcome != Requeued {
		t.Fatalf("ReceiveBlock on a block whose parent is unknown: have %v, want Requeued", outcome)
	}

	outcome = ReceiveBlock(q, rng, &cfg, net, net.Nodes[0], orphan, 1, cfg.MaximumRetries+1, 0)
	if outcome != Dropped {
		t.Errorf("ReceiveBlock should drop an orphan once retries are exhausted: have %v, want Dropped", outcome)
	}
}

func TestReceiveBlockAcceptsKnownParent(t *testing.T) {
	q := eventqueue.New()
	rng := xrand.New(1)
	cfg := config.Defaults()
	net := testNetwork(2)
	n := net.Nodes[0]
	parent := &chain.Block{ID: 1}
	n.BlockIDsInTree.Add(1)

	outcome := ReceiveBlock(q, rng, &cfg, net, n, &chain.Block{ID: 2, Parent: parent}, 1, 0, 0)
	if outcome != Accepted {
		t.Errorf("ReceiveBlock with a known parent: have %v, want Accepted", outcome)
	}
}
