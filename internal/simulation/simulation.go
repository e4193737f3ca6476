// Package simulation is the driver: it builds the Network, seeds genesis
// and the initial transaction-creation events, and drains the event queue
// until empty, dispatching each event to its target node's handler.
package simulation

import (
	"fmt"

	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/gossip"
	"github.com/blocksim/selfminer/core/link"
	"github.com/blocksim/selfminer/core/miner"
	"github.com/blocksim/selfminer/core/netmodel"
	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/core/selfish"
	"github.com/blocksim/selfminer/core/validate"
	"github.com/blocksim/selfminer/internal/config"
	"github.com/blocksim/selfminer/internal/eventqueue"
	"github.com/blocksim/selfminer/internal/latency"
	"github.com/blocksim/selfminer/internal/overlay"
	"github.com/blocksim/selfminer/internal/report"
	"github.com/blocksim/selfminer/internal/xrand"
)

// Simulation is the per-run driver state.
type Simulation struct {
	cfg     *config.Config
	net     *netmodel.Network
	queue   *eventqueue.Queue
	rng     *xrand.Source
	ids     *chain.IDGen
	logger  *report.Logger
	simTime int64

	txCreated int

	commonAdj, maliciousAdj     map[int][]int
	commonEdges, maliciousEdges []overlay.Edge
}

// New builds a Network (nodes, overlays, genesis) and seeds the initial
// CreateTransaction events.
func New(cfg *config.Config, logger *report.Logger) (*Simulation, error) {
	rng := xrand.New(cfg.Seed)
	sim := &Simulation{
		cfg:    cfg,
		queue:  eventqueue.New(),
		rng:    rng,
		ids:    &chain.IDGen{},
		logger: logger,
	}

	if err := sim.buildNetwork(); err != nil {
		return nil, err
	}
	sim.seedGenesis()
	sim.seedInitialTransactions()

	return sim, nil
}

func (s *Simulation) buildNetwork() error {
	cfg := s.cfg
	allIDs := make([]int, cfg.NumNodes)
	for i := range allIDs {
		allIDs[i] = i
	}
	coalitionSorted := s.rng.ChoosePercent(cfg.NumNodes, cfg.PercentMalicious)
	coalitionSet := map[int]bool{}
	for _, id := range coalitionSorted {
		coalitionSet[id] = true
	}
	ringmasterID := -1
	for _, id := range allIDs {
		if coalitionSet[id] {
			ringmasterID = id
			break
		}
	}

	nodes := make([]*node.Node, cfg.NumNodes)
	var coalitionIDs, honestIDs []int
	for _, id := range allIDs {
		n := node.New(id)
		if coalitionSet[id] {
			n.Malicious = true
			n.Fast = true
			coalitionIDs = append(coalitionIDs, id)
			if id == ringmasterID {
				n.Ringmaster = true
				n.HashingPower = int64(len(coalitionSorted))
			}
		} else {
			honestIDs = append(honestIDs, id)
			n.HashingPower = 1
		}
		nodes[id] = n
	}

	s.net = &netmodel.Network{
		Nodes:        nodes,
		CoalitionIDs: coalitionIDs,
		HonestIDs:    honestIDs,
		RingmasterID: ringmasterID,
	}

	commonAdj, commonEdges, err := overlay.Build(s.rng, allIDs)
	if err != nil {
		return fmt.Errorf("simulation: building common overlay: %w", err)
	}
	maliciousAdj, maliciousEdges, err := overlay.Build(s.rng, coalitionIDs)
	if err != nil {
		return fmt.Errorf("simulation: building malicious overlay: %w", err)
	}
	overlay.InstallCommonLinks(s.rng, nodes, commonAdj, cfg.PropagationDelayMin, cfg.PropagationDelayMax, cfg.FastBandwidth, cfg.SlowBandwidth)
	overlay.InstallMaliciousLinks(s.rng, nodes, maliciousAdj, cfg.PropagationDelayMaliciousMin, cfg.PropagationDelayMaliciousMax, cfg.FastBandwidth, cfg.SlowBandwidth)

	s.commonAdj, s.commonEdges = commonAdj, commonEdges
	s.maliciousAdj, s.maliciousEdges = maliciousAdj, maliciousEdges

	s.logger.Info("network built",
		"num_nodes", cfg.NumNodes, "coalition_size", len(coalitionIDs),
		"ringmaster", ringmasterID, "eclipse", cfg.Eclipse)
	return nil
}

func (s *Simulation) seedGenesis() {
	genesis := &chain.Block{ID: s.ids.NextBlockID(), MinerID: -1, IsHonest: true}
	for _, n := range s.net.Nodes {
		leaf := chain.NewGenesisLeaf(genesis, s.cfg.NumNodes, s.cfg.InitialBalance)
		n.Leaves = []*chain.LeafNode{leaf}
		n.GenesisBalance = leaf.CloneBalance()
		n.BlockIDsInTree.Add(genesis.ID)
		n.BlocksByID[genesis.ID] = genesis
		n.KnownBlockFirstSeen[genesis.ID] = 0
	}
}

func (s *Simulation) seedInitialTransactions() {
	for _, n := range s.net.Nodes {
		t := s.rng.Exponential(float64(s.cfg.MeanTxInterArrival))
		s.queue.Push(eventqueue.Event{Time: t, Kind: eventqueue.CreateTransaction, Target: n.ID})
	}
}

// Run drains the event queue until empty. There is no other termination
// predicate: the initial-transaction budget ends the stream of
// CreateTransaction events, and mined blocks and their gossip continue
// until the queue is exhausted.
func (s *Simulation) Run() {
	for {
		ev, ok := s.queue.Pop()
		if !ok {
			break
		}
		if ev.Time < s.simTime {
			s.logger.Error("event scheduled in the past", report.At(s.simTime, "event_time", ev.Time, "kind", ev.Kind.String())...)
			continue
		}
		s.simTime = ev.Time
		s.dispatch(ev)
	}
}

// Network exposes the built network for the stats/report pass.
func (s *Simulation) Network() *netmodel.Network { return s.net }

// Topology exposes the overlay adjacency/edge data for WriteNetworkFiles.
func (s *Simulation) Topology() (commonAdj map[int][]int, commonEdges []overlay.Edge, maliciousAdj map[int][]int, maliciousEdges []overlay.Edge) {
	return s.commonAdj, s.commonEdges, s.maliciousAdj, s.maliciousEdges
}

func (s *Simulation) dispatch(ev eventqueue.Event) {
	switch ev.Kind {
	case eventqueue.CreateTransaction:
		s.handleCreateTransaction(ev)
	case eventqueue.ReceiveTransaction:
		s.handleReceiveTransaction(ev)
	case eventqueue.ReceiveBlock:
		s.handleReceiveBlock(ev)
	case eventqueue.BlockMined:
		s.handleBlockMined(ev)
	case eventqueue.ReceiveHash:
		s.handleReceiveHash(ev)
	case eventqueue.GetBlockRequest:
		s.handleGetBlockRequest(ev)
	case eventqueue.TimerExpired:
		s.handleTimerExpired(ev)
	case eventqueue.ReleasePrivate:
		s.handleReleasePrivate(ev)
	}
}

func (s *Simulation) handleCreateTransaction(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	if s.txCreated >= s.cfg.InitialNumberOfTransactions {
		return
	}
	s.txCreated++

	receiver := s.rng.UniformInt(0, s.cfg.NumNodes-1)
	amount := int64(s.rng.UniformInt(int(s.cfg.TxMin), int(s.cfg.TxMax)))
	tx := chain.NewTransaction(s.ids.NextTransactionID(), n.ID, receiver, amount)
	n.Mempool.Push(tx)

	for _, l := range n.CommonPeers {
		s.sendTransaction(n, l, tx)
	}
	s.beginMining(n)

	if s.txCreated < s.cfg.InitialNumberOfTransactions {
		next := s.rng.Exponential(float64(s.cfg.MeanTxInterArrival))
		s.queue.Push(eventqueue.Event{Time: s.simTime + next, Kind: eventqueue.CreateTransaction, Target: n.ID})
	}
}

func (s *Simulation) sendTransaction(n *node.Node, l *link.Link, tx *chain.Transaction) {
	if l.TransactionsSent.Contains(tx.ID) {
		return
	}
	l.TransactionsSent.Add(tx.ID)
	lat := latency.Sample(s.rng, l, s.cfg.TransactionSizeBits, s.cfg.QueuingDelayConstant)
	s.queue.Push(eventqueue.Event{
		Time: s.simTime + lat, Kind: eventqueue.ReceiveTransaction,
		Target: l.PeerID, Tx: tx, FromID: n.ID,
	})
}

func (s *Simulation) handleReceiveTransaction(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	tx := ev.Tx
	if n.Mempool.Contains(tx.ID) {
		s.logger.Debug("duplicate transaction dropped", report.At(s.simTime, "node", n.ID, "tx", tx.ID)...)
		return
	}
	n.Mempool.Push(tx)

	for _, l := range n.CommonPeers {
		if l.PeerID == ev.FromID || l.TransactionsSent.Contains(tx.ID) {
			continue
		}
		s.sendTransaction(n, l, tx)
		break
	}
	s.beginMining(n)
}

func (s *Simulation) beginMining(n *node.Node) {
	if n.IsMining {
		return
	}
	parent := miner.SelectChain(n)
	blk, ok := miner.BuildBlock(n, n.Mempool, s.ids, parent, s.cfg.MiningReward, s.simTime)
	if !ok {
		return
	}
	n.IsMining = true
	dt := miner.SampleMiningTime(s.rng, s.cfg.BlockInterArrival, s.cfg.NumNodes, n.HashingPower)
	s.queue.Push(eventqueue.Event{Time: s.simTime + dt, Kind: eventqueue.BlockMined, Target: n.ID, Block: blk})
}

func (s *Simulation) handleBlockMined(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	b := ev.Block
	n.IsMining = false

	stillTip := false
	if n.Ringmaster && n.PrivateLeaf != nil && n.PrivateLeaf.Block.ID == b.Parent.ID {
		stillTip = true
	} else if head := n.HeadLeaf(); head != nil && head.Block.ID == b.Parent.ID {
		stillTip = true
	}

	if stillTip {
		res := validate.ValidateAndAdd(n, b, n.Malicious, s.simTime)
		if res.OK {
			s.logger.Info("block mined and accepted", report.At(s.simTime, "node", n.ID, "block", b.ID, "private", b.IsPrivate)...)
			gossip.AnnounceHash(s.queue, s.rng, s.cfg, n, b, s.simTime)
			if res.HeadChanged && n.Malicious {
				selfish.MaybeRelease(s.queue, s.rng, s.cfg, s.net, n.ID, s.simTime)
			}
		}
	} else {
		s.logger.Debug("stale mined block discarded", report.At(s.simTime, "node", n.ID, "block", b.ID)...)
		for _, tx := range b.Transactions {
			if tx.Coinbase {
				continue
			}
			if !n.Mempool.Contains(tx.ID) {
				n.Mempool.Push(tx)
			}
		}
	}
	s.beginMining(n)
}

func (s *Simulation) handleReceiveHash(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	gossip.ReceiveHash(s.queue, s.rng, s.cfg, s.net, n, ev.BlockID, ev.FromID, s.simTime)
}

func (s *Simulation) handleGetBlockRequest(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	gossip.ReceiveGetBlockRequest(s.queue, s.rng, s.cfg, s.net, n, ev.BlockID, ev.FromID, s.simTime)
}

func (s *Simulation) handleReceiveBlock(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	outcome := gossip.ReceiveBlock(s.queue, s.rng, s.cfg, s.net, n, ev.Block, ev.FromID, ev.Tries, s.simTime)
	switch outcome {
	case gossip.Dropped:
		s.logger.Debug("block dropped", report.At(s.simTime, "node", n.ID, "block", ev.Block.ID, "tries", ev.Tries)...)
		return
	case gossip.Requeued:
		return
	case gossip.Accepted:
		res := validate.ValidateAndAdd(n, ev.Block, n.Malicious, s.simTime)
		if !res.OK {
			s.logger.Debug("block validation failed", report.At(s.simTime, "node", n.ID, "block", ev.Block.ID)...)
			return
		}
		delete(n.Timers, ev.Block.ID)
		s.logger.Info("block accepted", report.At(s.simTime, "node", n.ID, "block", ev.Block.ID, "from", ev.FromID)...)
		gossip.AnnounceHash(s.queue, s.rng, s.cfg, n, ev.Block, s.simTime)
		if res.HeadChanged && n.Malicious {
			if selfish.MaybeRelease(s.queue, s.rng, s.cfg, s.net, n.ID, s.simTime) {
				s.logger.Info("private chain released", report.At(s.simTime, "node", n.ID, "counter", s.net.ReleaseCounter)...)
			}
		}
	}
}

func (s *Simulation) handleReleasePrivate(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	s.logger.Debug("release notification received", report.At(s.simTime, "node", n.ID, "from", ev.FromID, "counter", ev.ReleaseCounter)...)
}

func (s *Simulation) handleTimerExpired(ev eventqueue.Event) {
	n := s.net.Node(ev.Target)
	t, ok := n.Timers[ev.BlockID]
	if !ok {
		return
	}
	if len(t.Candidates) == 0 {
		t.IsRunning = false
		s.logger.Debug("timer expired with no candidate sender", report.At(s.simTime, "node", n.ID, "block", ev.BlockID)...)
		return
	}

	if l := n.CommonLinkTo(t.CurrentSender); l != nil {
		l.Failed++
		if l.Failed > s.cfg.MitigationFailureThreshold && s.cfg.MitigationEnabled {
			s.evictAndReplace(n, l.PeerID)
		}
	}

	next, found := t.PopUntriedCandidate()
	if !found {
		t.IsRunning = false
		s.logger.Debug("timer expired with no untried candidate sender", report.At(s.simTime, "node", n.ID, "block", ev.BlockID)...)
		return
	}
	t.TriedSenders.Add(next)
	t.CurrentSender = next
	t.IsRunning = true
	gossip.SendGetBlockRequest(s.queue, s.rng, s.cfg, s.net, n, next, ev.BlockID, s.simTime)
	s.queue.Push(eventqueue.Event{Time: s.simTime + s.cfg.TimerTimeout, Kind: eventqueue.TimerExpired, Target: n.ID, BlockID: ev.BlockID})
}

// evictAndReplace is the mitigation against chronically unresponsive
// peers: drop peerID from both sides of the common overlay and wire in a
// fresh random honest peer. The failure counter that gates this lives on
// the pointer in the node's peer slice, so it accumulates across timer
// expiries.
func (s *Simulation) evictAndReplace(n *node.Node, peerID int) {
	peer := s.net.Node(peerID)
	n.RemoveCommonPeer(peerID)
	peer.RemoveCommonPeer(n.ID)

	excluded := map[int]bool{n.ID: true}
	for _, l := range n.CommonPeers {
		excluded[l.PeerID] = true
	}
	candidates := s.rng.ChooseNeighbours(s.net.HonestIDs, 1, excluded)
	if len(candidates) == 0 {
		s.logger.Debug("mitigation: no replacement peer available", report.At(s.simTime, "node", n.ID, "evicted", peerID)...)
		return
	}
	replacementID := candidates[0]
	replacement := s.net.Node(replacementID)

	delay := s.cfg.PropagationDelayMin + int64(s.rng.UniformInt(0, int(s.cfg.PropagationDelayMax-s.cfg.PropagationDelayMin)))
	bw := overlay.Bandwidth(n.Fast, replacement.Fast, s.cfg.FastBandwidth, s.cfg.SlowBandwidth)

	n.CommonPeers = append(n.CommonPeers, link.New(replacementID, delay, bw))
	replacement.CommonPeers = append(replacement.CommonPeers, link.New(n.ID, delay, bw))

	s.logger.Info("mitigation: peer evicted and replaced",
		report.At(s.simTime, "node", n.ID, "evicted", peerID, "replacement", replacementID)...)
}
