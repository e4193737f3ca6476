// Package miner implements block construction and mining-time sampling.
package miner

import (
	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/mempool"
	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/core/validate"
	"github.com/blocksim/selfminer/internal/xrand"
)

const maxTransactionsPerBlock = 1000

// SelectChain picks the leaf a node should extend: its private leaf if it
// is the ringmaster and holds one, else its longest public leaf.
func SelectChain(n *node.Node) *chain.LeafNode {
	if n.Ringmaster && n.PrivateLeaf != nil {
		return n.PrivateLeaf
	}
	return n.HeadLeaf()
}

// BuildBlock constructs a new candidate block extending parent. It returns
// (nil, false) if mining should abort: an empty mempool, zero hashing
// power, or fewer than 2 transactions (coinbase only) fitting after
// filtering.
//
// Transactions are pulled out of the mempool as they are considered;
// transactions skipped as chain duplicates or overdrafts are discarded with
// them. A stale mined block pushes its transactions back (the BlockMined
// handler does this), so nothing admissible is lost to a lost mining race.
func BuildBlock(n *node.Node, mp *mempool.Mempool, idgen *chain.IDGen, parent *chain.LeafNode, reward int64, now int64) (*chain.Block, bool) {
	if n.HashingPower == 0 || mp.Len() == 0 || parent == nil {
		return nil, false
	}

	balance := parent.CloneBalance()
	txs := make([]*chain.Transaction, 0, maxTransactionsPerBlock)
	coinbase := chain.NewCoinbase(idgen.NextTransactionID(), n.ID, reward)
	validate.ApplyTransaction(balance, coinbase)
	txs = append(txs, coinbase)

	for len(txs) < maxTransactionsPerBlock {
		tx, ok := mp.Pop()
		if !ok {
			break
		}
		if parent.HasTransaction(tx.ID) {
			continue
		}
		if !validate.ApplyTransaction(balance, tx) {
			continue
		}
		txs = append(txs, tx)
	}

	if len(txs) < 2 {
		return nil, false
	}

	blk := &chain.Block{
		ID:           idgen.NextBlockID(),
		Parent:       parent.Block,
		CreatedAt:    now,
		Transactions: txs,
		IsPrivate:    n.Ringmaster,
		IsHonest:     !n.Ringmaster,
		MinerID:      n.ID,
	}
	return blk, true
}

// SampleMiningTime samples the time, in ms, until this node mines its next
// block: Exp(blockInterArrival * numNodes / hashingPower). Callers must
// have already checked HashingPower != 0.
func SampleMiningTime(rng *xrand.Source, blockInterArrival int64, numNodes int, hashingPower int64) int64 {
	mean := float64(blockInterArrival) * float64(numNodes) / float64(hashingPower)
	return rng.Exponential(mean)
}
