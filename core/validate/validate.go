// Package validate implements block validation and leaf-tree insertion:
// resolving the parent chain state, projecting the block's transactions
// against it, and installing the resulting leaf.
package validate

import (
	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/node"
)

// Result reports the outcome of ValidateAndAdd.
type Result struct {
	OK          bool // false: validation failed, no side effects
	Leaf        *chain.LeafNode
	HeadChanged bool // whether the head of n.Leaves is now a different block
}

// ValidateAndAdd validates b against n's fork tree and, on success, installs
// the resulting leaf. Announcing the block's hash afterwards is the
// caller's responsibility; that is a gossip-layer side effect and keeping
// it out of here avoids an import cycle.
func ValidateAndAdd(n *node.Node, b *chain.Block, selfishMining bool, now int64) Result {
	parentLeaf, balance, txIDs, length, resolved := parentState(n, b, selfishMining)
	if !resolved && b.Parent != nil {
		// Parent is an interior node, not a leaf: reconstruct its state by
		// walking up to genesis.
		balance, txIDs, length = walkFromAncestor(n, b.Parent)
	}

	working := make([]int64, len(balance))
	copy(working, balance)
	workingIDs := make(map[int]struct{}, len(txIDs))
	for k := range txIDs {
		workingIDs[k] = struct{}{}
	}

	for _, tx := range b.Transactions {
		if !ApplyTransaction(working, tx) {
			return Result{OK: false}
		}
		workingIDs[tx.ID] = struct{}{}
	}

	leaf := &chain.LeafNode{
		Block:          b,
		Length:         length + 1,
		TransactionIDs: workingIDs,
		Balance:        working,
	}

	n.BlockIDsInTree.Add(b.ID)
	n.BlocksByID[b.ID] = b
	if _, seen := n.KnownBlockFirstSeen[b.ID]; !seen {
		n.KnownBlockFirstSeen[b.ID] = now
	}

	oldHead := n.HeadLeaf()

	if b.IsPrivate && selfishMining {
		n.PrivateLeaf = leaf
		return Result{OK: true, Leaf: leaf, HeadChanged: false}
	}

	if parentLeaf != nil {
		n.RemoveLeafByBlockID(parentLeaf.Block.ID)
	}
	n.InsertLeaf(leaf)

	newHead := n.HeadLeaf()
	changed := oldHead == nil || newHead.Block.ID != oldHead.Block.ID
	return Result{OK: true, Leaf: leaf, HeadChanged: changed}
}

// parentState resolves the chain state b extends: the coalition's private
// leaf for a private block, or the public leaf tipped at b's parent. It
// returns resolved=false when neither applies, signalling the caller to
// fall back to the ancestor walk.
func parentState(n *node.Node, b *chain.Block, selfishMining bool) (parentLeaf *chain.LeafNode, balance []int64, txIDs map[int]struct{}, length int, resolved bool) {
	if selfishMining && b.IsPrivate && n.PrivateLeaf != nil {
		pl := n.PrivateLeaf
		// The private leaf is never in the public n.Leaves set, so there is
		// no parentLeaf to displace.
		return nil, pl.CloneBalance(), pl.CloneTransactionIDs(), pl.Length, true
	}
	if b.Parent == nil {
		return nil, nil, map[int]struct{}{}, 0, true
	}
	if pl := n.LeafByBlockID(b.Parent.ID); pl != nil {
		return pl, pl.CloneBalance(), pl.CloneTransactionIDs(), pl.Length, true
	}
	return nil, nil, nil, 0, false
}

// walkFromAncestor accumulates balances and transaction ids from genesis to
// ancestor (inclusive), for the case where b's parent is an interior node
// rather than a current leaf.
func walkFromAncestor(n *node.Node, ancestor *chain.Block) (balance []int64, txIDs map[int]struct{}, length int) {
	var chainBlocks []*chain.Block
	for cur := ancestor; cur != nil; cur = cur.Parent {
		chainBlocks = append(chainBlocks, cur)
	}
	// chainBlocks is tip-to-genesis; reverse to genesis-to-tip.
	for i, j := 0, len(chainBlocks)-1; i < j; i, j = i+1, j-1 {
		chainBlocks[i], chainBlocks[j] = chainBlocks[j], chainBlocks[i]
	}

	bal := genesisBalance(n)
	ids := map[int]struct{}{}
	length = 0
	for _, blk := range chainBlocks {
		for _, tx := range blk.Transactions {
			ApplyTransaction(bal, tx)
			ids[tx.ID] = struct{}{}
		}
		length++
	}
	return bal, ids, length
}

// genesisBalance returns a private copy of n's seeded genesis balance
// vector. Genesis has no coinbase transaction to replay, so reconstructing
// balance by walking forward from genesis must start from this vector
// rather than from zero.
func genesisBalance(n *node.Node) []int64 {
	out := make([]int64, len(n.GenesisBalance))
	copy(out, n.GenesisBalance)
	return out
}
