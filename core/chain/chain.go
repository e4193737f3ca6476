// Package chain holds the block, transaction and leaf data model.
// Transactions and blocks never mutate after creation; the fork tree is a
// set of blocks holding shared, upward references to their parents, so a
// leaf keeps its whole ancestry alive and pruning is by dropping the leaf.
package chain

// Transaction is immutable once created. SenderID is -1 for a coinbase.
type Transaction struct {
	ID         int
	SenderID   int
	ReceiverID int
	Amount     int64
	Coinbase   bool
}

const noSender = -1

// NewTransaction builds a regular, non-coinbase transaction.
func NewTransaction(id, sender, receiver int, amount int64) *Transaction {
	return &Transaction{ID: id, SenderID: sender, ReceiverID: receiver, Amount: amount}
}

// NewCoinbase builds the reward transaction credited to miner.
func NewCoinbase(id, miner int, reward int64) *Transaction {
	return &Transaction{ID: id, SenderID: noSender, ReceiverID: miner, Amount: reward, Coinbase: true}
}

// Block is immutable once mining completes. Parent is nil only for genesis.
// IsPrivate marks a block withheld by the coalition; IsHonest marks a block
// mined outside the coalition.
type Block struct {
	ID           int
	Parent       *Block
	CreatedAt    int64
	Transactions []*Transaction
	IsPrivate    bool
	IsHonest     bool
	MinerID      int
}

// Length walks Parent links to compute the chain length (genesis = 1). It
// exists for diagnostics; hot paths should use LeafNode.Length instead.
func (b *Block) Length() int {
	n := 0
	for cur := b; cur != nil; cur = cur.Parent {
		n++
	}
	return n
}

// LeafNode is a chain tip: a block plus the accumulated ledger state.
// Length is one more than the parent leaf's; Balance never goes negative
// (validation guarantees it); TransactionIDs is the union of transaction
// ids on the chain back to genesis.
type LeafNode struct {
	Block          *Block
	Length         int
	TransactionIDs map[int]struct{}
	Balance        []int64
}

// NewGenesisLeaf seeds balances directly. Genesis carries no coinbase: a
// coinbase needs both a receiver and a miner, and genesis has neither, so
// the initial per-node balance is written into the leaf rather than
// replayed from a transaction.
func NewGenesisLeaf(genesis *Block, numNodes int, initialBalance int64) *LeafNode {
	bal := make([]int64, numNodes)
	for i := range bal {
		bal[i] = initialBalance
	}
	return &LeafNode{
		Block:          genesis,
		Length:         1,
		TransactionIDs: map[int]struct{}{},
		Balance:        bal,
	}
}

// HasTransaction reports whether id is present along this leaf's chain.
func (l *LeafNode) HasTransaction(id int) bool {
	_, ok := l.TransactionIDs[id]
	return ok
}

// CloneBalance returns a private copy of the balance vector. Validation
// works on the copy and installs it only if every transaction applies.
func (l *LeafNode) CloneBalance() []int64 {
	out := make([]int64, len(l.Balance))
	copy(out, l.Balance)
	return out
}

// CloneTransactionIDs returns a private copy of the transaction id set.
func (l *LeafNode) CloneTransactionIDs() map[int]struct{} {
	out := make(map[int]struct{}, len(l.TransactionIDs))
	for k := range l.TransactionIDs {
		out[k] = struct{}{}
	}
	return out
}

// IDGen produces monotonic transaction and block ids, so a block's id is
// always <= every descendant's id. It is owned by the Simulation rather
// than being a package-level atomic; the simulator is single-threaded.
type IDGen struct {
	nextTxID    int
	nextBlockID int
}

// NextTransactionID returns the next monotonic transaction id.
func (g *IDGen) NextTransactionID() int {
	id := g.nextTxID
	g.nextTxID++
	return id
}

// NextBlockID returns the next monotonic block id.
func (g *IDGen) NextBlockID() int {
	id := g.nextBlockID
	g.nextBlockID++
	return id
}
