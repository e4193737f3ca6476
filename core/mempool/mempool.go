// Package mempool implements the per-node pending-transaction FIFO plus a
// membership set for O(1) duplicate checks.
package mempool

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/blocksim/selfminer/core/chain"
)

// Mempool is a FIFO of pending transactions plus a set of their ids.
type Mempool struct {
	queue []*chain.Transaction
	ids   mapset.Set[int]
}

// New returns an empty mempool.
func New() *Mempool {
	return &Mempool{ids: mapset.NewThreadUnsafeSet[int]()}
}

// Contains reports whether id is currently pending.
func (m *Mempool) Contains(id int) bool {
	return m.ids.Contains(id)
}

// Push appends tx to the FIFO and records its id. Callers must check
// Contains first; Push does not itself dedup.
func (m *Mempool) Push(tx *chain.Transaction) {
	m.queue = append(m.queue, tx)
	m.ids.Add(tx.ID)
}

// Pop removes and returns the oldest pending transaction. Mining drains the
// pool through this; a transaction popped into a mined block that later
// turns out stale is pushed back by the miner.
func (m *Mempool) Pop() (*chain.Transaction, bool) {
	if len(m.queue) == 0 {
		return nil, false
	}
	tx := m.queue[0]
	m.queue = m.queue[1:]
	m.ids.Remove(tx.ID)
	return tx, true
}

// Len reports the number of pending transactions.
func (m *Mempool) Len() int {
	return len(m.queue)
}
