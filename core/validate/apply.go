package validate

import "github.com/blocksim/selfminer/core/chain"

// ApplyTransaction applies tx against balance in place, returning false
// (and leaving balance untouched) if the debit would drive the sender's
// balance negative. Shared by mining (which must pre-filter mempool
// transactions the same way) and validation itself, so the two can never
// disagree about what is admissible.
func ApplyTransaction(balance []int64, tx *chain.Transaction) bool {
	if tx.Coinbase {
		balance[tx.ReceiverID] += tx.Amount
		return true
	}
	if balance[tx.SenderID]-tx.Amount < 0 {
		return false
	}
	balance[tx.SenderID] -= tx.Amount
	balance[tx.ReceiverID] += tx.Amount
	return true
}
