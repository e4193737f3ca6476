package chain

import "testing"

func TestIDGenMonotonic(t *testing.T) {
	g := &IDGen{}
	for i := 0; i < 5; i++ {
		if id := g.NextBlockID(); id != i {
			t.Errorf("NextBlockID: have %d, want %d", id, i)
		}
	}
	for i := 0; i < 5; i++ {
		if id := g.NextTransactionID(); id != i {
			t.Errorf("NextTransactionID: have %d, want %d", id, i)
		}
	}
}

func TestNewGenesisLeaf(t *testing.T) {
	genesis := &Block{ID: 0, MinerID: -1, IsHonest: true}
	leaf := NewGenesisLeaf(genesis, 4, 1000)

	if leaf.Length != 1 {
		t.Errorf("genesis length: have %d, want 1", leaf.Length)
	}
	if len(leaf.Balance) != 4 {
		t.Fatalf("genesis balance width: have %d, want 4", len(leaf.Balance))
	}
	for i, b := range leaf.Balance {
		if b != 1000 {
			t.Errorf("genesis balance[%d]: have %d, want 1000", i, b)
		}
	}
	if len(leaf.TransactionIDs) != 0 {
		t.Errorf("genesis transaction ids: have %d entries, want 0", len(leaf.TransactionIDs))
	}
}

func TestLeafCloneIsIndependent(t *testing.T) {
	genesis := &Block{ID: 0}
	leaf := NewGenesisLeaf(genesis, 2, 100)

	balCopy := leaf.CloneBalance()
	balCopy[0] = 999
	if leaf.Balance[0] != 100 {
		t.Errorf("CloneBalance leaked a mutation back into the original: have %d, want 100", leaf.Balance[0])
	}

	idCopy := leaf.CloneTransactionIDs()
	idCopy[42] = struct{}{}
	if leaf.HasTransaction(42) {
		t.Errorf("CloneTransactionIDs leaked a mutation back into the original")
	}
}

func TestBlockLength(t *testing.T) {
	genesis := &Block{ID: 0}
	b1 := &Block{ID: 1, Parent: genesis}
	b2 := &Block{ID: 2, Parent: b1}

	if l := genesis.Length(); l != 1 {
		t.Errorf("genesis.Length(): have %d, want 1", l)
	}
	if l := b2.Length(); l != 3 {
		t.Errorf("b2.Length(): have %d, want 3", l)
	}
}

func TestNewCoinbaseHasNoSender(t *testing.T) {
	tx := NewCoinbase(1, 3, 50)
	if !tx.Coinbase {
		t.Errorf("coinbase transaction: Coinbase flag not set")
	}
	if tx.SenderID != noSender {
		t.Errorf("coinbase sender: have %d, want %d", tx.SenderID, noSender)
	}
	if tx.ReceiverID != 3 || tx.Amount != 50 {
		t.Errorf("coinbase fields: have receiver=%d amount=%d, want receiver=3 amount=50", tx.ReceiverID, tx.Amount)
	}
}
