package report

import (
	"os"
	"path/filepath"
	"testing"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blocksim/selfminer/core/chain"
	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/internal/overlay"
)

func TestAtPrependsSimulatedTime(t *testing.T) {
	ctx := At(42, "node", 1, "block", 2)
	if len(ctx) != 6 {
		t.Fatalf("At: have %d elements, want 6", len(ctx))
	}
	if ctx[0] != "t" || ctx[1] != int64(42) {
		t.Errorf("At should prefix with the simulated time: have %v, %v", ctx[0], ctx[1])
	}
}

func TestBuildRowsMarksLongestChainAndOwnership(t *testing.T) {
	n := node.New(3)
	genesis := &chain.Block{ID: 0, MinerID: -1}
	b1 := &chain.Block{ID: 1, Parent: genesis, MinerID: 3}
	n.BlocksByID[0] = genesis
	n.BlocksByID[1] = b1
	n.KnownBlockFirstSeen[0] = 0
	n.KnownBlockFirstSeen[1] = 5

	longest := map[int]bool{0: true, 1: true}
	rows := buildRows(n, longest)
	if len(rows) != 2 {
		t.Fatalf("buildRows: have %d rows, want 2", len(rows))
	}
	if rows[0].ID != 0 || rows[1].ID != 1 {
		t.Errorf("buildRows should be sorted by block id")
	}
	if rows[0].ParentID != -1 {
		t.Errorf("genesis row parent id: have %d, want -1", rows[0].ParentID)
	}
	if rows[1].ParentID != 0 {
		t.Errorf("b1 row parent id: have %d, want 0", rows[1].ParentID)
	}
	if !rows[1].GeneratedByNode {
		t.Errorf("b1 was mined by this node; GeneratedByNode should be true")
	}
	if rows[0].GeneratedByNode {
		t.Errorf("genesis has no miner; GeneratedByNode should be false")
	}
}

func TestLongestChainIDsWalksToGenesis(t *testing.T) {
	n := node.New(0)
	genesis := &chain.Block{ID: 0}
	b1 := &chain.Block{ID: 1, Parent: genesis}
	b2 := &chain.Block{ID: 2, Parent: b1}
	n.Leaves = []*chain.LeafNode{{Block: b2, Length: 3, TransactionIDs: map[int]struct{}{}}}

	cache, err := lru.New[int, bool](16)
	if err != nil {
		t.Fatalf("lru.New: %v", err)
	}
	ids := longestChainIDs(n, cache)
	for _, want := range []int{0, 1, 2} {
		if !ids[want] {
			t.Errorf("longestChainIDs should include block %d", want)
		}
	}
}

func TestLongestChainIDsEmptyWhenNoHead(t *testing.T) {
	n := node.New(0)
	cache, _ := lru.New[int, bool](16)
	ids := longestChainIDs(n, cache)
	if len(ids) != 0 {
		t.Errorf("longestChainIDs on a headless node: have %d entries, want 0", len(ids))
	}
}

func TestWriteOverlayProducesSortedDualFormat(t *testing.T) {
	dir := t.TempDir()
	adj := map[int][]int{0: {1}, 1: {0}}
	edges := []overlay.Edge{{U: 0, V: 1}}

	if err := writeOverlay(dir, "network_common", adj, edges); err != nil {
		t.Fatalf("writeOverlay: %v", err)
	}
	edgeContent, err := os.ReadFile(filepath.Join(dir, "network_common.txt"))
	if err != nil {
		t.Fatalf("edge list file missing: %v", err)
	}
	if string(edgeContent) != "0 1\n" {
		t.Errorf("edge list content: have %q, want %q", edgeContent, "0 1\n")
	}
	adjContent, err := os.ReadFile(filepath.Join(dir, "network_common_adj_list.txt"))
	if err != nil {
		t.Fatalf("adjacency list file missing: %v", err)
	}
	if string(adjContent) != "Node 0 : 1\nNode 1 : 0\n" {
		t.Errorf("adjacency list content: have %q, want %q", adjContent, "Node 0 : 1\nNode 1 : 0\n")
	}
}
