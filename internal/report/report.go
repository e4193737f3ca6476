// Package report implements the logger and stats writer: an append-only
// logfmt log keyed by simulated time, the four topology dump files, and the
// per-node/per-block statistics CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/internal/overlay"
)

// Logger wraps a log.Logger writing logfmt records to <out>/Log/log.txt.
// Records of simulation events carry the current simulated time as the "t"
// field, passed explicitly through At, since the underlying handler only
// stamps wall-clock time by default. The run's startup, network-built and
// completion records carry no "t" field.
type Logger struct {
	log.Logger
	file *os.File
}

// NewLogger opens <outDir>/Log/log.txt for appending and returns a Logger.
func NewLogger(outDir string) (*Logger, error) {
	dir := filepath.Join(outDir, "Log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: creating log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "log.txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("report: opening log file: %w", err)
	}
	handler := log.LogfmtHandler(f)
	return &Logger{Logger: log.NewLogger(handler), file: f}, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// At returns ctx args prefixed with the simulated time, for call sites that
// want to log at a specific simulated instant:
// logger.Info("block accepted", report.At(simTime, "block", b.ID)...)
func At(simTime int64, ctx ...any) []any {
	out := make([]any, 0, len(ctx)+2)
	out = append(out, "t", simTime)
	out = append(out, ctx...)
	return out
}

// WriteNetworkFiles emits network_common.txt / network_common_adj_list.txt
// and the malicious equivalents: an edge list (one "u v" pair per line with
// u < v) plus a companion "Node k : n1 n2 ..." adjacency list.
func WriteNetworkFiles(outDir string, commonAdj map[int][]int, commonEdges []overlay.Edge, maliciousAdj map[int][]int, maliciousEdges []overlay.Edge) error {
	dir := filepath.Join(outDir, "Temp_files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: creating temp_files directory: %w", err)
	}
	if err := writeOverlay(dir, "network_common", commonAdj, commonEdges); err != nil {
		return err
	}
	if err := writeOverlay(dir, "network_malicious", maliciousAdj, maliciousEdges); err != nil {
		return err
	}
	return nil
}

func writeOverlay(dir, name string, adj map[int][]int, edges []overlay.Edge) error {
	edgePath := filepath.Join(dir, name+".txt")
	ef, err := os.Create(edgePath)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", edgePath, err)
	}
	defer ef.Close()
	sortedEdges := append([]overlay.Edge(nil), edges...)
	sort.Slice(sortedEdges, func(i, j int) bool {
		if sortedEdges[i].U != sortedEdges[j].U {
			return sortedEdges[i].U < sortedEdges[j].U
		}
		return sortedEdges[i].V < sortedEdges[j].V
	})
	for _, e := range sortedEdges {
		if _, err := fmt.Fprintf(ef, "%d %d\n", e.U, e.V); err != nil {
			return err
		}
	}

	adjPath := filepath.Join(dir, name+"_adj_list.txt")
	af, err := os.Create(adjPath)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", adjPath, err)
	}
	defer af.Close()

	ids := make([]int, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		neighbours := append([]int(nil), adj[id]...)
		sort.Ints(neighbours)
		fmt.Fprintf(af, "Node %d :", id)
		for _, nb := range neighbours {
			fmt.Fprintf(af, " %d", nb)
		}
		fmt.Fprintln(af)
	}
	return nil
}

// blockRow is one row of the per-block statistics CSV.
type blockRow struct {
	ID              int
	ParentID        int
	FirstSeen       int64
	TxCount         int
	InLongestChain  bool
	GeneratedByNode bool
}

// WriteStats emits one <out>/node_<id>_stats.csv per node plus a combined
// <out>/summary.csv: block id, parent id, first-seen time, transaction
// count, in-longest-chain flag, generated-by-this-node flag. Longest-chain
// membership is resolved by one walk from each node's head to genesis;
// blockCache, a bounded LRU shared across nodes, records the block ids
// those walks visit, but a cache hit does not shorten the walk.
func WriteStats(outDir string, nodes []*node.Node) error {
	blockCache, err := lru.New[int, bool](4096)
	if err != nil {
		return fmt.Errorf("report: creating stats cache: %w", err)
	}

	summaryPath := filepath.Join(outDir, "summary.csv")
	sf, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", summaryPath, err)
	}
	defer sf.Close()
	sw := csv.NewWriter(sf)
	defer sw.Flush()
	if err := sw.Write([]string{"node_id", "blocks_known", "longest_chain_length", "blocks_generated"}); err != nil {
		return err
	}

	for _, n := range nodes {
		longestIDs := longestChainIDs(n, blockCache)
		rows := buildRows(n, longestIDs)

		path := filepath.Join(outDir, fmt.Sprintf("node_%d_stats.csv", n.ID))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("report: creating %s: %w", path, err)
		}
		w := csv.NewWriter(f)
		if err := w.Write([]string{"block_id", "parent_id", "first_seen_time", "tx_count", "in_longest_chain", "generated_by_node"}); err != nil {
			f.Close()
			return err
		}
		generated := 0
		for _, r := range rows {
			if r.GeneratedByNode {
				generated++
			}
			record := []string{
				strconv.Itoa(r.ID),
				strconv.Itoa(r.ParentID),
				strconv.FormatInt(r.FirstSeen, 10),
				strconv.Itoa(r.TxCount),
				strconv.FormatBool(r.InLongestChain),
				strconv.FormatBool(r.GeneratedByNode),
			}
			if err := w.Write(record); err != nil {
				f.Close()
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return err
		}
		f.Close()

		head := n.HeadLeaf()
		longest := 0
		if head != nil {
			longest = head.Length
		}
		if err := sw.Write([]string{
			strconv.Itoa(n.ID),
			strconv.Itoa(len(rows)),
			strconv.Itoa(longest),
			strconv.Itoa(generated),
		}); err != nil {
			return err
		}
	}
	return nil
}

func buildRows(n *node.Node, longestIDs map[int]bool) []blockRow {
	rows := make([]blockRow, 0, len(n.BlocksByID))
	for id, b := range n.BlocksByID {
		parentID := -1
		if b.Parent != nil {
			parentID = b.Parent.ID
		}
		rows = append(rows, blockRow{
			ID:              id,
			ParentID:        parentID,
			FirstSeen:       n.KnownBlockFirstSeen[id],
			TxCount:         len(b.Transactions),
			InLongestChain:  longestIDs[id],
			GeneratedByNode: b.MinerID == n.ID,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func longestChainIDs(n *node.Node, cache *lru.Cache[int, bool]) map[int]bool {
	head := n.HeadLeaf()
	ids := map[int]bool{}
	if head == nil {
		return ids
	}
	for cur := head.Block; cur != nil; cur = cur.Parent {
		if v, ok := cache.Get(cur.ID); ok && v {
			ids[cur.ID] = true
		} else {
			ids[cur.ID] = true
			cache.Add(cur.ID, true)
		}
	}
	return ids
}
