// Package overlay builds the two random peer graphs: a "common" overlay
// over all nodes and a low-latency "malicious" overlay over the coalition,
// each a connected random graph with per-node degree in [3, 6] (clamped to
// n-1 for small n).
package overlay

import (
	"fmt"
	"sort"

	"github.com/blocksim/selfminer/core/link"
	"github.com/blocksim/selfminer/core/node"
	"github.com/blocksim/selfminer/internal/xrand"
)

// Edge is an undirected pair with U < V, used for the edge-list dump.
type Edge struct{ U, V int }

// maxBuildAttempts bounds the restart-from-scratch loop in Build so that
// pathological inputs fail with an error instead of spinning forever.
const maxBuildAttempts = 2000

const minDegree = 3
const maxDegree = 6

// Build constructs a connected random graph over participantIDs with
// per-node degree clamped to [min(minDegree,n-1), min(maxDegree,n-1)].
// It returns the adjacency map and the deduplicated edge list. Degenerate
// inputs (n <= 1) return an empty, trivially connected graph.
func Build(rng *xrand.Source, participantIDs []int) (adjacency map[int][]int, edges []Edge, err error) {
	n := len(participantIDs)
	if n <= 1 {
		adjacency = map[int][]int{}
		for _, id := range participantIDs {
			adjacency[id] = nil
		}
		return adjacency, nil, nil
	}

	lo := minDegree
	hi := maxDegree
	if n-1 < hi {
		hi = n - 1
	}
	if n-1 < lo {
		lo = n - 1
	}

	for attempt := 0; attempt < maxBuildAttempts; attempt++ {
		adj := make(map[int][]int, n)
		for _, id := range participantIDs {
			adj[id] = nil
		}
		degree := make(map[int]int, n)
		target := make(map[int]int, n)
		for _, id := range participantIDs {
			target[id] = lo + rng.UniformInt(0, hi-lo)
		}

		for _, u := range participantIDs {
			for degree[u] < target[u] {
				excluded := map[int]bool{u: true}
				for _, v := range adj[u] {
					excluded[v] = true
				}
				for _, w := range participantIDs {
					if degree[w] >= hi {
						excluded[w] = true
					}
				}
				cands := rng.ChooseNeighbours(participantIDs, 1, excluded)
				if len(cands) == 0 {
					break
				}
				v := cands[0]
				adj[u] = append(adj[u], v)
				adj[v] = append(adj[v], u)
				degree[u]++
				degree[v]++
			}
		}

		degreesOK := true
		for _, u := range participantIDs {
			if degree[u] < lo {
				degreesOK = false
				break
			}
		}
		if degreesOK && connected(adj, participantIDs) {
			return adj, edgeList(adj), nil
		}
	}
	return nil, nil, fmt.Errorf("overlay: could not build a connected graph over %d nodes after %d attempts", n, maxBuildAttempts)
}

func edgeList(adj map[int][]int) []Edge {
	seen := map[Edge]bool{}
	var out []Edge
	for u, neighbours := range adj {
		for _, v := range neighbours {
			e := Edge{U: u, V: v}
			if e.U > e.V {
				e.U, e.V = e.V, e.U
			}
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

func connected(adj map[int][]int, ids []int) bool {
	if len(ids) == 0 {
		return true
	}
	start := ids[0]
	visited := map[int]bool{start: true}
	stack := []int{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range adj[u] {
			if !visited[v] {
				visited[v] = true
				stack = append(stack, v)
			}
		}
	}
	return len(visited) == len(ids)
}

// Bandwidth returns the link bandwidth (bits/ms) for a link between two
// endpoints: the fast rate if both are fast, else the slow rate.
func Bandwidth(fastU, fastV bool, fastBW, slowBW int64) int64 {
	if fastU && fastV {
		return fastBW
	}
	return slowBW
}

// InstallCommonLinks wires adjacency onto each node's CommonPeers, sampling
// a propagation delay per link in [delayMin, delayMax] and bandwidth per
// Bandwidth. The same delay is used for both directions of an edge,
// matching an undirected physical link.
func InstallCommonLinks(rng *xrand.Source, nodes []*node.Node, adjacency map[int][]int, delayMin, delayMax int64, fastBW, slowBW int64) {
	installLinks(rng, nodes, adjacency, delayMin, delayMax, fastBW, slowBW, false)
}

// InstallMaliciousLinks wires adjacency onto each node's MaliciousPeers.
func InstallMaliciousLinks(rng *xrand.Source, nodes []*node.Node, adjacency map[int][]int, delayMin, delayMax int64, fastBW, slowBW int64) {
	installLinks(rng, nodes, adjacency, delayMin, delayMax, fastBW, slowBW, true)
}

// installLinks always walks node ids in ascending order, never ranging
// directly over the adjacency map: Go's map iteration order is randomized
// per-process, and drawing per-edge delays in map order would make every
// downstream simulated timestamp depend on that randomization, breaking
// same-seed reproducibility.
func installLinks(rng *xrand.Source, nodes []*node.Node, adjacency map[int][]int, delayMin, delayMax int64, fastBW, slowBW int64, malicious bool) {
	ids := make([]int, 0, len(adjacency))
	for id := range adjacency {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	delays := map[Edge]int64{}
	for _, u := range ids {
		neighbours := append([]int(nil), adjacency[u]...)
		sort.Ints(neighbours)
		for _, v := range neighbours {
			e := Edge{U: u, V: v}
			if e.U > e.V {
				e.U, e.V = e.V, e.U
			}
			if _, ok := delays[e]; !ok {
				delays[e] = delayMin + int64(rng.UniformInt(0, int(delayMax-delayMin)))
			}
		}
	}
	for _, u := range ids {
		neighbours := append([]int(nil), adjacency[u]...)
		sort.Ints(neighbours)
		for _, v := range neighbours {
			e := Edge{U: u, V: v}
			if e.U > e.V {
				e.U, e.V = e.V, e.U
			}
			bw := Bandwidth(nodes[u].Fast, nodes[v].Fast, fastBW, slowBW)
			l := link.New(v, delays[e], bw)
			if malicious {
				nodes[u].MaliciousPeers = append(nodes[u].MaliciousPeers, l)
			} else {
				nodes[u].CommonPeers = append(nodes[u].CommonPeers, l)
			}
		}
	}
}
