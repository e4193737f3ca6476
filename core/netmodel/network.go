// Package netmodel holds the per-run Network context: the vector of nodes,
// the coalition/honest id sets, and the ringmaster id. It is built once per
// run and passed explicitly into every handler rather than living in
// package-global state, which keeps tests hermetic and allows parallel
// runs.
package netmodel

import "github.com/blocksim/selfminer/core/node"

// Network is the per-run shared context.
type Network struct {
	Nodes        []*node.Node
	CoalitionIDs []int
	HonestIDs    []int
	RingmasterID int

	// ReleaseCounter counts private-chain releases, incremented once per
	// release and used to dedup ReleasePrivate rebroadcasts per link.
	ReleaseCounter int
}

// Node returns the node with the given id. Callers may assume ids are dense
// 0..N-1 and index directly; this accessor exists for clarity at call sites.
func (net *Network) Node(id int) *node.Node {
	return net.Nodes[id]
}

// IsMalicious reports whether id belongs to the coalition.
func (net *Network) IsMalicious(id int) bool {
	return net.Nodes[id].Malicious
}
