// Package link models the directed per-peer Link and the per-missing-block
// fetch Timer.
package link

import mapset "github.com/deckarep/golang-set/v2"

// Link is held by each endpoint for one peer. Links are stored and mutated
// by pointer in the owning node's peer slice, never copied into a loop
// variable, so Failed accumulates across timer expiries and can cross the
// eviction threshold.
type Link struct {
	PeerID           int
	PropagationDelay int64 // ms, constant per link
	Bandwidth        int64 // bits/ms

	TransactionsSent mapset.Set[int] // txn ids already announced over this link
	HashesSent       mapset.Set[int] // block ids whose hash was already sent
	GetRequestsSent  mapset.Set[int] // block ids already requested over this link
	ReleasesSent     mapset.Set[int] // release counters already rebroadcast

	Failed int // monotone counter of timer-expiry misses charged to this peer
}

// New builds a Link to peer with the given propagation delay and bandwidth.
func New(peerID int, delay, bandwidth int64) *Link {
	return &Link{
		PeerID:           peerID,
		PropagationDelay: delay,
		Bandwidth:        bandwidth,
		TransactionsSent: mapset.NewThreadUnsafeSet[int](),
		HashesSent:       mapset.NewThreadUnsafeSet[int](),
		GetRequestsSent:  mapset.NewThreadUnsafeSet[int](),
		ReleasesSent:     mapset.NewThreadUnsafeSet[int](),
	}
}

// Timer tracks one in-flight block fetch: the sender currently being
// awaited, the senders already tried, and a FIFO of further candidates
// learned from later hash announcements.
type Timer struct {
	BlockID       int
	CurrentSender int
	TriedSenders  mapset.Set[int]
	Candidates    []int // FIFO of further candidate senders
	IsRunning     bool
}

// NewTimer creates a running timer for blockID with the initial sender
// already marked as tried.
func NewTimer(blockID, sender int) *Timer {
	return &Timer{
		BlockID:       blockID,
		CurrentSender: sender,
		TriedSenders:  mapset.NewThreadUnsafeSet[int](sender),
		Candidates:    nil,
		IsRunning:     true,
	}
}

// PushCandidate appends a newly learned candidate sender to the FIFO.
func (t *Timer) PushCandidate(sender int) {
	t.Candidates = append(t.Candidates, sender)
}

// PopUntriedCandidate pops candidates off the FIFO until one not already in
// TriedSenders is found, returning (sender, true), or (0, false) if the
// queue is exhausted.
func (t *Timer) PopUntriedCandidate() (int, bool) {
	for len(t.Candidates) > 0 {
		next := t.Candidates[0]
		t.Candidates = t.Candidates[1:]
		if !t.TriedSenders.Contains(next) {
			return next, true
		}
	}
	return 0, false
}
