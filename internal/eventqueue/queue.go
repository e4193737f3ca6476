// Package eventqueue implements the simulator's event queue on top of
// common/prque.
//
// prque.Prque is a max-heap over an ordered priority type, so ascending
// (time, type, insertion-sequence) order is obtained by packing those three
// fields into a single int64 and pushing its negation. Packing reserves 3
// bits for the type code (0..7) and 20 bits for the insertion sequence
// modulo 2^20; a run that queues more than ~1,000,000 events at the *same*
// (time, type) pair would alias sequence numbers, which is far beyond
// anything this simulator produces. The explicit sequence keeps same-time
// same-type events in FIFO order rather than whatever the heap happens to
// return, which is what makes identically seeded runs bit-identical.
package eventqueue

import (
	"github.com/ethereum/go-ethereum/common/prque"

	"github.com/blocksim/selfminer/core/chain"
)

// Kind is the integer event-type code, also the tie-break order on
// same-time events.
type Kind int

const (
	CreateTransaction Kind = iota
	ReceiveTransaction
	ReceiveBlock
	BlockMined
	ReceiveHash
	GetBlockRequest
	TimerExpired
	ReleasePrivate
)

func (k Kind) String() string {
	switch k {
	case CreateTransaction:
		return "CreateTransaction"
	case ReceiveTransaction:
		return "ReceiveTransaction"
	case ReceiveBlock:
		return "ReceiveBlock"
	case BlockMined:
		return "BlockMined"
	case ReceiveHash:
		return "ReceiveHash"
	case GetBlockRequest:
		return "GetBlockRequest"
	case TimerExpired:
		return "TimerExpired"
	case ReleasePrivate:
		return "ReleasePrivate"
	default:
		return "Unknown"
	}
}

// Event is a tagged union over the eight event kinds. Only the fields
// relevant to Kind are meaningful for a given instance; dispatch is a total
// switch over Kind.
type Event struct {
	Time   int64
	Kind   Kind
	Target int // destination node id

	Tx             *chain.Transaction // ReceiveTransaction payload
	Block          *chain.Block       // ReceiveBlock/BlockMined payload
	BlockID        int                // ReceiveHash, GetBlockRequest, TimerExpired
	FromID         int                // sender node id
	Tries          int                // ReceiveBlock retry counter
	ReleaseCounter int                // ReleasePrivate dedup key
}

const (
	seqBits  = 20
	seqMask  = (1 << seqBits) - 1
	kindBits = 3
)

// Queue is a min-priority queue ordered by (time, type, insertion order)
// ascending.
type Queue struct {
	pq  *prque.Prque[int64, Event]
	seq int64
}

// New returns an empty event queue.
func New() *Queue {
	return &Queue{pq: prque.New[int64, Event](nil)}
}

// Push schedules ev for dispatch. ev.Time and ev.Kind must already be set.
func (q *Queue) Push(ev Event) {
	priority := q.pack(ev.Time, ev.Kind)
	q.pq.Push(ev, priority)
}

func (q *Queue) pack(t int64, k Kind) int64 {
	seq := q.seq & seqMask
	q.seq++
	packed := (t << (kindBits + seqBits)) | (int64(k) << seqBits) | seq
	return -packed // negate: prque pops the highest priority first
}

// Pop removes and returns the next event in (time, type, FIFO) order.
func (q *Queue) Pop() (Event, bool) {
	if q.pq.Empty() {
		return Event{}, false
	}
	ev, _ := q.pq.Pop()
	return ev, true
}

// Empty reports whether the queue has no pending events.
func (q *Queue) Empty() bool {
	return q.pq.Empty()
}

// Len reports the number of pending events.
func (q *Queue) Len() int {
	return q.pq.Size()
}
