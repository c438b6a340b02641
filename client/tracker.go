package client

import (
	"context"
	"fmt"
	"sync"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/transport"
)

// Filter is what a pending transaction matches inbound Format-1 messages
// against (spec §3 "Pending transaction", §4.D). A pending transaction's
// deadline is modeled as the caller's context.Context rather than a stored
// field, the idiomatic Go equivalent of the spec's "cancellation handle".
type Filter struct {
	TID el.TID
	// SourceAddr, if non-nil, restricts matches to replies from this
	// address (spec §4.E "Address semantics": "filters that have a
	// specified destination node ignore frames from other addresses").
	// nil accepts any source (used for broadcast requests).
	SourceAddr transport.Addr
	// ExpectedSEOJ is the EOJ the reply must carry as SEOJ: the object
	// that was the destination of the original request.
	ExpectedSEOJ el.EOJ
	// ExpectedESVs is the set of ESVs that complete this transaction.
	ExpectedESVs []el.ESV
}

func (f Filter) accepts(from transport.Addr, msg *el.Format1Message) bool {
	if f.SourceAddr != nil {
		if from == nil || from.String() != f.SourceAddr.String() {
			return false
		}
	}
	if msg.SEOJ != f.ExpectedSEOJ {
		return false
	}
	for _, esv := range f.ExpectedESVs {
		if msg.ESV == esv {
			return true
		}
	}
	return false
}

// Result is what a completed (or cancelled) pending transaction yields.
type Result struct {
	From      transport.Addr
	Msg       *el.Format1Message
	Cancelled bool
}

type pendingEntry struct {
	filter    Filter
	done      chan Result
	once      sync.Once
	completed bool // guarded by Tracker.mu
}

// Tracker allocates TIDs and correlates inbound replies to pending
// outbound transactions (spec §4.D).
type Tracker struct {
	mu       sync.Mutex
	nextTID  el.TID
	pendings map[el.TID]*pendingEntry
}

func NewTracker() *Tracker {
	return &Tracker{pendings: make(map[el.TID]*pendingEntry)}
}

// NextTID allocates the next TID by pre-increment with 16-bit wraparound
// (spec §4.D). The tracker's own mutex makes this atomic, satisfying §5's
// "TIDs must be allocated ... atomically relative to the send mutex"
// without requiring callers to hold the send mutex themselves.
func (t *Tracker) NextTID() el.TID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextTID++
	return t.nextTID
}

// Register installs filter, to be done before the request is sent (spec
// §4.D: "A pending transaction is registered before the request is sent").
func (t *Tracker) Register(filter Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendings[filter.TID] = &pendingEntry{filter: filter, done: make(chan Result, 1)}
}

// Deregister removes the pending transaction at tid without completing it.
// A reply that arrives afterward finds nothing to match and is dropped.
func (t *Tracker) Deregister(tid el.TID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pendings, tid)
}

// Dispatch is invoked once per inbound Format-1 message, keyed by the
// frame's TID (carried on the Frame, not the Format1Message). If it matches
// a currently registered filter, that transaction is completed, its filter
// stops matching further frames, and Dispatch reports true. The entry itself
// stays until Await collects the result, so Await may run after Dispatch.
func (t *Tracker) Dispatch(tid el.TID, from transport.Addr, msg *el.Format1Message) bool {
	t.mu.Lock()
	p, ok := t.pendings[tid]
	if !ok || p.completed || !p.filter.accepts(from, msg) {
		t.mu.Unlock()
		return false
	}
	p.completed = true
	t.mu.Unlock()

	p.once.Do(func() {
		p.done <- Result{From: from, Msg: msg}
	})
	return true
}

// Await blocks until the transaction registered at tid completes or ctx is
// done. Either way it deregisters the transaction itself.
func (t *Tracker) Await(ctx context.Context, tid el.TID) (Result, error) {
	t.mu.Lock()
	p, ok := t.pendings[tid]
	t.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("client: no pending transaction for TID %v", tid)
	}

	select {
	case r := <-p.done:
		t.Deregister(tid)
		return r, nil
	default:
	}

	select {
	case r := <-p.done:
		t.Deregister(tid)
		return r, nil
	case <-ctx.Done():
		t.Deregister(tid)
		return Result{Cancelled: true}, ctx.Err()
	}
}
