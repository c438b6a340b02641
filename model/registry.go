package model

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// JoinedFunc is called exactly once per newly observed remote address.
type JoinedFunc func(*Node)

// Registry is the thread-safe address -> other-node mapping (spec §4.C). A
// single mutex serializes lookups and insertions, which is what guarantees
// that two near-simultaneous inbound messages from the same new address
// still produce exactly one NodeJoined notification: the second caller's
// TryAdd always observes the first caller's insert.
type Registry struct {
	mu     sync.Mutex
	nodes  map[string]*Node
	onJoin []JoinedFunc
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Node)}
}

// TryFind returns the node at addr, if already known.
func (r *Registry) TryFind(addr string) (*Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[addr]
	return n, ok
}

// TryAdd returns the existing node at addr if present; otherwise it builds
// one via makeNode (called at most once, under the registry's lock, so the
// construction itself cannot race) and fires the joined notification.
// wasAdded reports whether this call performed the insert.
func (r *Registry) TryAdd(addr string, makeNode func() *Node) (node *Node, wasAdded bool) {
	r.mu.Lock()
	if existing, ok := r.nodes[addr]; ok {
		r.mu.Unlock()
		return existing, false
	}
	n := makeNode()
	r.nodes[addr] = n
	listeners := append([]JoinedFunc(nil), r.onJoin...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
	return n, true
}

// Remove deletes the node at addr, if present.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, addr)
}

// All returns an enumerable snapshot of every registered node, ordered by
// address so repeated calls (and tests) see a stable order.
func (r *Registry) All() []*Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := maps.Keys(r.nodes)
	slices.Sort(keys)
	out := make([]*Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.nodes[k])
	}
	return out
}

// OnJoined registers fn to run once for every address first observed after
// this call.
func (r *Registry) OnJoined(fn JoinedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onJoin = append(r.onJoin, fn)
}
