// Package transport declares the datagram transport the core consumes.
// Concrete transports (UDP broadcast, PAN/low-power routed transports) are
// external collaborators (spec §1/§6) and are never implemented here.
package transport

import "context"

// Addr identifies a remote endpoint on the underlying transport. The core
// treats it opaquely beyond String() and equality; a nil Addr passed to
// Send means broadcast, and a filter with a nil Addr accepts any source
// (spec §4.E).
type Addr interface {
	String() string
}

// ReceiveFunc is invoked once per received datagram. Implementations must
// deliver complete datagrams in per-source order; reassembly of fragmented
// transports is the transport's own responsibility (spec §6).
type ReceiveFunc func(ctx context.Context, from Addr, payload []byte)

// Transport is the abstract send/receive surface the client is built
// against.
type Transport interface {
	// Send transmits payload to dest. A nil dest means "all nodes in
	// subnet" (broadcast).
	Send(ctx context.Context, dest Addr, payload []byte) error
	// OnReceive registers the core's inbound callback, replacing any
	// previously registered one.
	OnReceive(fn ReceiveFunc)
}
