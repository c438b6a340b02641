package model

import (
	"sync"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ObjectKind distinguishes a spec-backed object (fixed property set, known
// class) from a dynamically discovered one (spec §4.B).
type ObjectKind int

const (
	// Detailed objects are backed by a static ObjectSpecSource lookup: a
	// fixed property set and capability flags known up front.
	Detailed ObjectKind = iota
	// Undetailed objects are discovered dynamically: properties appear as
	// they are observed on the wire, and capabilities arrive via
	// property-map acquisition (spec §4.G).
	Undetailed
)

// PropertiesChangeType is the kind of change delivered to an Object's
// properties-changed subscribers.
type PropertiesChangeType int

const (
	PropertyAdded PropertiesChangeType = iota
	PropertyRemoved
)

type PropertiesChange struct {
	Type PropertiesChangeType
	EPC  el.EPC
}

type PropertiesChangeFunc func(PropertiesChange)

// Object is one ECHONET object (EOJ) hosted on a Node. Properties are owned
// by the Object; Node is a lookup-only back-reference that must never be
// used to decide the Object's lifetime (spec §3 ownership model).
type Object struct {
	mu         sync.RWMutex
	eoj        el.EOJ
	kind       ObjectKind
	node       *Node
	properties map[el.EPC]*Property
	subs       map[int]PropertiesChangeFunc
	nextSubID  int
}

func newObject(eoj el.EOJ, kind ObjectKind, node *Node) *Object {
	return &Object{
		eoj:        eoj,
		kind:       kind,
		node:       node,
		properties: make(map[el.EPC]*Property),
		subs:       make(map[int]PropertiesChangeFunc),
	}
}

func (o *Object) EOJ() el.EOJ      { return o.eoj }
func (o *Object) Kind() ObjectKind { return o.kind }

// Node returns the owning node. This is a lookup-only back-reference: it
// must never be used to keep the object alive or to drive its lifetime.
func (o *Object) Node() *Node { return o.node }

// Property looks up a property by EPC.
func (o *Object) Property(epc el.EPC) (*Property, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.properties[epc]
	return p, ok
}

// Properties returns an enumerable snapshot of this object's properties,
// ordered by EPC so repeated calls see a stable order.
func (o *Object) Properties() []*Property {
	o.mu.RLock()
	defer o.mu.RUnlock()
	epcs := maps.Keys(o.properties)
	slices.Sort(epcs)
	out := make([]*Property, 0, len(epcs))
	for _, epc := range epcs {
		out = append(out, o.properties[epc])
	}
	return out
}

// EnsureProperty returns the property at epc, creating it with caps/spec if
// absent and firing a PropertyAdded change event. This is how an inbound
// message referencing an unknown EPC on a known object brings the property
// into existence (spec §3 lifecycle, §4.F INF ingest).
func (o *Object) EnsureProperty(epc el.EPC, caps Capabilities, spec *PropertySpec) *Property {
	o.mu.Lock()
	if p, ok := o.properties[epc]; ok {
		o.mu.Unlock()
		return p
	}
	p := NewProperty(epc, caps, spec)
	o.properties[epc] = p
	subs := snapshotChangeSubs(o.subs)
	o.mu.Unlock()

	notifyPropertiesChange(subs, PropertiesChange{Type: PropertyAdded, EPC: epc})
	return p
}

// RemoveProperty deletes the property at epc, if present, firing
// PropertyRemoved.
func (o *Object) RemoveProperty(epc el.EPC) {
	o.mu.Lock()
	if _, ok := o.properties[epc]; !ok {
		o.mu.Unlock()
		return
	}
	delete(o.properties, epc)
	subs := snapshotChangeSubs(o.subs)
	o.mu.Unlock()

	notifyPropertiesChange(subs, PropertiesChange{Type: PropertyRemoved, EPC: epc})
}

// ResetProperties replaces the entire property set, used after property-map
// (re-)acquisition (spec §4.G: "reset the object's property set
// accordingly"). Properties present in both old and new sets keep their
// current value; only capabilities/spec are refreshed.
func (o *Object) ResetProperties(wanted map[el.EPC]Capabilities, specs map[el.EPC]PropertySpec) {
	o.mu.Lock()
	var added, removed []el.EPC
	for epc := range o.properties {
		if _, ok := wanted[epc]; !ok {
			removed = append(removed, epc)
		}
	}
	for _, epc := range removed {
		delete(o.properties, epc)
	}
	for epc, caps := range wanted {
		if p, ok := o.properties[epc]; ok {
			p.SetCapabilities(caps)
			if s, ok := specs[epc]; ok {
				p.SetSpec(s)
			}
			continue
		}
		var spec *PropertySpec
		if s, ok := specs[epc]; ok {
			spec = &s
		}
		o.properties[epc] = NewProperty(epc, caps, spec)
		added = append(added, epc)
	}
	subs := snapshotChangeSubs(o.subs)
	o.mu.Unlock()

	for _, epc := range removed {
		notifyPropertiesChange(subs, PropertiesChange{Type: PropertyRemoved, EPC: epc})
	}
	for _, epc := range added {
		notifyPropertiesChange(subs, PropertiesChange{Type: PropertyAdded, EPC: epc})
	}
}

func (o *Object) Subscribe(fn PropertiesChangeFunc) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSubID
	o.nextSubID++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

func snapshotChangeSubs(subs map[int]PropertiesChangeFunc) []PropertiesChangeFunc {
	out := make([]PropertiesChangeFunc, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

func notifyPropertiesChange(subs []PropertiesChangeFunc, change PropertiesChange) {
	for _, fn := range subs {
		fn(change)
	}
}
