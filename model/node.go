package model

import (
	"sync"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/transport"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DevicesChangeType is the kind of change delivered to a Node's
// devices-changed subscribers.
type DevicesChangeType int

const (
	DeviceAdded DevicesChangeType = iota
	DeviceRemoved
)

type DevicesChange struct {
	Type DevicesChangeType
	EOJ  el.EOJ
}

type DevicesChangeFunc func(DevicesChange)

// Node is either the self-node (exactly one per client) or an other-node
// (remote, keyed by its transport address). It owns its node-profile object
// and its device objects (spec §3).
type Node struct {
	mu      sync.RWMutex
	addr    transport.Addr // nil for the self-node
	isSelf  bool
	profile *Object
	devices map[el.EOJ]*Object
	subs    map[int]DevicesChangeFunc
	nextID  int
}

// DeviceSeed is a (EOJ, ClassSpec) pair used to pre-populate a self-node's
// device objects at construction (spec §4.B: "the self-node additionally
// exposes a capability to initialize device objects at construction").
type DeviceSeed struct {
	EOJ  el.EOJ
	Spec ClassSpec
}

func specToCapsAndSpecs(spec ClassSpec) (map[el.EPC]Capabilities, map[el.EPC]PropertySpec) {
	caps := make(map[el.EPC]Capabilities, len(spec.Properties))
	specs := make(map[el.EPC]PropertySpec, len(spec.Properties))
	for _, ps := range spec.Properties {
		caps[ps.EPC] = Capabilities{CanGet: ps.CanGet, CanSet: ps.CanSet, CanAnnounce: ps.CanAnnounce, FromSpec: true}
		specs[ps.EPC] = ps
	}
	return caps, specs
}

// NewSelfNode constructs the local node, seeding its node-profile object
// (profileSpec, at profileEOJ) and any device objects named in seeds.
func NewSelfNode(profileEOJ el.EOJ, profileSpec ClassSpec, seeds []DeviceSeed) *Node {
	n := &Node{
		isSelf:  true,
		devices: make(map[el.EOJ]*Object),
		subs:    make(map[int]DevicesChangeFunc),
	}
	n.profile = newObject(profileEOJ, Detailed, n)
	caps, specs := specToCapsAndSpecs(profileSpec)
	n.profile.ResetProperties(caps, specs)

	for _, seed := range seeds {
		obj := newObject(seed.EOJ, Detailed, n)
		c, s := specToCapsAndSpecs(seed.Spec)
		obj.ResetProperties(c, s)
		n.devices[seed.EOJ] = obj
	}
	return n
}

// NewOtherNode constructs a remote node at addr. Its node-profile object is
// created undetailed at profileEOJ, which is not updated from later traffic;
// device objects appear lazily as the wire references them.
func NewOtherNode(addr transport.Addr, profileEOJ el.EOJ) *Node {
	n := &Node{
		addr:    addr,
		devices: make(map[el.EOJ]*Object),
		subs:    make(map[int]DevicesChangeFunc),
	}
	n.profile = newObject(profileEOJ, Undetailed, n)
	return n
}

// Address returns the transport address this node was first observed at,
// nil for the self-node.
func (n *Node) Address() transport.Addr { return n.addr }
func (n *Node) IsSelf() bool            { return n.isSelf }
func (n *Node) Profile() *Object {
	return n.profile
}

// Device looks up a device object by EOJ.
func (n *Node) Device(eoj el.EOJ) (*Object, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	o, ok := n.devices[eoj]
	return o, ok
}

// Devices returns an enumerable snapshot of this node's device objects
// (excluding the node-profile object), ordered by EOJ so repeated calls see
// a stable order.
func (n *Node) Devices() []*Object {
	n.mu.RLock()
	defer n.mu.RUnlock()
	eojs := maps.Keys(n.devices)
	slices.Sort(eojs)
	out := make([]*Object, 0, len(eojs))
	for _, eoj := range eojs {
		out = append(out, n.devices[eoj])
	}
	return out
}

// EnsureDevice returns the device object at eoj, creating it (undetailed,
// empty property set) if absent, and firing DeviceAdded. This is how an
// unsolicited message referencing a previously unknown EOJ brings a device
// object into existence on a known node (spec §3 lifecycle).
func (n *Node) EnsureDevice(eoj el.EOJ) *Object {
	n.mu.Lock()
	if o, ok := n.devices[eoj]; ok {
		n.mu.Unlock()
		return o
	}
	o := newObject(eoj, Undetailed, n)
	n.devices[eoj] = o
	subs := snapshotDeviceSubs(n.subs)
	n.mu.Unlock()

	notifyDevicesChange(subs, DevicesChange{Type: DeviceAdded, EOJ: eoj})
	return o
}

// RemoveDevice deletes the device object at eoj, if present (explicit
// removal only; spec §3: "destroyed only by explicit removal").
func (n *Node) RemoveDevice(eoj el.EOJ) {
	n.mu.Lock()
	if _, ok := n.devices[eoj]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.devices, eoj)
	subs := snapshotDeviceSubs(n.subs)
	n.mu.Unlock()

	notifyDevicesChange(subs, DevicesChange{Type: DeviceRemoved, EOJ: eoj})
}

func (n *Node) Subscribe(fn DevicesChangeFunc) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func snapshotDeviceSubs(subs map[int]DevicesChangeFunc) []DevicesChangeFunc {
	out := make([]DevicesChangeFunc, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

func notifyDevicesChange(subs []DevicesChangeFunc, change DevicesChange) {
	for _, fn := range subs {
		fn(change)
	}
}
