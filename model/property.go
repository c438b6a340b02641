package model

import (
	"sync"
	"time"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
)

// Capabilities records what a property supports and where that knowledge
// came from: a static spec (detailed objects) or property-map acquisition
// (undetailed objects acquire these from EPC 0x9D/0x9E/0x9F, spec §4.G).
type Capabilities struct {
	CanGet          bool
	CanSet          bool
	CanAnnounce     bool
	FromSpec        bool // true if derived from a static ObjectSpecSource lookup
	FromPropertyMap bool // true if derived from property-map acquisition
}

// Update describes a single property value change, delivered to
// subscribers (spec §4.B). Setting the same value again still fires an
// Update; in that case Old and New are equal.
type Update struct {
	Old      []byte
	New      []byte
	PrevTime time.Time
	NewTime  time.Time
}

// UpdateFunc is a property value-change subscriber.
type UpdateFunc func(Update)

// Property is one EPC's value, capabilities, and update history within an
// Object. The zero value is not usable; construct with NewProperty.
type Property struct {
	mu          sync.RWMutex
	epc         el.EPC
	value       []byte
	updatedAt   time.Time
	caps        Capabilities
	spec        *PropertySpec
	subscribers map[int]UpdateFunc
	nextSubID   int
}

func NewProperty(epc el.EPC, caps Capabilities, spec *PropertySpec) *Property {
	return &Property{
		epc:         epc,
		caps:        caps,
		spec:        spec,
		subscribers: make(map[int]UpdateFunc),
	}
}

func (p *Property) EPC() el.EPC {
	return p.epc
}

// Value returns a snapshot copy of the current EDT; the caller may not
// mutate the property through it.
func (p *Property) Value() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.value...)
}

// UpdatedAt returns the time of the last Write, whether or not the value
// actually changed.
func (p *Property) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}

func (p *Property) Capabilities() Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.caps
}

func (p *Property) SetCapabilities(c Capabilities) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.caps = c
}

func (p *Property) Spec() (PropertySpec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.spec == nil {
		return PropertySpec{}, false
	}
	return *p.spec, true
}

func (p *Property) SetSpec(spec PropertySpec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec = &spec
}

// WithinBounds reports whether edt would be an acceptable value per this
// property's spec. A property with no known spec accepts any length.
func (p *Property) WithinBounds(edt []byte) bool {
	p.mu.RLock()
	spec := p.spec
	p.mu.RUnlock()
	if spec == nil {
		return true
	}
	return spec.WithinBounds(edt)
}

// Write stores a new value at time now and notifies subscribers, even if
// the new value equals the old one (spec §4.B: "clients rely on 'last
// seen' semantics").
func (p *Property) Write(value []byte, now time.Time) {
	p.mu.Lock()
	old := p.value
	prevTime := p.updatedAt
	p.value = append([]byte(nil), value...)
	p.updatedAt = now
	subs := make([]UpdateFunc, 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	update := Update{Old: old, New: value, PrevTime: prevTime, NewTime: now}
	for _, fn := range subs {
		fn(update)
	}
}

// Subscribe registers fn to be called on every Write. It returns a function
// that unsubscribes fn.
func (p *Property) Subscribe(fn UpdateFunc) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}
