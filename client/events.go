package client

import (
	"log/slog"
	"time"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
)

// The event structs below are the typed payloads for spec §6's "Events
// emitted" list.

type NodeJoinedEvent struct{ Node *model.Node }

type InstanceListUpdatingEvent struct{ Node *model.Node }

type PropertyMapAcquiringInstancesEvent struct {
	Node      *model.Node
	Instances []el.EOJ
}

type InstanceListUpdatedEvent struct {
	Node      *model.Node
	Instances []el.EOJ
}

type PropertyMapAcquiringEvent struct {
	Node   *model.Node
	Device *model.Object
}

type PropertyMapAcquiredEvent struct {
	Node   *model.Node
	Device *model.Object
}

type PropertyValueUpdatedEvent struct {
	Object   *model.Object
	Property *model.Property
	Old      []byte
	New      []byte
	PrevTime time.Time
	NewTime  time.Time
}

type PropertiesChangedEvent struct {
	Object *model.Object
	Change model.PropertiesChange
}

type DevicesChangedEvent struct {
	Node   *model.Node
	Change model.DevicesChange
}

// Events is the client's notification surface: one buffered channel per
// event kind, matching the teacher's NotificationCh/PropertyChangeCh
// buffered-channel idiom (handler_core.go). A full channel drops the event
// and logs a warning rather than blocking the caller that produced it.
type Events struct {
	NodeJoined                       chan NodeJoinedEvent
	InstanceListUpdating             chan InstanceListUpdatingEvent
	InstanceListPropertyMapAcquiring chan PropertyMapAcquiringInstancesEvent
	InstanceListUpdated              chan InstanceListUpdatedEvent
	PropertyMapAcquiring             chan PropertyMapAcquiringEvent
	PropertyMapAcquired              chan PropertyMapAcquiredEvent
	PropertyValueUpdated             chan PropertyValueUpdatedEvent
	PropertiesChanged                chan PropertiesChangedEvent
	DevicesChanged                   chan DevicesChangedEvent

	log *slog.Logger
}

const (
	smallEventBuffer = 100
	largeEventBuffer = 400
)

func newEvents(log *slog.Logger) *Events {
	return &Events{
		log:                              log,
		NodeJoined:                       make(chan NodeJoinedEvent, smallEventBuffer),
		InstanceListUpdating:             make(chan InstanceListUpdatingEvent, smallEventBuffer),
		InstanceListPropertyMapAcquiring: make(chan PropertyMapAcquiringInstancesEvent, smallEventBuffer),
		InstanceListUpdated:              make(chan InstanceListUpdatedEvent, smallEventBuffer),
		PropertyMapAcquiring:             make(chan PropertyMapAcquiringEvent, smallEventBuffer),
		PropertyMapAcquired:              make(chan PropertyMapAcquiredEvent, smallEventBuffer),
		PropertyValueUpdated:             make(chan PropertyValueUpdatedEvent, largeEventBuffer),
		PropertiesChanged:                make(chan PropertiesChangedEvent, largeEventBuffer),
		DevicesChanged:                   make(chan DevicesChangedEvent, smallEventBuffer),
	}
}

func (e *Events) emitNodeJoined(n *model.Node) {
	select {
	case e.NodeJoined <- NodeJoinedEvent{Node: n}:
	default:
		e.log.Warn("client: NodeJoined event channel full, dropping", "addr", n.Address())
	}
}

func (e *Events) emitInstanceListUpdating(n *model.Node) {
	select {
	case e.InstanceListUpdating <- InstanceListUpdatingEvent{Node: n}:
	default:
		e.log.Warn("client: InstanceListUpdating event channel full, dropping")
	}
}

func (e *Events) emitInstanceListPropertyMapAcquiring(n *model.Node, instances []el.EOJ) {
	select {
	case e.InstanceListPropertyMapAcquiring <- PropertyMapAcquiringInstancesEvent{Node: n, Instances: instances}:
	default:
		e.log.Warn("client: InstanceListPropertyMapAcquiring event channel full, dropping")
	}
}

func (e *Events) emitInstanceListUpdated(n *model.Node, instances []el.EOJ) {
	select {
	case e.InstanceListUpdated <- InstanceListUpdatedEvent{Node: n, Instances: instances}:
	default:
		e.log.Warn("client: InstanceListUpdated event channel full, dropping")
	}
}

func (e *Events) emitPropertyMapAcquiring(n *model.Node, d *model.Object) {
	select {
	case e.PropertyMapAcquiring <- PropertyMapAcquiringEvent{Node: n, Device: d}:
	default:
		e.log.Warn("client: PropertyMapAcquiring event channel full, dropping")
	}
}

func (e *Events) emitPropertyMapAcquired(n *model.Node, d *model.Object) {
	select {
	case e.PropertyMapAcquired <- PropertyMapAcquiredEvent{Node: n, Device: d}:
	default:
		e.log.Warn("client: PropertyMapAcquired event channel full, dropping")
	}
}

func (e *Events) emitPropertyValueUpdated(obj *model.Object, prop *model.Property, u model.Update) {
	select {
	case e.PropertyValueUpdated <- PropertyValueUpdatedEvent{
		Object: obj, Property: prop, Old: u.Old, New: u.New, PrevTime: u.PrevTime, NewTime: u.NewTime,
	}:
	default:
		e.log.Warn("client: PropertyValueUpdated event channel full, dropping")
	}
}

func (e *Events) emitPropertiesChanged(obj *model.Object, change model.PropertiesChange) {
	select {
	case e.PropertiesChanged <- PropertiesChangedEvent{Object: obj, Change: change}:
	default:
		e.log.Warn("client: PropertiesChanged event channel full, dropping")
	}
}

func (e *Events) emitDevicesChanged(n *model.Node, change model.DevicesChange) {
	select {
	case e.DevicesChanged <- DevicesChangedEvent{Node: n, Change: change}:
	default:
		e.log.Warn("client: DevicesChanged event channel full, dropping")
	}
}
