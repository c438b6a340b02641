// Package client implements the stateful ECHONET Lite client: transaction
// tracking, the outbound and inbound service engines, and the discovery
// sequence (spec §4.D–§4.G).
package client

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
	"github.com/koizuka/echonet-lite-core/transport"
)

// Client is the single stateful object that is both initiator and
// responder for every ECHONET Lite service on a node (spec §1).
type Client struct {
	cfg        Config
	transport  transport.Transport
	specSource model.ObjectSpecSource
	self       *model.Node
	registry   *model.Registry
	tracker    *Tracker
	events     *Events
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// sendMu serializes frame encoding and transport sends (spec §4.E/§5:
	// "a single binary semaphore serializes access to the shared encoding
	// buffer and the underlying send path").
	sendMu  sync.Mutex
	sendBuf bytes.Buffer

	// sendSem bounds the number of sends allowed to be in flight at once to
	// Config.SendQueueSize (spec §6 "SendQueueSize"); nil when the queue is
	// unbounded (the default), in which case sendMu alone serializes.
	sendSem chan struct{}
}

// New constructs a Client. specSource resolves the static object/property
// catalog for detailed objects; deviceSeeds pre-registers the self-node's
// locally hosted device objects (spec §4.B "self-node ... initialize
// device objects at construction").
func New(ctx context.Context, cfg Config, tr transport.Transport, specSource model.ObjectSpecSource, deviceSeeds []model.DeviceSeed) *Client {
	if specSource == nil {
		specSource = model.EmptySpecSource{}
	}
	profileEOJ := el.MakeEOJ(el.NodeProfileClassCode, el.InstanceCode(cfg.SelfNodeInstanceCode))
	profileSpec := specSource.FindClass(profileEOJ.ClassCode().ClassGroupCode(), profileEOJ.ClassCode().ClassCode())
	self := model.NewSelfNode(profileEOJ, profileSpec, deviceSeeds)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	var sendSem chan struct{}
	if cfg.SendQueueSize > 0 {
		sendSem = make(chan struct{}, cfg.SendQueueSize)
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Client{
		cfg:        cfg,
		transport:  tr,
		specSource: specSource,
		self:       self,
		registry:   model.NewRegistry(),
		tracker:    NewTracker(),
		events:     newEvents(log),
		log:        log,
		ctx:        cctx,
		cancel:     cancel,
		sendSem:    sendSem,
	}
	c.registry.OnJoined(func(n *model.Node) {
		c.log.Info("client: node joined", "addr", n.Address())
		c.events.emitNodeJoined(n)
	})
	c.wireNode(self)
	tr.OnReceive(c.onReceive)
	return c
}

// wireNode bridges a Node's internal change subscriptions into the
// client's public Events channels (spec §6 "PropertiesChanged",
// "DevicesChanged"): every object the node currently owns is wired, and
// every device EnsureDevice adds afterward is wired as it appears.
func (c *Client) wireNode(node *model.Node) {
	c.wireObject(node.Profile())
	for _, obj := range node.Devices() {
		c.wireObject(obj)
	}
	node.Subscribe(func(change model.DevicesChange) {
		c.events.emitDevicesChanged(node, change)
		if change.Type == model.DeviceAdded {
			if obj, ok := node.Device(change.EOJ); ok {
				c.wireObject(obj)
			}
		}
	})
}

func (c *Client) wireObject(obj *model.Object) {
	obj.Subscribe(func(change model.PropertiesChange) {
		c.events.emitPropertiesChanged(obj, change)
	})
}

func (c *Client) Close() { c.cancel() }

func (c *Client) Self() *model.Node         { return c.self }
func (c *Client) Registry() *model.Registry { return c.registry }
func (c *Client) Events() *Events           { return c.events }
func (c *Client) Config() Config            { return c.cfg }

// findOrCreateRemoteNode returns the other-node at addr, creating it (and
// emitting NodeJoined) if this is the first time addr has been observed.
func (c *Client) findOrCreateRemoteNode(addr transport.Addr) *model.Node {
	node, created := c.registry.TryAdd(addr.String(), func() *model.Node {
		return model.NewOtherNode(addr, el.MakeEOJ(el.NodeProfileClassCode, el.DefaultSelfNodeInstanceCode))
	})
	if created {
		c.wireNode(node)
	}
	return node
}

// remoteObject resolves the Object a given EOJ on a remote node refers to,
// creating the device object (undetailed) if previously unseen.
func remoteObject(node *model.Node, eoj el.EOJ) *model.Object {
	if eoj.IsNodeProfile() {
		return node.Profile()
	}
	return node.EnsureDevice(eoj)
}

// localObject resolves deoj against the self-node: the node-profile object
// if deoj names it, otherwise a registered device object. Returns nil if
// deoj names an unknown local device (spec §4.F step 2: "may be absent").
func (c *Client) localObject(deoj el.EOJ) *model.Object {
	if deoj.IsNodeProfile() {
		return c.self.Profile()
	}
	obj, ok := c.self.Device(deoj)
	if !ok {
		return nil
	}
	return obj
}

// sendFrame serializes frame into the client's reusable buffer and sends it
// under the send mutex (spec §4.E steps 3–6). If Config.SendQueueSize
// bounds the outbound backlog, a caller blocks here (observing backpressure)
// once that many sends are already in flight.
func (c *Client) sendFrame(ctx context.Context, dest transport.Addr, frame *el.Frame) error {
	if c.sendSem != nil {
		select {
		case c.sendSem <- struct{}{}:
			defer func() { <-c.sendSem }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.sendMu.Lock()
	defer func() {
		c.sendBuf.Reset()
		c.sendMu.Unlock()
	}()

	encoded, err := frame.Serialize()
	if err != nil {
		return fmt.Errorf("client: encode frame: %w", err)
	}
	c.sendBuf.Write(encoded)
	payload := append([]byte(nil), c.sendBuf.Bytes()...)

	if err := c.transport.Send(ctx, dest, payload); err != nil {
		return fmt.Errorf("client: transport send: %w", err)
	}
	return nil
}

// writeLocalProperty stores value on prop and emits PropertyValueUpdated.
func (c *Client) writeLocalProperty(obj *model.Object, prop *model.Property, value []byte) {
	old := prop.Value()
	prevTime := prop.UpdatedAt()
	now := time.Now()
	prop.Write(value, now)
	c.events.emitPropertyValueUpdated(obj, prop, model.Update{Old: old, New: value, PrevTime: prevTime, NewTime: now})
}
