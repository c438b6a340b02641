package client

import (
	"context"
	"fmt"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
	"github.com/koizuka/echonet-lite-core/transport"
)

// AnnounceSelf broadcasts this node's instance list as an INF, the
// self-node announce step of the discovery sequence (spec §4.G step 1).
// The EDT is padded to the fixed 253-byte announce buffer, matching the
// on-wire shape a real self-node announce takes.
func (c *Client) AnnounceSelf(ctx context.Context) error {
	eojs := make([]el.EOJ, 0, len(c.self.Devices()))
	for _, d := range c.self.Devices() {
		eojs = append(eojs, d.EOJ())
	}
	edt, err := el.InstanceList(eojs).EncodePadded()
	if err != nil {
		return fmt.Errorf("client: encode self-node instance list: %w", err)
	}
	profileEOJ := c.self.Profile().EOJ()
	return c.INF(ctx, profileEOJ, nil, profileEOJ, el.Properties{{EPC: el.EPCInstanceListNotification, EDT: edt}})
}

// ProgressFunc receives best-effort progress notices during a discovery
// sequence; implementations must return promptly. nil is a valid no-op.
type ProgressFunc func(stage string)

func reportProgress(fn ProgressFunc, stage string) {
	if fn != nil {
		fn(stage)
	}
}

// DiscoverAll starts the discovery sequence (spec §4.G) by broadcasting an
// instance-list request and returns as soon as that request is sent; it does
// not wait for any node to answer. Each INF a node sends in reply is handled
// by the inbound path (processInstanceListNotification), which ensures the
// device objects, acquires their property maps, then the node profile's own
// map. progress, if non-nil, receives coarse stage notices about the send;
// per-node/per-object progress is delivered via c.Events().
func (c *Client) DiscoverAll(ctx context.Context, progress ProgressFunc) error {
	reportProgress(progress, "requesting instance lists")
	profileEOJ := el.MakeEOJ(el.NodeProfileClassCode, el.DefaultSelfNodeInstanceCode)
	if err := c.INFREQ(ctx, c.self.Profile().EOJ(), nil, profileEOJ, []el.EPC{el.EPCInstanceListNotification}); err != nil {
		return fmt.Errorf("client: broadcast instance list request: %w", err)
	}
	reportProgress(progress, "instance list request sent")
	return nil
}

// processInstanceListNotification is invoked from the inbound path when a
// node's INF carries EPC 0xD5 (spec §4.G steps 2–3: "decode the instance
// list, ensure a device object for each entry, then acquire each object's
// property map"). Errors decoding the payload are logged and dropped; a
// malformed instance list from a misbehaving peer must not abort discovery
// for other nodes.
func (c *Client) processInstanceListNotification(node *model.Node, edt []byte) {
	c.events.emitInstanceListUpdating(node)

	list, err := el.DecodeInstanceList(edt)
	if err != nil {
		c.log.Warn("client: dropping malformed instance list", "addr", node.Address(), "err", err)
		return
	}

	c.events.emitInstanceListPropertyMapAcquiring(node, []el.EOJ(list))
	for _, eoj := range list {
		obj := node.EnsureDevice(eoj)
		c.acquirePropertyMap(node, obj, eoj)
	}
	c.events.emitInstanceListUpdated(node, []el.EOJ(list))

	c.acquirePropertyMap(node, node.Profile(), node.Profile().EOJ())
}

// acquirePropertyMap reads EPC 0x9D/0x9E/0x9F off obj at eoj on node and
// resets obj's property set to match (spec §4.G step 4: "per-object
// property-map acquisition ... 20-second timeout per object"). A timeout,
// transport failure, SNA reply or malformed property map leaves obj's
// existing properties untouched; discovery continues with the next object
// rather than aborting.
func (c *Client) acquirePropertyMap(node *model.Node, obj *model.Object, eoj el.EOJ) {
	c.events.emitPropertyMapAcquiring(node, obj)

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.PropertyMapAcquireTimeout())
	defer cancel()

	var dest transport.Addr
	if !node.IsSelf() {
		dest = node.Address()
	}

	ok, result, err := c.Get(ctx, c.self.Profile().EOJ(), dest, eoj,
		[]el.EPC{el.EPCStatusAnnouncePropertyMap, el.EPCSetPropertyMap, el.EPCGetPropertyMap})
	if err != nil {
		c.log.Warn("client: property map acquisition failed", "addr", node.Address(), "eoj", eoj, "err", err)
		return
	}
	if !ok {
		c.log.Warn("client: property map acquisition rejected", "addr", node.Address(), "eoj", eoj)
		return
	}

	wanted := make(map[el.EPC]model.Capabilities)
	mergeCapability := func(edt []byte, set func(*model.Capabilities)) bool {
		if edt == nil {
			return true
		}
		pm, err := el.DecodePropertyMap(edt)
		if err != nil {
			c.log.Warn("client: malformed property map", "addr", node.Address(), "eoj", eoj, "err", err)
			return false
		}
		for _, epc := range pm.EPCs() {
			caps := wanted[epc]
			caps.FromPropertyMap = true
			set(&caps)
			wanted[epc] = caps
		}
		return true
	}
	for _, r := range result {
		merged := true
		switch r.EPC {
		case el.EPCStatusAnnouncePropertyMap:
			merged = mergeCapability(r.EDT, func(c *model.Capabilities) { c.CanAnnounce = true })
		case el.EPCSetPropertyMap:
			merged = mergeCapability(r.EDT, func(c *model.Capabilities) { c.CanSet = true })
		case el.EPCGetPropertyMap:
			merged = mergeCapability(r.EDT, func(c *model.Capabilities) { c.CanGet = true })
		}
		if !merged {
			return
		}
	}
	obj.ResetProperties(wanted, nil)
	c.events.emitPropertyMapAcquired(node, obj)
}
