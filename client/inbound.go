package client

import (
	"context"
	"time"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
	"github.com/koizuka/echonet-lite-core/transport"
)

// onReceive is registered as the Transport's receive callback (spec §4.A/
// §4.F: "every inbound datagram is decoded, then either matched against a
// pending transaction or routed to an inbound service handler"). Decode
// failures are dropped silently; ECHONET Lite has no protocol-level error
// reply for a malformed frame.
func (c *Client) onReceive(_ context.Context, from transport.Addr, data []byte) {
	frame, err := el.Deserialize(data)
	if err != nil {
		c.log.Debug("client: dropping undecodable datagram", "from", from, "err", err)
		return
	}
	if frame.EHD2 != el.EHD2Format1 {
		// Format-2 payloads are opaque to this engine; hand them nowhere
		// (spec §4.A non-goal: "interpreting Format-2 payload contents").
		return
	}
	msg := frame.Format1

	if msg.ESV.IsSNA() || isResponseESV(msg.ESV) {
		if c.tracker.Dispatch(frame.TID, from, msg) {
			return
		}
		// No pending transaction matched: a late or unsolicited reply.
		// Dropped per spec §4.D ("a reply with no matching pending
		// transaction is dropped").
		return
	}

	go c.handleInboundService(from, frame.TID, msg)
}

func isResponseESV(esv el.ESV) bool {
	switch esv {
	case el.ESVSetRes, el.ESVGetRes, el.ESVINFCRes, el.ESVSetGetRes:
		return true
	default:
		return false
	}
}

// handleInboundService dispatches a request/notification ESV to its handler
// (spec §4.F). Run on its own goroutine per datagram so a slow handler never
// blocks the receive path (spec §5).
func (c *Client) handleInboundService(from transport.Addr, tid el.TID, msg *el.Format1Message) {
	switch msg.ESV {
	case el.ESVSetI:
		c.handleSetI(from, tid, msg)
	case el.ESVSetC:
		c.handleSetC(from, tid, msg)
	case el.ESVGet:
		c.handleGet(from, tid, msg)
	case el.ESVSetGet:
		c.handleSetGetRequest(from, tid, msg)
	case el.ESVINF:
		c.handleINF(from, tid, msg)
	case el.ESVINFC:
		c.handleINFC(from, tid, msg)
	case el.ESVINFREQ:
		// Responding to an INF_REQ with a live INF is an application-level
		// decision outside this engine's scope (spec §4.E "INF_REQ"); the
		// core only supports issuing INF_REQ as an initiator, not serving
		// it as a responder.
		c.log.Debug("client: INF_REQ request handling not implemented by this engine", "from", from)
	default:
		c.log.Debug("client: dropping inbound frame with unhandled ESV", "esv", msg.ESV, "from", from)
	}
}

// handleSetI applies a write-without-response request. If the destination
// object is absent, the frame is silently dropped (no SNA, per spec §4.F
// "SetI": "absent destination: silently drop, no SNA"). Otherwise every
// writable property is applied; any rejection produces a SetI_SNA naming
// only the rejected operations, echoing tid.
func (c *Client) handleSetI(from transport.Addr, tid el.TID, msg *el.Format1Message) {
	obj := c.localObject(msg.DEOJ)
	if obj == nil {
		return
	}
	rejected := c.applyWrites(obj, msg.OPC)
	if len(rejected) == 0 {
		return
	}
	c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetISNA, rejected)
}

// handleSetC applies a write-with-response request, always replying:
// Set_Res with an empty-EDT echo of every accepted operation on full
// success, SetC_SNA naming only the rejected operations otherwise (spec
// §4.F "SetC").
func (c *Client) handleSetC(from transport.Addr, tid el.TID, msg *el.Format1Message) {
	obj := c.localObject(msg.DEOJ)
	if obj == nil {
		c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetCSNA, echoEPCOnly(msg.OPC))
		return
	}
	rejected := c.applyWrites(obj, msg.OPC)
	if len(rejected) > 0 {
		c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetCSNA, rejected)
		return
	}
	c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetRes, echoEPCOnly(msg.OPC))
}

// handleGet reads the requested EPCs off the local object, replying Get_Res
// with (EPC,EDT) for every readable property or Get_SNA naming any EPC this
// object cannot currently Get (spec §4.F "Get"; DESIGN.md Open Question
// (b): capability checked is CanGet, not CanSet).
func (c *Client) handleGet(from transport.Addr, tid el.TID, msg *el.Format1Message) {
	obj := c.localObject(msg.DEOJ)
	if obj == nil {
		c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVGetSNA, echoEPCOnly(msg.OPC))
		return
	}
	result, rejected := c.readProperties(obj, msg.OPC)
	if len(rejected) > 0 {
		c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVGetSNA, rejected)
		return
	}
	c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVGetRes, result)
}

// handleSetGetRequest combines handleSetC's write phase with handleGet's
// read phase into a single SetGet_Res/SetGet_SNA reply (spec §4.F
// "SetGet"). Any rejection in either phase produces SNA naming only the
// rejected operations from that phase; the other phase's list still
// carries its normal success form.
func (c *Client) handleSetGetRequest(from transport.Addr, tid el.TID, msg *el.Format1Message) {
	obj := c.localObject(msg.DEOJ)
	if obj == nil {
		c.replySetGet(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetGetSNA, echoEPCOnly(msg.OPC), echoEPCOnly(msg.OPC2))
		return
	}
	rejectedSet := c.applyWrites(obj, msg.OPC)
	getResult, rejectedGet := c.readProperties(obj, msg.OPC2)

	if len(rejectedSet) > 0 || len(rejectedGet) > 0 {
		setList := echoEPCOnly(msg.OPC)
		if len(rejectedSet) > 0 {
			setList = rejectedSet
		}
		getList := getResult
		if len(rejectedGet) > 0 {
			getList = rejectedGet
		}
		c.replySetGet(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetGetSNA, setList, getList)
		return
	}
	c.replySetGet(from, tid, msg.DEOJ, msg.SEOJ, el.ESVSetGetRes, echoEPCOnly(msg.OPC), getResult)
}

// handleINF ingests an unsolicited notification. The node and object are
// created if previously unseen (spec §4.F "INF": "brings the source node
// and object into existence if unknown"). EPC 0xD5 (instance list) on the
// node-profile object additionally triggers instance-list processing
// (spec §4.G).
func (c *Client) handleINF(from transport.Addr, _ el.TID, msg *el.Format1Message) {
	node := c.findOrCreateRemoteNode(from)
	obj := remoteObject(node, msg.SEOJ)
	c.ingestProperties(obj, msg.OPC)

	if msg.SEOJ.IsNodeProfile() {
		if p, ok := findByEPC(msg.OPC, el.EPCInstanceListNotification); ok {
			go c.processInstanceListNotification(node, p.EDT)
		}
	}
}

// handleINFC ingests a point-to-point notification identically to INF, then
// sends the mandatory INFC_Res ack (spec §4.F "INFC": "always reply
// INFC_Res, echoing every received operation with PDC=0") unless the
// destination object is absent, in which case the ingest still occurs but
// no reply is sent ("quietly retain").
func (c *Client) handleINFC(from transport.Addr, tid el.TID, msg *el.Format1Message) {
	node := c.findOrCreateRemoteNode(from)
	obj := remoteObject(node, msg.SEOJ)
	c.ingestProperties(obj, msg.OPC)

	if c.localObject(msg.DEOJ) == nil {
		return
	}
	c.replyFrom(from, tid, msg.DEOJ, msg.SEOJ, el.ESVINFCRes, echoEPCOnly(msg.OPC))
}

// applyWrites stores every writable operation in ops into obj's local
// properties, returning the subset it rejected (wrong EPC, not settable, or
// out of bounds) echoed with their original EDT, per spec §8 scenario 3
// ("SetC_SNA reply echoing the original op").
func (c *Client) applyWrites(obj *model.Object, ops el.Properties) el.Properties {
	var rejected el.Properties
	now := time.Now()
	for _, op := range ops {
		prop, ok := obj.Property(op.EPC)
		if !ok || !prop.Capabilities().CanSet {
			rejected = append(rejected, op)
			continue
		}
		if !prop.WithinBounds(op.EDT) {
			rejected = append(rejected, op)
			continue
		}
		old := prop.Value()
		prevTime := prop.UpdatedAt()
		prop.Write(op.EDT, now)
		c.events.emitPropertyValueUpdated(obj, prop, model.Update{Old: old, New: op.EDT, PrevTime: prevTime, NewTime: now})
	}
	return rejected
}

// readProperties reads every requested EPC off obj, returning the
// (EPC,EDT) results for the readable subset and empty-EDT echoes for the
// rejected subset (unknown EPC, CanGet false, or a malformed Get carrying a
// non-empty EDT; spec §4.F "Handle Get": "EDT length > 0 is a rejection").
func (c *Client) readProperties(obj *model.Object, ops el.Properties) (result el.Properties, rejected el.Properties) {
	for _, op := range ops {
		prop, ok := obj.Property(op.EPC)
		if !ok || !prop.Capabilities().CanGet || len(op.EDT) > 0 {
			rejected = append(rejected, op.ForGet())
			continue
		}
		result = append(result, el.Property{EPC: op.EPC, EDT: prop.Value()})
	}
	return result, rejected
}

// ingestProperties stores every (EPC,EDT) operation with non-empty EDT into
// obj's local cache, creating previously unknown properties on demand (spec
// §4.F "INF ingest").
func (c *Client) ingestProperties(obj *model.Object, ops el.Properties) {
	now := time.Now()
	for _, op := range ops {
		if op.HasPDCZero() {
			continue
		}
		prop, ok := obj.Property(op.EPC)
		if !ok {
			prop = obj.EnsureProperty(op.EPC, model.Capabilities{CanAnnounce: true}, nil)
		}
		old := prop.Value()
		prevTime := prop.UpdatedAt()
		prop.Write(op.EDT, now)
		c.events.emitPropertyValueUpdated(obj, prop, model.Update{Old: old, New: op.EDT, PrevTime: prevTime, NewTime: now})
	}
}

func echoEPCOnly(ops el.Properties) el.Properties {
	out := make(el.Properties, len(ops))
	for i, op := range ops {
		out[i] = op.ForGet()
	}
	return out
}

// replyFrom sends a single-list Format-1 reply to the peer at addr, echoing
// tid (spec §4.F: "every generated reply echoes the request's TID
// verbatim"). addr is never nil here: every inbound request this engine
// answers arrived from a concrete source.
func (c *Client) replyFrom(addr transport.Addr, tid el.TID, seoj, deoj el.EOJ, esv el.ESV, ops el.Properties) {
	frame, err := el.NewFormat1Frame(tid, seoj, deoj, esv, ops, nil)
	if err != nil {
		c.log.Error("client: failed to build reply frame", "esv", esv, "err", err)
		return
	}
	if err := c.sendFrame(context.Background(), addr, frame); err != nil {
		c.log.Error("client: failed to send reply frame", "esv", esv, "err", err)
	}
}

func (c *Client) replySetGet(addr transport.Addr, tid el.TID, seoj, deoj el.EOJ, esv el.ESV, setList, getList el.Properties) {
	frame, err := el.NewFormat1Frame(tid, seoj, deoj, esv, setList, getList)
	if err != nil {
		c.log.Error("client: failed to build SetGet reply frame", "esv", esv, "err", err)
		return
	}
	if err := c.sendFrame(context.Background(), addr, frame); err != nil {
		c.log.Error("client: failed to send SetGet reply frame", "esv", esv, "err", err)
	}
}
