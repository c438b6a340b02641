package client

import (
	"context"
	"errors"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
	"github.com/koizuka/echonet-lite-core/transport"
)

// ErrBroadcastNotAllowed is returned by INFC when dest is nil (spec §4.E:
// "Broadcasting is forbidden; the destination address must be non-null").
var ErrBroadcastNotAllowed = errors.New("client: broadcast destination not allowed for this service")

func epcOnlyList(epcs []el.EPC) el.Properties {
	out := make(el.Properties, len(epcs))
	for i, e := range epcs {
		out[i] = el.Property{EPC: e}
	}
	return out
}

func findByEPC(props el.Properties, epc el.EPC) (el.Property, bool) {
	for _, p := range props {
		if p.EPC == epc {
			return p, true
		}
	}
	return el.Property{}, false
}

// reflectWrites stores, for every sent property whose echoed counterpart in
// result has PDC=0 (success), the originally requested value into the
// target object's local cache. Used by SetI/SetC/SetGet on success, and by
// SetI's optimistic-cancellation path (with result == the PDC=0 echo of
// sent, all assumed successful).
func (c *Client) reflectWrites(obj *model.Object, sent el.Properties, result el.Properties) {
	for _, r := range result {
		if !r.HasPDCZero() {
			continue
		}
		sentOp, ok := findByEPC(sent, r.EPC)
		if !ok {
			continue
		}
		prop, ok := obj.Property(r.EPC)
		if !ok {
			prop = obj.EnsureProperty(r.EPC, model.Capabilities{}, nil)
		}
		c.writeLocalProperty(obj, prop, sentOp.EDT)
	}
}

// reflectReads stores, for every operation in result carrying EDT
// (PDC != 0), its value as the object's local cache for that EPC. Used by
// Get/SetGet on success.
func (c *Client) reflectReads(obj *model.Object, result el.Properties) {
	for _, r := range result {
		if r.HasPDCZero() {
			continue
		}
		prop, ok := obj.Property(r.EPC)
		if !ok {
			prop = obj.EnsureProperty(r.EPC, model.Capabilities{}, nil)
		}
		c.writeLocalProperty(obj, prop, r.EDT)
	}
}

// SetI writes props to deoj on dest without an application-level response.
// The only reply a peer sends is SetI_SNA on partial failure; success is
// "no reply". If ctx is cancelled before any reply arrives, the cancellation
// is returned to the caller and, when dest is non-nil, every requested write
// is optimistically reflected into dest's local cache; a broadcast SetI
// (nil dest) reflects nothing (spec §4.E "SetI").
func (c *Client) SetI(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, props el.Properties) (el.Properties, error) {
	if len(props) == 0 {
		return nil, errors.New("client: SetI requires at least one property")
	}
	tid := c.tracker.NextTID()
	c.tracker.Register(Filter{TID: tid, SourceAddr: dest, ExpectedSEOJ: deoj, ExpectedESVs: []el.ESV{el.ESVSetISNA}})

	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVSetI, props, nil)
	if err != nil {
		c.tracker.Deregister(tid)
		return nil, err
	}
	if err := c.sendFrame(ctx, dest, frame); err != nil {
		c.tracker.Deregister(tid)
		return nil, err
	}

	res, err := c.tracker.Await(ctx, tid)
	if err != nil {
		if res.Cancelled && dest != nil {
			node := c.findOrCreateRemoteNode(dest)
			obj := remoteObject(node, deoj)
			c.reflectWrites(obj, props, echoEPCOnly(props)) // every requested write assumed applied (PDC=0 echoes)
		}
		return nil, err
	}

	node := c.findOrCreateRemoteNode(res.From)
	obj := remoteObject(node, deoj)
	c.reflectWrites(obj, props, res.Msg.OPC)
	return res.Msg.OPC, nil
}

// SetC writes props to deoj on dest and waits for Set_Res or SetC_SNA.
// success reports whether every write succeeded; the returned operation
// list is the peer's response list, with PDC=0 operations reflected into
// the local cache (spec §4.E "SetC").
func (c *Client) SetC(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, props el.Properties) (success bool, result el.Properties, err error) {
	if len(props) == 0 {
		return false, nil, errors.New("client: SetC requires at least one property")
	}
	tid := c.tracker.NextTID()
	c.tracker.Register(Filter{TID: tid, SourceAddr: dest, ExpectedSEOJ: deoj, ExpectedESVs: []el.ESV{el.ESVSetRes, el.ESVSetCSNA}})

	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVSetC, props, nil)
	if err != nil {
		c.tracker.Deregister(tid)
		return false, nil, err
	}
	if err := c.sendFrame(ctx, dest, frame); err != nil {
		c.tracker.Deregister(tid)
		return false, nil, err
	}

	res, err := c.tracker.Await(ctx, tid)
	if err != nil {
		return false, nil, err
	}

	node := c.findOrCreateRemoteNode(res.From)
	obj := remoteObject(node, deoj)
	c.reflectWrites(obj, props, res.Msg.OPC)
	return res.Msg.ESV == el.ESVSetRes, res.Msg.OPC, nil
}

// Get reads epcs from deoj on dest. success reports ESV == Get_Res; every
// returned operation with EDT (PDC != 0) replaces the local cached value
// (spec §4.E "Get").
func (c *Client) Get(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, epcs []el.EPC) (success bool, result el.Properties, err error) {
	if len(epcs) == 0 {
		return false, nil, errors.New("client: Get requires at least one EPC")
	}
	tid := c.tracker.NextTID()
	c.tracker.Register(Filter{TID: tid, SourceAddr: dest, ExpectedSEOJ: deoj, ExpectedESVs: []el.ESV{el.ESVGetRes, el.ESVGetSNA}})

	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVGet, epcOnlyList(epcs), nil)
	if err != nil {
		c.tracker.Deregister(tid)
		return false, nil, err
	}
	if err := c.sendFrame(ctx, dest, frame); err != nil {
		c.tracker.Deregister(tid)
		return false, nil, err
	}

	res, err := c.tracker.Await(ctx, tid)
	if err != nil {
		return false, nil, err
	}

	node := c.findOrCreateRemoteNode(res.From)
	obj := remoteObject(node, deoj)
	c.reflectReads(obj, res.Msg.OPC)
	return res.Msg.ESV == el.ESVGetRes, res.Msg.OPC, nil
}

// SetGet writes setProps then reads getEPCs on deoj at dest in one
// round-trip (spec §4.E "SetGet"). The set-list results are returned
// separately from the get-list results — see DESIGN.md Open Question (a).
func (c *Client) SetGet(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, setProps el.Properties, getEPCs []el.EPC) (success bool, setResult el.Properties, getResult el.Properties, err error) {
	if len(setProps) == 0 && len(getEPCs) == 0 {
		return false, nil, nil, errors.New("client: SetGet requires at least one set or get operation")
	}
	tid := c.tracker.NextTID()
	c.tracker.Register(Filter{TID: tid, SourceAddr: dest, ExpectedSEOJ: deoj, ExpectedESVs: []el.ESV{el.ESVSetGetRes, el.ESVSetGetSNA}})

	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVSetGet, setProps, epcOnlyList(getEPCs))
	if err != nil {
		c.tracker.Deregister(tid)
		return false, nil, nil, err
	}
	if err := c.sendFrame(ctx, dest, frame); err != nil {
		c.tracker.Deregister(tid)
		return false, nil, nil, err
	}

	res, err := c.tracker.Await(ctx, tid)
	if err != nil {
		return false, nil, nil, err
	}

	node := c.findOrCreateRemoteNode(res.From)
	obj := remoteObject(node, deoj)
	c.reflectWrites(obj, setProps, res.Msg.OPC)
	c.reflectReads(obj, res.Msg.OPC2)
	return res.Msg.ESV == el.ESVSetGetRes, res.Msg.OPC, res.Msg.OPC2, nil
}

// INFREQ requests a notification for epcs; the reply, if any, arrives as an
// INF and is self-dispatched through the inbound path, not returned here
// (spec §4.E "INF_REQ"). INFREQ itself returns once the send completes.
func (c *Client) INFREQ(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, epcs []el.EPC) error {
	if len(epcs) == 0 {
		return errors.New("client: INF_REQ requires at least one EPC")
	}
	tid := c.tracker.NextTID()
	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVINFREQ, epcOnlyList(epcs), nil)
	if err != nil {
		return err
	}
	return c.sendFrame(ctx, dest, frame)
}

// INF sends an unsolicited notification; no reply is expected.
func (c *Client) INF(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, props el.Properties) error {
	if len(props) == 0 {
		return errors.New("client: INF requires at least one property")
	}
	tid := c.tracker.NextTID()
	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVINF, props, nil)
	if err != nil {
		return err
	}
	return c.sendFrame(ctx, dest, frame)
}

// INFC sends a point-to-point notification and waits for its mandatory
// INFC_Res ack. Broadcasting is forbidden (spec §4.E "INFC").
func (c *Client) INFC(ctx context.Context, seoj el.EOJ, dest transport.Addr, deoj el.EOJ, props el.Properties) (el.Properties, error) {
	if dest == nil {
		return nil, ErrBroadcastNotAllowed
	}
	if len(props) == 0 {
		return nil, errors.New("client: INFC requires at least one property")
	}
	tid := c.tracker.NextTID()
	c.tracker.Register(Filter{TID: tid, SourceAddr: dest, ExpectedSEOJ: deoj, ExpectedESVs: []el.ESV{el.ESVINFCRes}})

	frame, err := el.NewFormat1Frame(tid, seoj, deoj, el.ESVINFC, props, nil)
	if err != nil {
		c.tracker.Deregister(tid)
		return nil, err
	}
	if err := c.sendFrame(ctx, dest, frame); err != nil {
		c.tracker.Deregister(tid)
		return nil, err
	}

	res, err := c.tracker.Await(ctx, tid)
	if err != nil {
		return nil, err
	}
	return res.Msg.OPC, nil
}
