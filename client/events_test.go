package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
)

// A write applied to the self-node's seeded device must surface as a
// PropertyValueUpdated event (emitted directly by applyWrites). The write
// touches an existing property, so it adds or removes nothing and fires no
// PropertiesChanged event (spec §6).
func TestHandleSetCEmitsPropertyValueUpdated(t *testing.T) {
	c, tr := newTestClientT(t)
	deoj := deviceClassEOJ(1)
	from := testAddr("203.0.113.10")

	frame, err := el.NewFormat1Frame(1, el.MakeEOJ(el.NodeProfileClassCode, 1), deoj, el.ESVSetC,
		el.Properties{{EPC: 0x80, EDT: []byte{0x42}}}, nil)
	require.NoError(t, err)
	tr.deliver(t, from, frame)

	select {
	case ev := <-c.Events().PropertyValueUpdated:
		require.Equal(t, el.EPC(0x80), ev.Property.EPC())
		require.Equal(t, []byte{0x42}, ev.New)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PropertyValueUpdated")
	}
}

// EnsureDevice on a remote node must fire DevicesChanged, bridged via the
// node.Subscribe callback wireNode installs at node-creation time (spec §6
// "DevicesChanged").
func TestEnsureDeviceOnRemoteNodeEmitsDevicesChanged(t *testing.T) {
	c, _ := newTestClientT(t)
	node := c.findOrCreateRemoteNode(testAddr("203.0.113.20"))

	eoj := deviceClassEOJ(2)
	node.EnsureDevice(eoj)

	select {
	case ev := <-c.Events().DevicesChanged:
		require.Equal(t, model.DeviceAdded, ev.Change.Type)
		require.Equal(t, eoj, ev.Change.EOJ)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DevicesChanged")
	}
}

// A device object EnsureDevice creates after node creation must itself be
// wired for PropertiesChanged (not just the objects present at wire time).
func TestDeviceAddedAfterNodeCreationIsWiredForPropertiesChanged(t *testing.T) {
	c, _ := newTestClientT(t)
	node := c.findOrCreateRemoteNode(testAddr("203.0.113.21"))

	eoj := deviceClassEOJ(3)
	obj := node.EnsureDevice(eoj)
	// Drain the DevicesChanged event fired by EnsureDevice itself.
	<-c.Events().DevicesChanged

	obj.EnsureProperty(0x80, model.Capabilities{CanGet: true}, nil)

	select {
	case ev := <-c.Events().PropertiesChanged:
		require.Equal(t, model.PropertyAdded, ev.Change.Type)
		require.Equal(t, el.EPC(0x80), ev.Change.EPC)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PropertiesChanged")
	}
}
