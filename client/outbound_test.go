package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
)

func TestSetCReflectsOnlySuccessfulOperations(t *testing.T) {
	c, tr := newTestClient()
	dest := testAddr("10.0.0.5")
	seoj := c.self.Profile().EOJ()
	deoj := deviceClassEOJ(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		success, result, err := c.SetC(context.Background(), seoj, dest, deoj, el.Properties{
			{EPC: 0x80, EDT: []byte{0x31}},
			{EPC: 0xE0, EDT: []byte{0x01, 0x02}},
		})
		require.NoError(t, err)
		require.False(t, success)
		require.Len(t, result, 2)
	}()

	waitForSend(t, tr)
	reqFrame, err := el.Deserialize(tr.lastSent().payload)
	require.NoError(t, err)

	// Peer rejects EPC 0x80 (PDC != 0 echo) but accepts 0xE0 (PDC == 0 echo).
	resp, err := el.NewFormat1Frame(reqFrame.TID, deoj, seoj, el.ESVSetCSNA, el.Properties{
		{EPC: 0x80, EDT: []byte{0x31}},
		{EPC: 0xE0},
	}, nil)
	require.NoError(t, err)
	tr.deliver(t, dest, resp)
	<-done

	node, ok := c.Registry().TryFind(dest.String())
	require.True(t, ok)
	obj, ok := node.Device(deoj)
	require.True(t, ok)

	rejectedProp, ok := obj.Property(0x80)
	require.False(t, ok, "PDC!=0 echo means rejected, no local value may be recorded for it")
	require.Nil(t, rejectedProp)

	acceptedProp, ok := obj.Property(0xE0)
	require.True(t, ok)
	require.Equal(t, []byte{0x01, 0x02}, acceptedProp.Value())
}

func TestGetReflectsReturnedValues(t *testing.T) {
	c, tr := newTestClient()
	dest := testAddr("10.0.0.6")
	seoj := c.self.Profile().EOJ()
	deoj := deviceClassEOJ(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		success, result, err := c.Get(context.Background(), seoj, dest, deoj, []el.EPC{0x80})
		require.NoError(t, err)
		require.True(t, success)
		require.Equal(t, el.Properties{{EPC: 0x80, EDT: []byte{0x42}}}, result)
	}()

	waitForSend(t, tr)
	reqFrame, err := el.Deserialize(tr.lastSent().payload)
	require.NoError(t, err)

	resp, err := el.NewFormat1Frame(reqFrame.TID, deoj, seoj, el.ESVGetRes, el.Properties{{EPC: 0x80, EDT: []byte{0x42}}}, nil)
	require.NoError(t, err)
	tr.deliver(t, dest, resp)
	<-done

	node, ok := c.Registry().TryFind(dest.String())
	require.True(t, ok)
	obj, ok := node.Device(deoj)
	require.True(t, ok)
	prop, ok := obj.Property(0x80)
	require.True(t, ok)
	require.Equal(t, []byte{0x42}, prop.Value())
}

// Cancellation before any reply arrives: the response filter is
// deregistered, a late matching frame must not complete anything, and
// SetI's optimistic-projection rule applies the requested values locally
// (spec §8 "Service-engine invariants").
func TestSetICancelledOptimisticallyReflectsLocally(t *testing.T) {
	c, tr := newTestClient()
	dest := testAddr("10.0.0.7")
	seoj := c.self.Profile().EOJ()
	deoj := deviceClassEOJ(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var result el.Properties
	var err error
	go func() {
		defer close(done)
		result, err = c.SetI(ctx, seoj, dest, deoj, el.Properties{{EPC: 0x80, EDT: []byte{0x35}}})
	}()

	waitForSend(t, tr)
	cancel()
	<-done

	require.Error(t, err)
	require.Nil(t, result)

	node, ok := c.Registry().TryFind(dest.String())
	require.True(t, ok)
	obj, ok := node.Device(deoj)
	require.True(t, ok)
	prop, ok := obj.Property(0x80)
	require.True(t, ok)
	require.Equal(t, []byte{0x35}, prop.Value())

	// A late reply must not panic or deadlock: the pending entry is gone.
	reqFrame, err := el.Deserialize(tr.lastSent().payload)
	require.NoError(t, err)
	late, err := el.NewFormat1Frame(reqFrame.TID, deoj, seoj, el.ESVSetISNA, el.Properties{{EPC: 0x80, EDT: []byte{0x35}}}, nil)
	require.NoError(t, err)
	tr.deliver(t, dest, late)
}

// Scenario 6: INFC handshake — outbound INFC completes once the matching
// INFC_Res arrives, with the returned operation list passed through.
func TestINFCHandshake(t *testing.T) {
	c, tr := newTestClient()
	dest := testAddr("10.0.0.8")
	seoj := c.self.Profile().EOJ()
	deoj := deviceClassEOJ(1)

	done := make(chan struct{})
	var result el.Properties
	var err error
	go func() {
		defer close(done)
		result, err = c.INFC(context.Background(), seoj, dest, deoj, el.Properties{{EPC: 0xE0, EDT: []byte{0x42}}})
	}()

	waitForSend(t, tr)
	reqFrame, err2 := el.Deserialize(tr.lastSent().payload)
	require.NoError(t, err2)

	resp, err2 := el.NewFormat1Frame(reqFrame.TID, deoj, seoj, el.ESVINFCRes, el.Properties{{EPC: 0xE0}}, nil)
	require.NoError(t, err2)
	tr.deliver(t, dest, resp)
	<-done

	require.NoError(t, err)
	require.Equal(t, el.Properties{{EPC: 0xE0}}, result)
}

func TestINFCRejectsBroadcast(t *testing.T) {
	c, _ := newTestClient()
	_, err := c.INFC(context.Background(), c.self.Profile().EOJ(), nil, deviceClassEOJ(1), el.Properties{{EPC: 0xE0, EDT: []byte{0x01}}})
	require.ErrorIs(t, err, ErrBroadcastNotAllowed)
}

func waitForSend(t *testing.T, tr *fakeTransport) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tr.sentCount() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for outbound send")
}
