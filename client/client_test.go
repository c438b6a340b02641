package client

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
	"github.com/koizuka/echonet-lite-core/transport"
)

type testAddr string

func (a testAddr) String() string { return string(a) }

// fakeTransport is an in-memory transport.Transport for exercising the
// client without a real socket: Send records every datagram, deliver feeds
// a datagram into the registered receive callback synchronously.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentDatagram
	recv    transport.ReceiveFunc
	sendErr error
}

type sentDatagram struct {
	dest    transport.Addr
	payload []byte
}

func (f *fakeTransport) Send(_ context.Context, dest transport.Addr, payload []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentDatagram{dest: dest, payload: append([]byte(nil), payload...)})
	return nil
}

func (f *fakeTransport) OnReceive(fn transport.ReceiveFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recv = fn
}

func (f *fakeTransport) deliver(t *testing.T, from transport.Addr, frame *el.Frame) {
	t.Helper()
	payload, err := frame.Serialize()
	require.NoError(t, err)
	f.mu.Lock()
	recv := f.recv
	f.mu.Unlock()
	require.NotNil(t, recv)
	recv(context.Background(), from, payload)
}

func (f *fakeTransport) lastSent() sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func deviceClassEOJ(instance el.InstanceCode) el.EOJ {
	return el.MakeEOJ(el.MakeEOJClassCode(0x05, 0xFF), instance)
}

// newTestClient builds a Client with one seeded device object at EPC 0x80
// (readable+writable, 1-byte bound), suitable for exercising SetI/SetC/
// Get/SetGet/INFC against.
func newTestClient() (*Client, *fakeTransport) {
	tr := &fakeTransport{}
	cfg := DefaultConfig()
	seed := model.DeviceSeed{
		EOJ: deviceClassEOJ(1),
		Spec: model.ClassSpec{Properties: []model.PropertySpec{
			{EPC: 0x80, MinSize: 1, MaxSize: 1, CanGet: true, CanSet: true},
			{EPC: 0xE0, MinSize: 0, MaxSize: 4, CanGet: true, CanSet: true, CanAnnounce: true},
		}},
	}
	c := New(context.Background(), cfg, tr, model.EmptySpecSource{}, []model.DeviceSeed{seed})
	return c, tr
}

// newTestClientT is newTestClient plus automatic Close() on test cleanup, so
// background property-map-acquisition goroutines unblock via context
// cancellation instead of running out their full timeout.
func newTestClientT(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	c, tr := newTestClient()
	t.Cleanup(c.Close)
	return c, tr
}
