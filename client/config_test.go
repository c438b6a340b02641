package client

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	el "github.com/koizuka/echonet-lite-core/echonet_lite"
	"github.com/koizuka/echonet-lite-core/model"
	"github.com/koizuka/echonet-lite-core/transport"
)

func TestSlogLevelParsing(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for level, want := range cases {
		cfg := Config{LogLevel: level}
		require.Equal(t, want, cfg.SlogLevel().Level(), "level=%q", level)
	}
}

// blockingTransport blocks every Send until release is closed, letting a
// test hold a send "in flight" to exercise SendQueueSize backpressure.
type blockingTransport struct {
	release chan struct{}
	recv    transport.ReceiveFunc
}

func (b *blockingTransport) Send(ctx context.Context, _ transport.Addr, _ []byte) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (b *blockingTransport) OnReceive(fn transport.ReceiveFunc) { b.recv = fn }

// spec §6 "SendQueueSize": once that many sends are in flight, a further
// sendFrame call observes backpressure by blocking until either a slot
// frees up or its context is done.
func TestSendQueueSizeBoundsInFlightSends(t *testing.T) {
	tr := &blockingTransport{release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.SendQueueSize = 1
	c := New(context.Background(), cfg, tr, model.EmptySpecSource{}, nil)
	t.Cleanup(c.Close)

	frame, err := el.NewFormat1Frame(1, el.MakeEOJ(el.NodeProfileClassCode, 1), el.MakeEOJ(el.NodeProfileClassCode, 1), el.ESVGet, el.Properties{{EPC: 0x80}}, nil)
	require.NoError(t, err)

	firstDone := make(chan struct{})
	go func() {
		_ = c.sendFrame(context.Background(), testAddr("203.0.113.30"), frame)
		close(firstDone)
	}()

	// Give the first send time to occupy the sole queue slot.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.sendFrame(ctx, testAddr("203.0.113.31"), frame)
	require.ErrorIs(t, err, context.DeadlineExceeded, "second send must observe backpressure and time out while the first occupies the queue")

	close(tr.release)
	<-firstDone
}
