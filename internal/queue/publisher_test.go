package queue

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// silentBroker accepts TCP connections and never answers the handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func Test_Publisher_SendHonoursDeadline(t *testing.T) {
	p := NewPublisher(silentBroker(t), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Send(ctx, OrderEvent{ID: "e1", Type: OrderPlacedQueue, OrderID: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func Test_Publisher_PublishDoesNotWaitForBroker(t *testing.T) {
	p := NewPublisher(silentBroker(t), zap.NewNop())
	p.events = make(chan OrderEvent, 2)

	start := time.Now()
	require.NoError(t, p.Publish(context.Background(), OrderEvent{OrderID: 1}))
	require.NoError(t, p.Publish(context.Background(), OrderEvent{OrderID: 2}))
	err := p.Publish(context.Background(), OrderEvent{OrderID: 3})

	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func Test_Publisher_RunStopsOnCancel(t *testing.T) {
	p := NewPublisher(silentBroker(t), zap.NewNop())
	p.dialTimeout = 200 * time.Millisecond
	p.sendTimeout = 200 * time.Millisecond
	require.NoError(t, p.Publish(context.Background(), OrderEvent{Type: OrderPlacedQueue, OrderID: 1}))
	require.NoError(t, p.Publish(context.Background(), OrderEvent{Type: OrderPlacedQueue, OrderID: 2}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, p.events)
}
