package dispatch

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"

	"github.com/bascanada/forklift-ops/pkg/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSink_Submit_MandatedHeaders(t *testing.T) {
	pub := &fakePublisher{}
	logger, _ := bufferLogger()
	sink := connectedQueueSink(pub, logger)

	sink.Submit(context.Background(), Message{Destination: "orders", Body: "payload"})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, sentFrame{
		Destination: "orders",
		Body:        "payload",
		Headers: ty.MS{
			"destination":             "orders",
			"persistent":              "true",
			"suppress-content-length": "true",
		},
	}, pub.sent[0])
}

func TestQueueSink_Submit_CallerCannotUnsetMandatedHeaders(t *testing.T) {
	pub := &fakePublisher{}
	logger, _ := bufferLogger()
	sink := connectedQueueSink(pub, logger)

	callerHeaders := ty.MS{
		"persistent":              "false",
		"suppress-content-length": "false",
		"correlation-id":          "c-42",
		"JMSXGroupID":             "group-1",
	}
	sink.Submit(context.Background(), Message{Destination: "orders", Body: "{}", Headers: callerHeaders})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, ty.MS{
		"destination":             "orders",
		"persistent":              "true",
		"suppress-content-length": "true",
		"correlation-id":          "c-42",
		"JMSXGroupID":             "group-1",
	}, pub.sent[0].Headers)
	assert.Equal(t, "false", callerHeaders["persistent"], "caller map must not be mutated")
}

func TestQueueSink_Submit_CorrelationOnlyLogged(t *testing.T) {
	pub := &fakePublisher{}
	logger, buf := bufferLogger()
	sink := connectedQueueSink(pub, logger)

	sink.Submit(context.Background(), Message{Destination: "orders", Body: "payload", CorrelationID: "c-7"})

	require.Len(t, pub.sent, 1)
	assert.NotContains(t, pub.sent[0].Headers, "correlation-id")
	assert.Contains(t, buf.String(), "correlationId=c-7")
}

func TestQueueSink_Submit_ErrorsAreLogged(t *testing.T) {
	t.Run("send failure", func(t *testing.T) {
		pub := &fakePublisher{sendErr: errBroker}
		logger, buf := bufferLogger()
		sink := connectedQueueSink(pub, logger)

		sink.Submit(context.Background(), Message{Destination: "orders", Body: "a"})
		sink.Submit(context.Background(), Message{Destination: "orders", Body: "b"})

		assert.Len(t, pub.sent, 2, "a failed send must not block the next one")
		assert.Contains(t, buf.String(), "STOMP: broker unavailable")
	})

	t.Run("never connected", func(t *testing.T) {
		logger, buf := bufferLogger()
		sink := NewQueueSink(nil, DefaultRetryPolicy(), logger)

		assert.NotPanics(t, func() {
			sink.Submit(context.Background(), Message{Destination: "orders", Body: "a"})
		})
		assert.Contains(t, buf.String(), "STOMP: not connected")
		assert.False(t, sink.Connected())
	})
}

func TestQueueSink_Connect_Retries(t *testing.T) {
	pub := &fakePublisher{}
	logger, buf := bufferLogger()

	calls := 0
	dial := func() (Publisher, error) {
		calls++
		if calls < 3 {
			return nil, errBroker
		}
		return pub, nil
	}

	sink := NewQueueSink(dial, RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}, logger)

	require.NoError(t, sink.Connect(context.Background()))
	assert.Equal(t, 3, calls)
	assert.True(t, sink.Connected())
	assert.Contains(t, buf.String(), "connect failed")
	assert.Contains(t, buf.String(), "stomp client connected")
}

func TestQueueSink_Connect_GivesUp(t *testing.T) {
	logger, buf := bufferLogger()

	calls := 0
	dial := func() (Publisher, error) {
		calls++
		return nil, errBroker
	}

	sink := NewQueueSink(dial, RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, logger)

	err := sink.Connect(context.Background())
	assert.ErrorIs(t, err, errBroker)
	assert.Equal(t, 3, calls)
	assert.False(t, sink.Connected())
	assert.Contains(t, buf.String(), "giving up")
}

func TestQueueSink_Close(t *testing.T) {
	pub := &fakePublisher{}
	logger, _ := bufferLogger()
	sink := connectedQueueSink(pub, logger)

	assert.NoError(t, sink.Close())
	assert.True(t, pub.disconnected)
	assert.False(t, sink.Connected())
	assert.NoError(t, sink.Close())
}

func TestQueueHeaders(t *testing.T) {
	assert.Equal(t, ty.MS{"persistent": "true", "suppress-content-length": "true"}, QueueHeaders(nil))

	t.Run("reserved headers are dropped", func(t *testing.T) {
		h := QueueHeaders(ty.MS{
			"destination":    "/queue/elsewhere",
			"content-type":   "application/octet-stream",
			"content-length": "3",
			"JMSXGroupID":    "group-1",
		})
		assert.Equal(t, ty.MS{
			"persistent":              "true",
			"suppress-content-length": "true",
			"JMSXGroupID":             "group-1",
		}, h)
	})
}

func TestQueueSink_Submit_DefaultHeaders(t *testing.T) {
	pub := &fakePublisher{}
	logger, _ := bufferLogger()
	defaults := ty.MS{"JMSXGroupID": "default-group", "priority": "4"}
	sink := NewQueueSink(func() (Publisher, error) { return pub, nil }, RetryPolicy{MaxAttempts: 1}, logger).
		WithDefaultHeaders(defaults)
	require.NoError(t, sink.Connect(context.Background()))

	sink.Submit(context.Background(), Message{Destination: "orders", Body: "a", Headers: ty.MS{"priority": "9"}})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, ty.MS{
		"destination":             "orders",
		"persistent":              "true",
		"suppress-content-length": "true",
		"JMSXGroupID":             "default-group",
		"priority":                "9",
	}, pub.sent[0].Headers)
	assert.Equal(t, "4", defaults["priority"])
}

func TestQueueSink_Submit_ReservedHeadersCannotReroute(t *testing.T) {
	pub := &fakePublisher{}
	logger, _ := bufferLogger()
	sink := connectedQueueSink(pub, logger)

	sink.Submit(context.Background(), Message{
		Destination: "orders",
		Body:        "payload",
		Headers:     ty.MS{"destination": "/queue/elsewhere", "content-type": "text/html"},
	})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "orders", pub.sent[0].Headers["destination"])
	assert.NotContains(t, pub.sent[0].Headers, "content-type")
}

func TestQueueSink_Submit_ReconnectsAfterConnectionLoss(t *testing.T) {
	dead := &fakePublisher{sendErr: stomp.ErrAlreadyClosed}
	fresh := &fakePublisher{}
	logger, buf := bufferLogger()

	var dials atomic.Int32
	dial := func() (Publisher, error) {
		if dials.Add(1) == 1 {
			return dead, nil
		}
		return fresh, nil
	}

	sink := NewQueueSink(dial, RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, logger)
	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Close()

	sink.Submit(context.Background(), Message{Destination: "orders", Body: "lost"})
	sink.Submit(context.Background(), Message{Destination: "orders", Body: "lost too"})

	require.Eventually(t, func() bool {
		sink.mu.RLock()
		defer sink.mu.RUnlock()
		return sink.conn == fresh && !sink.reconnecting
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), dials.Load(), "one reconnect for the same dead connection")
	assert.Contains(t, buf.String(), "connection lost")

	sink.Submit(context.Background(), Message{Destination: "orders", Body: "after"})
	require.NotEmpty(t, fresh.sent)
	assert.Equal(t, "after", fresh.sent[len(fresh.sent)-1].Body)
}

func TestQueueSink_Submit_OtherSendErrorsKeepConnection(t *testing.T) {
	var dials atomic.Int32
	pub := &fakePublisher{sendErr: errBroker}
	logger, _ := bufferLogger()
	sink := NewQueueSink(func() (Publisher, error) {
		dials.Add(1)
		return pub, nil
	}, RetryPolicy{MaxAttempts: 1}, logger)
	require.NoError(t, sink.Connect(context.Background()))

	sink.Submit(context.Background(), Message{Destination: "orders", Body: "a"})

	assert.True(t, sink.Connected())
	assert.Equal(t, int32(1), dials.Load())
}

func TestQueueSink_ConnectAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	logger, _ := bufferLogger()
	sink := NewQueueSink(func() (Publisher, error) { return pub, nil }, RetryPolicy{MaxAttempts: 1}, logger)

	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Connect(context.Background()), errSinkClosed)
	assert.True(t, pub.disconnected)
	assert.False(t, sink.Connected())
}

// serveStomp accepts one client, answers CONNECT and DISCONNECT and hands
// every SEND frame to frames.
func serveStomp(ln net.Listener, frames chan<- *frame.Frame) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := frame.NewReader(conn)
	w := frame.NewWriter(conn)
	for {
		f, err := r.Read()
		if err != nil {
			return
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case frame.CONNECT, frame.STOMP:
			if err := w.Write(frame.New(frame.CONNECTED, frame.Version, "1.2", frame.HeartBeat, "0,0")); err != nil {
				return
			}
		case frame.SEND:
			frames <- f
		case frame.DISCONNECT:
			_ = w.Write(frame.New(frame.RECEIPT, frame.ReceiptId, f.Header.Get(frame.Receipt)))
			return
		}
	}
}

func TestDialStomp_SendFrameOnTheWire(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	frames := make(chan *frame.Frame, 1)
	go serveStomp(ln, frames)

	logger, _ := bufferLogger()
	sink := NewQueueSink(DialStomp(ln.Addr().String(), StompOptions{}), RetryPolicy{MaxAttempts: 1}, logger)
	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Close()

	sink.Submit(context.Background(), Message{
		Destination: "orders",
		Body:        "payload",
		Headers:     ty.MS{"destination": "/queue/elsewhere"},
	})

	select {
	case f := <-frames:
		headers := ty.MS{}
		for i := 0; i < f.Header.Len(); i++ {
			k, v := f.Header.GetAt(i)
			headers[k] = v
		}
		assert.Equal(t, ty.MS{
			"destination":             "orders",
			"persistent":              "true",
			"suppress-content-length": "true",
		}, headers)
		assert.Equal(t, "payload", string(f.Body))
	case <-time.After(5 * time.Second):
		t.Fatal("no SEND frame received")
	}
}
