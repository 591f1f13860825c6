package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/segmentio/kafka-go"

	"github.com/bascanada/forklift-ops/pkg/ty"
)

type sentFrame struct {
	Destination string
	ContentType string
	Body        string
	Headers     ty.MS
}

type fakePublisher struct {
	mu           sync.Mutex
	sent         []sentFrame
	sendErr      error
	disconnected bool
}

// Send builds the frame the way *stomp.Conn does: content-length and
// destination are set before the options run.
func (p *fakePublisher) Send(destination, contentType string, body []byte, opts ...func(*frame.Frame) error) error {
	f := frame.New(frame.SEND, frame.ContentLength, strconv.Itoa(len(body)))
	f.Header.Set(frame.Destination, destination)
	if contentType != "" {
		f.Header.Set(frame.ContentType, contentType)
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return err
		}
	}

	headers := ty.MS{}
	for i := 0; i < f.Header.Len(); i++ {
		k, v := f.Header.GetAt(i)
		headers[k] = v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentFrame{Destination: destination, ContentType: contentType, Body: string(body), Headers: headers})
	return p.sendErr
}

func (p *fakePublisher) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = true
	return nil
}

type fakeWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, msgs...)
	return w.writeErr
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

var errBroker = errors.New("broker unavailable")

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func connectedQueueSink(pub *fakePublisher, logger *slog.Logger) *QueueSink {
	sink := NewQueueSink(func() (Publisher, error) { return pub, nil }, RetryPolicy{MaxAttempts: 1}, logger)
	_ = sink.Connect(context.Background())
	return sink
}
