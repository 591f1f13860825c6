package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"

	"github.com/bascanada/forklift-ops/pkg/ty"
)

const (
	// HeaderPersistent makes the broker keep the message across restarts.
	HeaderPersistent = "persistent"
	// HeaderSuppressContentLength lets ActiveMQ deliver the body as a text
	// message instead of bytes.
	HeaderSuppressContentLength = "suppress-content-length"
)

var (
	errNotConnected = errors.New("not connected")
	errSinkClosed   = errors.New("queue sink closed")
)

// reservedHeaders are frame headers the sink owns. Caller values for them
// are dropped so a message cannot be rerouted or resized through Headers.
var reservedHeaders = []string{
	frame.Destination,
	frame.ContentType,
	frame.ContentLength,
}

// Publisher is the part of *stomp.Conn the queue sink uses.
type Publisher interface {
	Send(destination, contentType string, body []byte, opts ...func(*frame.Frame) error) error
	Disconnect() error
}

// Dialer opens a broker connection.
type Dialer func() (Publisher, error)

type StompOptions struct {
	Login     string
	Passcode  string
	Host      string
	HeartBeat time.Duration
}

// DialStomp returns a Dialer for a STOMP broker at addr (host:port).
func DialStomp(addr string, options StompOptions) Dialer {
	return func() (Publisher, error) {
		opts := []func(*stomp.Conn) error{}
		if options.Login != "" {
			opts = append(opts, stomp.ConnOpt.Login(options.Login, options.Passcode))
		}
		if options.Host != "" {
			opts = append(opts, stomp.ConnOpt.Host(options.Host))
		}
		if options.HeartBeat > 0 {
			opts = append(opts, stomp.ConnOpt.HeartBeat(options.HeartBeat, options.HeartBeat))
		}

		conn, err := stomp.Dial("tcp", addr, opts...)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// QueueSink publishes to a STOMP broker over one long-lived connection.
// When the broker drops that connection the sink reconnects in the
// background with the same retry policy.
type QueueSink struct {
	mu           sync.RWMutex
	conn         Publisher
	reconnecting bool
	closed       bool

	dial     Dialer
	policy   RetryPolicy
	defaults ty.MS
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewQueueSink(dial Dialer, policy RetryPolicy, logger *slog.Logger) *QueueSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &QueueSink{
		dial:   dial,
		policy: policy,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// WithDefaultHeaders sets headers added to every message. Headers carried by
// the message itself take precedence.
func (s *QueueSink) WithDefaultHeaders(headers ty.MS) *QueueSink {
	s.defaults = headers.Clone()
	return s
}

func (s *QueueSink) Kind() Kind {
	return Queue
}

// Connect dials the broker following the retry policy. Failed attempts are
// logged; once attempts are exhausted the sink stays disconnected and every
// submission is logged and dropped.
func (s *QueueSink) Connect(ctx context.Context) error {
	s.logger.Info("connecting stomp client")

	attempt := 0
	conn, err := Retry(ctx, s.policy, func() (Publisher, error) {
		attempt++
		return s.dial()
	}, func(err error, next time.Duration) {
		s.logger.Warn("STOMP: connect failed", "attempt", attempt, "retryIn", next.String(), "err", err)
	})
	if err != nil {
		s.logger.Error("STOMP: giving up connecting", "attempts", attempt, "err", err)
		return fmt.Errorf("stomp connect: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Disconnect()
		return errSinkClosed
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("stomp client connected")
	return nil
}

// Connected reports whether a connection was established.
func (s *QueueSink) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

func (s *QueueSink) Submit(_ context.Context, msg Message) {
	if id := msg.Correlation(); id != "" {
		s.logger.Info("sending AMQ message", "correlationId", id, "destination", msg.Destination)
	} else {
		s.logger.Info("sending AMQ message", "destination", msg.Destination)
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		s.logger.Error("STOMP: "+errNotConnected.Error(), "destination", msg.Destination)
		return
	}

	headers := s.defaults.Clone()
	headers.Merge(msg.Headers)

	if err := conn.Send(msg.Destination, "", []byte(msg.Body), sendOptions(QueueHeaders(headers))...); err != nil {
		s.logger.Error("STOMP: "+err.Error(), "destination", msg.Destination)
		if connectionLost(err) {
			s.reconnect(conn)
		}
	}
}

func connectionLost(err error) bool {
	return errors.Is(err, stomp.ErrAlreadyClosed) || errors.Is(err, stomp.ErrClosedUnexpectedly)
}

// reconnect drops dead and starts one background Connect. Concurrent callers
// that saw the same dead connection do nothing.
func (s *QueueSink) reconnect(dead Publisher) {
	s.mu.Lock()
	if s.closed || s.reconnecting || s.conn != dead {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.reconnecting = true
	s.mu.Unlock()

	s.logger.Warn("STOMP: connection lost, reconnecting")

	go func() {
		defer func() {
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
		}()
		_ = s.Connect(s.ctx)
	}()
}

// Close stops any pending reconnect and disconnects from the broker.
func (s *QueueSink) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Disconnect()
	s.conn = nil
	return err
}

// QueueHeaders returns the caller headers with the mandated persistence and
// content-length headers forced on. Reserved frame headers are removed.
func QueueHeaders(headers ty.MS) ty.MS {
	h := headers.Clone()
	for _, k := range reservedHeaders {
		delete(h, k)
	}
	h[HeaderPersistent] = "true"
	h[HeaderSuppressContentLength] = "true"
	return h
}

func sendOptions(headers ty.MS) []func(*frame.Frame) error {
	opts := make([]func(*frame.Frame) error, 0, len(headers)+1)
	for _, k := range headers.Keys() {
		opts = append(opts, stomp.SendOpt.Header(k, headers[k]))
	}
	// go-stomp adds content-length to every SEND frame; ActiveMQ then
	// delivers the body as bytes instead of text.
	return append(opts, stomp.SendOpt.NoContentLength)
}
