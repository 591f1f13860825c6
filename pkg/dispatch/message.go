// Package dispatch re-publishes corrected messages onto the outbound brokers.
// Every sink is fire-and-forget: Submit returns once the message has been
// handed to the transport, and publish failures only end up in the logs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bascanada/forklift-ops/pkg/ty"
)

var (
	ErrUnknownSink   = errors.New("unknown sink")
	ErrNoDestination = errors.New("message has no destination")
)

// HeaderCorrelationID is read for logging when CorrelationID is empty.
const HeaderCorrelationID = "correlation-id"

type Kind string

const (
	// Queue is the persistent STOMP queue broker.
	Queue Kind = "queue"
	// Log is the partitioned Kafka log.
	Log Kind = "log"
)

// ParseKind accepts the sink names and the broker names operators use.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queue", "stomp", "activemq", "amq":
		return Queue, nil
	case "log", "kafka":
		return Log, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSink, s)
	}
}

// Message is one outbound message. Destination is the queue or topic name.
type Message struct {
	Destination   string `json:"destination"`
	Body          string `json:"body"`
	Headers       ty.MS  `json:"headers,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Correlation returns the correlation id, falling back to the
// correlation-id header.
func (m Message) Correlation() string {
	if m.CorrelationID != "" {
		return m.CorrelationID
	}
	return m.Headers[HeaderCorrelationID]
}

// Sink is one outbound transport.
type Sink interface {
	Kind() Kind
	Submit(ctx context.Context, msg Message)
	Close() error
}
