package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Dispatcher routes messages to the sink named by the caller.
type Dispatcher struct {
	sinks  map[Kind]Sink
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks:  make(map[Kind]Sink, len(sinks)),
		logger: logger,
	}
	for _, s := range sinks {
		d.sinks[s.Kind()] = s
	}
	return d
}

// Submit hands msg to the sink of the given kind and returns. Only caller
// mistakes are reported; publish failures are logged by the sink.
func (d *Dispatcher) Submit(ctx context.Context, kind Kind, msg Message) error {
	sink, ok := d.sinks[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSink, kind)
	}
	if msg.Destination == "" {
		return ErrNoDestination
	}

	sink.Submit(ctx, msg)
	return nil
}

// Sink returns the sink registered for kind, or nil.
func (d *Dispatcher) Sink(kind Kind) Sink {
	return d.sinks[kind]
}

// Kinds lists the registered sinks.
func (d *Dispatcher) Kinds() []Kind {
	kinds := make([]Kind, 0, len(d.sinks))
	for _, k := range []Kind{Queue, Log} {
		if _, ok := d.sinks[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Close closes every sink.
func (d *Dispatcher) Close() error {
	var errs []error
	for kind, s := range d.sinks {
		if err := s.Close(); err != nil {
			d.logger.Error("closing sink failed", "sink", kind, "err", err)
			errs = append(errs, fmt.Errorf("close %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}
