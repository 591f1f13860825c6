// Package factory wires the configured backends together. Every component is
// built lazily on first use and shared afterwards.
package factory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bascanada/forklift-ops/pkg/config"
	"github.com/bascanada/forklift-ops/pkg/dispatch"
	"github.com/bascanada/forklift-ops/pkg/forklift"
	"github.com/bascanada/forklift-ops/pkg/search"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

// ConnectMode controls how the STOMP sink reaches its broker the first time
// the dispatcher is built.
type ConnectMode int

const (
	// ConnectBackground dials from a goroutine; messages submitted before the
	// connection is up are logged and dropped.
	ConnectBackground ConnectMode = iota
	// ConnectBlocking dials before the dispatcher is returned.
	ConnectBlocking
)

type Backends struct {
	cfg    *config.Config
	logger *slog.Logger

	search     ty.Lazy[search.Client]
	service    ty.Lazy[forklift.Service]
	dispatcher ty.Lazy[dispatch.Dispatcher]

	mu     sync.Mutex
	mode   ConnectMode
	built  *dispatch.Dispatcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// overridable in tests
	dialStomp func(addr string, options dispatch.StompOptions) dispatch.Dialer
	newWriter func(brokers []string, logger *slog.Logger) dispatch.MessageWriter
}

func New(cfg *config.Config, logger *slog.Logger) *Backends {
	b := &Backends{
		cfg:       cfg,
		logger:    logger,
		dialStomp: dispatch.DialStomp,
		newWriter: func(brokers []string, logger *slog.Logger) dispatch.MessageWriter {
			return dispatch.NewKafkaWriter(brokers, logger)
		},
	}

	b.search = ty.GetLazy(func() (*search.Client, error) {
		client := search.GetClient(search.Target{
			Endpoint: cfg.SearchEndpoint(),
			Username: cfg.Search.Username,
			Password: cfg.Search.Password,
			APIKey:   cfg.Search.APIKey,
			DocType:  cfg.Search.DocType,
		})
		return &client, nil
	})

	b.service = ty.GetLazy(func() (*forklift.Service, error) {
		client, err := b.Search()
		if err != nil {
			return nil, err
		}
		indices := forklift.DefaultIndices()
		indices.Prefix = cfg.Search.IndexPrefix

		return forklift.NewService(client, forklift.Options{
			Indices:    indices,
			PollSize:   cfg.Poll.DefaultSize,
			StatsLimit: cfg.Stats.Limit,
		}, logger.With("component", "forklift")), nil
	})

	b.dispatcher = ty.GetLazy(b.buildDispatcher)

	return b
}

// Config returns the configuration the backends were built from.
func (b *Backends) Config() *config.Config {
	return b.cfg
}

func (b *Backends) Search() (search.Client, error) {
	client, err := b.search()
	if err != nil {
		return nil, err
	}
	return *client, nil
}

func (b *Backends) Service() (*forklift.Service, error) {
	return b.service()
}

// Dispatcher returns the shared dispatcher, building it with the given
// connect mode on the first call. Later calls ignore mode.
func (b *Backends) Dispatcher(ctx context.Context, mode ConnectMode) (*dispatch.Dispatcher, error) {
	b.mu.Lock()
	if b.built == nil {
		b.mode = mode
	}
	b.mu.Unlock()

	d, err := b.dispatcher()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	first := b.built == nil
	b.built = d
	b.mu.Unlock()

	if first {
		b.connect(ctx, d)
	}
	return d, nil
}

func (b *Backends) buildDispatcher() (*dispatch.Dispatcher, error) {
	logger := b.logger.With("component", "dispatch")

	policy := dispatch.RetryPolicy{
		MaxAttempts: b.cfg.Stomp.Retries,
		Delay:       b.cfg.Stomp.RetryDelay.Std(),
	}
	queue := dispatch.NewQueueSink(b.dialStomp(b.cfg.StompAddr(), dispatch.StompOptions{
		Login:    b.cfg.Stomp.Login,
		Passcode: b.cfg.Stomp.Passcode,
	}), policy, logger).WithDefaultHeaders(b.cfg.Stomp.Headers)

	logSink := dispatch.NewLogSink(b.newWriter(b.cfg.Kafka.Brokers, logger), logger)

	return dispatch.NewDispatcher(logger, queue, logSink), nil
}

func (b *Backends) connect(ctx context.Context, d *dispatch.Dispatcher) {
	queue, ok := d.Sink(dispatch.Queue).(*dispatch.QueueSink)
	if !ok {
		return
	}

	b.mu.Lock()
	mode := b.mode
	b.mu.Unlock()

	if mode == ConnectBlocking {
		// failure is logged by the sink, which stays degraded
		_ = queue.Connect(ctx)
		return
	}

	connectCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = queue.Connect(connectCtx)
	}()
}

// Close stops a pending background connect and closes the sinks.
func (b *Backends) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	d := b.built
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	if d == nil {
		return nil
	}
	return d.Close()
}
