package server

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/bascanada/forklift-ops/pkg/dispatch"
	"github.com/bascanada/forklift-ops/pkg/forklift"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

type pollCall struct {
	Service string
	Role    ty.Opt[string]
	Size    int
}

type stepCall struct {
	Index, ID, Step string
}

type fakeMonitor struct {
	mu sync.Mutex

	records   map[string]forklift.LogRecord
	lookupErr error
	pollOut   []forklift.LogRecord
	pollErr   error
	stats     forklift.Stats
	statsErr  error
	healthy   bool
	panicGet  bool

	polls       []pollCall
	steps       []stepCall
	defaultSize int
}

func (f *fakeMonitor) Get(ctx context.Context, id string) (*forklift.LogRecord, bool) {
	if f.panicGet {
		panic("boom")
	}
	r, err := f.Lookup(ctx, id)
	return r, err == nil
}

func (f *fakeMonitor) Lookup(_ context.Context, id string) (*forklift.LogRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	r, ok := f.records[id]
	if !ok {
		return nil, forklift.ErrNotFound
	}
	return &r, nil
}

func (f *fakeMonitor) Poll(_ context.Context, service string, role ty.Opt[string], size int) ([]forklift.LogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, pollCall{Service: service, Role: role, Size: size})
	return f.pollOut, f.pollErr
}

func (f *fakeMonitor) Stats(context.Context) (forklift.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeMonitor) Update(_ context.Context, index, id, step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, stepCall{Index: index, ID: id, Step: step})
}

func (f *fakeMonitor) Ping(context.Context) bool {
	return f.healthy
}

func (f *fakeMonitor) SetDefaultSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultSize = size
}

func (f *fakeMonitor) currentDefaultSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultSize
}

type submitCall struct {
	Kind dispatch.Kind
	Msg  dispatch.Message
}

type fakeDispatcher struct {
	mu        sync.Mutex
	submitted []submitCall
}

func (f *fakeDispatcher) Submit(_ context.Context, kind dispatch.Kind, msg dispatch.Message) error {
	if msg.Destination == "" {
		return dispatch.ErrNoDestination
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, submitCall{Kind: kind, Msg: msg})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
