package forklift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bascanada/forklift-ops/pkg/search"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

var (
	ErrNotFound       = errors.New("log record not found")
	ErrInvalidService = errors.New("service name is required")
)

const (
	DefaultIndexPrefix = "forklift"
	DefaultPollSize    = 100
)

// Indices names the index families the monitor reads from.
type Indices struct {
	Prefix string
	// Lookup is the family searched by Get and Lookup.
	Lookup string
	Retry  string
	Replay string
}

func DefaultIndices() Indices {
	return Indices{
		Prefix: DefaultIndexPrefix,
		Lookup: "replay",
		Retry:  "retry",
		Replay: "replay",
	}
}

func (i Indices) pattern(name string) string {
	return search.IndexPattern(i.Prefix, name)
}

// Engine runs the id lookups and failure polls.
type Engine struct {
	client      search.Client
	indices     Indices
	defaultSize atomic.Int64
	logger      *slog.Logger
}

func NewEngine(client search.Client, indices Indices, defaultSize int, logger *slog.Logger) *Engine {
	e := &Engine{
		client:  client,
		indices: indices,
		logger:  logger,
	}
	e.SetDefaultSize(defaultSize)
	return e
}

// SetDefaultSize changes the poll size used when callers pass none.
// Non-positive values restore DefaultPollSize.
func (e *Engine) SetDefaultSize(size int) {
	if size <= 0 {
		size = DefaultPollSize
	}
	e.defaultSize.Store(int64(size))
}

func (e *Engine) DefaultSize() int {
	return int(e.defaultSize.Load())
}

// Get returns the record with the given id from the lookup indices. A
// missing record and a failed query both yield false; the failure is only
// logged. Use Lookup to tell them apart.
func (e *Engine) Get(ctx context.Context, id string) (*LogRecord, bool) {
	record, err := e.Lookup(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.logger.Error("get failed", "id", id, "err", err)
		}
		return nil, false
	}
	return record, true
}

// Lookup is Get with distinct outcomes: ErrNotFound on zero hits, the
// wrapped backend error when the query failed.
func (e *Engine) Lookup(ctx context.Context, id string) (*LogRecord, error) {
	index := e.indices.pattern(e.indices.Lookup)

	request := search.SearchRequest{
		Query: search.QueryString(search.QuoteQueryString(id), fieldID),
		Size:  1,
	}

	result, err := e.client.Search(ctx, index, request)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}

	if len(result.Hits.Hits) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, id, index)
	}

	record := recordFromHit(result.Hits.Hits[0])
	return &record, nil
}

// Poll returns the newest failures of a service. Without a role every
// record whose step matches "Error" is returned; with one, step must be
// "Error" and records owned by that role or queue rank first.
func (e *Engine) Poll(ctx context.Context, service string, role ty.Opt[string], size int) ([]LogRecord, error) {
	if service == "" {
		return nil, ErrInvalidService
	}
	if size <= 0 {
		size = e.DefaultSize()
	}

	index := e.indices.pattern(service)

	e.logger.Info("polling", "index", index, "role", role.OrElse(""), "size", size)

	request := search.SearchRequest{
		Query: pollQuery(role),
		Size:  size,
		Sort:  []search.SortItem{search.SortDesc(fieldTime)},
	}

	result, err := e.client.Search(ctx, index, request)
	if err != nil {
		e.logger.Error("poll failed", "index", index, "err", err)
		return nil, fmt.Errorf("poll %s: %w", index, err)
	}

	hits := result.Hits.Hits
	if len(hits) > size {
		hits = hits[:size]
	}

	records := make([]LogRecord, 0, len(hits))
	for _, h := range hits {
		records = append(records, recordFromHit(h))
	}
	return records, nil
}

func pollQuery(role ty.Opt[string]) search.Map {
	if !role.Present() {
		return search.QueryString(StepError, fieldStep)
	}

	return search.Bool{
		Must: []search.Map{search.Match(fieldStep, StepError)},
		Should: []search.Map{
			search.Match(fieldQueue, role.Value),
			search.Match(fieldRole, role.Value),
		},
	}.Map()
}
