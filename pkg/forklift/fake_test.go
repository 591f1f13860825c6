package forklift

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bascanada/forklift-ops/pkg/search"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

type searchCall struct {
	Index   string
	Request search.SearchRequest
}

type updateCall struct {
	Index string
	ID    string
	Doc   search.Map
}

// fakeClient answers searches from a per-index table.
type fakeClient struct {
	mu        sync.Mutex
	hits      map[string][]search.Hit
	errs      map[string]error
	updateErr error
	pingErr   error
	searches  []searchCall
	updates   []updateCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		hits: map[string][]search.Hit{},
		errs: map[string]error{},
	}
}

func (f *fakeClient) Search(_ context.Context, index string, request search.SearchRequest) (search.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searches = append(f.searches, searchCall{Index: index, Request: request})
	if err := f.errs[index]; err != nil {
		return search.SearchResult{}, err
	}
	hits := f.hits[index]
	return search.SearchResult{Hits: search.Hits{Total: search.Total{Value: len(hits)}, Hits: hits}}, nil
}

func (f *fakeClient) Update(_ context.Context, index, id string, doc search.Map) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, updateCall{Index: index, ID: id, Doc: doc})
	return f.updateErr
}

func (f *fakeClient) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeClient) lastSearch() searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches[len(f.searches)-1]
}

func hit(id string, source ty.MI) search.Hit {
	return search.Hit{Index: "forklift-test-2024.05.01", Id: id, Source: source}
}

var errBackend = errors.New("connection refused")

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}
