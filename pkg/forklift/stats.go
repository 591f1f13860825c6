package forklift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bascanada/forklift-ops/pkg/search"
)

// DefaultStatsLimit caps the hits fetched per aggregation query.
const DefaultStatsLimit = 10000

type AggregateResult struct {
	TotalLogs  int            `json:"totalLogs"`
	RoleTotals map[string]int `json:"roleTotals"`
}

// Stats holds one aggregate per index family; a nil side failed.
type Stats struct {
	Retry  *AggregateResult `json:"retry"`
	Replay *AggregateResult `json:"replay"`
}

type Aggregator struct {
	client  search.Client
	indices Indices
	limit   int
	logger  *slog.Logger
}

func NewAggregator(client search.Client, indices Indices, limit int, logger *slog.Logger) *Aggregator {
	if limit <= 0 {
		limit = DefaultStatsLimit
	}
	return &Aggregator{
		client:  client,
		indices: indices,
		limit:   limit,
		logger:  logger,
	}
}

// Stats counts failures per owner in the retry and replay families. Both
// queries run concurrently and Stats returns once both are done. The error
// joins the failures of either side.
func (a *Aggregator) Stats(ctx context.Context) (Stats, error) {
	var (
		stats               Stats
		retryErr, replayErr error
		g                   errgroup.Group
	)

	g.Go(func() error {
		stats.Retry, retryErr = a.aggregate(ctx, a.indices.pattern(a.indices.Retry))
		return nil
	})
	g.Go(func() error {
		stats.Replay, replayErr = a.aggregate(ctx, a.indices.pattern(a.indices.Replay))
		return nil
	})
	_ = g.Wait()

	return stats, errors.Join(retryErr, replayErr)
}

func (a *Aggregator) aggregate(ctx context.Context, index string) (*AggregateResult, error) {
	request := search.SearchRequest{
		Query: search.QueryString(StepError, fieldStep),
		Size:  a.limit,
		Sort:  []search.SortItem{search.SortDesc(fieldTime)},
	}

	result, err := a.client.Search(ctx, index, request)
	if err != nil {
		a.logger.Error("stats query failed", "index", index, "err", err)
		return nil, fmt.Errorf("stats %s: %w", index, err)
	}

	agg := Aggregate(result.Hits.Hits)
	a.logger.Info("stats done", "index", index, "totalLogs", agg.TotalLogs, "owners", len(agg.RoleTotals))
	return agg, nil
}

// Aggregate groups hits by owner.
func Aggregate(hits []search.Hit) *AggregateResult {
	agg := &AggregateResult{
		TotalLogs:  len(hits),
		RoleTotals: map[string]int{},
	}
	for _, h := range hits {
		agg.RoleTotals[ownerOf(h.Source)]++
	}
	return agg
}
