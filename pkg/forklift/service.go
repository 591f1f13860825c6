package forklift

import (
	"context"
	"log/slog"
	"time"

	"github.com/bascanada/forklift-ops/pkg/search"
)

const pingTimeout = 3 * time.Second

type Options struct {
	Indices    Indices
	PollSize   int
	StatsLimit int
}

// Service bundles the engine, aggregator and updater over one search client.
type Service struct {
	*Engine
	*Aggregator
	*Updater

	client search.Client
	logger *slog.Logger
}

func NewService(client search.Client, options Options, logger *slog.Logger) *Service {
	indices := options.Indices
	if indices.Prefix == "" {
		indices = DefaultIndices()
	}

	return &Service{
		Engine:     NewEngine(client, indices, options.PollSize, logger),
		Aggregator: NewAggregator(client, indices, options.StatsLimit, logger),
		Updater:    NewUpdater(client, logger),
		client:     client,
		logger:     logger,
	}
}

// Ping reports whether the search backend answers within three seconds.
func (s *Service) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		s.logger.Warn("search backend ping failed", "err", err)
		return false
	}
	return true
}
