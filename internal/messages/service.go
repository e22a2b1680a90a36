package messages

import (
	"context"
	"fmt"

	pkgerrors "inbox/pkg/errors"
)

// Service serves the read side: filtered listing and the stats aggregate.
type Service struct {
	repo  Repository
	cache *StatsCache
}

func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

func WithStatsCache(cache *StatsCache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// List validates paging parameters and queries the store. A limit outside
// [1,100] is rejected, not clamped; that covers an explicit limit=0 too.
// Defaulting an absent limit is the handler's job.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Message, int, error) {
	if filter.Limit < 1 || filter.Limit > MaxLimit {
		return nil, 0, pkgerrors.ErrValidation.
			WithDetail("field", "limit").
			WithDetail("reason", fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if filter.Offset < 0 {
		return nil, 0, pkgerrors.ErrValidation.
			WithDetail("field", "offset").
			WithDetail("reason", "offset must not be negative")
	}

	return s.repo.List(ctx, filter)
}

// Stats returns the aggregate, served from the cache when one is configured.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if stats, ok := s.cache.Get(ctx); ok {
		return stats, nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, stats)
	return stats, nil
}

// Ping reports storage reachability for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
