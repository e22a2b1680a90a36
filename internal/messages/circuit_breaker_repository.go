package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"inbox/internal/config"
	"inbox/pkg/circuitbreaker"
	pkgerrors "inbox/pkg/errors"
	"inbox/pkg/metrics"
)

// CircuitBreakerRepository shields the store from hammering an unavailable
// database. While the breaker is open, calls fail fast with a storage
// unavailable error instead of queuing on a dead connection pool.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig, reg *metrics.Registry) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{
			repo: repo,
			cb:   nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("postgres-messages")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig, reg),
	}
}

func (r *CircuitBreakerRepository) Insert(ctx context.Context, msg *Message) (InsertOutcome, error) {
	if r.cb == nil {
		return r.repo.Insert(ctx, msg)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.Insert(ctx, msg)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		return 0, r.mapError(err)
	}

	outcome, ok := result.(InsertOutcome)
	if !ok {
		return 0, fmt.Errorf("repository returned invalid result type")
	}

	return outcome, nil
}

func (r *CircuitBreakerRepository) List(ctx context.Context, filter ListFilter) ([]Message, int, error) {
	if r.cb == nil {
		return r.repo.List(ctx, filter)
	}

	type listResult struct {
		items []Message
		total int
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		items, total, err := r.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return listResult{items: items, total: total}, nil
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		return nil, 0, r.mapError(err)
	}

	lr, ok := result.(listResult)
	if !ok {
		return nil, 0, fmt.Errorf("repository returned invalid result type")
	}

	return lr.items, lr.total, nil
}

func (r *CircuitBreakerRepository) Stats(ctx context.Context) (*Stats, error) {
	if r.cb == nil {
		return r.repo.Stats(ctx)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.Stats(ctx)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		return nil, r.mapError(err)
	}

	stats, ok := result.(*Stats)
	if !ok {
		return nil, fmt.Errorf("repository returned invalid result type")
	}

	return stats, nil
}

func (r *CircuitBreakerRepository) Ping(ctx context.Context) error {
	if r.cb == nil {
		return r.repo.Ping(ctx)
	}

	_, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, r.repo.Ping(ctx)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		return r.mapError(err)
	}
	return nil
}

func (r *CircuitBreakerRepository) mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.ErrServiceUnavailable.WithCause(
			fmt.Errorf("circuit breaker is open for %s: %w", r.cb.Name(), err))
	}
	return err
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}
