package messages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox/internal/config"
	pkgerrors "inbox/pkg/errors"
	"inbox/pkg/metrics"
)

type countingRepository struct {
	stubRepository
	insertCalls int
	insertErr   error
}

func (r *countingRepository) Insert(ctx context.Context, msg *Message) (InsertOutcome, error) {
	r.insertCalls++
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	return OutcomeCreated, nil
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func TestCircuitBreakerDisabledPassesThrough(t *testing.T) {
	repo := &countingRepository{}
	wrapped := NewCircuitBreakerRepository(repo, config.CircuitBreakerConfig{Enabled: false}, nil)

	outcome, err := wrapped.Insert(context.Background(), &Message{MessageID: "m1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, 1, repo.insertCalls)
	assert.Equal(t, "disabled", wrapped.State())
}

func TestCircuitBreakerClosedDelegates(t *testing.T) {
	repo := &countingRepository{}
	wrapped := NewCircuitBreakerRepository(repo, breakerConfig(), metrics.NewRegistry())

	outcome, err := wrapped.Insert(context.Background(), &Message{MessageID: "m1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, "closed", wrapped.State())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	repo := &countingRepository{insertErr: pkgerrors.ErrServiceUnavailable}
	wrapped := NewCircuitBreakerRepository(repo, breakerConfig(), metrics.NewRegistry())

	ctx := context.Background()
	msg := &Message{MessageID: "m1"}

	_, err := wrapped.Insert(ctx, msg)
	require.Error(t, err)
	_, err = wrapped.Insert(ctx, msg)
	require.Error(t, err)

	assert.Equal(t, "open", wrapped.State())

	// With the breaker open the store is no longer touched.
	callsBefore := repo.insertCalls
	_, err = wrapped.Insert(ctx, msg)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsServiceUnavailable(err))
	assert.Equal(t, callsBefore, repo.insertCalls)
}

func TestCircuitBreakerOpenMapsAllOperations(t *testing.T) {
	repo := &countingRepository{insertErr: pkgerrors.ErrServiceUnavailable}
	wrapped := NewCircuitBreakerRepository(repo, breakerConfig(), metrics.NewRegistry())

	ctx := context.Background()
	msg := &Message{MessageID: "m1"}
	wrapped.Insert(ctx, msg)
	wrapped.Insert(ctx, msg)
	require.Equal(t, "open", wrapped.State())

	_, _, err := wrapped.List(ctx, ListFilter{Limit: DefaultLimit})
	assert.True(t, pkgerrors.IsServiceUnavailable(err))

	_, err = wrapped.Stats(ctx)
	assert.True(t, pkgerrors.IsServiceUnavailable(err))

	assert.True(t, pkgerrors.IsServiceUnavailable(wrapped.Ping(ctx)))
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	repo := &countingRepository{}
	wrapped := NewCircuitBreakerRepository(repo, breakerConfig(), metrics.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := wrapped.Insert(ctx, &Message{MessageID: "m1"})
	require.Error(t, err)
	assert.Equal(t, 0, repo.insertCalls)
}
