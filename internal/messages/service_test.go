package messages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "inbox/pkg/errors"
)

type stubRepository struct {
	listFilter ListFilter
	listItems  []Message
	listTotal  int
	listErr    error

	statsCalls int
	stats      *Stats
	statsErr   error

	pingErr error
}

func (s *stubRepository) Insert(ctx context.Context, msg *Message) (InsertOutcome, error) {
	return OutcomeCreated, nil
}

func (s *stubRepository) List(ctx context.Context, filter ListFilter) ([]Message, int, error) {
	s.listFilter = filter
	return s.listItems, s.listTotal, s.listErr
}

func (s *stubRepository) Stats(ctx context.Context) (*Stats, error) {
	s.statsCalls++
	return s.stats, s.statsErr
}

func (s *stubRepository) Ping(ctx context.Context) error {
	return s.pingErr
}

func TestListRejectsLimitOutOfRange(t *testing.T) {
	repo := &stubRepository{}
	service := NewService(repo)

	for _, limit := range []int{-1, 0, 101, 200} {
		_, _, err := service.List(context.Background(), ListFilter{Limit: limit})
		require.Error(t, err, "limit %d", limit)
		assert.True(t, pkgerrors.IsValidation(err))
	}
}

func TestListRejectsNegativeOffset(t *testing.T) {
	repo := &stubRepository{}
	service := NewService(repo)

	_, _, err := service.List(context.Background(), ListFilter{Limit: DefaultLimit, Offset: -1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestListAcceptsLimitBounds(t *testing.T) {
	repo := &stubRepository{}
	service := NewService(repo)

	for _, limit := range []int{1, 100} {
		_, _, err := service.List(context.Background(), ListFilter{Limit: limit})
		require.NoError(t, err)
		assert.Equal(t, limit, repo.listFilter.Limit)
	}
}

func TestListPassesFilterThrough(t *testing.T) {
	since := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	repo := &stubRepository{listItems: []Message{{MessageID: "m1"}}, listTotal: 7}
	service := NewService(repo)

	items, total, err := service.List(context.Background(), ListFilter{
		From:      "+919876543210",
		Since:     since,
		TextQuery: "hello",
		Limit:     20,
		Offset:    40,
	})
	require.NoError(t, err)

	assert.Len(t, items, 1)
	assert.Equal(t, 7, total)
	assert.Equal(t, "+919876543210", repo.listFilter.From)
	assert.Equal(t, since, repo.listFilter.Since)
	assert.Equal(t, "hello", repo.listFilter.TextQuery)
	assert.Equal(t, 20, repo.listFilter.Limit)
	assert.Equal(t, 40, repo.listFilter.Offset)
}

func TestStatsWithoutCacheHitsRepository(t *testing.T) {
	repo := &stubRepository{stats: &Stats{TotalMessages: 3}}
	service := NewService(repo)

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 1, repo.statsCalls)
}

func TestStatsPropagatesRepositoryError(t *testing.T) {
	repo := &stubRepository{statsErr: pkgerrors.ErrServiceUnavailable}
	service := NewService(repo)

	_, err := service.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsServiceUnavailable(err))
}

func TestPingDelegates(t *testing.T) {
	repo := &stubRepository{pingErr: pkgerrors.ErrServiceUnavailable}
	service := NewService(repo)

	assert.Error(t, service.Ping(context.Background()))

	repo.pingErr = nil
	assert.NoError(t, service.Ping(context.Background()))
}
