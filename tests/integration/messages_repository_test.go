package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox/internal/messages"
)

func TestMessagesRepository_InsertIdempotent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)

	msg := newMessage("idem-m1", "+919876543210", 0, "Hello")

	outcome, err := repo.Insert(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, messages.OutcomeCreated, outcome)

	// Replay with different content for the same id; the first write wins.
	replay := newMessage("idem-m1", "+919876543210", time.Hour, "changed")
	outcome, err = repo.Insert(ctx, replay)
	require.NoError(t, err)
	assert.Equal(t, messages.OutcomeAlreadyExists, outcome)

	items, total, err := repo.List(ctx, messages.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Hello", items[0].Text)
	assert.True(t, items[0].Ts.Equal(baseTs))
}

func TestMessagesRepository_ListOrderingAndPagination(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)
	seedMessages(t, repo, 25, "+919876543210")

	var collected []string
	for offset := 0; offset < 25; offset += 10 {
		items, total, err := repo.List(ctx, messages.ListFilter{Limit: 10, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 25, total)
		for _, item := range items {
			collected = append(collected, item.MessageID)
		}
	}

	// Stable (ts, message_id) ordering means pages never overlap or skip.
	require.Len(t, collected, 25)
	seen := make(map[string]bool)
	for i, id := range collected {
		assert.False(t, seen[id], "duplicate id %s across pages", id)
		seen[id] = true
		if i > 0 {
			assert.Less(t, collected[i-1], id)
		}
	}
}

func TestMessagesRepository_ListTieBreakOnEqualTs(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)

	// Same timestamp, insertion order reversed relative to id order.
	for _, id := range []string{"tie-b", "tie-a", "tie-c"} {
		_, err := repo.Insert(ctx, newMessage(id, "+919876543210", 0, ""))
		require.NoError(t, err)
	}

	items, _, err := repo.List(ctx, messages.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "tie-a", items[0].MessageID)
	assert.Equal(t, "tie-b", items[1].MessageID)
	assert.Equal(t, "tie-c", items[2].MessageID)
}

func TestMessagesRepository_ListFilters(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)

	seedMessages(t, repo, 5, "+919876543210")
	seedMessages(t, repo, 3, "+14155550111")
	_, err := repo.Insert(ctx, newMessage("needle", "+919876543210", time.Hour, "find the NEEDLE here"))
	require.NoError(t, err)

	t.Run("by sender", func(t *testing.T) {
		items, total, err := repo.List(ctx, messages.ListFilter{From: "+14155550111", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		for _, item := range items {
			assert.Equal(t, "+14155550111", item.From)
		}
	})

	t.Run("since is inclusive", func(t *testing.T) {
		_, total, err := repo.List(ctx, messages.ListFilter{Since: baseTs.Add(3 * time.Minute), Limit: 50})
		require.NoError(t, err)
		// The groups sit at minute offsets 0-4 and 0-2, the needle an hour in;
		// ts >= base+3m leaves offsets 3 and 4 plus the needle.
		assert.Equal(t, 3, total)
	})

	t.Run("text search is case-insensitive", func(t *testing.T) {
		items, total, err := repo.List(ctx, messages.ListFilter{TextQuery: "needle", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, "needle", items[0].MessageID)
	})

	t.Run("like metacharacters are literal", func(t *testing.T) {
		_, total, err := repo.List(ctx, messages.ListFilter{TextQuery: "%", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("combined filters", func(t *testing.T) {
		_, total, err := repo.List(ctx, messages.ListFilter{
			From:      "+919876543210",
			Since:     baseTs.Add(30 * time.Minute),
			TextQuery: "needle",
			Limit:     10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestMessagesRepository_Stats(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)

	seedMessages(t, repo, 5, "+919876543210")
	seedMessages(t, repo, 3, "+14155550111")
	seedMessages(t, repo, 3, "+14155550122")

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 11, stats.TotalMessages)
	assert.Equal(t, 3, stats.SendersCount)

	// Ties on count break on the msisdn ascending.
	require.Len(t, stats.MessagesPerSender, 3)
	assert.Equal(t, messages.SenderCount{From: "+919876543210", Count: 5}, stats.MessagesPerSender[0])
	assert.Equal(t, messages.SenderCount{From: "+14155550111", Count: 3}, stats.MessagesPerSender[1])
	assert.Equal(t, messages.SenderCount{From: "+14155550122", Count: 3}, stats.MessagesPerSender[2])

	require.NotNil(t, stats.FirstMessageTs)
	require.NotNil(t, stats.LastMessageTs)
	assert.True(t, stats.FirstMessageTs.Equal(baseTs))
	assert.True(t, stats.LastMessageTs.Equal(baseTs.Add(4*time.Minute)))

	// The aggregate total matches an unfiltered list.
	_, total, err := repo.List(ctx, messages.ListFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, stats.TotalMessages, total)
}

func TestMessagesRepository_StatsEmpty(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	repo := messages.NewRepository(infra.PostgresDB)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalMessages)
	assert.Equal(t, 0, stats.SendersCount)
	assert.Empty(t, stats.MessagesPerSender)
	assert.Nil(t, stats.FirstMessageTs)
	assert.Nil(t, stats.LastMessageTs)
}

func TestMessagesRepository_StatsTopTenSenders(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)

	for i := 0; i < 12; i++ {
		from := fmt.Sprintf("+9198765432%02d", i)
		_, err := repo.Insert(ctx, newMessage("top-"+from, from, 0, ""))
		require.NoError(t, err)
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TotalMessages)
	assert.Equal(t, 12, stats.SendersCount)
	assert.Len(t, stats.MessagesPerSender, 10)
}

func TestMessagesRepository_TextNull(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := messages.NewRepository(infra.PostgresDB)

	_, err := repo.Insert(ctx, newMessage("empty-text", "+919876543210", 0, ""))
	require.NoError(t, err)

	items, _, err := repo.List(ctx, messages.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "", items[0].Text)
}

func TestMessagesRepository_Ping(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	repo := messages.NewRepository(infra.PostgresDB)
	assert.NoError(t, repo.Ping(context.Background()))
}
