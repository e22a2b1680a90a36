package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inbox/internal/messages"
)

var baseTs = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newMessage(id, from string, offset time.Duration, text string) *messages.Message {
	return &messages.Message{
		MessageID: id,
		From:      from,
		To:        "+14155550100",
		Ts:        baseTs.Add(offset),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func seedMessages(t *testing.T, repo messages.Repository, count int, from string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		msg := newMessage(
			fmt.Sprintf("%s-m%03d", from, i),
			from,
			time.Duration(i)*time.Minute,
			fmt.Sprintf("message %d", i),
		)
		outcome, err := repo.Insert(ctx, msg)
		require.NoError(t, err)
		require.Equal(t, messages.OutcomeCreated, outcome)
	}
}
