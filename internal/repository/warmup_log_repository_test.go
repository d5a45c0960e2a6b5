package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmupLogRepository_StatsAndReplies(t *testing.T) {
	db := NewTestDB(t)
	repo := NewWarmupLogRepository(db)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.NoError(t, repo.Create(ctx, &model.WarmupLog{
			SenderAccountID:   1,
			ReceiverAccountID: 2,
			Direction:         model.WarmupSent,
			Subject:           "Quick question",
			SentAt:            day.Add(-time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Create(ctx, &model.WarmupLog{
		SenderAccountID:   2,
		ReceiverAccountID: 1,
		Direction:         model.WarmupReply,
		SentAt:            day,
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkReplied(ctx, 1, 2, day))
	}

	stats, err := repo.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.WarmupStats{Sent: 10, Replied: 3}, stats)

	today, err := repo.CountSentSince(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), today)

	assert.ErrorIs(t, repo.MarkReplied(ctx, 3, 1, day), ErrWarmupLogNotFound)
}
