package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignLeadRepository_ListDue(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignLeadRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	active := seedCampaign(t, db, "active")
	paused := seedCampaign(t, db, "paused")

	l1 := seedLead(t, db, "1@x.io")
	l2 := seedLead(t, db, "2@x.io")
	l3 := seedLead(t, db, "3@x.io")
	l4 := seedLead(t, db, "4@x.io")

	late := seedLink(t, db, active.ID, l1.ID, 0, at(now.Add(-time.Minute)))
	early := seedLink(t, db, active.ID, l2.ID, 0, at(now.Add(-time.Hour)))
	seedLink(t, db, active.ID, l3.ID, 0, at(now.Add(time.Hour)))
	seedLink(t, db, paused.ID, l4.ID, 0, at(now.Add(-time.Hour)))

	done := seedLink(t, db, active.ID, l4.ID, 1, at(now.Add(-time.Hour)))
	require.NoError(t, db.Write(ctx).Model(done).Update("status", "completed").Error)

	due, err := repo.ListDue(ctx, now, model.DueCursor{}, 20)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].CampaignLead.ID)
	assert.Equal(t, late.ID, due[1].CampaignLead.ID)
	assert.Equal(t, active.ID, due[0].Campaign.ID)

	due, err = repo.ListDue(ctx, now, model.DueCursor{}, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].CampaignLead.ID)

	due, err = repo.ListDue(ctx, now, due[0].Cursor(), 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, late.ID, due[0].CampaignLead.ID)

	due, err = repo.ListDue(ctx, now, due[0].Cursor(), 1)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCampaignLeadRepository_ListDueCursorBreaksTies(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignLeadRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c := seedCampaign(t, db, "active")
	same := now.Add(-time.Hour)
	var ids []int64
	for _, email := range []string{"1@x.io", "2@x.io", "3@x.io"} {
		l := seedLead(t, db, email)
		ids = append(ids, seedLink(t, db, c.ID, l.ID, 0, at(same)).ID)
	}

	var seen []int64
	var cursor model.DueCursor
	for {
		due, err := repo.ListDue(ctx, now, cursor, 2)
		require.NoError(t, err)
		if len(due) == 0 {
			break
		}
		for _, d := range due {
			seen = append(seen, d.CampaignLead.ID)
			cursor = d.Cursor()
		}
	}
	assert.Equal(t, ids, seen)
}

func TestCampaignLeadRepository_Advance(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignLeadRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c := seedCampaign(t, db, "active")
	l := seedLead(t, db, "1@x.io")
	link := seedLink(t, db, c.ID, l.ID, 0, at(now))

	next := now.Add(48 * time.Hour)
	require.NoError(t, repo.Advance(ctx, link.ID, 0, now, &next))

	got, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStep)
	assert.Equal(t, model.CampaignLeadActive, got.Status)
	require.NotNil(t, got.NextSendAt)
	assert.True(t, got.NextSendAt.Equal(next))

	t.Run("stale step is rejected", func(t *testing.T) {
		err := repo.Advance(ctx, link.ID, 0, now, &next)
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})

	t.Run("last step completes", func(t *testing.T) {
		require.NoError(t, repo.Advance(ctx, link.ID, 1, now, nil))
		got, err := repo.GetByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentStep)
		assert.Equal(t, model.CampaignLeadCompleted, got.Status)
		assert.Nil(t, got.NextSendAt)
	})
}

func TestCampaignLeadRepository_Finish(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignLeadRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c := seedCampaign(t, db, "active")
	l := seedLead(t, db, "1@x.io")
	link := seedLink(t, db, c.ID, l.ID, 1, at(now))

	require.NoError(t, repo.Finish(ctx, link.ID, model.CampaignLeadUnsubscribed))
	got, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignLeadUnsubscribed, got.Status)
	assert.Nil(t, got.NextSendAt)

	assert.ErrorIs(t, repo.Finish(ctx, link.ID, model.CampaignLeadBounced), ErrTerminalState)
	assert.ErrorIs(t, repo.Pause(ctx, link.ID, "x"), ErrTerminalState)
}

func TestCampaignLeadRepository_FinishAllForLead(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignLeadRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c1 := seedCampaign(t, db, "active")
	c2 := seedCampaign(t, db, "active")
	l := seedLead(t, db, "1@x.io")
	seedLink(t, db, c1.ID, l.ID, 1, at(now))
	done := seedLink(t, db, c2.ID, l.ID, 3, nil)
	require.NoError(t, db.Write(ctx).Model(done).Update("status", "completed").Error)

	n, err := repo.FinishAllForLead(ctx, l.ID, model.CampaignLeadUnsubscribed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignLeadCompleted, got.Status)
}

func TestCampaignLeadRepository_PauseKeepsSchedule(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignLeadRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c := seedCampaign(t, db, "active")
	l := seedLead(t, db, "1@x.io")
	link := seedLink(t, db, c.ID, l.ID, 1, at(now))

	require.NoError(t, repo.Pause(ctx, link.ID, "connection reset"))
	got, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignLeadPaused, got.Status)
	assert.Equal(t, "connection reset", got.LastError)
	require.NotNil(t, got.NextSendAt)
	assert.True(t, got.NextSendAt.Equal(now))
}
