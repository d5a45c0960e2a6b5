package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_ReserveSend(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	t.Run("reserves below the limit", func(t *testing.T) {
		a := seedAccount(t, db, "a@x.io", 2, 1)
		require.NoError(t, repo.ReserveSend(ctx, a.ID))

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.SendsToday)
	})

	t.Run("refuses at the limit", func(t *testing.T) {
		a := seedAccount(t, db, "b@x.io", 3, 3)
		err := repo.ReserveSend(ctx, a.ID)
		assert.ErrorIs(t, err, ErrDailyLimitReached)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.SendsToday)
	})

	t.Run("refuses paused account", func(t *testing.T) {
		a := seedAccount(t, db, "c@x.io", 10, 0)
		require.NoError(t, db.Write(ctx).Model(a).Update("status", "paused").Error)
		assert.ErrorIs(t, repo.ReserveSend(ctx, a.ID), ErrDailyLimitReached)
	})

	t.Run("unknown account", func(t *testing.T) {
		assert.ErrorIs(t, repo.ReserveSend(ctx, 999), ErrAccountNotFound)
	})

	t.Run("concurrent reservations stop at the limit", func(t *testing.T) {
		a := seedAccount(t, db, "d@x.io", 5, 0)

		var wg sync.WaitGroup
		var mu sync.Mutex
		granted := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if repo.ReserveSend(ctx, a.ID) == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, granted)
		assert.Equal(t, 5, got.SendsToday)
	})
}

func TestAccountRepository_ReleaseSend(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	a := seedAccount(t, db, "a@x.io", 5, 1)
	require.NoError(t, repo.ReleaseSend(ctx, a.ID))
	require.NoError(t, repo.ReleaseSend(ctx, a.ID))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SendsToday)
}

func TestAccountRepository_ResetDailyCounters(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	c := seedCampaign(t, db, "active")
	a := seedAccount(t, db, "a@x.io", 50, 12)
	b := seedAccount(t, db, "b@x.io", 50, 7)
	require.NoError(t, db.Write(ctx).Create(&CampaignAccountEntity{CampaignID: c.ID, AccountID: a.ID, Weight: 1, SendsToday: 4}).Error)

	n, err := repo.ResetDailyCounters(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SendsToday)
	assert.Equal(t, "2026-03-02", got.CountersResetOn)

	var link CampaignAccountEntity
	require.NoError(t, db.Read(ctx).Where("account_id = ?", a.ID).First(&link).Error)
	assert.Equal(t, 0, link.SendsToday)

	// sends made after the reset survive a second reset on the same day
	require.NoError(t, repo.ReserveSend(ctx, b.ID))
	n, err = repo.ResetDailyCounters(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err = repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SendsToday)

	n, err = repo.ResetDailyCounters(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAccountRepository_RecordError(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	a := seedAccount(t, db, "a@x.io", 5, 0)
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'e'
	}
	require.NoError(t, repo.RecordError(ctx, a.ID, string(long), ""))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, got.LastError, 200)
	assert.Equal(t, "active", string(got.Status))
}

func TestAccountRepository_WarmupPool(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	a := seedAccount(t, db, "Warm@X.io", 50, 0)
	b := seedAccount(t, db, "b@x.io", 50, 0)
	seedAccount(t, db, "cold@x.io", 50, 0)
	require.NoError(t, db.Write(ctx).Model(&AccountEntity{}).Where("id IN ?", []int64{a.ID, b.ID}).Update("warmup_enabled", true).Error)

	pool, err := repo.ListWarmupPool(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, a.ID, pool[0].ID)

	found, err := repo.FindWarmupByEmail(ctx, "warm@x.io")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = repo.FindWarmupByEmail(ctx, "cold@x.io")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, repo.UpdateWarmupScore(ctx, a.ID, 35))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 35.0, got.WarmupScore)
	assert.Equal(t, "warming", string(got.Status))
}
