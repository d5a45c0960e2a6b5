package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignRepository_GetStep(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	c := seedCampaign(t, db, "active")
	require.NoError(t, db.Write(ctx).Create(&StepEntity{
		CampaignID: c.ID,
		StepNumber: 1,
		Subject:    "hello",
		Body:       "body",
		Variants:   []model.Variant{{Subject: "hey"}, {Body: "other body"}},
	}).Error)

	step, err := repo.GetStep(ctx, c.ID, 1)
	require.NoError(t, err)
	require.Len(t, step.Variants, 2)
	assert.Equal(t, "hey", step.Variants[0].Subject)

	_, err = repo.GetStep(ctx, c.ID, 2)
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestCampaignRepository_LinkedAccounts(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	c := seedCampaign(t, db, "active")
	a := seedAccount(t, db, "a@x.io", 10, 3)
	b := seedAccount(t, db, "b@x.io", 20, 1)
	seedAccount(t, db, "unlinked@x.io", 20, 0)

	require.NoError(t, db.Write(ctx).Create(&CampaignAccountEntity{CampaignID: c.ID, AccountID: b.ID, Weight: 3}).Error)
	require.NoError(t, db.Write(ctx).Create(&CampaignAccountEntity{CampaignID: c.ID, AccountID: a.ID, Weight: 1}).Error)

	linked, err := repo.LinkedAccounts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, model.LinkedAccount{AccountID: a.ID, Status: "active", SendsToday: 3, DailyLimit: 10, Weight: 1}, linked[0])
	assert.Equal(t, 3, linked[1].Weight)

	require.NoError(t, repo.IncrementLinkSends(ctx, c.ID, b.ID))
	var link CampaignAccountEntity
	require.NoError(t, db.Read(ctx).Where("account_id = ?", b.ID).First(&link).Error)
	assert.Equal(t, 1, link.SendsToday)
}
