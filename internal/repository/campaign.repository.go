package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"gorm.io/gorm"
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

// GetStep returns the step with the given 1-based number.
func (r *CampaignRepository) GetStep(ctx context.Context, campaignID int64, stepNumber int) (*model.Step, error) {
	var entity StepEntity
	err := r.Read(ctx).
		Where("campaign_id = ? AND step_number = ?", campaignID, stepNumber).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStepNotFound
		}
		return nil, err
	}
	return toStepModel(&entity), nil
}

// LinkedAccounts returns the campaign's rotation in ascending account id
// order with each account's live counters.
func (r *CampaignRepository) LinkedAccounts(ctx context.Context, campaignID int64) ([]model.LinkedAccount, error) {
	var rows []linkedAccountRow
	err := r.Read(ctx).
		Table("campaign_accounts AS ca").
		Select("a.id AS account_id, a.status, a.sends_today, a.daily_limit, ca.weight").
		Joins("JOIN email_accounts AS a ON a.id = ca.account_id").
		Where("ca.campaign_id = ?", campaignID).
		Order("a.id ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return toLinkedAccounts(rows), nil
}

// IncrementLinkSends bumps the per-campaign counter of an account link.
func (r *CampaignRepository) IncrementLinkSends(ctx context.Context, campaignID, accountID int64) error {
	return r.Write(ctx).
		Model(&CampaignAccountEntity{}).
		Where("campaign_id = ? AND account_id = ?", campaignID, accountID).
		Update("sends_today", gorm.Expr("sends_today + 1")).
		Error
}
