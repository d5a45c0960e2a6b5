package repository

import (
	"context"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
)

type SentEmailRepository struct {
	*pg.DB
}

func NewSentEmailRepository(db *pg.DB) *SentEmailRepository {
	return &SentEmailRepository{
		db,
	}
}

func (r *SentEmailRepository) Create(ctx context.Context, m *model.SentEmail) error {
	entity := toSentEmailEntity(m)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return err
	}
	m.ID = entity.ID
	return nil
}

// Thread returns every message already sent to the lead in the campaign,
// oldest first.
func (r *SentEmailRepository) Thread(ctx context.Context, leadID, campaignID int64) ([]*model.SentEmail, error) {
	var entities []*SentEmailEntity
	err := r.Read(ctx).
		Where("lead_id = ? AND campaign_id = ?", leadID, campaignID).
		Order("sent_at ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toSentEmailModels(entities), nil
}

// CountByCampaign returns the number of dispatched messages of a campaign.
func (r *SentEmailRepository) CountByCampaign(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).Model(&SentEmailEntity{}).Where("campaign_id = ?", campaignID).Count(&count).Error
	return count, err
}
