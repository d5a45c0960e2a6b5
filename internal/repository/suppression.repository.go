package repository

import (
	"context"
	"strings"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
)

type SuppressionRepository struct {
	*pg.DB
}

func NewSuppressionRepository(db *pg.DB) *SuppressionRepository {
	return &SuppressionRepository{
		db,
	}
}

// IsSuppressed reports whether the tenant has an unsubscribe or a hard bounce
// on record for email. Addresses compare case-insensitively.
func (r *SuppressionRepository) IsSuppressed(ctx context.Context, tenantID int64, email string) (bool, error) {
	addr := normalizeEmail(email)

	var count int64
	err := r.Read(ctx).
		Model(&UnsubscribeEntity{}).
		Where("tenant_id = ? AND LOWER(email) = ?", tenantID, addr).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = r.Read(ctx).
		Model(&BounceEntity{}).
		Where("tenant_id = ? AND LOWER(email) = ? AND bounce_type = ?", tenantID, addr, string(model.BounceHard)).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SuppressionRepository) AddUnsubscribe(ctx context.Context, tenantID int64, email string, campaignID *int64) (*model.Unsubscribe, error) {
	entity := &UnsubscribeEntity{
		TenantID:   tenantID,
		Email:      normalizeEmail(email),
		CampaignID: campaignID,
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toUnsubscribeModel(entity), nil
}

func (r *SuppressionRepository) AddBounce(ctx context.Context, tenantID int64, email string, bounceType model.BounceType, campaignID *int64, reason string) (*model.Bounce, error) {
	entity := &BounceEntity{
		TenantID:   tenantID,
		Email:      normalizeEmail(email),
		BounceType: string(bounceType),
		CampaignID: campaignID,
		Reason:     Truncate(reason, maxErrorLength),
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toBounceModel(entity), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
