package repository

import (
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type UnsubscribeEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	TenantID   int64     `db:"tenant_id"   gorm:"column:tenant_id;not null;index:idx_unsubscribes_tenant_email"`
	Email      string    `db:"email"       gorm:"column:email;not null;index:idx_unsubscribes_tenant_email"`
	CampaignID *int64    `db:"campaign_id" gorm:"column:campaign_id"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (UnsubscribeEntity) TableName() string {
	return "unsubscribes"
}

type BounceEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	TenantID   int64     `db:"tenant_id"   gorm:"column:tenant_id;not null;index:idx_bounces_tenant_email"`
	Email      string    `db:"email"       gorm:"column:email;not null;index:idx_bounces_tenant_email"`
	BounceType string    `db:"bounce_type" gorm:"column:bounce_type;not null;default:hard"`
	CampaignID *int64    `db:"campaign_id" gorm:"column:campaign_id"`
	Reason     string    `db:"reason"      gorm:"column:reason;not null;default:''"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (BounceEntity) TableName() string {
	return "bounces"
}

func toUnsubscribeModel(e *UnsubscribeEntity) *model.Unsubscribe {
	return &model.Unsubscribe{
		ID:         e.ID,
		TenantID:   e.TenantID,
		Email:      e.Email,
		CampaignID: e.CampaignID,
		CreatedAt:  e.CreatedAt,
	}
}

func toBounceModel(e *BounceEntity) *model.Bounce {
	return &model.Bounce{
		ID:         e.ID,
		TenantID:   e.TenantID,
		Email:      e.Email,
		BounceType: model.BounceType(e.BounceType),
		CampaignID: e.CampaignID,
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt,
	}
}
