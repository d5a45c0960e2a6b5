package repository

import (
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type SentEmailEntity struct {
	ID           int64      `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID   int64      `db:"campaign_id"   gorm:"column:campaign_id;not null;index:idx_sent_emails_thread"`
	LeadID       int64      `db:"lead_id"       gorm:"column:lead_id;not null;index:idx_sent_emails_thread"`
	AccountID    int64      `db:"account_id"    gorm:"column:account_id;not null;index"`
	StepID       int64      `db:"step_id"       gorm:"column:step_id;not null"`
	MessageID    string     `db:"message_id"    gorm:"column:message_id;not null;default:''"`
	Subject      string     `db:"subject"       gorm:"column:subject;not null;default:''"`
	BodyPreview  string     `db:"body_preview"  gorm:"column:body_preview;not null;default:''"`
	TrackingID   string     `db:"tracking_id"   gorm:"column:tracking_id;not null;uniqueIndex"`
	VariantIndex int        `db:"variant_index" gorm:"column:variant_index;not null;default:0"`
	SentAt       time.Time  `db:"sent_at"       gorm:"column:sent_at;not null"`
	OpenedAt     *time.Time `db:"opened_at"     gorm:"column:opened_at"`
	ClickedAt    *time.Time `db:"clicked_at"    gorm:"column:clicked_at"`
	RepliedAt    *time.Time `db:"replied_at"    gorm:"column:replied_at"`
	BouncedAt    *time.Time `db:"bounced_at"    gorm:"column:bounced_at"`
}

func (SentEmailEntity) TableName() string {
	return "sent_emails"
}

func toSentEmailEntity(m *model.SentEmail) *SentEmailEntity {
	if m == nil {
		return nil
	}
	return &SentEmailEntity{
		ID:           m.ID,
		CampaignID:   m.CampaignID,
		LeadID:       m.LeadID,
		AccountID:    m.AccountID,
		StepID:       m.StepID,
		MessageID:    m.MessageID,
		Subject:      m.Subject,
		BodyPreview:  m.BodyPreview,
		TrackingID:   m.TrackingID,
		VariantIndex: m.VariantIndex,
		SentAt:       m.SentAt,
		OpenedAt:     m.OpenedAt,
		ClickedAt:    m.ClickedAt,
		RepliedAt:    m.RepliedAt,
		BouncedAt:    m.BouncedAt,
	}
}

func toSentEmailModel(e *SentEmailEntity) *model.SentEmail {
	if e == nil {
		return nil
	}
	return &model.SentEmail{
		ID:           e.ID,
		CampaignID:   e.CampaignID,
		LeadID:       e.LeadID,
		AccountID:    e.AccountID,
		StepID:       e.StepID,
		MessageID:    e.MessageID,
		Subject:      e.Subject,
		BodyPreview:  e.BodyPreview,
		TrackingID:   e.TrackingID,
		VariantIndex: e.VariantIndex,
		SentAt:       e.SentAt,
		OpenedAt:     e.OpenedAt,
		ClickedAt:    e.ClickedAt,
		RepliedAt:    e.RepliedAt,
		BouncedAt:    e.BouncedAt,
	}
}

func toSentEmailModels(entities []*SentEmailEntity) []*model.SentEmail {
	if entities == nil {
		return nil
	}
	models := make([]*model.SentEmail, len(entities))
	for i, e := range entities {
		models[i] = toSentEmailModel(e)
	}
	return models
}
