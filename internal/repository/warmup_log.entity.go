package repository

import (
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type WarmupLogEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	SenderAccountID   int64      `db:"sender_account_id"   gorm:"column:sender_account_id;not null;index"`
	ReceiverAccountID int64      `db:"receiver_account_id" gorm:"column:receiver_account_id;not null;index"`
	Direction         string     `db:"direction"           gorm:"column:direction;not null;default:sent"`
	Subject           string     `db:"subject"             gorm:"column:subject;not null;default:''"`
	MessageID         string     `db:"message_id"          gorm:"column:message_id;not null;default:''"`
	SentAt            time.Time  `db:"sent_at"             gorm:"column:sent_at;not null;index"`
	RepliedAt         *time.Time `db:"replied_at"          gorm:"column:replied_at"`
	MarkedReadAt      *time.Time `db:"marked_read_at"      gorm:"column:marked_read_at"`
}

func (WarmupLogEntity) TableName() string {
	return "warmup_logs"
}

func toWarmupLogEntity(m *model.WarmupLog) *WarmupLogEntity {
	if m == nil {
		return nil
	}
	return &WarmupLogEntity{
		ID:                m.ID,
		SenderAccountID:   m.SenderAccountID,
		ReceiverAccountID: m.ReceiverAccountID,
		Direction:         string(m.Direction),
		Subject:           m.Subject,
		MessageID:         m.MessageID,
		SentAt:            m.SentAt,
		RepliedAt:         m.RepliedAt,
		MarkedReadAt:      m.MarkedReadAt,
	}
}

func toWarmupLogModel(e *WarmupLogEntity) *model.WarmupLog {
	if e == nil {
		return nil
	}
	return &model.WarmupLog{
		ID:                e.ID,
		SenderAccountID:   e.SenderAccountID,
		ReceiverAccountID: e.ReceiverAccountID,
		Direction:         model.WarmupDirection(e.Direction),
		Subject:           e.Subject,
		MessageID:         e.MessageID,
		SentAt:            e.SentAt,
		RepliedAt:         e.RepliedAt,
		MarkedReadAt:      e.MarkedReadAt,
	}
}
