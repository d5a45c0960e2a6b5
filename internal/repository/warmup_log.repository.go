package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"gorm.io/gorm"
)

var ErrWarmupLogNotFound = errors.New("warmup log not found")

type WarmupLogRepository struct {
	*pg.DB
}

func NewWarmupLogRepository(db *pg.DB) *WarmupLogRepository {
	return &WarmupLogRepository{
		db,
	}
}

func (r *WarmupLogRepository) Create(ctx context.Context, m *model.WarmupLog) error {
	entity := toWarmupLogEntity(m)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return err
	}
	m.ID = entity.ID
	return nil
}

// CountSentSince counts warmup messages the account originated at or after since.
func (r *WarmupLogRepository) CountSentSince(ctx context.Context, accountID int64, since time.Time) (int64, error) {
	var count int64
	err := r.Read(ctx).
		Model(&WarmupLogEntity{}).
		Where("sender_account_id = ? AND direction = ? AND sent_at >= ?", accountID, string(model.WarmupSent), since).
		Count(&count).
		Error
	return count, err
}

// Stats returns the lifetime sent count of an account and how many of those
// messages were answered.
func (r *WarmupLogRepository) Stats(ctx context.Context, accountID int64) (model.WarmupStats, error) {
	var stats model.WarmupStats
	base := func() *gorm.DB {
		return r.Read(ctx).
			Model(&WarmupLogEntity{}).
			Where("sender_account_id = ? AND direction = ?", accountID, string(model.WarmupSent))
	}
	if err := base().Count(&stats.Sent).Error; err != nil {
		return stats, err
	}
	if err := base().Where("replied_at IS NOT NULL").Count(&stats.Replied).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// MarkReplied stamps the newest unanswered message sender sent to receiver.
func (r *WarmupLogRepository) MarkReplied(ctx context.Context, senderID, receiverID int64, at time.Time) error {
	var entity WarmupLogEntity
	err := r.Read(ctx).
		Where("sender_account_id = ? AND receiver_account_id = ? AND direction = ? AND replied_at IS NULL",
			senderID, receiverID, string(model.WarmupSent)).
		Order("sent_at DESC, id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWarmupLogNotFound
		}
		return err
	}
	return r.Write(ctx).
		Model(&WarmupLogEntity{}).
		Where("id = ?", entity.ID).
		Updates(map[string]interface{}{"replied_at": at, "marked_read_at": at}).
		Error
}

func (r *WarmupLogRepository) ListBySender(ctx context.Context, accountID int64) ([]*model.WarmupLog, error) {
	var entities []*WarmupLogEntity
	err := r.Read(ctx).Where("sender_account_id = ?", accountID).Order("sent_at ASC, id ASC").Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.WarmupLog, len(entities))
	for i, e := range entities {
		out[i] = toWarmupLogModel(e)
	}
	return out, nil
}
