package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"gorm.io/gorm"
)

type CampaignLeadRepository struct {
	*pg.DB
}

func NewCampaignLeadRepository(db *pg.DB) *CampaignLeadRepository {
	return &CampaignLeadRepository{
		db,
	}
}

func (r *CampaignLeadRepository) GetByID(ctx context.Context, id int64) (*model.CampaignLead, error) {
	var entity CampaignLeadEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignLeadNotFound
		}
		return nil, err
	}
	return toCampaignLeadModel(&entity), nil
}

// ListDue returns up to limit active links of active campaigns whose
// next_send_at has passed, oldest first with id as tie-breaker, starting
// after the cursor.
func (r *CampaignLeadRepository) ListDue(ctx context.Context, now time.Time, after model.DueCursor, limit int) ([]model.DueLead, error) {
	var links []*CampaignLeadEntity
	q := r.Read(ctx).
		Table("campaign_leads AS cl").
		Select("cl.*").
		Joins("JOIN campaigns AS c ON c.id = cl.campaign_id").
		Where("c.status = ? AND cl.status = ?", string(model.CampaignStatusActive), string(model.CampaignLeadActive)).
		Where("cl.next_send_at IS NOT NULL AND cl.next_send_at <= ?", now)
	if after.ID > 0 {
		q = q.Where("(cl.next_send_at > ? OR (cl.next_send_at = ? AND cl.id > ?))", after.NextSendAt, after.NextSendAt, after.ID)
	}
	err := q.
		Order("cl.next_send_at ASC, cl.id ASC").
		Limit(limit).
		Find(&links).
		Error
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(links))
	seen := make(map[int64]struct{})
	for _, l := range links {
		if _, ok := seen[l.CampaignID]; !ok {
			seen[l.CampaignID] = struct{}{}
			ids = append(ids, l.CampaignID)
		}
	}
	var campaigns []*CampaignEntity
	if err := r.Read(ctx).Where("id IN ?", ids).Find(&campaigns).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Campaign, len(campaigns))
	for _, c := range campaigns {
		byID[c.ID] = toCampaignModel(c)
	}

	due := make([]model.DueLead, 0, len(links))
	for _, l := range links {
		c, ok := byID[l.CampaignID]
		if !ok {
			continue
		}
		due = append(due, model.DueLead{CampaignLead: toCampaignLeadModel(l), Campaign: c})
	}
	return due, nil
}

// Advance moves the link from fromStep to fromStep+1. A nil next completes
// the link. The update only applies while the link is still active at
// fromStep, which keeps step progression strictly +1.
func (r *CampaignLeadRepository) Advance(ctx context.Context, id int64, fromStep int, sentAt time.Time, next *time.Time) error {
	updates := map[string]interface{}{
		"current_step": fromStep + 1,
		"last_sent_at": sentAt,
		"next_send_at": next,
		"last_error":   "",
	}
	if next == nil {
		updates["status"] = string(model.CampaignLeadCompleted)
	}
	result := r.Write(ctx).
		Model(&CampaignLeadEntity{}).
		Where("id = ? AND current_step = ? AND status = ?", id, fromStep, string(model.CampaignLeadActive)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// Finish moves a non-terminal link into status and clears next_send_at.
// Terminal links are never touched.
func (r *CampaignLeadRepository) Finish(ctx context.Context, id int64, status model.CampaignLeadStatus) error {
	result := r.Write(ctx).
		Model(&CampaignLeadEntity{}).
		Where("id = ? AND status IN ?", id, nonTerminal()).
		Updates(map[string]interface{}{"status": string(status), "next_send_at": nil})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

// FinishAllForLead moves every non-terminal link of a lead into status.
func (r *CampaignLeadRepository) FinishAllForLead(ctx context.Context, leadID int64, status model.CampaignLeadStatus) (int64, error) {
	result := r.Write(ctx).
		Model(&CampaignLeadEntity{}).
		Where("lead_id = ? AND status IN ?", leadID, nonTerminal()).
		Updates(map[string]interface{}{"status": string(status), "next_send_at": nil})
	return result.RowsAffected, result.Error
}

// RecordError keeps the link's schedule and stores the failure text.
func (r *CampaignLeadRepository) RecordError(ctx context.Context, id int64, msg string) error {
	return r.Write(ctx).
		Model(&CampaignLeadEntity{}).
		Where("id = ?", id).
		Update("last_error", Truncate(msg, maxErrorLength)).
		Error
}

// Pause parks an active link; next_send_at is kept so an operator can resume.
func (r *CampaignLeadRepository) Pause(ctx context.Context, id int64, msg string) error {
	result := r.Write(ctx).
		Model(&CampaignLeadEntity{}).
		Where("id = ? AND status = ?", id, string(model.CampaignLeadActive)).
		Updates(map[string]interface{}{
			"status":     string(model.CampaignLeadPaused),
			"last_error": Truncate(msg, maxErrorLength),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTerminalState
	}
	return nil
}

func nonTerminal() []string {
	return []string{string(model.CampaignLeadActive), string(model.CampaignLeadPaused)}
}
