package repository

import (
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type CampaignEntity struct {
	ID               int64     `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	TenantID         int64     `db:"tenant_id"         gorm:"column:tenant_id;not null;index"`
	Name             string    `db:"name"              gorm:"column:name;not null"`
	Status           string    `db:"status"            gorm:"column:status;not null;default:draft;index"`
	RotationStrategy string    `db:"rotation_strategy" gorm:"column:rotation_strategy;not null;default:round_robin"`
	SendWindowStart  int       `db:"send_window_start" gorm:"column:send_window_start;not null;default:9"`
	SendWindowEnd    int       `db:"send_window_end"   gorm:"column:send_window_end;not null;default:17"`
	SendDays         string    `db:"send_days"         gorm:"column:send_days;not null;default:mon,tue,wed,thu,fri"`
	Timezone         string    `db:"timezone"          gorm:"column:timezone;not null;default:UTC"`
	DailyLimit       int       `db:"daily_limit"       gorm:"column:daily_limit;not null;default:50"`
	StopOnReply      bool      `db:"stop_on_reply"     gorm:"column:stop_on_reply;not null;default:true"`
	TrackOpens       bool      `db:"track_opens"       gorm:"column:track_opens;not null;default:true"`
	TrackClicks      bool      `db:"track_clicks"      gorm:"column:track_clicks;not null;default:false"`
	CreatedAt        time.Time `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:               e.ID,
		TenantID:         e.TenantID,
		Name:             e.Name,
		Status:           model.CampaignStatus(e.Status),
		RotationStrategy: model.RotationStrategy(e.RotationStrategy),
		SendWindowStart:  e.SendWindowStart,
		SendWindowEnd:    e.SendWindowEnd,
		SendDays:         e.SendDays,
		Timezone:         e.Timezone,
		DailyLimit:       e.DailyLimit,
		StopOnReply:      e.StopOnReply,
		TrackOpens:       e.TrackOpens,
		TrackClicks:      e.TrackClicks,
		CreatedAt:        e.CreatedAt,
	}
}

type StepEntity struct {
	ID         int64           `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID int64           `db:"campaign_id" gorm:"column:campaign_id;not null;uniqueIndex:idx_steps_campaign_number"`
	StepNumber int             `db:"step_number" gorm:"column:step_number;not null;uniqueIndex:idx_steps_campaign_number"`
	DelayDays  int             `db:"delay_days"  gorm:"column:delay_days;not null;default:0"`
	Subject    string          `db:"subject"     gorm:"column:subject;not null"`
	Body       string          `db:"body"        gorm:"column:body;not null"`
	Variants   []model.Variant `db:"variants"    gorm:"column:variants;serializer:json"`
}

func (StepEntity) TableName() string {
	return "steps"
}

func toStepModel(e *StepEntity) *model.Step {
	if e == nil {
		return nil
	}
	return &model.Step{
		ID:         e.ID,
		CampaignID: e.CampaignID,
		StepNumber: e.StepNumber,
		DelayDays:  e.DelayDays,
		Subject:    e.Subject,
		Body:       e.Body,
		Variants:   e.Variants,
	}
}

type CampaignAccountEntity struct {
	ID              int64  `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID      int64  `db:"campaign_id"       gorm:"column:campaign_id;not null;uniqueIndex:idx_campaign_accounts_pair"`
	AccountID       int64  `db:"account_id"        gorm:"column:account_id;not null;uniqueIndex:idx_campaign_accounts_pair"`
	Weight          int    `db:"weight"            gorm:"column:weight;not null;default:1"`
	SendsToday      int    `db:"sends_today"       gorm:"column:sends_today;not null;default:0"`
	CountersResetOn string `db:"counters_reset_on" gorm:"column:counters_reset_on;not null;default:''"`
}

func (CampaignAccountEntity) TableName() string {
	return "campaign_accounts"
}

type linkedAccountRow struct {
	AccountID  int64  `gorm:"column:account_id"`
	Status     string `gorm:"column:status"`
	SendsToday int    `gorm:"column:sends_today"`
	DailyLimit int    `gorm:"column:daily_limit"`
	Weight     int    `gorm:"column:weight"`
}

func toLinkedAccounts(rows []linkedAccountRow) []model.LinkedAccount {
	out := make([]model.LinkedAccount, len(rows))
	for i, r := range rows {
		out[i] = model.LinkedAccount{
			AccountID:  r.AccountID,
			Status:     model.AccountStatus(r.Status),
			SendsToday: r.SendsToday,
			DailyLimit: r.DailyLimit,
			Weight:     r.Weight,
		}
	}
	return out
}
