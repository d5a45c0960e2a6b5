package repository

import (
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type AccountEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	TenantID          int64      `db:"tenant_id"           gorm:"column:tenant_id;not null;index"`
	Email             string     `db:"email"               gorm:"column:email;not null;index"`
	FromName          string     `db:"from_name"           gorm:"column:from_name;not null;default:''"`
	CredentialRef     string     `db:"credential_ref"      gorm:"column:credential_ref;not null"`
	SignatureHTML     string     `db:"signature_html"      gorm:"column:signature_html;not null;default:''"`
	DailyLimit        int        `db:"daily_limit"         gorm:"column:daily_limit;not null;default:50"`
	SendsToday        int        `db:"sends_today"         gorm:"column:sends_today;not null;default:0"`
	CountersResetOn   string     `db:"counters_reset_on"   gorm:"column:counters_reset_on;not null;default:''"`
	Status            string     `db:"status"              gorm:"column:status;not null;default:active;index"`
	LastSentAt        *time.Time `db:"last_sent_at"        gorm:"column:last_sent_at"`
	LastError         string     `db:"last_error"          gorm:"column:last_error;not null;default:''"`
	WarmupEnabled     bool       `db:"warmup_enabled"      gorm:"column:warmup_enabled;not null;default:false"`
	WarmupDailyTarget int        `db:"warmup_daily_target" gorm:"column:warmup_daily_target;not null;default:40"`
	WarmupRampDays    int        `db:"warmup_ramp_days"    gorm:"column:warmup_ramp_days;not null;default:30"`
	WarmupScore       float64    `db:"warmup_score"        gorm:"column:warmup_score;not null;default:0"`
	WarmupStartedAt   *time.Time `db:"warmup_started_at"   gorm:"column:warmup_started_at"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (AccountEntity) TableName() string {
	return "email_accounts"
}

func toAccountModel(e *AccountEntity) *model.Account {
	if e == nil {
		return nil
	}
	return &model.Account{
		ID:                e.ID,
		TenantID:          e.TenantID,
		Email:             e.Email,
		FromName:          e.FromName,
		CredentialRef:     e.CredentialRef,
		SignatureHTML:     e.SignatureHTML,
		DailyLimit:        e.DailyLimit,
		SendsToday:        e.SendsToday,
		CountersResetOn:   e.CountersResetOn,
		Status:            model.AccountStatus(e.Status),
		LastSentAt:        e.LastSentAt,
		LastError:         e.LastError,
		WarmupEnabled:     e.WarmupEnabled,
		WarmupDailyTarget: e.WarmupDailyTarget,
		WarmupRampDays:    e.WarmupRampDays,
		WarmupScore:       e.WarmupScore,
		WarmupStartedAt:   e.WarmupStartedAt,
	}
}

func toAccountModels(entities []*AccountEntity) []*model.Account {
	if entities == nil {
		return nil
	}
	models := make([]*model.Account, len(entities))
	for i, e := range entities {
		models[i] = toAccountModel(e)
	}
	return models
}
