package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"gorm.io/gorm"
)

const maxErrorLength = 200

type AccountRepository struct {
	*pg.DB
}

func NewAccountRepository(db *pg.DB) *AccountRepository {
	return &AccountRepository{
		db,
	}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var entity AccountEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountModel(&entity), nil
}

// ReserveSend takes one unit of the account's daily budget. The increment is
// conditional so concurrent reservations can never push sends_today past
// daily_limit.
func (r *AccountRepository) ReserveSend(ctx context.Context, id int64) error {
	result := r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ? AND sends_today < daily_limit AND status IN ?", id,
			[]string{string(model.AccountStatusActive), string(model.AccountStatusWarming)}).
		Update("sends_today", gorm.Expr("sends_today + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.reserveFailureReason(ctx, id)
	}
	return nil
}

func (r *AccountRepository) reserveFailureReason(ctx context.Context, id int64) error {
	var count int64
	err := r.Read(ctx).Model(&AccountEntity{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAccountNotFound
	}
	return ErrDailyLimitReached
}

// ReleaseSend gives back a reservation whose send did not go out.
func (r *AccountRepository) ReleaseSend(ctx context.Context, id int64) error {
	return r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ? AND sends_today > 0", id).
		Update("sends_today", gorm.Expr("sends_today - 1")).
		Error
}

// IncrementSends bumps sends_today without the limit check. Warmup traffic
// counts against the budget but is throttled by its own target.
func (r *AccountRepository) IncrementSends(ctx context.Context, id int64) error {
	return r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", id).
		Update("sends_today", gorm.Expr("sends_today + 1")).
		Error
}

func (r *AccountRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_sent_at": at, "last_error": ""}).
		Error
}

// RecordError stores a truncated transport error and, when status is not
// empty, moves the account into it.
func (r *AccountRepository) RecordError(ctx context.Context, id int64, msg string, status model.AccountStatus) error {
	updates := map[string]interface{}{"last_error": Truncate(msg, maxErrorLength)}
	if status != "" {
		updates["status"] = string(status)
	}
	return r.Write(ctx).Model(&AccountEntity{}).Where("id = ?", id).Updates(updates).Error
}

// ResetDailyCounters zeroes sends_today on accounts and campaign links whose
// last reset day differs from day. Rows already reset for day are left
// alone, so repeated calls are harmless.
func (r *AccountRepository) ResetDailyCounters(ctx context.Context, day string) (int64, error) {
	var accounts int64
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		res := r.Write(ctx).
			Model(&AccountEntity{}).
			Where("counters_reset_on <> ? OR counters_reset_on IS NULL", day).
			Updates(map[string]interface{}{"sends_today": 0, "counters_reset_on": day})
		if res.Error != nil {
			return fmt.Errorf("reset account counters: %w", res.Error)
		}
		accounts = res.RowsAffected

		res = r.Write(ctx).
			Model(&CampaignAccountEntity{}).
			Where("counters_reset_on <> ? OR counters_reset_on IS NULL", day).
			Updates(map[string]interface{}{"sends_today": 0, "counters_reset_on": day})
		if res.Error != nil {
			return fmt.Errorf("reset campaign account counters: %w", res.Error)
		}
		return nil
	})
	return accounts, err
}

// ListWarmupPool returns warmup-enabled accounts that are active or warming.
func (r *AccountRepository) ListWarmupPool(ctx context.Context) ([]*model.Account, error) {
	var entities []*AccountEntity
	err := r.Read(ctx).
		Where("warmup_enabled = ? AND status IN ?", true,
			[]string{string(model.AccountStatusActive), string(model.AccountStatusWarming)}).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toAccountModels(entities), nil
}

// FindWarmupByEmail looks up a pool member by address, case-insensitively.
func (r *AccountRepository) FindWarmupByEmail(ctx context.Context, email string) (*model.Account, error) {
	var entity AccountEntity
	err := r.Read(ctx).
		Where("LOWER(email) = LOWER(?) AND warmup_enabled = ?", email, true).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountModel(&entity), nil
}

// StartWarmup stamps warmup_started_at if it is still empty.
func (r *AccountRepository) StartWarmup(ctx context.Context, id int64, at time.Time) error {
	return r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ? AND warmup_started_at IS NULL", id).
		Update("warmup_started_at", at).
		Error
}

func (r *AccountRepository) UpdateWarmupScore(ctx context.Context, id int64, score float64) error {
	return r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"warmup_score": score,
			"status":       string(model.AccountStatusWarming),
		}).
		Error
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
