package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"gorm.io/gorm"
)

type LeadRepository struct {
	*pg.DB
}

func NewLeadRepository(db *pg.DB) *LeadRepository {
	return &LeadRepository{
		db,
	}
}

func (r *LeadRepository) GetByID(ctx context.Context, id int64) (*model.Lead, error) {
	var entity LeadEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return toLeadModel(&entity), nil
}

// FindByEmail returns the tenant's lead for an address, case-insensitively.
func (r *LeadRepository) FindByEmail(ctx context.Context, tenantID int64, email string) (*model.Lead, error) {
	var entity LeadEntity
	err := r.Read(ctx).
		Where("tenant_id = ? AND LOWER(email) = ?", tenantID, strings.ToLower(strings.TrimSpace(email))).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return toLeadModel(&entity), nil
}

func (r *LeadRepository) SetStatus(ctx context.Context, id int64, status model.LeadStatus) error {
	return r.Write(ctx).
		Model(&LeadEntity{}).
		Where("id = ?", id).
		Update("status", string(status)).
		Error
}
