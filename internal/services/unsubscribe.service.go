package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/internal/repository"
	"github.com/nimasrn/outreach-engine/internal/unsubscribe"
	"github.com/nimasrn/outreach-engine/pkg/logger"
)

var ErrInvalidToken = errors.New("invalid or expired unsubscribe token")

type TokenVerifier interface {
	Verify(token string) (*unsubscribe.Claims, error)
}

type UnsubscribeRepository interface {
	AddUnsubscribe(ctx context.Context, tenantID int64, email string, campaignID *int64) (*model.Unsubscribe, error)
}

type LeadRepository interface {
	FindByEmail(ctx context.Context, tenantID int64, email string) (*model.Lead, error)
	SetStatus(ctx context.Context, id int64, status model.LeadStatus) error
}

type CampaignLeadRepository interface {
	FinishAllForLead(ctx context.Context, leadID int64, status model.CampaignLeadStatus) (int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UnsubscribeService struct {
	tokens      TokenVerifier
	suppression UnsubscribeRepository
	leads       LeadRepository
	links       CampaignLeadRepository
}

func NewUnsubscribeService(tokens TokenVerifier, suppression UnsubscribeRepository, leads LeadRepository, links CampaignLeadRepository) *UnsubscribeService {
	return &UnsubscribeService{
		tokens:      tokens,
		suppression: suppression,
		leads:       leads,
		links:       links,
	}
}

// Redeem verifies an unsubscribe token and suppresses its address for the
// tenant: the address is appended to the unsubscribe list, the lead is marked
// unsubscribed and every open campaign enrollment of the lead is ended.
// Redeeming the same token twice is harmless.
func (s *UnsubscribeService) Redeem(ctx context.Context, token string) (*model.UnsubscribeResult, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	result := &model.UnsubscribeResult{Email: claims.Email}
	err = s.links.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.suppression.AddUnsubscribe(ctx, claims.UserID, claims.Email, nil); err != nil {
			return fmt.Errorf("add unsubscribe: %w", err)
		}

		lead, err := s.leads.FindByEmail(ctx, claims.UserID, claims.Email)
		if errors.Is(err, repository.ErrLeadNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find lead: %w", err)
		}
		result.LeadFound = true

		if err := s.leads.SetStatus(ctx, lead.ID, model.LeadStatusUnsubscribed); err != nil {
			return fmt.Errorf("set lead status: %w", err)
		}
		ended, err := s.links.FinishAllForLead(ctx, lead.ID, model.CampaignLeadUnsubscribed)
		if err != nil {
			return fmt.Errorf("end campaign leads: %w", err)
		}
		result.CampaignsEnded = ended
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("address unsubscribed", "tenant_id", claims.UserID, "email", claims.Email, "campaigns_ended", result.CampaignsEnded)
	return result, nil
}
