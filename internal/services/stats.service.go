package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nimasrn/outreach-engine/internal/model"
)

const variantPrefix = "variant_"

type StatsProjection interface {
	CampaignStats(campaignID int64) (map[string]int64, error)
	WarmupStats() (map[string]int64, error)
}

type SentCounter interface {
	CountByCampaign(ctx context.Context, campaignID int64) (int64, error)
}

type StatsService struct {
	projection StatsProjection
	sent       SentCounter
}

func NewStatsService(projection StatsProjection, sent SentCounter) *StatsService {
	return &StatsService{projection: projection, sent: sent}
}

func (s *StatsService) Campaign(ctx context.Context, campaignID int64) (*model.CampaignStats, error) {
	sent, err := s.sent.CountByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count sent: %w", err)
	}
	raw, err := s.projection.CampaignStats(campaignID)
	if err != nil {
		return nil, fmt.Errorf("read projection: %w", err)
	}

	stats := &model.CampaignStats{
		CampaignID: campaignID,
		Sent:       sent,
		Outcomes:   make(map[string]int64),
		Variants:   make(map[int]int64),
	}
	for k, v := range raw {
		if idx, ok := strings.CutPrefix(k, variantPrefix); ok {
			if i, err := strconv.Atoi(idx); err == nil {
				stats.Variants[i] = v
			}
			continue
		}
		stats.Outcomes[k] = v
	}
	return stats, nil
}

func (s *StatsService) Warmup(_ context.Context) (map[string]int64, error) {
	return s.projection.WarmupStats()
}
