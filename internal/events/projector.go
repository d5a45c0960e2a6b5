package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nimasrn/outreach-engine/pkg/redis"
)

const warmupStatsKey = "warmup:stats"

func CampaignStatsKey(campaignID int64) string {
	return fmt.Sprintf("campaign:stats:%d", campaignID)
}

// StatsProjector folds outcome events into per-campaign redis counters.
type StatsProjector struct {
	adapter redis.RedisAdapter
}

func NewStatsProjector(adapter redis.RedisAdapter) *StatsProjector {
	return &StatsProjector{adapter: adapter}
}

// Handle is a stream Handler.
func (p *StatsProjector) Handle(_ context.Context, ev Event) error {
	switch ev.Type {
	case TypeWarmupSent, TypeWarmupReply:
		return p.adapter.HIncrement(warmupStatsKey, string(ev.Type), 1)
	}
	if ev.CampaignID == 0 {
		return nil
	}
	key := CampaignStatsKey(ev.CampaignID)
	if err := p.adapter.HIncrement(key, string(ev.Type), 1); err != nil {
		return err
	}
	if ev.Type == TypeSent {
		return p.adapter.HIncrement(key, "variant_"+strconv.Itoa(ev.VariantIndex), 1)
	}
	return nil
}

// CampaignStats returns the counters projected for a campaign.
func (p *StatsProjector) CampaignStats(campaignID int64) (map[string]int64, error) {
	return p.read(CampaignStatsKey(campaignID))
}

func (p *StatsProjector) WarmupStats() (map[string]int64, error) {
	return p.read(warmupStatsKey)
}

func (p *StatsProjector) read(key string) (map[string]int64, error) {
	raw, err := p.adapter.HGetAll(key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
