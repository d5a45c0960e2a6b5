package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/redis"
)

var ErrLeadLocked = errors.New("campaign lead is locked by another dispatcher")

type GuardConfig struct {
	// LockTTL bounds how long a crashed dispatcher can hold a lead.
	LockTTL time.Duration

	// FailureTTL is how long a consecutive-failure counter survives without
	// another failure.
	FailureTTL time.Duration

	// MaxFailures is the number of consecutive transient failures after
	// which a campaign lead is paused.
	MaxFailures int

	LockKeyPrefix    string
	FailureKeyPrefix string
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LockTTL:          5 * time.Minute,
		FailureTTL:       7 * 24 * time.Hour,
		MaxFailures:      5,
		LockKeyPrefix:    "dispatch:lock:",
		FailureKeyPrefix: "dispatch:failures:",
	}
}

// Guard keeps two dispatchers off the same campaign lead and tracks
// consecutive transient failures per campaign lead.
type Guard struct {
	redis  redis.RedisAdapter
	config GuardConfig
}

func NewGuard(adapter redis.RedisAdapter, config GuardConfig) *Guard {
	def := DefaultGuardConfig()
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.LockKeyPrefix == "" {
		config.LockKeyPrefix = def.LockKeyPrefix
	}
	if config.FailureKeyPrefix == "" {
		config.FailureKeyPrefix = def.FailureKeyPrefix
	}
	return &Guard{redis: adapter, config: config}
}

func (g *Guard) lockKey(id int64) string {
	return g.config.LockKeyPrefix + strconv.FormatInt(id, 10)
}

func (g *Guard) failureKey(id int64) string {
	return g.config.FailureKeyPrefix + strconv.FormatInt(id, 10)
}

// Acquire takes the per-lead lock. The returned func releases it.
func (g *Guard) Acquire(_ context.Context, campaignLeadID int64) (func(), error) {
	key := g.lockKey(campaignLeadID)
	value := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))

	acquired, err := g.redis.SetNX(key, value, g.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !acquired {
		return nil, ErrLeadLocked
	}

	return func() {
		if err := g.redis.Del(key); err != nil {
			logger.Warn("failed to release dispatch lock", "campaign_lead_id", campaignLeadID, "error", err)
		}
	}, nil
}

// RecordFailure counts one transient failure and reports whether the lead
// reached the escalation threshold.
func (g *Guard) RecordFailure(_ context.Context, campaignLeadID int64) (int64, bool, error) {
	count, err := g.redis.Incr(g.failureKey(campaignLeadID), g.config.FailureTTL)
	if err != nil {
		return 0, false, err
	}
	return count, count >= int64(g.config.MaxFailures), nil
}

// Clear resets the consecutive-failure counter.
func (g *Guard) Clear(_ context.Context, campaignLeadID int64) error {
	return g.redis.Del(g.failureKey(campaignLeadID))
}

func (g *Guard) Failures(_ context.Context, campaignLeadID int64) (int64, error) {
	raw, err := g.redis.Get(g.failureKey(campaignLeadID))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
