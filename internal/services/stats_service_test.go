package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStatsProjection struct {
	mock.Mock
}

func (m *MockStatsProjection) CampaignStats(campaignID int64) (map[string]int64, error) {
	args := m.Called(campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockStatsProjection) WarmupStats() (map[string]int64, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockSentCounter struct {
	mock.Mock
}

func (m *MockSentCounter) CountByCampaign(ctx context.Context, campaignID int64) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func TestStatsService_Campaign(t *testing.T) {
	projection := new(MockStatsProjection)
	sent := new(MockSentCounter)
	projection.On("CampaignStats", int64(4)).Return(map[string]int64{
		"sent":      10,
		"bounced":   1,
		"variant_0": 6,
		"variant_2": 4,
		"variant_x": 99,
	}, nil)
	sent.On("CountByCampaign", mock.Anything, int64(4)).Return(int64(11), nil)

	stats, err := NewStatsService(projection, sent).Campaign(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.CampaignID)
	assert.Equal(t, int64(11), stats.Sent)
	assert.Equal(t, map[string]int64{"sent": 10, "bounced": 1}, stats.Outcomes)
	assert.Equal(t, map[int]int64{0: 6, 2: 4}, stats.Variants)
}

func TestStatsService_CampaignErrors(t *testing.T) {
	t.Run("count fails", func(t *testing.T) {
		projection := new(MockStatsProjection)
		sent := new(MockSentCounter)
		sent.On("CountByCampaign", mock.Anything, int64(1)).Return(int64(0), errors.New("db"))

		_, err := NewStatsService(projection, sent).Campaign(context.Background(), 1)
		assert.Error(t, err)
		projection.AssertNotCalled(t, "CampaignStats", mock.Anything)
	})

	t.Run("projection fails", func(t *testing.T) {
		projection := new(MockStatsProjection)
		sent := new(MockSentCounter)
		sent.On("CountByCampaign", mock.Anything, int64(1)).Return(int64(3), nil)
		projection.On("CampaignStats", int64(1)).Return(nil, errors.New("redis"))

		_, err := NewStatsService(projection, sent).Campaign(context.Background(), 1)
		assert.Error(t, err)
	})
}

func TestStatsService_Warmup(t *testing.T) {
	projection := new(MockStatsProjection)
	projection.On("WarmupStats").Return(map[string]int64{"warmup_sent": 3}, nil)

	stats, err := NewStatsService(projection, new(MockSentCounter)).Warmup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["warmup_sent"])
}
