package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/internal/services"
	xhttp "github.com/nimasrn/outreach-engine/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) Get() error {
	return m.Called().Error(0)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Campaign(ctx context.Context, campaignID int64) (*model.CampaignStats, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CampaignStats), args.Error(1)
}

func (m *MockStatsService) Warmup(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockUnsubscribeService struct {
	mock.Mock
}

func (m *MockUnsubscribeService) Redeem(ctx context.Context, token string) (*model.UnsubscribeResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UnsubscribeResult), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func decodeError(t *testing.T, ctx *xhttp.RequestCtx) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body["error"]
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := new(MockHealthService)
		svc.On("Get").Return(nil)
		ctx := setupTestContext("GET", "/api/v1/health", nil)

		NewHealthHandler(svc).GetHealth(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, "success", string(ctx.Response.Body()))
	})

	t.Run("redis down", func(t *testing.T) {
		svc := new(MockHealthService)
		svc.On("Get").Return(errors.New("redis: connection refused"))
		ctx := setupTestContext("GET", "/api/v1/health", nil)

		NewHealthHandler(svc).GetHealth(ctx)

		assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		assert.Contains(t, decodeError(t, ctx), "redis")
	})
}

func TestStatsHandler_GetCampaignStats(t *testing.T) {
	t.Run("returns projected counters", func(t *testing.T) {
		svc := new(MockStatsService)
		stats := &model.CampaignStats{
			CampaignID: 12,
			Sent:       40,
			Outcomes:   map[string]int64{"sent": 40, "bounced": 2},
			Variants:   map[int]int64{0: 21, 1: 19},
		}
		svc.On("Campaign", mock.Anything, int64(12)).Return(stats, nil)

		ctx := setupTestContext("GET", "/api/v1/campaigns/12/stats", nil)
		ctx.SetUserValue("id", "12")
		NewStatsHandler(svc).GetCampaignStats(ctx)

		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		var got model.CampaignStats
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, *stats, got)
		svc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockStatsService)
		ctx := setupTestContext("GET", "/api/v1/campaigns/abc/stats", nil)
		ctx.SetUserValue("id", "abc")
		NewStatsHandler(svc).GetCampaignStats(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Campaign", mock.Anything, mock.Anything)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockStatsService)
		svc.On("Campaign", mock.Anything, int64(3)).Return(nil, errors.New("boom"))
		ctx := setupTestContext("GET", "/api/v1/campaigns/3/stats", nil)
		ctx.SetUserValue("id", "3")
		NewStatsHandler(svc).GetCampaignStats(ctx)

		assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	})
}

func TestStatsHandler_GetWarmupStats(t *testing.T) {
	svc := new(MockStatsService)
	svc.On("Warmup", mock.Anything).Return(map[string]int64{"warmup_sent": 9, "warmup_reply": 4}, nil)
	ctx := setupTestContext("GET", "/api/v1/warmup/stats", nil)

	NewStatsHandler(svc).GetWarmupStats(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var got map[string]int64
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
	assert.Equal(t, int64(9), got["warmup_sent"])
}

func TestUnsubscribeHandler(t *testing.T) {
	t.Run("redeems token", func(t *testing.T) {
		svc := new(MockUnsubscribeService)
		svc.On("Redeem", mock.Anything, "tok").Return(&model.UnsubscribeResult{Email: "sam@acme.io", LeadFound: true, CampaignsEnded: 2}, nil)

		body, _ := json.Marshal(unsubscribeRequest{Token: "tok"})
		ctx := setupTestContext("POST", "/api/v1/unsubscribe", body)
		NewUnsubscribeHandler(svc).Unsubscribe(ctx)

		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		var got model.UnsubscribeResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, int64(2), got.CampaignsEnded)
		svc.AssertExpectations(t)
	})

	t.Run("missing token", func(t *testing.T) {
		svc := new(MockUnsubscribeService)
		ctx := setupTestContext("POST", "/api/v1/unsubscribe", []byte(`{}`))
		NewUnsubscribeHandler(svc).Unsubscribe(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
		assert.Equal(t, "token is required", decodeError(t, ctx))
		svc.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything)
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := new(MockUnsubscribeService)
		ctx := setupTestContext("POST", "/api/v1/unsubscribe", []byte(`{"token":`))
		NewUnsubscribeHandler(svc).Unsubscribe(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("invalid token", func(t *testing.T) {
		svc := new(MockUnsubscribeService)
		svc.On("Redeem", mock.Anything, "bad").Return(nil, services.ErrInvalidToken)
		body, _ := json.Marshal(unsubscribeRequest{Token: "bad"})
		ctx := setupTestContext("POST", "/api/v1/unsubscribe", body)
		NewUnsubscribeHandler(svc).Unsubscribe(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
		assert.Equal(t, services.ErrInvalidToken.Error(), decodeError(t, ctx))
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := new(MockUnsubscribeService)
		svc.On("Redeem", mock.Anything, "tok").Return(nil, errors.New("db gone"))
		body, _ := json.Marshal(unsubscribeRequest{Token: "tok"})
		ctx := setupTestContext("POST", "/api/v1/unsubscribe", body)
		NewUnsubscribeHandler(svc).Unsubscribe(ctx)

		assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	})
}
