package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/outreach-engine/internal/model"
	xhttp "github.com/nimasrn/outreach-engine/pkg/http"
)

type StatsService interface {
	Campaign(ctx context.Context, campaignID int64) (*model.CampaignStats, error)
	Warmup(ctx context.Context) (map[string]int64, error)
}

type StatsHandler struct {
	svc StatsService
}

func RegisterStatsRoutes(e *router.Group, h *StatsHandler) {
	e.GET("/campaigns/{id}/stats", h.GetCampaignStats)
	e.GET("/warmup/stats", h.GetWarmupStats)
}

func NewStatsHandler(svc StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) GetCampaignStats(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil || id <= 0 {
		writeError(ctx, xhttp.StatusBadRequest, "invalid campaign id")
		return
	}
	stats, err := h.svc.Campaign(ctx, id)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}

func (h *StatsHandler) GetWarmupStats(ctx *xhttp.RequestCtx) {
	stats, err := h.svc.Warmup(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}
