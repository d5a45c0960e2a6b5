package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/outreach-engine/internal/model"
	"github.com/nimasrn/outreach-engine/internal/services"
	xhttp "github.com/nimasrn/outreach-engine/pkg/http"
)

type UnsubscribeService interface {
	Redeem(ctx context.Context, token string) (*model.UnsubscribeResult, error)
}

type UnsubscribeHandler struct {
	svc UnsubscribeService
}

func RegisterUnsubscribeRoutes(e *router.Group, h *UnsubscribeHandler) {
	e.POST("/unsubscribe", h.Unsubscribe)
}

func NewUnsubscribeHandler(svc UnsubscribeService) *UnsubscribeHandler {
	return &UnsubscribeHandler{svc: svc}
}

type unsubscribeRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *UnsubscribeHandler) Unsubscribe(ctx *xhttp.RequestCtx) {
	var req unsubscribeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "token is required")
		return
	}

	res, err := h.svc.Redeem(ctx, req.Token)
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			writeError(ctx, xhttp.StatusBadRequest, services.ErrInvalidToken.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}
