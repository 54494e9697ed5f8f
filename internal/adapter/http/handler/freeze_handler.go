package handler

import (
	"glotrade-wallet/internal/adapter/http/dto"
	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// FreezeHandler handles hold placement and release.
type FreezeHandler struct {
	freezes ports.FreezeService
}

// NewFreezeHandler creates a new FreezeHandler.
func NewFreezeHandler(freezes ports.FreezeService) *FreezeHandler {
	return &FreezeHandler{freezes: freezes}
}

// Freeze handles POST /api/v1/wallets/:owner_id/:currency/freezes.
func (h *FreezeHandler) Freeze(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	var req dto.FreezeRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)
	amount, ok := minorAmount(c, req.Amount, key.Currency)
	if !ok {
		return
	}

	record, err := h.freezes.Freeze(c.Request.Context(), ports.FreezeRequest{
		Key:    key,
		Amount: amount,
		Reason: req.Reason,
		Actor:  act,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Release handles POST /api/v1/freezes/:id/release.
func (h *FreezeHandler) Release(c *gin.Context) {
	freezeID, ok := uuidParam(c, "id", "freeze")
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	var req dto.ReleaseRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	var amount int64
	if req.Amount != "" {
		currency, err := domain.ParseCurrency(req.Currency)
		if err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		if amount, ok = minorAmount(c, req.Amount, currency); !ok {
			return
		}
		if amount <= 0 {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
	}

	result, err := h.freezes.Unfreeze(c.Request.Context(), ports.UnfreezeRequest{
		FreezeID: freezeID,
		Amount:   amount,
		Actor:    act,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// History handles GET /api/v1/wallets/:owner_id/:currency/freezes.
func (h *FreezeHandler) History(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}

	records, err := h.freezes.History(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}
