package handler

import (
	"glotrade-wallet/internal/adapter/http/dto"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// CreditHandler handles payment-terms credit endpoints.
type CreditHandler struct {
	credit ports.CreditService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(credit ports.CreditService) *CreditHandler {
	return &CreditHandler{credit: credit}
}

// Repay handles POST /api/v1/wallets/:owner_id/:currency/credit/repayments.
func (h *CreditHandler) Repay(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	var req dto.RepaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := minorAmount(c, req.Amount, key.Currency)
	if !ok {
		return
	}

	result, err := h.credit.Repay(c.Request.Context(), ports.RepayRequest{
		Key:            key,
		Amount:         amount,
		FromWallet:     req.FromWallet,
		IdempotencyKey: req.IdempotencyKey,
		Actor:          act,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Replayed {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// SetLimit handles PUT /api/v1/wallets/:owner_id/:currency/credit/limit.
func (h *CreditHandler) SetLimit(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}
	act, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreditLimitRequest
	if !bindJSON(c, &req) {
		return
	}
	limit, ok := minorAmount(c, req.Limit, key.Currency)
	if !ok {
		return
	}

	balance, err := h.credit.SetCreditLimit(c.Request.Context(), key, limit, act)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceResponse(*balance))
}
