package handler

import (
	"glotrade-wallet/internal/adapter/http/dto"
	"glotrade-wallet/internal/core/domain"
	"glotrade-wallet/internal/core/ports"
	"glotrade-wallet/pkg/apperror"
	"glotrade-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// RewardHandler exposes distributor reward enrolment and manual ticks.
type RewardHandler struct {
	rewards ports.RewardService
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewards ports.RewardService) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

// Enroll handles POST /api/v1/rewards/enrollments.
func (h *RewardHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	key, err := domain.NewWalletKey(req.OwnerID, req.Currency)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	state, err := h.rewards.Enroll(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// GetState handles GET /api/v1/rewards/:owner_id/:currency.
func (h *RewardHandler) GetState(c *gin.Context) {
	key, ok := walletKey(c)
	if !ok {
		return
	}

	state, err := h.rewards.GetState(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, state)
}

// Tick handles POST /api/v1/rewards/tick.
func (h *RewardHandler) Tick(c *gin.Context) {
	summary, err := h.rewards.Tick(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
